// Package events extracts program events from transaction logs and delivers them
// to listeners and sinks.
package events

import (
	"errors"
	"iter"

	"solana-idl-kit/internal/coder"
	"solana-idl-kit/internal/logparser"
	"solana-idl-kit/internal/solana"
)

// ErrEmptyStack is returned when logs close more invocations than they open.
var ErrEmptyStack = errors.New("execution stack is empty")

// Parser decodes the events emitted by one program from its log lines.
type Parser struct {
	programID string
	coder     *coder.Coder
}

// NewParser creates a parser for events of programID described by c.
func NewParser(programID solana.PublicKey, c *coder.Coder) *Parser {
	return &Parser{programID: programID.String(), coder: c}
}

// ProgramID returns the base58 address of the program.
func (p *Parser) ProgramID() string { return p.programID }

// Events yields the program's decoded events in log order. Payloads are only
// considered while the program itself is executing, so events of programs it
// calls, or of programs calling it, are ignored. Payloads that are not events are
// skipped; a payload that fails to decode yields its error and the scan goes on.
// A log closing more invocations than it opened ends the sequence with ErrEmptyStack.
func (p *Parser) Events(logs []string) iter.Seq2[*coder.Decoded, error] {
	return func(yield func(*coder.Decoded, error) bool) {
		var stack executionStack
		for _, log := range logs {
			line := logparser.Classify(log)
			switch line.Category {
			case logparser.CategoryStart, logparser.CategoryCPI:
				stack.push(line.Content)
			case logparser.CategorySuccess, logparser.CategoryFailed:
				if err := stack.pop(); err != nil {
					yield(nil, err)
					return
				}
			case logparser.CategoryMessage, logparser.CategoryData:
				if top, ok := stack.top(); !ok || top != p.programID {
					continue
				}
				event, err := p.coder.DecodeAnyEvent(line.Content)
				if err != nil {
					if !yield(nil, err) {
						return
					}
					continue
				}
				if event != nil && !yield(event, nil) {
					return
				}
			}
		}
	}
}

// executionStack tracks the currently executing program.
type executionStack []string

func (s *executionStack) push(program string) {
	*s = append(*s, program)
}

func (s *executionStack) pop() error {
	if len(*s) == 0 {
		return ErrEmptyStack
	}
	*s = (*s)[:len(*s)-1]
	return nil
}

func (s executionStack) top() (string, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[len(s)-1], true
}
