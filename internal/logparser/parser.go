// Package logparser rebuilds the tree of program invocations from the flat log
// messages of a transaction.
package logparser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnbalanced is returned when a line arrives with no invocation open to receive it.
var ErrUnbalanced = errors.New("unbalanced program log")

// InstructionLog is one program invocation and the log lines it produced.
type InstructionLog struct {
	ProgramID string   `json:"program_id"`
	Messages  []Line   `json:"messages"`
	Datas     []string `json:"datas"`
	// Return is the base64 return data, empty when the program returned nothing.
	Return string `json:"return,omitempty"`
	// Success is the invocation's own result, or the conjunction of its children's
	// results when it has any.
	Success bool `json:"success"`
	// ErrorCode is "<hex>|<decimal>" for failures that report a code.
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Children     []*InstructionLog `json:"children,omitempty"`
}

// CustomErrorCode returns the numeric program error code of a failed invocation.
func (l *InstructionLog) CustomErrorCode() (uint32, bool) {
	_, dec, ok := strings.Cut(l.ErrorCode, "|")
	if !ok || dec == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(dec, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// Parse groups log lines into invocations. Each returned root is a top level
// instruction with its cross-program invocations as children. Invocations still
// open when the lines run out are not returned.
func Parse(messages []string) ([]*InstructionLog, error) {
	var (
		roots []*InstructionLog
		stack []*InstructionLog
	)

	for i, message := range messages {
		line, reason := classify(message)

		if line.Category.opens() {
			stack = append(stack, &InstructionLog{
				ProgramID: line.Content,
				Messages:  []Line{},
				Datas:     []string{},
				Success:   true,
			})
		}
		if len(stack) == 0 {
			return nil, fmt.Errorf("%w: line %d %q outside any invocation", ErrUnbalanced, i, message)
		}

		cur := stack[len(stack)-1]
		cur.Messages = append(cur.Messages, line)

		switch line.Category {
		case CategoryData:
			cur.Datas = append(cur.Datas, line.Content)
		case CategoryReturn:
			cur.Return = line.Content
		case CategoryError:
			cur.ErrorMessage = line.Content
		}

		if !line.Category.closes() {
			continue
		}

		if len(cur.Children) == 0 {
			cur.Success = line.Category == CategorySuccess
		} else {
			cur.Success = true
			for _, child := range cur.Children {
				cur.Success = cur.Success && child.Success
			}
		}
		if line.Category == CategoryFailed {
			cur.ErrorCode = errorCode(line.Content)
			if cur.ErrorMessage == "" && reason != "" {
				cur.ErrorMessage = "Reason: " + reason
			}
		}

		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			roots = append(roots, cur)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, cur)
		}
	}

	return roots, nil
}

// errorCode turns "<address>|<hex>" into "<hex>|<decimal>". Failures without a
// code yield an empty string.
func errorCode(content string) string {
	_, hex, _ := strings.Cut(content, "|")
	if hex == "" {
		return ""
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(hex, "0x"), "0X"), 16, 64)
	if err != nil {
		return hex + "|"
	}
	return hex + "|" + strconv.FormatUint(n, 10)
}
