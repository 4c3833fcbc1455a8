// Package coder compiles an IDL document into encoders and decoders for the
// program's instructions, accounts and events.
//
// A Coder is immutable after New and safe for concurrent use.
package coder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"maps"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/idhash"
	"solana-idl-kit/internal/idl"
)

// Schema and lookup errors.
var (
	// ErrInvalidSchema is returned for malformed IDL documents.
	ErrInvalidSchema = errors.New("invalid idl schema")

	// ErrUndefinedType is returned when a defined type reference does not resolve.
	ErrUndefinedType = errors.New("undefined type")

	// ErrRecursiveType is returned when a type contains itself without an option,
	// coption or vec along the cycle.
	ErrRecursiveType = errors.New("recursive type without base case")

	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrUnknownEvent       = errors.New("unknown event")

	// ErrMissingAccount is returned when an instruction context lacks a named account.
	ErrMissingAccount = errors.New("missing account")

	// ErrDiscriminatorMismatch is returned when data does not start with the
	// discriminator of the requested account or event.
	ErrDiscriminatorMismatch = errors.New("discriminator mismatch")
)

// Option configures a Coder.
type Option func(*Coder)

// WithMaxEncodeSize sets the encode buffer size for instruction arguments, accounts
// and events. Defaults to borsh.DefaultMaxSize.
func WithMaxEncodeSize(n int) Option {
	return func(c *Coder) {
		c.maxEncodeSize = n
	}
}

// DecodeFunc decodes one value from raw bytes.
type DecodeFunc func(data []byte) (borsh.Value, error)

// Decoded is a value identified through its discriminator.
type Decoded struct {
	Name string
	Data borsh.Value
}

// Coder holds the compiled layouts and lookup tables of one IDL document.
type Coder struct {
	idl           *idl.Idl
	maxEncodeSize int

	types        map[string]borsh.Layout
	instructions map[string]*InstructionDef
	bySighash    map[[idhash.DiscriminatorSize]byte]*InstructionDef
	builders     map[string]BuildInstructionFunc
	accounts     map[string]borsh.Layout
	events       map[string]borsh.Layout
	accountDecs  map[string]DecodeFunc
	eventDecs    map[string]DecodeFunc
	accountDiscs map[string]string
	eventDiscs   map[string]string
	errors       map[int]idl.ErrorCode
}

// New compiles doc. Any unresolved or unsupported type fails here.
func New(doc *idl.Idl, opts ...Option) (*Coder, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidSchema)
	}

	c := &Coder{
		idl:           doc,
		maxEncodeSize: borsh.DefaultMaxSize,
		types:         make(map[string]borsh.Layout),
		instructions:  make(map[string]*InstructionDef),
		bySighash:     make(map[[idhash.DiscriminatorSize]byte]*InstructionDef),
		builders:      make(map[string]BuildInstructionFunc),
		accounts:      make(map[string]borsh.Layout),
		events:        make(map[string]borsh.Layout),
		accountDecs:   make(map[string]DecodeFunc),
		eventDecs:     make(map[string]DecodeFunc),
		accountDiscs:  make(map[string]string),
		eventDiscs:    make(map[string]string),
		errors:        make(map[int]idl.ErrorCode),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxEncodeSize <= 0 {
		return nil, fmt.Errorf("%w: max encode size %d", ErrInvalidSchema, c.maxEncodeSize)
	}

	if err := c.compile(); err != nil {
		return nil, fmt.Errorf("compile idl %s: %w", doc.Name, err)
	}
	return c, nil
}

func (c *Coder) compile() error {
	comp := newCompiler(c.idl)
	if err := comp.compileAll(); err != nil {
		return err
	}
	for name, ref := range comp.refs {
		c.types[name] = ref
	}

	accountDefs := c.idl.Accounts
	if c.idl.State != nil {
		accountDefs = append(accountDefs[:len(accountDefs):len(accountDefs)], c.idl.State.Struct)
	}
	for _, def := range accountDefs {
		if _, dup := c.accounts[def.Name]; dup {
			continue
		}
		l := c.types[def.Name]
		c.accounts[def.Name] = l
		c.accountDecs[def.Name] = c.discriminatedDecoder(idhash.AccountDiscriminator(def.Name), l)
		c.accountDiscs[discKey(idhash.AccountDiscriminator(def.Name))] = def.Name
	}

	for _, ev := range c.idl.Events {
		if _, dup := c.events[ev.Name]; dup {
			return fmt.Errorf("%w: duplicate event %q", ErrInvalidSchema, ev.Name)
		}
		l, err := comp.eventFields(ev.Fields)
		if err != nil {
			return fmt.Errorf("event %s: %w", ev.Name, err)
		}
		c.events[ev.Name] = l
		c.eventDecs[ev.Name] = c.discriminatedDecoder(idhash.EventDiscriminator(ev.Name), l)
		c.eventDiscs[discKey(idhash.EventDiscriminator(ev.Name))] = ev.Name
	}

	if c.idl.State != nil {
		for _, m := range c.idl.State.Methods {
			if err := c.addInstruction(comp, m, idhash.NamespaceState); err != nil {
				return err
			}
		}
	}
	for _, ix := range c.idl.Instructions {
		if err := c.addInstruction(comp, ix, idhash.NamespaceGlobal); err != nil {
			return err
		}
	}

	for _, e := range c.idl.Errors {
		c.errors[e.Code] = e
	}
	return nil
}

// discriminatedDecoder checks the 8-byte prefix and decodes the rest with l.
func (c *Coder) discriminatedDecoder(disc [idhash.DiscriminatorSize]byte, l borsh.Layout) DecodeFunc {
	return func(data []byte) (borsh.Value, error) {
		if len(data) < idhash.DiscriminatorSize {
			return nil, fmt.Errorf("%w: %d bytes, no discriminator", borsh.ErrTruncated, len(data))
		}
		if [idhash.DiscriminatorSize]byte(data[:idhash.DiscriminatorSize]) != disc {
			return nil, fmt.Errorf("%w: got %x, want %x", ErrDiscriminatorMismatch, data[:idhash.DiscriminatorSize], disc)
		}
		return borsh.Decode(l, data[idhash.DiscriminatorSize:])
	}
}

func discKey(d [idhash.DiscriminatorSize]byte) string {
	return base64.StdEncoding.EncodeToString(d[:])
}

// Idl returns the compiled document.
func (c *Coder) Idl() *idl.Idl { return c.idl }

// TypeLayout returns the layout of a user type or account definition.
func (c *Coder) TypeLayout(name string) (borsh.Layout, bool) {
	l, ok := c.types[name]
	return l, ok
}

// AccountLayout returns the layout of an account body (without discriminator).
func (c *Coder) AccountLayout(name string) (borsh.Layout, bool) {
	l, ok := c.accounts[name]
	return l, ok
}

// EventLayout returns the layout of an event body (without discriminator).
func (c *Coder) EventLayout(name string) (borsh.Layout, bool) {
	l, ok := c.events[name]
	return l, ok
}

// AccountDecoder returns the decoder for the named account. The decoder expects the
// discriminator prefix.
func (c *Coder) AccountDecoder(name string) (DecodeFunc, bool) {
	f, ok := c.accountDecs[name]
	return f, ok
}

// EventDecoder returns the decoder for the named event. The decoder expects the
// discriminator prefix.
func (c *Coder) EventDecoder(name string) (DecodeFunc, bool) {
	f, ok := c.eventDecs[name]
	return f, ok
}

// AccountDiscriminators returns base64(discriminator) -> account name.
func (c *Coder) AccountDiscriminators() map[string]string {
	return maps.Clone(c.accountDiscs)
}

// EventDiscriminators returns base64(discriminator) -> event name.
func (c *Coder) EventDiscriminators() map[string]string {
	return maps.Clone(c.eventDiscs)
}

// LookupError resolves a custom program error code declared by the IDL.
func (c *Coder) LookupError(code int) (idl.ErrorCode, bool) {
	e, ok := c.errors[code]
	return e, ok
}
