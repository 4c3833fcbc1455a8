package coder

import (
	"encoding/base64"
	"fmt"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/idhash"
)

// DecodeAnyAccount identifies data by its discriminator and decodes it. Data that is
// too short or carries an unknown discriminator yields nil, nil.
func (c *Coder) DecodeAnyAccount(data []byte) (*Decoded, error) {
	if len(data) < idhash.DiscriminatorSize {
		return nil, nil
	}
	name, ok := c.accountDiscs[base64.StdEncoding.EncodeToString(data[:idhash.DiscriminatorSize])]
	if !ok {
		return nil, nil
	}
	v, err := borsh.Decode(c.accounts[name], data[idhash.DiscriminatorSize:])
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", name, err)
	}
	return &Decoded{Name: name, Data: v}, nil
}

// DecodeAnyEvent decodes a base64 event payload as found in program log lines.
// Malformed base64, short payloads and unknown discriminators yield nil, nil.
func (c *Coder) DecodeAnyEvent(encoded string) (*Decoded, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(data) < idhash.DiscriminatorSize {
		return nil, nil
	}
	name, ok := c.eventDiscs[base64.StdEncoding.EncodeToString(data[:idhash.DiscriminatorSize])]
	if !ok {
		return nil, nil
	}
	v, err := borsh.Decode(c.events[name], data[idhash.DiscriminatorSize:])
	if err != nil {
		return nil, fmt.Errorf("decode event %s: %w", name, err)
	}
	return &Decoded{Name: name, Data: v}, nil
}

// DecodeAccount decodes data as the named account after checking its discriminator.
func (c *Coder) DecodeAccount(name string, data []byte) (borsh.Value, error) {
	dec, ok := c.accountDecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccount, name)
	}
	v, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", name, err)
	}
	return v, nil
}

// EncodeAccount encodes v as the named account, discriminator first.
func (c *Coder) EncodeAccount(name string, v borsh.Value) ([]byte, error) {
	l, ok := c.accounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccount, name)
	}
	return c.encodeWith(idhash.AccountDiscriminator(name), l, v)
}

// DecodeEvent decodes data as the named event after checking its discriminator.
func (c *Coder) DecodeEvent(name string, data []byte) (borsh.Value, error) {
	dec, ok := c.eventDecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	v, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("decode event %s: %w", name, err)
	}
	return v, nil
}

// EncodeEvent encodes v as the named event, discriminator first.
func (c *Coder) EncodeEvent(name string, v borsh.Value) ([]byte, error) {
	l, ok := c.events[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return c.encodeWith(idhash.EventDiscriminator(name), l, v)
}

func (c *Coder) encodeWith(prefix [idhash.DiscriminatorSize]byte, l borsh.Layout, v borsh.Value) ([]byte, error) {
	body, err := borsh.Encode(l, v, c.maxEncodeSize)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(prefix)+len(body))
	out = append(out, prefix[:]...)
	return append(out, body...), nil
}
