// Package idl holds the interface definition document of an on-chain program:
// its instructions, account layouts, user types, events and error codes.
package idl

import (
	"encoding/json"
	"fmt"
	"os"
)

// Idl is a program interface description.
type Idl struct {
	Version      string          `json:"version"`
	Name         string          `json:"name"`
	Docs         []string        `json:"docs,omitempty"`
	Instructions []Instruction   `json:"instructions"`
	State        *State          `json:"state,omitempty"`
	Accounts     []TypeDef       `json:"accounts,omitempty"`
	Types        []TypeDef       `json:"types,omitempty"`
	Events       []Event         `json:"events,omitempty"`
	Errors       []ErrorCode     `json:"errors,omitempty"`
	Constants    []Constant      `json:"constants,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// Instruction is one program entrypoint. State methods share the same shape.
type Instruction struct {
	Name     string        `json:"name"`
	Docs     []string      `json:"docs,omitempty"`
	Accounts []AccountItem `json:"accounts"`
	Args     []Field       `json:"args"`
	Returns  *Type         `json:"returns,omitempty"`
}

// State describes the program's singleton state account and its methods.
type State struct {
	Struct  TypeDef       `json:"struct"`
	Methods []Instruction `json:"methods"`
}

// AccountItem is either a single account or a named group of nested accounts.
type AccountItem struct {
	Name     string        `json:"name"`
	IsMut    bool          `json:"isMut"`
	IsSigner bool          `json:"isSigner"`
	Docs     []string      `json:"docs,omitempty"`
	Pda      *Pda          `json:"pda,omitempty"`
	Accounts []AccountItem `json:"accounts,omitempty"`
}

// IsGroup reports whether the item nests further accounts.
func (a AccountItem) IsGroup() bool {
	return a.Accounts != nil
}

// Pda lists the seeds of a program derived account. Seeds are kept raw.
type Pda struct {
	Seeds     []json.RawMessage `json:"seeds"`
	ProgramID json.RawMessage   `json:"programId,omitempty"`
}

// Field is a named, typed struct member or instruction argument.
type Field struct {
	Name string   `json:"name"`
	Docs []string `json:"docs,omitempty"`
	Type Type     `json:"type"`
}

// TypeDefKind distinguishes struct from enum definitions.
type TypeDefKind string

const (
	TypeDefStruct TypeDefKind = "struct"
	TypeDefEnum   TypeDefKind = "enum"
)

// TypeDef is a named user type or account definition.
type TypeDef struct {
	Name string   `json:"name"`
	Docs []string `json:"docs,omitempty"`
	Type TypeBody `json:"type"`
}

// TypeBody is the body of a definition: fields for structs, variants for enums.
type TypeBody struct {
	Kind     TypeDefKind `json:"kind"`
	Fields   []Field     `json:"fields,omitempty"`
	Variants []Variant   `json:"variants,omitempty"`
}

// Variant is one enum variant. Fields is nil for unit variants.
type Variant struct {
	Name   string      `json:"name"`
	Fields *EnumFields `json:"fields,omitempty"`
}

// Event is a program event. Indexed fields carry no special encoding.
type Event struct {
	Name   string       `json:"name"`
	Fields []EventField `json:"fields"`
}

// EventField is one event member.
type EventField struct {
	Name  string `json:"name"`
	Type  Type   `json:"type"`
	Index bool   `json:"index"`
}

// ErrorCode is a custom program error.
type ErrorCode struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg,omitempty"`
}

// Constant is a named constant declared by the program.
type Constant struct {
	Name  string `json:"name"`
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

// Parse decodes an IDL JSON document.
func Parse(data []byte) (*Idl, error) {
	var doc Idl
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse idl: %w", err)
	}
	return &doc, nil
}

// Load reads and parses an IDL JSON file.
func Load(path string) (*Idl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read idl %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
