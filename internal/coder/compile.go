package coder

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/idl"
)

// compiler turns IDL types into layouts. Every defined type is compiled once into a
// borsh.Ref so shared and self-referential definitions resolve to the same layout.
type compiler struct {
	pool map[string]idl.TypeDef
	refs map[string]*borsh.Ref
}

func newCompiler(doc *idl.Idl) *compiler {
	c := &compiler{
		pool: make(map[string]idl.TypeDef, len(doc.Accounts)+len(doc.Types)),
		refs: make(map[string]*borsh.Ref),
	}
	add := func(def idl.TypeDef) {
		if _, dup := c.pool[def.Name]; !dup {
			c.pool[def.Name] = def
		}
	}
	for _, def := range doc.Accounts {
		add(def)
	}
	if doc.State != nil {
		add(doc.State.Struct)
	}
	for _, def := range doc.Types {
		add(def)
	}
	return c
}

// compileAll compiles every pooled definition, so unresolved references anywhere in
// the document fail here rather than on first use.
func (c *compiler) compileAll() error {
	for _, name := range c.names() {
		if _, err := c.defined(name); err != nil {
			return err
		}
	}
	return c.checkCycles()
}

func (c *compiler) names() []string {
	names := make([]string, 0, len(c.pool))
	for name := range c.pool {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *compiler) defined(name string) (*borsh.Ref, error) {
	if ref, ok := c.refs[name]; ok {
		return ref, nil
	}
	def, ok := c.pool[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUndefinedType, name)
	}

	ref := borsh.NewRef(name)
	c.refs[name] = ref

	body, err := c.typeDef(def)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}
	ref.Resolve(body)
	return ref, nil
}

func (c *compiler) typeDef(def idl.TypeDef) (borsh.Layout, error) {
	switch def.Type.Kind {
	case idl.TypeDefStruct:
		return c.fields(def.Type.Fields)
	case idl.TypeDefEnum:
		variants := make([]borsh.VariantLayout, 0, len(def.Type.Variants))
		seen := make(map[string]bool, len(def.Type.Variants))
		for _, v := range def.Type.Variants {
			if seen[v.Name] {
				return nil, fmt.Errorf("%w: duplicate variant %q", ErrInvalidSchema, v.Name)
			}
			seen[v.Name] = true

			vl := borsh.VariantLayout{Name: v.Name}
			if v.Fields != nil {
				payload, err := c.variantPayload(*v.Fields)
				if err != nil {
					return nil, fmt.Errorf("variant %s: %w", v.Name, err)
				}
				vl.Payload = payload
			}
			variants = append(variants, vl)
		}
		if len(variants) > 256 {
			return nil, fmt.Errorf("%w: %d variants do not fit a one byte tag", ErrInvalidSchema, len(variants))
		}
		return borsh.NewEnum(variants...), nil
	}
	return nil, fmt.Errorf("%w: unknown type kind %q", ErrInvalidSchema, def.Type.Kind)
}

func (c *compiler) variantPayload(f idl.EnumFields) (borsh.Layout, error) {
	if f.IsNamed() {
		return c.fields(f.Named)
	}
	elems := make([]borsh.Layout, 0, len(f.Tuple))
	for i, t := range f.Tuple {
		l, err := c.layout(t)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elems = append(elems, l)
	}
	return borsh.NewTuple(elems...), nil
}

func (c *compiler) fields(fields []idl.Field) (*borsh.StructLayout, error) {
	out := make([]borsh.FieldLayout, 0, len(fields))
	for _, f := range fields {
		l, err := c.layout(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out = append(out, borsh.FieldLayout{Name: f.Name, Layout: l})
	}
	return borsh.NewStruct(out...), nil
}

func (c *compiler) eventFields(fields []idl.EventField) (*borsh.StructLayout, error) {
	plain := make([]idl.Field, len(fields))
	for i, f := range fields {
		plain[i] = idl.Field{Name: f.Name, Type: f.Type}
	}
	return c.fields(plain)
}

func (c *compiler) layout(t idl.Type) (borsh.Layout, error) {
	switch {
	case t.Primitive != "":
		k, ok := borsh.ParseScalar(t.Primitive)
		if !ok {
			return nil, fmt.Errorf("%w: unknown primitive %q", ErrInvalidSchema, t.Primitive)
		}
		return borsh.Scalar(k), nil
	case t.Defined != "":
		return c.defined(t.Defined)
	case t.Option != nil:
		inner, err := c.layout(*t.Option)
		if err != nil {
			return nil, err
		}
		return borsh.NewOption(inner), nil
	case t.COption != nil:
		inner, err := c.layout(*t.COption)
		if err != nil {
			return nil, err
		}
		return borsh.NewCOption(inner), nil
	case t.Vec != nil:
		elem, err := c.layout(*t.Vec)
		if err != nil {
			return nil, err
		}
		return borsh.NewVec(elem), nil
	case t.Array != nil:
		elem, err := c.layout(*t.Array)
		if err != nil {
			return nil, err
		}
		return borsh.NewArray(elem, t.Len), nil
	}
	return nil, fmt.Errorf("%w: empty type", ErrInvalidSchema)
}

// checkCycles rejects definitions that contain themselves without passing through an
// option, coption or vec, since such values have no finite encoding.
func (c *compiler) checkCycles() error {
	edges := make(map[string][]string, len(c.pool))
	for name, def := range c.pool {
		edges[name] = unguardedRefs(def)
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(c.pool))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		state[name] = inProgress
		stack = append(stack, name)
		for _, next := range edges[name] {
			switch state[next] {
			case inProgress:
				i := slices.Index(stack, next)
				cycle := append(slices.Clone(stack[i:]), next)
				return fmt.Errorf("%w: %s", ErrRecursiveType, strings.Join(cycle, " -> "))
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range c.names() {
		if state[name] == unvisited {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func unguardedRefs(def idl.TypeDef) []string {
	var refs []string
	var walk func(t idl.Type)
	walk = func(t idl.Type) {
		switch {
		case t.Defined != "":
			refs = append(refs, t.Defined)
		case t.Array != nil:
			walk(*t.Array)
		}
	}

	for _, f := range def.Type.Fields {
		walk(f.Type)
	}
	for _, v := range def.Type.Variants {
		if v.Fields == nil {
			continue
		}
		for _, f := range v.Fields.Named {
			walk(f.Type)
		}
		for _, t := range v.Fields.Tuple {
			walk(t)
		}
	}
	return refs
}
