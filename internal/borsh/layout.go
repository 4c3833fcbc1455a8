package borsh

import (
	"fmt"
	"sync/atomic"
)

// Layout encodes and decodes one value shape. Layouts are immutable once built,
// except Ref which is resolved exactly once during schema compilation.
type Layout interface {
	Kind() Kind
	encode(w *writer, v Value) error
	decode(r *reader) (Value, error)
}

// scalar covers every fixed-width primitive plus string, bytes and publicKey.
type scalar struct {
	kind Kind
}

var scalars = map[Kind]*scalar{}

func init() {
	for k := KindBool; k <= KindPublicKey; k++ {
		scalars[k] = &scalar{kind: k}
	}
}

// Scalar returns the layout for a primitive kind (bool through publicKey).
// It panics on composite kinds.
func Scalar(k Kind) Layout {
	l, ok := scalars[k]
	if !ok {
		panic(fmt.Sprintf("borsh: %s is not a scalar kind", k))
	}
	return l
}

// ParseScalar maps a primitive type name to its kind. "pubkey" is accepted as an
// alias of "publicKey".
func ParseScalar(name string) (Kind, bool) {
	if name == "pubkey" {
		return KindPublicKey, true
	}
	for k := KindBool; k <= KindPublicKey; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return 0, false
}

func (s *scalar) Kind() Kind { return s.kind }

// FieldLayout is a named struct member.
type FieldLayout struct {
	Name   string
	Layout Layout
}

// StructLayout lays out named fields in declaration order.
type StructLayout struct {
	Fields []FieldLayout
}

// NewStruct builds a struct layout.
func NewStruct(fields ...FieldLayout) *StructLayout {
	return &StructLayout{Fields: fields}
}

func (*StructLayout) Kind() Kind { return KindStruct }

// TupleLayout lays out positional elements without names or prefixes.
type TupleLayout struct {
	Elems []Layout
}

// NewTuple builds a tuple layout.
func NewTuple(elems ...Layout) *TupleLayout {
	return &TupleLayout{Elems: elems}
}

func (*TupleLayout) Kind() Kind { return KindTuple }

// VariantLayout is one enum variant. Payload is nil, a *StructLayout or a *TupleLayout.
type VariantLayout struct {
	Name    string
	Payload Layout
}

// EnumLayout writes a one byte variant index followed by the variant payload.
type EnumLayout struct {
	Variants []VariantLayout
	index    map[string]int
}

// NewEnum builds an enum layout. Variant order defines the tag values.
func NewEnum(variants ...VariantLayout) *EnumLayout {
	idx := make(map[string]int, len(variants))
	for i, v := range variants {
		idx[v.Name] = i
	}
	return &EnumLayout{Variants: variants, index: idx}
}

func (*EnumLayout) Kind() Kind { return KindEnum }

// OptionLayout is a one byte presence flag followed by the inner value.
type OptionLayout struct {
	Inner Layout
}

// NewOption builds an option layout.
func NewOption(inner Layout) *OptionLayout { return &OptionLayout{Inner: inner} }

func (*OptionLayout) Kind() Kind { return KindOption }

// COptionLayout is a four byte discriminant followed by the inner value.
type COptionLayout struct {
	Inner Layout
}

// NewCOption builds a legacy C-style option layout.
func NewCOption(inner Layout) *COptionLayout { return &COptionLayout{Inner: inner} }

func (*COptionLayout) Kind() Kind { return KindCOption }

// VecLayout is a u32 element count followed by the elements.
type VecLayout struct {
	Elem Layout
}

// NewVec builds a vec layout.
func NewVec(elem Layout) *VecLayout { return &VecLayout{Elem: elem} }

func (*VecLayout) Kind() Kind { return KindVec }

// ArrayLayout is Len elements with no prefix.
type ArrayLayout struct {
	Elem Layout
	Len  int
}

// NewArray builds a fixed-size array layout.
func NewArray(elem Layout, n int) *ArrayLayout { return &ArrayLayout{Elem: elem, Len: n} }

func (*ArrayLayout) Kind() Kind { return KindArray }

// Ref is a named indirection used for shared and self-referential type definitions.
type Ref struct {
	Name   string
	target atomic.Pointer[layoutBox]
}

type layoutBox struct{ l Layout }

// NewRef creates an unresolved reference.
func NewRef(name string) *Ref { return &Ref{Name: name} }

// Resolve binds the reference to its target. Only the first call has effect.
func (r *Ref) Resolve(l Layout) {
	r.target.CompareAndSwap(nil, &layoutBox{l: l})
}

// Target returns the resolved layout or nil.
func (r *Ref) Target() Layout {
	if b := r.target.Load(); b != nil {
		return b.l
	}
	return nil
}

// Kind returns the target's kind.
func (r *Ref) Kind() Kind {
	if t := r.Target(); t != nil {
		return t.Kind()
	}
	return KindStruct
}

func (r *Ref) resolved() (Layout, error) {
	t := r.Target()
	if t == nil {
		return nil, fmt.Errorf("%w: unresolved type %q", ErrMismatch, r.Name)
	}
	return t, nil
}
