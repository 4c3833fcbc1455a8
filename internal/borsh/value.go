// Package borsh implements the schema-driven binary codec used by on-chain programs.
// Values form a closed sum type; a Layout describes how one value is laid out on the wire.
package borsh

import (
	"fmt"
	"math/big"
)

// Kind enumerates the supported type variants.
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindU64
	KindI64
	KindU128
	KindI128
	KindF32
	KindF64
	KindString
	KindBytes
	KindPublicKey
	KindOption
	KindCOption
	KindVec
	KindArray
	KindStruct
	KindEnum
	KindTuple
)

var kindNames = [...]string{
	KindBool:      "bool",
	KindU8:        "u8",
	KindI8:        "i8",
	KindU16:       "u16",
	KindI16:       "i16",
	KindU32:       "u32",
	KindI32:       "i32",
	KindU64:       "u64",
	KindI64:       "i64",
	KindU128:      "u128",
	KindI128:      "i128",
	KindF32:       "f32",
	KindF64:       "f64",
	KindString:    "string",
	KindBytes:     "bytes",
	KindPublicKey: "publicKey",
	KindOption:    "option",
	KindCOption:   "coption",
	KindVec:       "vec",
	KindArray:     "array",
	KindStruct:    "struct",
	KindEnum:      "enum",
	KindTuple:     "tuple",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a decoded (or to-be-encoded) value. The set of implementations is closed.
type Value interface {
	Kind() Kind
}

type (
	Bool      bool
	U8        uint8
	I8        int8
	U16       uint16
	I16       int16
	U32       uint32
	I32       int32
	U64       uint64
	I64       int64
	F32       float32
	F64       float64
	String    string
	Bytes     []byte
	PublicKey [32]byte
)

func (Bool) Kind() Kind      { return KindBool }
func (U8) Kind() Kind        { return KindU8 }
func (I8) Kind() Kind        { return KindI8 }
func (U16) Kind() Kind       { return KindU16 }
func (I16) Kind() Kind       { return KindI16 }
func (U32) Kind() Kind       { return KindU32 }
func (I32) Kind() Kind       { return KindI32 }
func (U64) Kind() Kind       { return KindU64 }
func (I64) Kind() Kind       { return KindI64 }
func (U128) Kind() Kind      { return KindU128 }
func (I128) Kind() Kind      { return KindI128 }
func (F32) Kind() Kind       { return KindF32 }
func (F64) Kind() Kind       { return KindF64 }
func (String) Kind() Kind    { return KindString }
func (Bytes) Kind() Kind     { return KindBytes }
func (PublicKey) Kind() Kind { return KindPublicKey }
func (Option) Kind() Kind    { return KindOption }
func (COption) Kind() Kind   { return KindCOption }
func (Vec) Kind() Kind       { return KindVec }
func (Array) Kind() Kind     { return KindArray }
func (Struct) Kind() Kind    { return KindStruct }
func (Enum) Kind() Kind      { return KindEnum }
func (Tuple) Kind() Kind     { return KindTuple }

// U128 is an unsigned 128-bit integer split into two little-endian 64-bit words.
type U128 struct {
	Lo, Hi uint64
}

// I128 is a two's complement signed 128-bit integer split into two 64-bit words.
type I128 struct {
	Lo, Hi uint64
}

var (
	two64    = new(big.Int).Lsh(big.NewInt(1), 64)
	two128   = new(big.Int).Lsh(big.NewInt(1), 128)
	maxI128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minI128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	mask64   = new(big.Int).Sub(two64, big.NewInt(1))
	errRange = fmt.Errorf("%w: integer out of 128-bit range", ErrMismatch)
)

// NewU128 builds a U128 from a uint64.
func NewU128(v uint64) U128 { return U128{Lo: v} }

// NewI128 builds an I128 from an int64, sign-extending the high word.
func NewI128(v int64) I128 {
	hi := uint64(0)
	if v < 0 {
		hi = ^uint64(0)
	}
	return I128{Lo: uint64(v), Hi: hi}
}

// U128FromBig converts b into a U128. It fails if b is negative or wider than 128 bits.
func U128FromBig(b *big.Int) (U128, error) {
	if b.Sign() < 0 || b.Cmp(two128) >= 0 {
		return U128{}, errRange
	}
	lo := new(big.Int).And(b, mask64)
	hi := new(big.Int).Rsh(b, 64)
	return U128{Lo: lo.Uint64(), Hi: hi.Uint64()}, nil
}

// I128FromBig converts b into an I128 using two's complement.
func I128FromBig(b *big.Int) (I128, error) {
	if b.Cmp(minI128) < 0 || b.Cmp(maxI128) > 0 {
		return I128{}, errRange
	}
	v := new(big.Int).Set(b)
	if v.Sign() < 0 {
		v.Add(v, two128)
	}
	lo := new(big.Int).And(v, mask64)
	hi := new(big.Int).Rsh(v, 64)
	return I128{Lo: lo.Uint64(), Hi: hi.Uint64()}, nil
}

// Big returns the value as a big.Int.
func (u U128) Big() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

func (u U128) String() string { return u.Big().String() }

// Big returns the value as a signed big.Int.
func (i I128) Big() *big.Int {
	v := U128(i).Big()
	if i.Hi>>63 == 1 {
		v.Sub(v, two128)
	}
	return v
}

func (i I128) String() string { return i.Big().String() }

// Option is an optional value encoded with a one byte presence flag. A nil Value means absent.
type Option struct {
	Value Value
}

// COption is the legacy optional encoding with a four byte discriminant.
type COption struct {
	Value Value
}

// Some wraps v as a present Option.
func Some(v Value) Option { return Option{Value: v} }

// None is the absent Option.
var None = Option{}

// IsSome reports whether the option carries a value.
func (o Option) IsSome() bool { return o.Value != nil }

// IsSome reports whether the option carries a value.
func (o COption) IsSome() bool { return o.Value != nil }

// Vec is a length-prefixed sequence.
type Vec []Value

// Array is a fixed-size sequence without a length prefix.
type Array []Value

// Tuple is a positional, untagged sequence of heterogeneous values.
type Tuple []Value

// Field is one named member of a Struct.
type Field struct {
	Name  string
	Value Value
}

// Struct is an ordered list of named fields.
type Struct []Field

// Get returns the field named name.
func (s Struct) Get(name string) (Value, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Enum is one variant of an enumeration. Fields is nil for unit variants, a Struct for
// named fields or a Tuple for positional fields.
type Enum struct {
	Variant string
	Fields  Value
}
