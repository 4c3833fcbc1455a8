package idl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Type is a reference to a wire type. Exactly one of the fields is set: Primitive
// for scalar names ("u64", "publicKey", ...), Defined for user types, or one of the
// wrapper types. Array also sets Len.
type Type struct {
	Primitive string
	Defined   string
	Option    *Type
	COption   *Type
	Vec       *Type
	Array     *Type
	Len       int
}

// Prim returns a primitive type reference.
func Prim(name string) Type { return Type{Primitive: name} }

// DefinedType returns a reference to a user type.
func DefinedType(name string) Type { return Type{Defined: name} }

// OptionOf wraps t in an option.
func OptionOf(t Type) Type { return Type{Option: &t} }

// COptionOf wraps t in a C-style option.
func COptionOf(t Type) Type { return Type{COption: &t} }

// VecOf wraps t in a vec.
func VecOf(t Type) Type { return Type{Vec: &t} }

// ArrayOf returns a fixed-size array of n elements of t.
func ArrayOf(t Type, n int) Type { return Type{Array: &t, Len: n} }

// String renders the type in a compact, Rust-like notation.
func (t Type) String() string {
	switch {
	case t.Primitive != "":
		return t.Primitive
	case t.Defined != "":
		return t.Defined
	case t.Option != nil:
		return "Option<" + t.Option.String() + ">"
	case t.COption != nil:
		return "COption<" + t.COption.String() + ">"
	case t.Vec != nil:
		return "Vec<" + t.Vec.String() + ">"
	case t.Array != nil:
		return fmt.Sprintf("[%s; %d]", t.Array.String(), t.Len)
	}
	return "<invalid>"
}

type typeObject struct {
	Defined json.RawMessage   `json:"defined,omitempty"`
	Option  *Type             `json:"option,omitempty"`
	COption *Type             `json:"coption,omitempty"`
	Vec     *Type             `json:"vec,omitempty"`
	Array   []json.RawMessage `json:"array,omitempty"`
}

// UnmarshalJSON accepts a primitive name or one of the object forms
// {"defined": name}, {"defined": {"name": name}}, {"option": T}, {"coption": T},
// {"vec": T} and {"array": [T, n]}.
func (t *Type) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		if name == "" {
			return errors.New("idl: empty type name")
		}
		*t = Type{Primitive: name}
		return nil
	}

	var obj typeObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("idl: type: %w", err)
	}

	switch {
	case obj.Defined != nil:
		name, err := definedName(obj.Defined)
		if err != nil {
			return err
		}
		*t = Type{Defined: name}
	case obj.Option != nil:
		*t = Type{Option: obj.Option}
	case obj.COption != nil:
		*t = Type{COption: obj.COption}
	case obj.Vec != nil:
		*t = Type{Vec: obj.Vec}
	case obj.Array != nil:
		if len(obj.Array) != 2 {
			return fmt.Errorf("idl: array type wants [type, len], got %d elements", len(obj.Array))
		}
		var elem Type
		if err := json.Unmarshal(obj.Array[0], &elem); err != nil {
			return err
		}
		var n int
		if err := json.Unmarshal(obj.Array[1], &n); err != nil {
			return fmt.Errorf("idl: array length: %w", err)
		}
		if n < 0 {
			return fmt.Errorf("idl: negative array length %d", n)
		}
		*t = Type{Array: &elem, Len: n}
	default:
		return fmt.Errorf("idl: unrecognized type %s", data)
	}
	return nil
}

func definedName(raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name, nil
	}
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &named); err != nil || named.Name == "" {
		return "", fmt.Errorf("idl: bad defined reference %s", raw)
	}
	return named.Name, nil
}

// MarshalJSON writes the canonical form accepted by UnmarshalJSON.
func (t Type) MarshalJSON() ([]byte, error) {
	switch {
	case t.Primitive != "":
		return json.Marshal(t.Primitive)
	case t.Defined != "":
		return json.Marshal(map[string]string{"defined": t.Defined})
	case t.Option != nil:
		return json.Marshal(map[string]*Type{"option": t.Option})
	case t.COption != nil:
		return json.Marshal(map[string]*Type{"coption": t.COption})
	case t.Vec != nil:
		return json.Marshal(map[string]*Type{"vec": t.Vec})
	case t.Array != nil:
		return json.Marshal(map[string][]any{"array": {t.Array, t.Len}})
	}
	return nil, errors.New("idl: cannot marshal empty type")
}

// EnumFields is the payload of an enum variant: either named fields or a tuple
// of positional types.
type EnumFields struct {
	Named []Field
	Tuple []Type
}

// IsNamed reports whether the variant carries named fields.
func (f EnumFields) IsNamed() bool { return f.Named != nil }

// UnmarshalJSON tells named from positional payloads by the shape of the first element.
func (f *EnumFields) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("idl: enum fields: %w", err)
	}
	if len(raw) == 0 {
		*f = EnumFields{Tuple: []Type{}}
		return nil
	}

	if isNamedField(raw[0]) {
		var named []Field
		if err := json.Unmarshal(data, &named); err != nil {
			return fmt.Errorf("idl: enum fields: %w", err)
		}
		*f = EnumFields{Named: named}
		return nil
	}

	var tuple []Type
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("idl: enum fields: %w", err)
	}
	*f = EnumFields{Tuple: tuple}
	return nil
}

// MarshalJSON writes the named or positional form.
func (f EnumFields) MarshalJSON() ([]byte, error) {
	if f.Named != nil {
		return json.Marshal(f.Named)
	}
	if f.Tuple == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.Tuple)
}

func isNamedField(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, hasName := fields["name"]
	_, hasType := fields["type"]
	return hasName && hasType
}
