package borsh

import (
	"encoding/base64"

	"github.com/mr-tron/base58"
)

// Native converts v into plain Go values suitable for encoding/json: structs become
// maps, public keys base58 strings, 128-bit integers decimal strings and byte
// sequences base64 strings.
func Native(v Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Bool:
		return bool(x)
	case U8:
		return uint8(x)
	case I8:
		return int8(x)
	case U16:
		return uint16(x)
	case I16:
		return int16(x)
	case U32:
		return uint32(x)
	case I32:
		return int32(x)
	case U64:
		return uint64(x)
	case I64:
		return int64(x)
	case U128:
		return x.String()
	case I128:
		return x.String()
	case F32:
		return float32(x)
	case F64:
		return float64(x)
	case String:
		return string(x)
	case Bytes:
		return base64.StdEncoding.EncodeToString(x)
	case PublicKey:
		return base58.Encode(x[:])
	case Option:
		return Native(x.Value)
	case COption:
		return Native(x.Value)
	case Vec:
		return nativeSlice(x)
	case Array:
		return nativeSlice(x)
	case Tuple:
		return nativeSlice(x)
	case Struct:
		m := make(map[string]any, len(x))
		for _, f := range x {
			m[f.Name] = Native(f.Value)
		}
		return m
	case Enum:
		if x.Fields == nil {
			return map[string]any{x.Variant: map[string]any{}}
		}
		return map[string]any{x.Variant: Native(x.Fields)}
	}
	return nil
}

func nativeSlice[T ~[]Value](vs T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = Native(v)
	}
	return out
}
