package tokenprog

import (
	"errors"
	"fmt"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/solana"
)

// Packed account sizes.
const (
	MintSize    = 82
	AccountSize = 165
)

// ErrInvalidAccount is returned when data is not a packed mint or token account.
var ErrInvalidAccount = errors.New("invalid token program account")

// AccountState is the state byte of a token account.
type AccountState uint8

const (
	AccountUninitialized AccountState = iota
	AccountInitialized
	AccountFrozen
)

func (s AccountState) String() string {
	switch s {
	case AccountUninitialized:
		return "uninitialized"
	case AccountInitialized:
		return "initialized"
	case AccountFrozen:
		return "frozen"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Mint is a decoded mint account.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// Account is a decoded token account.
type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

// packedOption is the account form of an option: a u32 tag and an always-present
// value slot.
func packedOption(inner borsh.Layout) borsh.Layout {
	return borsh.NewTuple(borsh.Scalar(borsh.KindU32), inner)
}

var (
	mintLayout = borsh.NewStruct(
		borsh.FieldLayout{Name: "mintAuthority", Layout: packedOption(pubkey)},
		borsh.FieldLayout{Name: "supply", Layout: u64},
		borsh.FieldLayout{Name: "decimals", Layout: u8},
		borsh.FieldLayout{Name: "isInitialized", Layout: borsh.Scalar(borsh.KindBool)},
		borsh.FieldLayout{Name: "freezeAuthority", Layout: packedOption(pubkey)},
	)

	accountLayout = borsh.NewStruct(
		borsh.FieldLayout{Name: "mint", Layout: pubkey},
		borsh.FieldLayout{Name: "owner", Layout: pubkey},
		borsh.FieldLayout{Name: "amount", Layout: u64},
		borsh.FieldLayout{Name: "delegate", Layout: packedOption(pubkey)},
		borsh.FieldLayout{Name: "state", Layout: u8},
		borsh.FieldLayout{Name: "isNative", Layout: packedOption(u64)},
		borsh.FieldLayout{Name: "delegatedAmount", Layout: u64},
		borsh.FieldLayout{Name: "closeAuthority", Layout: packedOption(pubkey)},
	)
)

// DecodeMint decodes a packed mint account.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint is %d bytes, want %d", ErrInvalidAccount, len(data), MintSize)
	}
	v, err := borsh.Decode(mintLayout, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}
	r := &fields{s: v.(borsh.Struct)}
	m := &Mint{
		MintAuthority:   r.optionalKey("mintAuthority"),
		Supply:          uint64(get[borsh.U64](r, "supply")),
		Decimals:        uint8(get[borsh.U8](r, "decimals")),
		IsInitialized:   bool(get[borsh.Bool](r, "isInitialized")),
		FreezeAuthority: r.optionalKey("freezeAuthority"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// DecodeAccount decodes a packed token account.
func DecodeAccount(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: token account is %d bytes, want %d", ErrInvalidAccount, len(data), AccountSize)
	}
	v, err := borsh.Decode(accountLayout, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}
	r := &fields{s: v.(borsh.Struct)}
	acc := &Account{
		Mint:            solana.PublicKey(get[borsh.PublicKey](r, "mint")),
		Owner:           solana.PublicKey(get[borsh.PublicKey](r, "owner")),
		Amount:          uint64(get[borsh.U64](r, "amount")),
		Delegate:        r.optionalKey("delegate"),
		State:           AccountState(get[borsh.U8](r, "state")),
		DelegatedAmount: uint64(get[borsh.U64](r, "delegatedAmount")),
		CloseAuthority:  r.optionalKey("closeAuthority"),
	}
	if native, ok := r.optional("isNative"); ok {
		n := uint64(native.(borsh.U64))
		acc.IsNative = &n
	}
	if r.err != nil {
		return nil, r.err
	}
	return acc, nil
}

// EncodeAccount packs a token account. It is the inverse of DecodeAccount.
func EncodeAccount(acc *Account) ([]byte, error) {
	var native borsh.Value = borsh.U64(0)
	if acc.IsNative != nil {
		native = borsh.U64(*acc.IsNative)
	}
	return borsh.Encode(accountLayout, borsh.Struct{
		{Name: "mint", Value: borsh.PublicKey(acc.Mint)},
		{Name: "owner", Value: borsh.PublicKey(acc.Owner)},
		{Name: "amount", Value: borsh.U64(acc.Amount)},
		{Name: "delegate", Value: packedKey(acc.Delegate)},
		{Name: "state", Value: borsh.U8(acc.State)},
		{Name: "isNative", Value: packed(acc.IsNative != nil, native)},
		{Name: "delegatedAmount", Value: borsh.U64(acc.DelegatedAmount)},
		{Name: "closeAuthority", Value: packedKey(acc.CloseAuthority)},
	}, AccountSize)
}

// EncodeMint packs a mint account. It is the inverse of DecodeMint.
func EncodeMint(m *Mint) ([]byte, error) {
	return borsh.Encode(mintLayout, borsh.Struct{
		{Name: "mintAuthority", Value: packedKey(m.MintAuthority)},
		{Name: "supply", Value: borsh.U64(m.Supply)},
		{Name: "decimals", Value: borsh.U8(m.Decimals)},
		{Name: "isInitialized", Value: borsh.Bool(m.IsInitialized)},
		{Name: "freezeAuthority", Value: packedKey(m.FreezeAuthority)},
	}, MintSize)
}

func packed(present bool, v borsh.Value) borsh.Tuple {
	var tag borsh.U32
	if present {
		tag = 1
	}
	return borsh.Tuple{tag, v}
}

func packedKey(pk *solana.PublicKey) borsh.Tuple {
	if pk == nil {
		return packed(false, borsh.PublicKey{})
	}
	return packed(true, borsh.PublicKey(*pk))
}

// fields pulls typed values out of a decoded struct, keeping the first error.
type fields struct {
	s   borsh.Struct
	err error
}

func get[T borsh.Value](r *fields, name string) T {
	var zero T
	if r.err != nil {
		return zero
	}
	v, ok := r.s.Get(name)
	if !ok {
		r.err = fmt.Errorf("%w: missing field %s", ErrInvalidAccount, name)
		return zero
	}
	t, ok := v.(T)
	if !ok {
		r.err = fmt.Errorf("%w: field %s is %s", ErrInvalidAccount, name, v.Kind())
		return zero
	}
	return t
}

// optional reads a packed option. A tag other than 0 or 1 is an error.
func (r *fields) optional(name string) (borsh.Value, bool) {
	t := get[borsh.Tuple](r, name)
	if r.err != nil {
		return nil, false
	}
	switch tag := t[0].(borsh.U32); tag {
	case 0:
		return nil, false
	case 1:
		return t[1], true
	default:
		r.err = fmt.Errorf("%w: %s option tag %d", ErrInvalidAccount, name, tag)
		return nil, false
	}
}

func (r *fields) optionalKey(name string) *solana.PublicKey {
	v, ok := r.optional(name)
	if !ok {
		return nil
	}
	pk := solana.PublicKey(v.(borsh.PublicKey))
	return &pk
}
