package solana

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of an account address.
const PublicKeySize = 32

// ErrInvalidPublicKey is returned when text does not decode to a 32-byte address.
var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is an account address.
type PublicKey [PublicKeySize]byte

// Well-known program addresses.
var (
	SystemProgramID = MustPublicKey("11111111111111111111111111111111")
)

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %q: %v", ErrInvalidPublicKey, s, err)
	}
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidPublicKey, s, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// MustPublicKey is like ParsePublicKey but panics on error.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 form.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsZero reports whether pk is the all-zero key.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// AccountMeta is one account reference of an instruction.
type AccountMeta struct {
	PublicKey  PublicKey `json:"pubkey"`
	IsSigner   bool      `json:"isSigner"`
	IsWritable bool      `json:"isWritable"`
}

// Instruction is a built, unsigned program instruction ready to be wrapped into a
// transaction by the caller.
type Instruction struct {
	ProgramID PublicKey     `json:"programId"`
	Accounts  []AccountMeta `json:"keys"`
	Data      []byte        `json:"data"`
}
