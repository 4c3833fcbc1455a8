// Package ed25519ix builds and parses instructions for the native Ed25519 signature
// verification program. Signatures, public keys and messages all live in the
// instruction's own data.
package ed25519ix

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/ed25519"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/solana"
)

// ProgramID is the Ed25519 signature verification program.
var ProgramID = solana.MustPublicKey("Ed25519SigVerify111111111111111111111111111")

// Section sizes of the instruction data.
const (
	HeaderSize        = 2
	OffsetsSize       = 14
	SignatureDataSize = solana.PublicKeySize + ed25519.SignatureSize
)

// currentInstruction marks an offset as pointing into this instruction's data.
const currentInstruction = math.MaxUint16

var (
	// ErrTooLarge is returned when the data cannot be addressed with u16 offsets or
	// there are more than 255 signatures.
	ErrTooLarge = errors.New("ed25519 instruction too large")

	// ErrMalformed is returned by Parse for data that is not a self-contained
	// verification request.
	ErrMalformed = errors.New("malformed ed25519 instruction")
)

var (
	u8  = borsh.Scalar(borsh.KindU8)
	u16 = borsh.Scalar(borsh.KindU16)

	headerLayout = borsh.NewStruct(
		borsh.FieldLayout{Name: "numSignatures", Layout: u8},
		borsh.FieldLayout{Name: "padding", Layout: u8},
	)

	offsetsLayout = borsh.NewStruct(
		borsh.FieldLayout{Name: "signatureOffset", Layout: u16},
		borsh.FieldLayout{Name: "signatureInstructionIndex", Layout: u16},
		borsh.FieldLayout{Name: "publicKeyOffset", Layout: u16},
		borsh.FieldLayout{Name: "publicKeyInstructionIndex", Layout: u16},
		borsh.FieldLayout{Name: "messageDataOffset", Layout: u16},
		borsh.FieldLayout{Name: "messageDataSize", Layout: u16},
		borsh.FieldLayout{Name: "messageInstructionIndex", Layout: u16},
	)

	signatureDataLayout = borsh.NewStruct(
		borsh.FieldLayout{Name: "publicKey", Layout: borsh.Scalar(borsh.KindPublicKey)},
		borsh.FieldLayout{Name: "signature", Layout: borsh.NewArray(u8, ed25519.SignatureSize)},
	)
)

// Signature is a signer's public key and its signature over a message.
type Signature struct {
	PublicKey solana.PublicKey
	Signature [ed25519.SignatureSize]byte
}

// SignedMessage is one message with the signature to verify against it.
type SignedMessage struct {
	Message []byte
	Signature
}

// VerifyMessage builds an instruction verifying every signature against one
// message. The message is stored once.
func VerifyMessage(message []byte, sigs ...Signature) (*solana.Instruction, error) {
	index := make([]int, len(sigs))
	return build(sigs, [][]byte{message}, index)
}

// VerifyMessages builds an instruction verifying each message against its own
// signature. Messages are stored in order after the signature data.
func VerifyMessages(msgs ...SignedMessage) (*solana.Instruction, error) {
	sigs := make([]Signature, len(msgs))
	messages := make([][]byte, len(msgs))
	index := make([]int, len(msgs))
	for i, m := range msgs {
		sigs[i] = m.Signature
		messages[i] = m.Message
		index[i] = i
	}
	return build(sigs, messages, index)
}

// Sign signs message with key and returns the pair ready for VerifyMessage.
func Sign(message []byte, key ed25519.PrivateKey) Signature {
	var s Signature
	copy(s.PublicKey[:], key.Public().(ed25519.PublicKey))
	copy(s.Signature[:], ed25519.Sign(key, message))
	return s
}

// build lays out the header, one offsets record per signature, the signature data
// and finally the messages. index maps each signature to its message.
func build(sigs []Signature, messages [][]byte, index []int) (*solana.Instruction, error) {
	if len(sigs) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d signatures", ErrTooLarge, len(sigs))
	}

	dataStart := HeaderSize + OffsetsSize*len(sigs)
	messageStart := dataStart + SignatureDataSize*len(sigs)
	messageOffsets := make([]int, len(messages))
	size := messageStart
	for i, m := range messages {
		messageOffsets[i] = size
		size += len(m)
	}
	if size > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	data := make([]byte, 0, size)
	header, err := borsh.Encode(headerLayout, borsh.Struct{
		{Name: "numSignatures", Value: borsh.U8(len(sigs))},
		{Name: "padding", Value: borsh.U8(0)},
	}, HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	data = append(data, header...)

	for i := range sigs {
		sigData := dataStart + SignatureDataSize*i
		msg := index[i]
		rec, err := borsh.Encode(offsetsLayout, borsh.Struct{
			{Name: "signatureOffset", Value: borsh.U16(sigData + solana.PublicKeySize)},
			{Name: "signatureInstructionIndex", Value: borsh.U16(currentInstruction)},
			{Name: "publicKeyOffset", Value: borsh.U16(sigData)},
			{Name: "publicKeyInstructionIndex", Value: borsh.U16(currentInstruction)},
			{Name: "messageDataOffset", Value: borsh.U16(messageOffsets[msg])},
			{Name: "messageDataSize", Value: borsh.U16(len(messages[msg]))},
			{Name: "messageInstructionIndex", Value: borsh.U16(currentInstruction)},
		}, OffsetsSize)
		if err != nil {
			return nil, fmt.Errorf("encode offsets %d: %w", i, err)
		}
		data = append(data, rec...)
	}

	for i, s := range sigs {
		sig := make(borsh.Array, ed25519.SignatureSize)
		for j, b := range s.Signature {
			sig[j] = borsh.U8(b)
		}
		rec, err := borsh.Encode(signatureDataLayout, borsh.Struct{
			{Name: "publicKey", Value: borsh.PublicKey(s.PublicKey)},
			{Name: "signature", Value: sig},
		}, SignatureDataSize)
		if err != nil {
			return nil, fmt.Errorf("encode signature %d: %w", i, err)
		}
		data = append(data, rec...)
	}

	for _, m := range messages {
		data = append(data, m...)
	}

	return &solana.Instruction{
		ProgramID: ProgramID,
		Accounts:  []solana.AccountMeta{},
		Data:      data,
	}, nil
}

// Parse reads back the signed messages of a verification instruction. Offsets that
// point into other instructions are rejected.
func Parse(data []byte) ([]SignedMessage, error) {
	hv, err := borsh.Decode(headerLayout, data)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	n, _ := hv.(borsh.Struct).Get("numSignatures")
	count := int(n.(borsh.U8))

	out := make([]SignedMessage, 0, count)
	for i := range count {
		start := HeaderSize + OffsetsSize*i
		if start > len(data) {
			return nil, fmt.Errorf("%w: offsets %d out of range", ErrMalformed, i)
		}
		ov, err := borsh.Decode(offsetsLayout, data[start:])
		if err != nil {
			return nil, fmt.Errorf("%w: offsets %d: %w", ErrMalformed, i, err)
		}
		o := offsetsOf(ov.(borsh.Struct))
		if o.sigIx != currentInstruction || o.keyIx != currentInstruction || o.msgIx != currentInstruction {
			return nil, fmt.Errorf("%w: signature %d references another instruction", ErrMalformed, i)
		}

		key, err := slice(data, o.key, solana.PublicKeySize)
		if err != nil {
			return nil, fmt.Errorf("public key %d: %w", i, err)
		}
		sig, err := slice(data, o.sig, ed25519.SignatureSize)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		msg, err := slice(data, o.msg, o.msgSize)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		var sm SignedMessage
		copy(sm.PublicKey[:], key)
		copy(sm.Signature.Signature[:], sig)
		sm.Message = append([]byte(nil), msg...)
		out = append(out, sm)
	}
	return out, nil
}

// Verify reports whether the signed message holds a valid signature.
func (m SignedMessage) Verify() bool {
	return ed25519.Verify(m.PublicKey[:], m.Message, m.Signature.Signature[:])
}

type offsets struct {
	sig, sigIx, key, keyIx, msg, msgSize, msgIx int
}

func offsetsOf(s borsh.Struct) offsets {
	get := func(name string) int {
		v, _ := s.Get(name)
		return int(v.(borsh.U16))
	}
	return offsets{
		sig:     get("signatureOffset"),
		sigIx:   get("signatureInstructionIndex"),
		key:     get("publicKeyOffset"),
		keyIx:   get("publicKeyInstructionIndex"),
		msg:     get("messageDataOffset"),
		msgSize: get("messageDataSize"),
		msgIx:   get("messageInstructionIndex"),
	}
}

func slice(data []byte, off, n int) ([]byte, error) {
	if off+n > len(data) {
		return nil, fmt.Errorf("%w: %d bytes at %d, have %d", ErrMalformed, n, off, len(data))
	}
	return data[off : off+n], nil
}
