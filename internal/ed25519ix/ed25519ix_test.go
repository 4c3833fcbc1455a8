package ed25519ix

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"
)

func testKey(seed byte) ed25519.PrivateKey {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	return ed25519.NewKeyFromSeed(s)
}

func TestVerifyMessage_Layout(t *testing.T) {
	msg := []byte("round 42")
	a := Sign(msg, testKey(1))
	b := Sign(msg, testKey(2))

	ix, err := VerifyMessage(msg, a, b)
	require.NoError(t, err)

	assert.Equal(t, ProgramID, ix.ProgramID)
	assert.Empty(t, ix.Accounts)

	data := ix.Data
	dataStart := HeaderSize + 2*OffsetsSize
	msgStart := dataStart + 2*SignatureDataSize
	require.Len(t, data, msgStart+len(msg))
	assert.Equal(t, []byte{2, 0}, data[:2])

	u16 := func(off int) int { return int(binary.LittleEndian.Uint16(data[off:])) }
	for i := range 2 {
		rec := HeaderSize + OffsetsSize*i
		sigData := dataStart + SignatureDataSize*i
		assert.Equal(t, sigData+32, u16(rec), "signature offset %d", i)
		assert.Equal(t, 0xffff, u16(rec+2))
		assert.Equal(t, sigData, u16(rec+4), "public key offset %d", i)
		assert.Equal(t, 0xffff, u16(rec+6))
		assert.Equal(t, msgStart, u16(rec+8), "shared message offset")
		assert.Equal(t, len(msg), u16(rec+10))
		assert.Equal(t, 0xffff, u16(rec+12))
	}

	assert.Equal(t, a.PublicKey[:], data[dataStart:dataStart+32])
	assert.Equal(t, a.Signature[:], data[dataStart+32:dataStart+96])
	assert.Equal(t, msg, data[msgStart:])
}

func TestVerifyMessages_RoundTrip(t *testing.T) {
	msgs := []SignedMessage{
		{Message: []byte("first"), Signature: Sign([]byte("first"), testKey(1))},
		{Message: []byte("second message"), Signature: Sign([]byte("second message"), testKey(2))},
		{Message: []byte{}, Signature: Sign(nil, testKey(3))},
	}

	ix, err := VerifyMessages(msgs...)
	require.NoError(t, err)

	msgStart := HeaderSize + 3*(OffsetsSize+SignatureDataSize)
	assert.Len(t, ix.Data, msgStart+len("first")+len("second message"))
	assert.Equal(t, msgStart+len("first"), int(binary.LittleEndian.Uint16(ix.Data[HeaderSize+OffsetsSize+8:])))

	parsed, err := Parse(ix.Data)
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	for i, m := range parsed {
		assert.Equal(t, msgs[i].PublicKey, m.PublicKey)
		assert.Equal(t, string(msgs[i].Message), string(m.Message))
		assert.True(t, m.Verify(), "message %d", i)
	}
}

func TestVerify_WrongMessage(t *testing.T) {
	sig := Sign([]byte("signed"), testKey(1))
	ix, err := VerifyMessage([]byte("other"), sig)
	require.NoError(t, err)

	parsed, err := Parse(ix.Data)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.False(t, parsed[0].Verify())
}

func TestVerifyMessage_TooLarge(t *testing.T) {
	_, err := VerifyMessage(make([]byte, 70000), Signature{})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = VerifyMessage(nil, make([]Signature, 256)...)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestParse_Malformed(t *testing.T) {
	ix, err := VerifyMessage([]byte("m"), Sign([]byte("m"), testKey(1)))
	require.NoError(t, err)

	_, err = Parse(nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse(ix.Data[:HeaderSize+OffsetsSize+10])
	assert.ErrorIs(t, err, ErrMalformed)

	other := append([]byte(nil), ix.Data...)
	binary.LittleEndian.PutUint16(other[HeaderSize+2:], 0)
	_, err = Parse(other)
	assert.ErrorIs(t, err, ErrMalformed)
}
