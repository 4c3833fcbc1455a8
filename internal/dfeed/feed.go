// Package dfeed is a client for the price feed program: it decodes the ring buffer
// feed account and builds the program's instructions.
package dfeed

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/solana"
)

const (
	// HeaderSize is the space reserved for the Transmissions header, discriminator
	// included. Detail records start right after it.
	HeaderSize = 200

	// DetailSize is the size of one ring buffer record.
	DetailSize = 48
)

// Feed is a decoded feed account.
type Feed struct {
	Version           uint8
	State             uint8
	Owner             solana.PublicKey
	ProposedOwner     solana.PublicKey
	Writer            solana.PublicKey
	Description       string
	Decimals          uint8
	FlaggingThreshold uint32
	LatestRoundID     uint32
	Granularity       uint8
	LiveLength        uint32
	LiveCursor        uint32
	HistoricalCursor  uint32

	LiveData       []FeedDetail
	HistoricalData []FeedDetail
}

// FeedDetail is one written ring buffer record.
type FeedDetail struct {
	Slot      uint64
	Timestamp uint32
	Price     *big.Int
}

// Decimal scales the raw price by the feed's decimals.
func (d FeedDetail) Decimal(decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(d.Price, -int32(decimals))
}

var detailLayout = borsh.NewStruct(
	borsh.FieldLayout{Name: "slot", Layout: borsh.Scalar(borsh.KindU64)},
	borsh.FieldLayout{Name: "timestamp", Layout: borsh.Scalar(borsh.KindU32)},
	borsh.FieldLayout{Name: "padding0", Layout: borsh.Scalar(borsh.KindU32)},
	borsh.FieldLayout{Name: "price", Layout: borsh.Scalar(borsh.KindI128)},
	borsh.FieldLayout{Name: "padding1", Layout: borsh.Scalar(borsh.KindU64)},
	borsh.FieldLayout{Name: "padding2", Layout: borsh.Scalar(borsh.KindU64)},
)

// DecodeFeed decodes the header and replays the ring buffer. Records are read while
// a whole record remains and the index is below the historical cursor; indexes below
// the live length are live, the rest historical. Records with a zero slot were
// never written and are skipped.
func (p *Program) DecodeFeed(data []byte) (*Feed, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: feed account has %d bytes, header needs %d", borsh.ErrTruncated, len(data), HeaderSize)
	}

	header, err := p.coder.DecodeAccount(accountTransmissions, data[:HeaderSize])
	if err != nil {
		return nil, err
	}
	feed, err := feedFromValue(header)
	if err != nil {
		return nil, fmt.Errorf("feed header: %w", err)
	}

	feed.LiveData = []FeedDetail{}
	feed.HistoricalData = []FeedDetail{}
	for index, offset := uint32(0), HeaderSize; offset+DetailSize <= len(data) && index < feed.HistoricalCursor; index, offset = index+1, offset+DetailSize {
		detail, err := decodeDetail(data[offset : offset+DetailSize])
		if err != nil {
			return nil, fmt.Errorf("feed record %d: %w", index, err)
		}
		if detail.Slot == 0 {
			continue
		}
		if index < feed.LiveLength {
			feed.LiveData = append(feed.LiveData, detail)
		} else {
			feed.HistoricalData = append(feed.HistoricalData, detail)
		}
	}
	return feed, nil
}

func decodeDetail(chunk []byte) (FeedDetail, error) {
	v, err := borsh.Decode(detailLayout, chunk)
	if err != nil {
		return FeedDetail{}, err
	}
	r := &structReader{s: v.(borsh.Struct)}
	d := FeedDetail{
		Slot:      uint64(field[borsh.U64](r, "slot")),
		Timestamp: uint32(field[borsh.U32](r, "timestamp")),
		Price:     field[borsh.I128](r, "price").Big(),
	}
	return d, r.err
}

func feedFromValue(v borsh.Value) (*Feed, error) {
	s, ok := v.(borsh.Struct)
	if !ok {
		return nil, fmt.Errorf("%w: header is %s", borsh.ErrMismatch, v.Kind())
	}
	r := &structReader{s: s}
	f := &Feed{
		Version:           uint8(field[borsh.U8](r, "version")),
		State:             uint8(field[borsh.U8](r, "state")),
		Owner:             solana.PublicKey(field[borsh.PublicKey](r, "owner")),
		ProposedOwner:     solana.PublicKey(field[borsh.PublicKey](r, "proposedOwner")),
		Writer:            solana.PublicKey(field[borsh.PublicKey](r, "writer")),
		Description:       description(field[borsh.Array](r, "description")),
		Decimals:          uint8(field[borsh.U8](r, "decimals")),
		FlaggingThreshold: uint32(field[borsh.U32](r, "flaggingThreshold")),
		LatestRoundID:     uint32(field[borsh.U32](r, "latestRoundId")),
		Granularity:       uint8(field[borsh.U8](r, "granularity")),
		LiveLength:        uint32(field[borsh.U32](r, "liveLength")),
		LiveCursor:        uint32(field[borsh.U32](r, "liveCursor")),
		HistoricalCursor:  uint32(field[borsh.U32](r, "historicalCursor")),
	}
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

// description turns the fixed byte array into text, dropping NUL padding.
func description(arr borsh.Array) string {
	b := make([]byte, 0, len(arr))
	for _, v := range arr {
		if u, ok := v.(borsh.U8); ok {
			b = append(b, byte(u))
		}
	}
	return string(bytes.TrimRight(b, "\x00"))
}

// structReader pulls typed fields out of a decoded struct, keeping the first error.
type structReader struct {
	s   borsh.Struct
	err error
}

func field[T borsh.Value](r *structReader, name string) T {
	var zero T
	if r.err != nil {
		return zero
	}
	v, ok := r.s.Get(name)
	if !ok {
		r.err = fmt.Errorf("%w: missing field %s", borsh.ErrMismatch, name)
		return zero
	}
	t, ok := v.(T)
	if !ok {
		r.err = fmt.Errorf("%w: field %s is %s", borsh.ErrMismatch, name, v.Kind())
		return zero
	}
	return t
}
