package dfeed

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-idl-kit/internal/borsh"
)

// Round is the answer of a RoundData or LatestRoundData query.
type Round struct {
	RoundID   uint32
	Slot      uint64
	Timestamp uint32
	Answer    *big.Int
}

// Decimal scales the answer by the feed's decimals.
func (r Round) Decimal(decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(r.Answer, -int32(decimals))
}

var roundLayout = borsh.NewStruct(
	borsh.FieldLayout{Name: "roundId", Layout: borsh.Scalar(borsh.KindU32)},
	borsh.FieldLayout{Name: "slot", Layout: borsh.Scalar(borsh.KindU64)},
	borsh.FieldLayout{Name: "timestamp", Layout: borsh.Scalar(borsh.KindU32)},
	borsh.FieldLayout{Name: "answer", Layout: borsh.Scalar(borsh.KindI128)},
)

// DecodeRound decodes raw round bytes.
func DecodeRound(data []byte) (*Round, error) {
	v, err := borsh.Decode(roundLayout, data)
	if err != nil {
		return nil, fmt.Errorf("decode round: %w", err)
	}
	r := &structReader{s: v.(borsh.Struct)}
	round := &Round{
		RoundID:   uint32(field[borsh.U32](r, "roundId")),
		Slot:      uint64(field[borsh.U64](r, "slot")),
		Timestamp: uint32(field[borsh.U32](r, "timestamp")),
		Answer:    field[borsh.I128](r, "answer").Big(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return round, nil
}

// EncodeRound is the inverse of DecodeRound.
func EncodeRound(r Round) ([]byte, error) {
	answer, err := borsh.I128FromBig(r.Answer)
	if err != nil {
		return nil, err
	}
	return borsh.Encode(roundLayout, borsh.Struct{
		{Name: "roundId", Value: borsh.U32(r.RoundID)},
		{Name: "slot", Value: borsh.U64(r.Slot)},
		{Name: "timestamp", Value: borsh.U32(r.Timestamp)},
		{Name: "answer", Value: answer},
	}, borsh.DefaultMaxSize)
}

// RoundFromReturn decodes the base64 return data of a query, as captured in the
// "Program return:" log line.
func RoundFromReturn(encoded string) (*Round, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode return data: %w", err)
	}
	return DecodeRound(data)
}

// Scope selects what a query returns.
type Scope struct {
	Variant string
	// RoundID is used by the RoundData scope only.
	RoundID uint32
}

// Query scopes.
var (
	ScopeVersion         = Scope{Variant: "Version"}
	ScopeDecimals        = Scope{Variant: "Decimals"}
	ScopeDescription     = Scope{Variant: "Description"}
	ScopeLatestRoundData = Scope{Variant: "LatestRoundData"}
	ScopeAggregator      = Scope{Variant: "Aggregator"}
)

// ScopeRoundData queries one historical round.
func ScopeRoundData(roundID uint32) Scope {
	return Scope{Variant: "RoundData", RoundID: roundID}
}

// ParseScope accepts the scope names used on the command line.
func ParseScope(name string, roundID uint32) (Scope, error) {
	switch name {
	case "version":
		return ScopeVersion, nil
	case "decimals":
		return ScopeDecimals, nil
	case "description":
		return ScopeDescription, nil
	case "round":
		return ScopeRoundData(roundID), nil
	case "latest":
		return ScopeLatestRoundData, nil
	case "aggregator":
		return ScopeAggregator, nil
	}
	return Scope{}, fmt.Errorf("unknown scope %q", name)
}

func (s Scope) value() borsh.Value {
	if s.Variant == "RoundData" {
		return borsh.Enum{Variant: s.Variant, Fields: borsh.Struct{{Name: "roundId", Value: borsh.U32(s.RoundID)}}}
	}
	return borsh.Enum{Variant: s.Variant}
}
