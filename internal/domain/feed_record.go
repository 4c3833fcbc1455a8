package domain

import "github.com/shopspring/decimal"

// FeedWindow identifies which part of the ring buffer a record came from.
type FeedWindow string

const (
	FeedWindowLive       FeedWindow = "live"
	FeedWindowHistorical FeedWindow = "historical"
)

// FeedRecord is one price record read from a feed account.
type FeedRecord struct {
	RecordID  string          // deterministic ID: hash(feed, window, slot, timestamp)
	Feed      string          // feed account address
	Window    FeedWindow      // live or historical
	Slot      int64           // slot the price was written in
	Timestamp int64           // Unix timestamp in seconds
	Answer    string          // raw i128 answer as a decimal string
	Price     decimal.Decimal // answer scaled by the feed decimals
}
