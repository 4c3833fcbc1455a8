package solana

import "context"

// WSClient defines the logs subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to transaction logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (*LogSubscription, error)

	// Unsubscribe cancels a subscription and closes its channel.
	Unsubscribe(ctx context.Context, sub *LogSubscription) error

	// Close closes the WebSocket connection and every subscription channel.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these addresses. Empty means all.
	Mentions []string
	// Commitment defaults to "confirmed".
	Commitment string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      uint64
	Logs      []string
	Err       any
}

// LogSubscription is a live logs subscription. C is closed when the subscription ends.
type LogSubscription struct {
	id uint64
	C  <-chan LogNotification
}
