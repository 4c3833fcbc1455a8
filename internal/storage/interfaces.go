package storage

import (
	"context"

	"solana-idl-kit/internal/domain"
)

// TraceStore provides access to transaction_traces storage.
type TraceStore interface {
	// Insert adds a new trace. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, t *domain.TransactionTrace) error

	// GetBySignature retrieves a trace by transaction signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TransactionTrace, error)

	// GetBySlotRange retrieves traces of a program within [start, end] (inclusive),
	// ordered by (slot, signature) ASC.
	GetBySlotRange(ctx context.Context, programID string, start, end int64) ([]*domain.TransactionTrace, error)

	// GetFailed retrieves failed traces of a program, ordered by (slot, signature) ASC.
	GetFailed(ctx context.Context, programID string) ([]*domain.TransactionTrace, error)
}

// EventStore provides access to decoded_events storage.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.DecodedEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.DecodedEvent) error

	// GetByTxSignature retrieves the events of one transaction, ordered by event_index ASC.
	GetByTxSignature(ctx context.Context, signature string) ([]*domain.DecodedEvent, error)

	// GetByName retrieves events of a program with the given name within slots
	// [start, end] (inclusive), ordered by (slot, tx_signature, event_index) ASC.
	GetByName(ctx context.Context, programID, name string, start, end int64) ([]*domain.DecodedEvent, error)
}

// FeedRecordStore provides access to feed_records storage.
type FeedRecordStore interface {
	// InsertBulk adds multiple records. Fails entire batch on duplicate record_id.
	InsertBulk(ctx context.Context, records []*domain.FeedRecord) error

	// GetByFeed retrieves all records of a feed, ordered by (timestamp, slot) ASC.
	GetByFeed(ctx context.Context, feed string) ([]*domain.FeedRecord, error)

	// GetByTimeRange retrieves records of a feed within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, feed string, start, end int64) ([]*domain.FeedRecord, error)
}
