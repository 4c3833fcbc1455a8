package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const insertEventQuery = `
	INSERT INTO decoded_events (
		event_id, program_id, name, tx_signature, event_index, slot, data
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.DecodedEvent) error {
	if e == nil || e.EventID == "" {
		return storage.Invalid(storage.KindEvent, "missing event id")
	}

	if _, err := s.pool.Exec(ctx, insertEventQuery, eventArgs(e)...); err != nil {
		return recordError(err, storage.KindEvent, e.EventID, "insert")
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.DecodedEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.Invalid(storage.KindEvent, "missing event id")
		}
		if _, err := tx.Exec(ctx, insertEventQuery, eventArgs(e)...); err != nil {
			return recordError(err, storage.KindEvent, e.EventID, "bulk insert")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTxSignature retrieves the events of one transaction, ordered by event_index ASC.
func (s *EventStore) GetByTxSignature(ctx context.Context, signature string) ([]*domain.DecodedEvent, error) {
	query := `
		SELECT event_id, program_id, name, tx_signature, event_index, slot, data
		FROM decoded_events
		WHERE tx_signature = $1
		ORDER BY event_index ASC, program_id ASC
	`

	rows, err := s.pool.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("get events by tx signature: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByName retrieves events of a program with the given name within slots [start, end].
func (s *EventStore) GetByName(ctx context.Context, programID, name string, start, end int64) ([]*domain.DecodedEvent, error) {
	query := `
		SELECT event_id, program_id, name, tx_signature, event_index, slot, data
		FROM decoded_events
		WHERE program_id = $1 AND name = $2 AND slot >= $3 AND slot <= $4
		ORDER BY slot ASC, tx_signature ASC, event_index ASC
	`

	rows, err := s.pool.Query(ctx, query, programID, name, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by name: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func eventArgs(e *domain.DecodedEvent) []any {
	data := e.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	return []any{
		e.EventID,
		e.ProgramID,
		e.Name,
		e.TxSignature,
		e.EventIndex,
		e.Slot,
		data,
	}
}

// scanEvents scans multiple rows into a slice of DecodedEvent.
func scanEvents(rows pgx.Rows) ([]*domain.DecodedEvent, error) {
	var events []*domain.DecodedEvent

	for rows.Next() {
		var e domain.DecodedEvent
		err := rows.Scan(
			&e.EventID,
			&e.ProgramID,
			&e.Name,
			&e.TxSignature,
			&e.EventIndex,
			&e.Slot,
			&e.Data,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
