package clickhouse

import (
	"context"
	"fmt"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/storage"
)

// FeedRecordStore implements storage.FeedRecordStore using ClickHouse.
type FeedRecordStore struct {
	conn *Conn
}

// NewFeedRecordStore creates a new FeedRecordStore.
func NewFeedRecordStore(conn *Conn) *FeedRecordStore {
	return &FeedRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeedRecordStore = (*FeedRecordStore)(nil)

// InsertBulk adds multiple records. Fails entire batch on duplicate record_id.
// ReplacingMergeTree does not reject duplicates, so they are checked explicitly.
func (s *FeedRecordStore) InsertBulk(ctx context.Context, records []*domain.FeedRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.RecordID == "" {
			return storage.Invalid(storage.KindFeedRecord, "missing record id")
		}
		if _, exists := seen[r.RecordID]; exists {
			return storage.Duplicate(storage.KindFeedRecord, r.RecordID)
		}
		seen[r.RecordID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.RecordID)
	}
	stored, err := s.firstStored(ctx, ids)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if stored != "" {
		return storage.Duplicate(storage.KindFeedRecord, stored)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO feed_records (
			record_id, feed, feed_window, slot, timestamp, answer, price
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.RecordID, r.Feed, string(r.Window),
			r.Slot, r.Timestamp, r.Answer, r.Price,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByFeed retrieves all records of a feed, ordered by (timestamp, slot) ASC.
func (s *FeedRecordStore) GetByFeed(ctx context.Context, feed string) ([]*domain.FeedRecord, error) {
	query := `
		SELECT record_id, feed, feed_window, slot, timestamp, answer, price
		FROM feed_records FINAL
		WHERE feed = ?
		ORDER BY timestamp ASC, slot ASC, record_id ASC
	`

	rows, err := s.conn.Query(ctx, query, feed)
	if err != nil {
		return nil, fmt.Errorf("query by feed: %w", err)
	}
	defer rows.Close()

	return scanFeedRecords(rows)
}

// GetByTimeRange retrieves records of a feed within [start, end] (inclusive).
func (s *FeedRecordStore) GetByTimeRange(ctx context.Context, feed string, start, end int64) ([]*domain.FeedRecord, error) {
	query := `
		SELECT record_id, feed, feed_window, slot, timestamp, answer, price
		FROM feed_records FINAL
		WHERE feed = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, slot ASC, record_id ASC
	`

	rows, err := s.conn.Query(ctx, query, feed, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanFeedRecords(rows)
}

// firstStored returns the smallest of ids already stored, or "" when none is.
func (s *FeedRecordStore) firstStored(ctx context.Context, ids []string) (string, error) {
	query := `
		SELECT count(), min(record_id) FROM feed_records
		WHERE record_id IN ?
	`

	var (
		count uint64
		first string
	)
	if err := s.conn.QueryRow(ctx, query, ids).Scan(&count, &first); err != nil {
		return "", err
	}
	if count == 0 {
		return "", nil
	}
	return first, nil
}

// scanFeedRecords scans multiple rows.
func scanFeedRecords(rows chRows) ([]*domain.FeedRecord, error) {
	var records []*domain.FeedRecord

	for rows.Next() {
		var r domain.FeedRecord
		var window string

		err := rows.Scan(
			&r.RecordID, &r.Feed, &window,
			&r.Slot, &r.Timestamp, &r.Answer, &r.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feed record row: %w", err)
		}

		r.Window = domain.FeedWindow(window)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed record rows: %w", err)
	}

	return records, nil
}
