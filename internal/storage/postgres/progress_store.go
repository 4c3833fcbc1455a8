package postgres

import (
	"context"

	"solana-idl-kit/internal/storage"
)

// ProgressStore is a PostgreSQL implementation of storage.ProgressStore.
// One row per program in ingestion_progress.
type ProgressStore struct {
	pool *Pool
}

// NewProgressStore creates a new PostgreSQL progress store.
func NewProgressStore(pool *Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// GetLastProcessed returns the last processed slot and signature of a program.
func (s *ProgressStore) GetLastProcessed(ctx context.Context, programID string) (*storage.Progress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT program_id, slot, signature
		FROM ingestion_progress
		WHERE program_id = $1
	`, programID)

	var (
		progress storage.Progress
		slot     int64
	)
	if err := row.Scan(&progress.ProgramID, &slot, &progress.Signature); err != nil {
		return nil, recordError(err, storage.KindProgress, programID, "get")
	}
	progress.Slot = uint64(slot)

	return &progress, nil
}

// SetLastProcessed saves the last processed slot and signature.
// Uses upsert to handle initial insert and subsequent updates.
func (s *ProgressStore) SetLastProcessed(ctx context.Context, progress *storage.Progress) error {
	if progress == nil || progress.ProgramID == "" {
		return storage.Invalid(storage.KindProgress, "missing program id")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_progress (program_id, slot, signature, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (program_id) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
	`, progress.ProgramID, int64(progress.Slot), progress.Signature)
	if err != nil {
		return recordError(err, storage.KindProgress, progress.ProgramID, "set")
	}
	return nil
}
