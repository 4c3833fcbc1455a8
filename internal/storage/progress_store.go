package storage

import "context"

// Progress represents the last processed position of a program's history.
type Progress struct {
	ProgramID string // program whose signatures are walked
	Slot      uint64 // last processed Solana slot
	Signature string // last processed transaction signature
}

// ProgressStore provides persistence for ingestion state.
// This enables resumption after restarts without reprocessing transactions.
type ProgressStore interface {
	// GetLastProcessed returns the last processed position of a program.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context, programID string) (*Progress, error)

	// SetLastProcessed saves the last processed position.
	SetLastProcessed(ctx context.Context, progress *Progress) error
}
