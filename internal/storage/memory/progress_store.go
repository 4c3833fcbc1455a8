package memory

import (
	"context"
	"sync"

	"solana-idl-kit/internal/storage"
)

// ProgressStore is an in-memory implementation of storage.ProgressStore.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[string]storage.Progress
}

// NewProgressStore creates a new in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		progress: make(map[string]storage.Progress),
	}
}

// GetLastProcessed returns the last processed slot and signature of a program.
func (s *ProgressStore) GetLastProcessed(_ context.Context, programID string) (*storage.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[programID]
	if !ok {
		return nil, storage.NotFound(storage.KindProgress, programID)
	}
	return &p, nil
}

// SetLastProcessed saves the last processed slot and signature.
func (s *ProgressStore) SetLastProcessed(_ context.Context, progress *storage.Progress) error {
	if progress == nil || progress.ProgramID == "" {
		return storage.Invalid(storage.KindProgress, "missing program id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progress.ProgramID] = *progress
	return nil
}

// Verify interface compliance at compile time.
var _ storage.ProgressStore = (*ProgressStore)(nil)
