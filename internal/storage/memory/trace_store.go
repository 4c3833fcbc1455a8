package memory

import (
	"context"
	"sort"
	"sync"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/storage"
)

// TraceStore is an in-memory implementation of storage.TraceStore.
type TraceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionTrace
}

// NewTraceStore creates a new in-memory trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{
		data: make(map[string]*domain.TransactionTrace),
	}
}

// Insert adds a new trace. Returns ErrDuplicateKey if signature exists.
func (s *TraceStore) Insert(_ context.Context, t *domain.TransactionTrace) error {
	if t == nil || t.Signature == "" {
		return storage.Invalid(storage.KindTrace, "missing signature")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Signature]; exists {
		return storage.Duplicate(storage.KindTrace, t.Signature)
	}

	s.data[t.Signature] = copyTrace(t)
	return nil
}

// GetBySignature retrieves a trace by transaction signature.
func (s *TraceStore) GetBySignature(_ context.Context, signature string) (*domain.TransactionTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[signature]
	if !ok {
		return nil, storage.NotFound(storage.KindTrace, signature)
	}
	return copyTrace(t), nil
}

// GetBySlotRange retrieves traces of a program within [start, end].
func (s *TraceStore) GetBySlotRange(_ context.Context, programID string, start, end int64) ([]*domain.TransactionTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionTrace
	for _, t := range s.data {
		if t.ProgramID == programID && t.Slot >= start && t.Slot <= end {
			result = append(result, copyTrace(t))
		}
	}

	sortTraces(result)
	return result, nil
}

// GetFailed retrieves failed traces of a program.
func (s *TraceStore) GetFailed(_ context.Context, programID string) ([]*domain.TransactionTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionTrace
	for _, t := range s.data {
		if t.ProgramID == programID && !t.Success {
			result = append(result, copyTrace(t))
		}
	}

	sortTraces(result)
	return result, nil
}

func copyTrace(t *domain.TransactionTrace) *domain.TransactionTrace {
	c := *t
	c.Instructions = append([]byte(nil), t.Instructions...)
	c.LogMessages = append([]string(nil), t.LogMessages...)
	return &c
}

// sortTraces sorts traces by (slot, signature).
func sortTraces(traces []*domain.TransactionTrace) {
	sort.Slice(traces, func(i, j int) bool {
		if traces[i].Slot != traces[j].Slot {
			return traces[i].Slot < traces[j].Slot
		}
		return traces[i].Signature < traces[j].Signature
	})
}

// Verify interface compliance at compile time.
var _ storage.TraceStore = (*TraceStore)(nil)
