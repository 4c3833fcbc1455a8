package memory

import (
	"context"
	"sort"
	"sync"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data []*domain.DecodedEvent
	keys map[string]bool
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make([]*domain.DecodedEvent, 0),
		keys: make(map[string]bool),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.DecodedEvent) error {
	if e == nil || e.EventID == "" {
		return storage.Invalid(storage.KindEvent, "missing event id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys[e.EventID] {
		return storage.Duplicate(storage.KindEvent, e.EventID)
	}

	s.data = append(s.data, copyEvent(e))
	s.keys[e.EventID] = true
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.DecodedEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicates (both existing and intra-batch)
	batchKeys := make(map[string]bool, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.Invalid(storage.KindEvent, "missing event id")
		}
		if s.keys[e.EventID] || batchKeys[e.EventID] {
			return storage.Duplicate(storage.KindEvent, e.EventID)
		}
		batchKeys[e.EventID] = true
	}

	for _, e := range events {
		s.data = append(s.data, copyEvent(e))
		s.keys[e.EventID] = true
	}
	return nil
}

// GetByTxSignature retrieves the events of one transaction.
func (s *EventStore) GetByTxSignature(_ context.Context, signature string) ([]*domain.DecodedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DecodedEvent
	for _, e := range s.data {
		if e.TxSignature == signature {
			result = append(result, copyEvent(e))
		}
	}

	sortEvents(result)
	return result, nil
}

// GetByName retrieves events of a program with the given name within slots [start, end].
func (s *EventStore) GetByName(_ context.Context, programID, name string, start, end int64) ([]*domain.DecodedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DecodedEvent
	for _, e := range s.data {
		if e.ProgramID == programID && e.Name == name && e.Slot >= start && e.Slot <= end {
			result = append(result, copyEvent(e))
		}
	}

	sortEvents(result)
	return result, nil
}

func copyEvent(e *domain.DecodedEvent) *domain.DecodedEvent {
	c := *e
	c.Data = append([]byte(nil), e.Data...)
	return &c
}

// sortEvents sorts events by (slot, tx_signature, event_index).
func sortEvents(events []*domain.DecodedEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Slot != events[j].Slot {
			return events[i].Slot < events[j].Slot
		}
		if events[i].TxSignature != events[j].TxSignature {
			return events[i].TxSignature < events[j].TxSignature
		}
		return events[i].EventIndex < events[j].EventIndex
	})
}

// Verify interface compliance at compile time.
var _ storage.EventStore = (*EventStore)(nil)
