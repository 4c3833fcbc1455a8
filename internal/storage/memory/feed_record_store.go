package memory

import (
	"context"
	"sort"
	"sync"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/storage"
)

// FeedRecordStore is an in-memory implementation of storage.FeedRecordStore.
type FeedRecordStore struct {
	mu   sync.RWMutex
	data []*domain.FeedRecord
	keys map[string]bool
}

// NewFeedRecordStore creates a new in-memory feed record store.
func NewFeedRecordStore() *FeedRecordStore {
	return &FeedRecordStore{
		data: make([]*domain.FeedRecord, 0),
		keys: make(map[string]bool),
	}
}

// InsertBulk adds multiple records atomically. Fails entire batch on duplicate record_id.
func (s *FeedRecordStore) InsertBulk(_ context.Context, records []*domain.FeedRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]bool, len(records))
	for _, r := range records {
		if r == nil || r.RecordID == "" {
			return storage.Invalid(storage.KindFeedRecord, "missing record id")
		}
		if s.keys[r.RecordID] || batchKeys[r.RecordID] {
			return storage.Duplicate(storage.KindFeedRecord, r.RecordID)
		}
		batchKeys[r.RecordID] = true
	}

	for _, r := range records {
		c := *r
		s.data = append(s.data, &c)
		s.keys[r.RecordID] = true
	}
	return nil
}

// GetByFeed retrieves all records of a feed, ordered by (timestamp, slot).
func (s *FeedRecordStore) GetByFeed(_ context.Context, feed string) ([]*domain.FeedRecord, error) {
	return s.filter(func(r *domain.FeedRecord) bool {
		return r.Feed == feed
	}), nil
}

// GetByTimeRange retrieves records of a feed within [start, end].
func (s *FeedRecordStore) GetByTimeRange(_ context.Context, feed string, start, end int64) ([]*domain.FeedRecord, error) {
	return s.filter(func(r *domain.FeedRecord) bool {
		return r.Feed == feed && r.Timestamp >= start && r.Timestamp <= end
	}), nil
}

func (s *FeedRecordStore) filter(keep func(*domain.FeedRecord) bool) []*domain.FeedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeedRecord
	for _, r := range s.data {
		if keep(r) {
			c := *r
			result = append(result, &c)
		}
	}

	// Sort by (timestamp, slot, record_id)
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].RecordID < result[j].RecordID
	})
	return result
}

// Verify interface compliance at compile time.
var _ storage.FeedRecordStore = (*FeedRecordStore)(nil)
