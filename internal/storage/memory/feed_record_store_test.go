package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/storage"
)

func TestFeedRecordStore_InsertBulkAndGet(t *testing.T) {
	store := NewFeedRecordStore()
	ctx := context.Background()

	records := []*domain.FeedRecord{
		{RecordID: "r3", Feed: "feed1", Window: domain.FeedWindowLive, Slot: 30, Timestamp: 3000, Answer: "300", Price: decimal.RequireFromString("3")},
		{RecordID: "r1", Feed: "feed1", Window: domain.FeedWindowHistorical, Slot: 10, Timestamp: 1000, Answer: "100", Price: decimal.RequireFromString("1")},
		{RecordID: "r2", Feed: "feed1", Window: domain.FeedWindowLive, Slot: 20, Timestamp: 2000, Answer: "200", Price: decimal.RequireFromString("2")},
		{RecordID: "r4", Feed: "feed2", Window: domain.FeedWindowLive, Slot: 20, Timestamp: 2000, Answer: "200", Price: decimal.RequireFromString("2")},
	}
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByFeed(ctx, "feed1")
	if err != nil {
		t.Fatalf("GetByFeed failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	for i, id := range []string{"r1", "r2", "r3"} {
		if got[i].RecordID != id {
			t.Errorf("record[%d]: got %s, want %s", i, got[i].RecordID, id)
		}
	}
	if !got[1].Price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Price mismatch: got %s", got[1].Price)
	}

	ranged, err := store.GetByTimeRange(ctx, "feed1", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(ranged) != 2 {
		t.Errorf("Expected 2 records in [2000, 3000], got %d", len(ranged))
	}
}

func TestFeedRecordStore_Duplicate(t *testing.T) {
	store := NewFeedRecordStore()
	ctx := context.Background()

	r := &domain.FeedRecord{RecordID: "r1", Feed: "feed1"}
	if err := store.InsertBulk(ctx, []*domain.FeedRecord{r}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	err := store.InsertBulk(ctx, []*domain.FeedRecord{r})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestFeedRecordStore_Empty(t *testing.T) {
	store := NewFeedRecordStore()

	if err := store.InsertBulk(context.Background(), nil); err != nil {
		t.Errorf("InsertBulk(nil) should be a no-op, got %v", err)
	}
	got, err := store.GetByFeed(context.Background(), "feed1")
	if err != nil {
		t.Fatalf("GetByFeed failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no records, got %d", len(got))
	}
}
