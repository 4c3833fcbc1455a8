package lookup

import (
	"testing"

	"solana-idl-kit/internal/domain"
)

func record(window domain.FeedWindow, ts, slot int64) *domain.FeedRecord {
	return &domain.FeedRecord{Window: window, Timestamp: ts, Slot: slot}
}

func testRecords() []*domain.FeedRecord {
	return []*domain.FeedRecord{
		record(domain.FeedWindowHistorical, 1000, 10),
		record(domain.FeedWindowLive, 1000, 10),
		record(domain.FeedWindowLive, 2000, 20),
		record(domain.FeedWindowLive, 2000, 21),
		record(domain.FeedWindowHistorical, 3000, 30),
	}
}

func TestRecordAt_Empty(t *testing.T) {
	_, err := RecordAt(1000, "", nil)
	if err != ErrNoRecords {
		t.Errorf("expected ErrNoRecords, got %v", err)
	}

	live := []*domain.FeedRecord{record(domain.FeedWindowLive, 1000, 10)}
	_, err = RecordAt(1000, domain.FeedWindowHistorical, live)
	if err != ErrNoRecords {
		t.Errorf("expected ErrNoRecords for a window without records, got %v", err)
	}
}

func TestRecordAt_ExactMatch(t *testing.T) {
	r, err := RecordAt(2000, domain.FeedWindowLive, testRecords())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil || r.Slot != 21 {
		t.Errorf("expected slot 21, got %+v", r)
	}
}

func TestRecordAt_BeforeTarget(t *testing.T) {
	// Target 2500 should return the record at 2000
	r, err := RecordAt(2500, domain.FeedWindowLive, testRecords())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil || r.Timestamp != 2000 {
		t.Errorf("expected timestamp 2000, got %+v", r)
	}
}

func TestRecordAt_BeforeFirst(t *testing.T) {
	r, err := RecordAt(500, "", testRecords())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Errorf("expected nil before the first record, got %+v", r)
	}
}

func TestRecordAt_AnyWindow(t *testing.T) {
	r, err := RecordAt(5000, "", testRecords())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil || r.Window != domain.FeedWindowHistorical || r.Timestamp != 3000 {
		t.Errorf("expected historical record at 3000, got %+v", r)
	}
}

func TestRecordAt_WindowFilter(t *testing.T) {
	r, err := RecordAt(1500, domain.FeedWindowHistorical, testRecords())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil || r.Window != domain.FeedWindowHistorical || r.Timestamp != 1000 {
		t.Errorf("expected historical record at 1000, got %+v", r)
	}
}
