package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/storage"
)

func TestEventStore_InsertAndGetByTxSignature(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.DecodedEvent{
		{EventID: "e2", ProgramID: "prog1", Name: "Deposited", TxSignature: "tx1", EventIndex: 1, Slot: 10, Data: json.RawMessage(`{"amount":"2"}`)},
		{EventID: "e1", ProgramID: "prog1", Name: "Deposited", TxSignature: "tx1", EventIndex: 0, Slot: 10, Data: json.RawMessage(`{"amount":"1"}`)},
		{EventID: "e3", ProgramID: "prog1", Name: "Deposited", TxSignature: "tx2", EventIndex: 0, Slot: 11},
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByTxSignature(ctx, "tx1")
	if err != nil {
		t.Fatalf("GetByTxSignature failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].EventID != "e1" || got[1].EventID != "e2" {
		t.Errorf("Events not ordered by event_index: %s, %s", got[0].EventID, got[1].EventID)
	}
	if string(got[0].Data) != `{"amount":"1"}` {
		t.Errorf("Data mismatch: %s", got[0].Data)
	}
}

func TestEventStore_DuplicateKey(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := &domain.DecodedEvent{EventID: "e1", TxSignature: "tx1"}
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, e)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if key, _ := storage.KeyOf(err); key != "e1" {
		t.Errorf("Expected key e1, got %q", key)
	}
}

func TestEventStore_InsertBulk(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.DecodedEvent{
		{EventID: "e1", ProgramID: "prog1", Name: "A", TxSignature: "tx1", EventIndex: 0, Slot: 5},
		{EventID: "e2", ProgramID: "prog1", Name: "B", TxSignature: "tx1", EventIndex: 1, Slot: 5},
		{EventID: "e3", ProgramID: "prog1", Name: "A", TxSignature: "tx0", EventIndex: 0, Slot: 5},
		{EventID: "e4", ProgramID: "prog1", Name: "A", TxSignature: "tx2", EventIndex: 0, Slot: 9},
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByName(ctx, "prog1", "A", 0, 5)
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].EventID != "e3" || got[1].EventID != "e1" {
		t.Errorf("Events not ordered by (slot, tx_signature): %s, %s", got[0].EventID, got[1].EventID)
	}
}

func TestEventStore_InsertBulkDuplicate(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.DecodedEvent{EventID: "e1"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Existing duplicate fails the whole batch
	err := store.InsertBulk(ctx, []*domain.DecodedEvent{{EventID: "e2"}, {EventID: "e1"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Intra-batch duplicate
	err = store.InsertBulk(ctx, []*domain.DecodedEvent{{EventID: "e3"}, {EventID: "e3"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	// Nothing from the failed batches was stored
	if err := store.Insert(ctx, &domain.DecodedEvent{EventID: "e2"}); err != nil {
		t.Errorf("e2 should not exist after failed batch: %v", err)
	}
}
