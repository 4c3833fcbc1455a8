package memory

import (
	"context"
	"errors"
	"testing"

	"solana-idl-kit/internal/storage"
)

func TestProgressStore_GetSet(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	_, err := store.GetLastProcessed(ctx, "prog1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := store.SetLastProcessed(ctx, &storage.Progress{ProgramID: "prog1", Slot: 10, Signature: "sig1"}); err != nil {
		t.Fatalf("SetLastProcessed failed: %v", err)
	}
	if err := store.SetLastProcessed(ctx, &storage.Progress{ProgramID: "prog1", Slot: 20, Signature: "sig2"}); err != nil {
		t.Fatalf("SetLastProcessed failed: %v", err)
	}

	got, err := store.GetLastProcessed(ctx, "prog1")
	if err != nil {
		t.Fatalf("GetLastProcessed failed: %v", err)
	}
	if got.Slot != 20 || got.Signature != "sig2" {
		t.Errorf("got %+v, want slot 20 sig2", got)
	}

	// Programs are tracked independently
	if _, err := store.GetLastProcessed(ctx, "prog2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for prog2, got %v", err)
	}
}

func TestProgressStore_InvalidInput(t *testing.T) {
	store := NewProgressStore()

	if err := store.SetLastProcessed(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if err := store.SetLastProcessed(context.Background(), &storage.Progress{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty program, got %v", err)
	}
}
