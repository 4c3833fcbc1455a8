package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-idl-kit/internal/storage"
)

func TestProgressStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProgressStore(pool)

	_, err := store.GetLastProcessed(ctx, "Prog1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetLastProcessed(ctx, &storage.Progress{ProgramID: "Prog1", Slot: 10, Signature: "a"}))
	require.NoError(t, store.SetLastProcessed(ctx, &storage.Progress{ProgramID: "Prog1", Slot: 20, Signature: "b"}))
	require.NoError(t, store.SetLastProcessed(ctx, &storage.Progress{ProgramID: "Prog2", Slot: 5, Signature: "c"}))

	got, err := store.GetLastProcessed(ctx, "Prog1")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), got.Slot)
	assert.Equal(t, "b", got.Signature)

	got, err = store.GetLastProcessed(ctx, "Prog2")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Slot)
}

func TestProgressStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewProgressStore(pool).SetLastProcessed(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
