package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/idhash"
	"solana-idl-kit/internal/storage"
)

// StoreSink persists events. Events already stored are ignored, so redelivered
// notifications are harmless.
type StoreSink struct {
	store storage.EventStore
}

// NewStoreSink creates a sink writing to store.
func NewStoreSink(store storage.EventStore) *StoreSink {
	return &StoreSink{store: store}
}

// Name identifies the sink in logs and metrics.
func (s *StoreSink) Name() string { return "store" }

// Handle stores one event.
func (s *StoreSink) Handle(ctx context.Context, e *Event) error {
	record, err := ToDomain(e)
	if err != nil {
		return err
	}
	if err := s.store.Insert(ctx, record); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("store %s: %w", e.Name, err)
	}
	return nil
}

// ToDomain converts an event into its persisted form.
func ToDomain(e *Event) (*domain.DecodedEvent, error) {
	data, err := json.Marshal(borsh.Native(e.Data))
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.Name, err)
	}
	return &domain.DecodedEvent{
		EventID:     idhash.ComputeEventID(e.Signature, e.ProgramID, e.Index),
		ProgramID:   e.ProgramID,
		Name:        e.Name,
		TxSignature: e.Signature,
		EventIndex:  e.Index,
		Slot:        int64(e.Slot),
		Data:        data,
	}, nil
}
