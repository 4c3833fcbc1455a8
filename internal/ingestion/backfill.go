package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/events"
	"solana-idl-kit/internal/observability"
	"solana-idl-kit/internal/solana"
	"solana-idl-kit/internal/storage"
)

// Backfiller handles historical transaction ingestion from RPC for one program.
type Backfiller struct {
	rpc             solana.RPCClient
	programID       solana.PublicKey
	parser          *events.Parser
	traceStore      storage.TraceStore
	eventStore      storage.EventStore
	progressStore   storage.ProgressStore
	pageSize        int
	maxTransactions int
	logger          *slog.Logger
	metrics         *observability.Metrics
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	RPC           solana.RPCClient
	ProgramID     solana.PublicKey
	Parser        *events.Parser // nil skips event decoding
	TraceStore    storage.TraceStore
	EventStore    storage.EventStore
	ProgressStore storage.ProgressStore // nil always walks the full history
	// PageSize is the getSignaturesForAddress limit. Defaults to 1000.
	PageSize int
	// MaxTransactions caps the transactions processed per run, oldest first. 0 means all.
	MaxTransactions int
	Logger          *slog.Logger
	Metrics         *observability.Metrics
}

// NewBackfiller creates a new historical data backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backfiller{
		rpc:             opts.RPC,
		programID:       opts.ProgramID,
		parser:          opts.Parser,
		traceStore:      opts.TraceStore,
		eventStore:      opts.EventStore,
		progressStore:   opts.ProgressStore,
		pageSize:        pageSize,
		maxTransactions: opts.MaxTransactions,
		logger:          logger.With("program", opts.ProgramID.String()),
		metrics:         opts.Metrics,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	TransactionsProcessed int
	FailedTransactions    int
	EventsStored          int
	DuplicatesSkipped     int
	Missing               int // signatures whose transaction the node no longer has
	Errors                int
	LastSlot              uint64
	LastSignature         string
	Duration              time.Duration
}

// Run processes every transaction newer than the last processed signature,
// oldest first, advancing the stored progress after each one.
func (b *Backfiller) Run(ctx context.Context) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	until, err := b.lastProcessed(ctx)
	if err != nil {
		return result, err
	}

	sigs, err := b.collectSignatures(ctx, until)
	if err != nil {
		return result, err
	}
	OldestFirst(sigs)
	if b.maxTransactions > 0 && len(sigs) > b.maxTransactions {
		sigs = sigs[:b.maxTransactions]
	}

	b.logger.Info("backfill started", "transactions", len(sigs), "until", until)

	for _, sig := range sigs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := b.processSignature(ctx, sig, result); err != nil {
			return result, err
		}
	}

	result.Duration = time.Since(start)
	b.logger.Info("backfill complete",
		"transactions", result.TransactionsProcessed,
		"failed", result.FailedTransactions,
		"events", result.EventsStored,
		"dupes", result.DuplicatesSkipped,
		"missing", result.Missing,
		"errors", result.Errors,
		"duration", result.Duration,
	)

	return result, nil
}

func (b *Backfiller) lastProcessed(ctx context.Context) (string, error) {
	if b.progressStore == nil {
		return "", nil
	}
	progress, err := b.progressStore.GetLastProcessed(ctx, b.programID.String())
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load progress: %w", err)
	}
	return progress.Signature, nil
}

// collectSignatures pages backwards from the newest signature until the
// history, or the signature until, is exhausted.
func (b *Backfiller) collectSignatures(ctx context.Context, until string) ([]solana.SignatureInfo, error) {
	var all []solana.SignatureInfo
	var before string

	for {
		opts := &solana.SignaturesOpts{
			Limit: b.pageSize,
			Until: until,
		}
		if before != "" {
			opts.Before = before
		}

		sigs, err := b.rpc.GetSignaturesForAddress(ctx, b.programID, opts)
		if err != nil {
			return nil, fmt.Errorf("get signatures: %w", err)
		}
		all = append(all, sigs...)

		if len(sigs) < b.pageSize {
			return all, nil
		}
		before = sigs[len(sigs)-1].Signature
	}
}

// processSignature stores the trace and events of one transaction. Storage
// failures abort the run so progress never moves past unsaved data.
func (b *Backfiller) processSignature(ctx context.Context, sig solana.SignatureInfo, result *BackfillResult) error {
	tx, err := b.rpc.GetTransaction(ctx, sig.Signature)
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", sig.Signature, err)
	}

	if tx == nil {
		result.Missing++
		b.logger.Warn("transaction not found", "signature", sig.Signature)
	} else if err := b.storeTransaction(ctx, tx, result); err != nil {
		return err
	}

	if b.progressStore != nil {
		err := b.progressStore.SetLastProcessed(ctx, &storage.Progress{
			ProgramID: b.programID.String(),
			Slot:      sig.Slot,
			Signature: sig.Signature,
		})
		if err != nil {
			return fmt.Errorf("save progress: %w", err)
		}
	}

	result.TransactionsProcessed++
	result.LastSlot = sig.Slot
	result.LastSignature = sig.Signature
	b.metrics.RecordBackfilled(sig.Slot)
	return nil
}

func (b *Backfiller) storeTransaction(ctx context.Context, tx *solana.Transaction, result *BackfillResult) error {
	trace, _, err := NewTrace(b.programID.String(), tx)
	if err != nil {
		// Unbalanced logs are kept out of storage but do not block the run.
		result.Errors++
		b.metrics.RecordParseError()
		b.logger.Warn("skip unparsable transaction", "signature", tx.Signature, "error", err)
		return nil
	}
	b.metrics.RecordTransactionParsed(trace.Success)

	if b.traceStore != nil {
		start := time.Now()
		err := b.traceStore.Insert(ctx, trace)
		b.metrics.ObserveDB("traces", "insert", start, ignoreDuplicate(err))
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			result.DuplicatesSkipped++
		case err != nil:
			return fmt.Errorf("store trace %s: %w", tx.Signature, err)
		}
	}

	if !trace.Success {
		// Events of failed transactions were rolled back on chain.
		result.FailedTransactions++
		return nil
	}
	if b.parser == nil || b.eventStore == nil {
		return nil
	}

	records := b.decodeEvents(tx, trace.LogMessages, result)
	stored, dupes, err := b.storeEvents(ctx, records)
	result.EventsStored += stored
	result.DuplicatesSkipped += dupes
	return err
}

func (b *Backfiller) decodeEvents(tx *solana.Transaction, logs []string, result *BackfillResult) []*domain.DecodedEvent {
	var records []*domain.DecodedEvent
	for decoded, err := range b.parser.Events(logs) {
		if err != nil {
			result.Errors++
			b.metrics.RecordDecodeError("event")
			b.logger.Warn("decode event", "signature", tx.Signature, "error", err)
			continue
		}
		b.metrics.RecordEventDecoded(decoded.Name)

		record, err := events.ToDomain(&events.Event{
			ProgramID: b.parser.ProgramID(),
			Name:      decoded.Name,
			Data:      decoded.Data,
			Slot:      tx.Slot,
			Signature: tx.Signature,
			Index:     len(records),
		})
		if err != nil {
			result.Errors++
			continue
		}
		records = append(records, record)
	}
	return records
}

// storeEvents inserts events as one batch, falling back to one by one to skip
// the duplicates of a rerun.
func (b *Backfiller) storeEvents(ctx context.Context, records []*domain.DecodedEvent) (stored, dupes int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	start := time.Now()
	err = b.eventStore.InsertBulk(ctx, records)
	b.metrics.ObserveDB("events", "insert_bulk", start, ignoreDuplicate(err))
	if err == nil {
		return len(records), 0, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, 0, fmt.Errorf("store events: %w", err)
	}
	if key, ok := storage.KeyOf(err); ok {
		b.logger.Debug("event batch overlaps stored events", "first", key)
	}

	// Insert one by one to find which are duplicates
	for _, record := range records {
		err := b.eventStore.Insert(ctx, record)
		switch {
		case err == nil:
			stored++
		case errors.Is(err, storage.ErrDuplicateKey):
			dupes++
		default:
			return stored, dupes, fmt.Errorf("store event %s: %w", record.EventID, err)
		}
	}
	return stored, dupes, nil
}

func ignoreDuplicate(err error) error {
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}
