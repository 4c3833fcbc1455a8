package ingestion

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/coder"
	"solana-idl-kit/internal/dfeed"
	"solana-idl-kit/internal/events"
	"solana-idl-kit/internal/solana"
	"solana-idl-kit/internal/solana/stub"
	"solana-idl-kit/internal/storage"
	"solana-idl-kit/internal/storage/memory"
)

var testProgramID = solana.MustPublicKey("HEvSKofvBgfaexv23kMabbYqxasxU3mQ4ibBMEmJWHny")

type fixture struct {
	rpc      *stub.RPCClient
	coder    *coder.Coder
	traces   *memory.TraceStore
	events   *memory.EventStore
	progress *memory.ProgressStore
	sigs     []solana.SignatureInfo // newest first
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p, err := dfeed.NewProgram(testProgramID)
	require.NoError(t, err)
	return &fixture{
		rpc:      stub.NewRPCClient(),
		coder:    p.Coder(),
		traces:   memory.NewTraceStore(),
		events:   memory.NewEventStore(),
		progress: memory.NewProgressStore(),
	}
}

func (f *fixture) backfiller(opts BackfillOptions) *Backfiller {
	opts.RPC = f.rpc
	opts.ProgramID = testProgramID
	opts.Parser = events.NewParser(testProgramID, f.coder)
	opts.TraceStore = f.traces
	opts.EventStore = f.events
	if opts.ProgressStore == nil {
		opts.ProgressStore = f.progress
	}
	return NewBackfiller(opts)
}

func (f *fixture) eventLine(t *testing.T, round uint32) string {
	t.Helper()
	data, err := f.coder.EncodeEvent("NewTransmission", borsh.Struct{
		{Name: "feed", Value: borsh.PublicKey(testProgramID)},
		{Name: "roundId", Value: borsh.U32(round)},
		{Name: "timestamp", Value: borsh.U32(1700000000 + round)},
		{Name: "answer", Value: borsh.NewI128(int64(round) * 100)},
	})
	require.NoError(t, err)
	return "Program data: " + base64.StdEncoding.EncodeToString(data)
}

// addTx registers a transaction as the newest signature of the program.
func (f *fixture) addTx(t *testing.T, sig string, slot uint64, failed bool, rounds ...uint32) {
	t.Helper()
	program := testProgramID.String()
	logs := []string{"Program " + program + " invoke [1]"}
	for _, r := range rounds {
		logs = append(logs, f.eventLine(t, r))
	}
	meta := &solana.TransactionMeta{}
	if failed {
		logs = append(logs, "Program "+program+" failed: custom program error: 0x1770")
		meta.Err = map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6000}}}
	} else {
		logs = append(logs, "Program "+program+" success")
	}
	meta.LogMessages = logs

	f.rpc.AddTransaction(&solana.Transaction{Slot: slot, Signature: sig, BlockTime: int64(slot) * 10, Meta: meta})
	f.addSignature(sig, slot)
}

func (f *fixture) addSignature(sig string, slot uint64) {
	f.sigs = append([]solana.SignatureInfo{{Signature: sig, Slot: slot}}, f.sigs...)
	f.rpc.AddSignatures(testProgramID, f.sigs)
}

func TestBackfiller_Run(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addTx(t, "sigA", 10, false, 1)
	f.addTx(t, "sigB", 20, true, 9)
	f.addTx(t, "sigC", 30, false, 2, 3)

	result, err := f.backfiller(BackfillOptions{PageSize: 2}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TransactionsProcessed)
	assert.Equal(t, 1, result.FailedTransactions)
	assert.Equal(t, 3, result.EventsStored)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, uint64(30), result.LastSlot)
	assert.Equal(t, "sigC", result.LastSignature)

	// Traces
	traces, err := f.traces.GetBySlotRange(ctx, testProgramID.String(), 0, 100)
	require.NoError(t, err)
	require.Len(t, traces, 3)
	failed, err := f.traces.GetFailed(ctx, testProgramID.String())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "sigB", failed[0].Signature)
	require.NotNil(t, failed[0].ErrorCode)
	assert.Equal(t, "0x1770|6000", *failed[0].ErrorCode)
	assert.Equal(t, int64(200), failed[0].BlockTime)

	// Events of the failed transaction are not stored
	bEvents, err := f.events.GetByTxSignature(ctx, "sigB")
	require.NoError(t, err)
	assert.Empty(t, bEvents)

	cEvents, err := f.events.GetByTxSignature(ctx, "sigC")
	require.NoError(t, err)
	require.Len(t, cEvents, 2)
	assert.Equal(t, 0, cEvents[0].EventIndex)
	assert.Equal(t, 1, cEvents[1].EventIndex)
	assert.JSONEq(t, `{"feed":"`+testProgramID.String()+`","roundId":2,"timestamp":1700000002,"answer":"200"}`, string(cEvents[0].Data))

	progress, err := f.progress.GetLastProcessed(ctx, testProgramID.String())
	require.NoError(t, err)
	assert.Equal(t, "sigC", progress.Signature)
	assert.Equal(t, uint64(30), progress.Slot)
}

func TestBackfiller_Resume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addTx(t, "sigA", 10, false, 1)
	f.addTx(t, "sigB", 20, false, 2)

	_, err := f.backfiller(BackfillOptions{}).Run(ctx)
	require.NoError(t, err)

	// Nothing new
	result, err := f.backfiller(BackfillOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TransactionsProcessed)

	f.addTx(t, "sigC", 30, false, 3)

	result, err = f.backfiller(BackfillOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransactionsProcessed)
	assert.Equal(t, "sigC", result.LastSignature)
	assert.Equal(t, 0, result.DuplicatesSkipped)
}

func TestBackfiller_MaxTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addTx(t, "sigA", 10, false, 1)
	f.addTx(t, "sigB", 20, false, 2)
	f.addTx(t, "sigC", 30, false, 3)

	result, err := f.backfiller(BackfillOptions{MaxTransactions: 2}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TransactionsProcessed)
	assert.Equal(t, "sigB", result.LastSignature, "oldest transactions go first")

	result, err = f.backfiller(BackfillOptions{MaxTransactions: 2}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransactionsProcessed)
	assert.Equal(t, "sigC", result.LastSignature)
}

func TestBackfiller_MissingTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addTx(t, "sigA", 10, false, 1)
	f.addSignature("pruned", 15)

	result, err := f.backfiller(BackfillOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TransactionsProcessed)
	assert.Equal(t, 1, result.Missing)
	assert.Equal(t, "pruned", result.LastSignature)
}

func TestBackfiller_RerunSkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addTx(t, "sigA", 10, false, 1, 2)

	// First pass without progress tracking
	noProgress := &discardProgress{}
	_, err := f.backfiller(BackfillOptions{ProgressStore: noProgress}).Run(ctx)
	require.NoError(t, err)

	result, err := f.backfiller(BackfillOptions{ProgressStore: noProgress}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransactionsProcessed)
	assert.Equal(t, 0, result.EventsStored)
	assert.Equal(t, 3, result.DuplicatesSkipped, "one trace and two events")
}

func TestBackfiller_UnbalancedLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.rpc.AddTransaction(&solana.Transaction{
		Slot:      5,
		Signature: "broken",
		Meta:      &solana.TransactionMeta{LogMessages: []string{"Program log: orphan"}},
	})
	f.addSignature("broken", 5)

	result, err := f.backfiller(BackfillOptions{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.TransactionsProcessed)

	_, err = f.traces.GetBySignature(ctx, "broken")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBackfiller_RPCError(t *testing.T) {
	f := newFixture(t)
	f.rpc.Err = errors.New("rate limited")

	_, err := f.backfiller(BackfillOptions{}).Run(context.Background())
	assert.ErrorContains(t, err, "rate limited")
}

func TestNewTrace(t *testing.T) {
	program := testProgramID.String()
	tx := &solana.Transaction{
		Signature: "sig",
		Slot:      7,
		Meta: &solana.TransactionMeta{LogMessages: []string{
			"Program " + program + " invoke [1]",
			"Program return: " + program + " AQID",
			"Program " + program + " success",
		}},
	}

	trace, parsed, err := NewTrace(program, tx)
	require.NoError(t, err)
	assert.True(t, trace.Success)
	assert.Nil(t, trace.ErrorCode)
	assert.Equal(t, int64(7), trace.Slot)
	require.Len(t, parsed.Instructions, 1)
	assert.Equal(t, "AQID", parsed.Instructions[0].Return)
	assert.Contains(t, string(trace.Instructions), `"AQID"`)
}

// discardProgress never remembers anything.
type discardProgress struct{}

func (discardProgress) GetLastProcessed(context.Context, string) (*storage.Progress, error) {
	return nil, storage.ErrNotFound
}

func (discardProgress) SetLastProcessed(context.Context, *storage.Progress) error { return nil }
