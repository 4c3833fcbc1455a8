package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/storage"
)

// TraceStore implements storage.TraceStore using PostgreSQL.
type TraceStore struct {
	pool *Pool
}

// NewTraceStore creates a new TraceStore.
func NewTraceStore(pool *Pool) *TraceStore {
	return &TraceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TraceStore = (*TraceStore)(nil)

const traceColumns = `signature, program_id, slot, block_time, success, error_code, error_message, instructions, log_messages`

// Insert adds a new trace. Returns ErrDuplicateKey if signature exists.
func (s *TraceStore) Insert(ctx context.Context, t *domain.TransactionTrace) error {
	if t == nil || t.Signature == "" {
		return storage.Invalid(storage.KindTrace, "missing signature")
	}

	query := `
		INSERT INTO transaction_traces (` + traceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	logs := t.LogMessages
	if logs == nil {
		logs = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		t.Signature,
		t.ProgramID,
		t.Slot,
		t.BlockTime,
		t.Success,
		t.ErrorCode,
		t.ErrorMessage,
		t.Instructions,
		logs,
	)
	if err != nil {
		return recordError(err, storage.KindTrace, t.Signature, "insert")
	}
	return nil
}

// GetBySignature retrieves a trace by transaction signature. Returns ErrNotFound if not exists.
func (s *TraceStore) GetBySignature(ctx context.Context, signature string) (*domain.TransactionTrace, error) {
	query := `
		SELECT ` + traceColumns + `
		FROM transaction_traces
		WHERE signature = $1
	`

	t, err := scanTrace(s.pool.QueryRow(ctx, query, signature))
	if err != nil {
		return nil, recordError(err, storage.KindTrace, signature, "get")
	}
	return t, nil
}

// GetBySlotRange retrieves traces of a program within [start, end] (inclusive).
func (s *TraceStore) GetBySlotRange(ctx context.Context, programID string, start, end int64) ([]*domain.TransactionTrace, error) {
	query := `
		SELECT ` + traceColumns + `
		FROM transaction_traces
		WHERE program_id = $1 AND slot >= $2 AND slot <= $3
		ORDER BY slot ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, programID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get traces by slot range: %w", err)
	}
	defer rows.Close()

	return scanTraces(rows)
}

// GetFailed retrieves failed traces of a program.
func (s *TraceStore) GetFailed(ctx context.Context, programID string) ([]*domain.TransactionTrace, error) {
	query := `
		SELECT ` + traceColumns + `
		FROM transaction_traces
		WHERE program_id = $1 AND NOT success
		ORDER BY slot ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, programID)
	if err != nil {
		return nil, fmt.Errorf("get failed traces: %w", err)
	}
	defer rows.Close()

	return scanTraces(rows)
}

// scanTrace scans a single row into a TransactionTrace.
func scanTrace(row pgx.Row) (*domain.TransactionTrace, error) {
	var t domain.TransactionTrace
	err := row.Scan(
		&t.Signature,
		&t.ProgramID,
		&t.Slot,
		&t.BlockTime,
		&t.Success,
		&t.ErrorCode,
		&t.ErrorMessage,
		&t.Instructions,
		&t.LogMessages,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTraces scans multiple rows into a slice of TransactionTrace.
func scanTraces(rows pgx.Rows) ([]*domain.TransactionTrace, error) {
	var traces []*domain.TransactionTrace

	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}
		traces = append(traces, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace rows: %w", err)
	}

	return traces, nil
}
