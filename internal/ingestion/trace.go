// Package ingestion backfills a program's transaction history into storage.
package ingestion

import (
	"encoding/json"
	"fmt"

	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/logparser"
	"solana-idl-kit/internal/solana"
)

// NewTrace parses the logs of tx into its persisted trace. The parsed log is
// returned too so callers can inspect the invocation tree.
func NewTrace(programID string, tx *solana.Transaction) (*domain.TransactionTrace, *logparser.TransactionLog, error) {
	var logs []string
	if tx.Meta != nil {
		logs = tx.Meta.LogMessages
	}

	parsed, err := logparser.FromTransaction(tx.Signature, logs)
	if err != nil {
		return nil, nil, fmt.Errorf("parse logs of %s: %w", tx.Signature, err)
	}

	instructions, err := json.Marshal(parsed.Instructions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal invocation tree of %s: %w", tx.Signature, err)
	}

	trace := &domain.TransactionTrace{
		Signature:    tx.Signature,
		ProgramID:    programID,
		Slot:         int64(tx.Slot),
		BlockTime:    tx.BlockTime,
		Success:      parsed.Success && !tx.Failed(),
		Instructions: instructions,
		LogMessages:  logs,
	}
	if parsed.ErrorCode != "" {
		trace.ErrorCode = &parsed.ErrorCode
	}
	if parsed.ErrorMessage != "" {
		trace.ErrorMessage = &parsed.ErrorMessage
	}
	return trace, parsed, nil
}
