package logparser

import (
	"testing"
)

func TestFromTransaction_Success(t *testing.T) {
	lines := []string{
		"Program A invoke [1]",
		"Program B invoke [2]",
		"Program B success",
		"Program A success",
	}

	tx, err := FromTransaction("sig1", lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.Success {
		t.Error("expected success")
	}
	if tx.Signature != "sig1" {
		t.Errorf("expected signature sig1, got %s", tx.Signature)
	}
	if len(tx.RawMessages) != 4 {
		t.Errorf("expected raw messages kept, got %d", len(tx.RawMessages))
	}
	if tx.FailedInstruction() != nil {
		t.Error("expected no failed instruction")
	}
}

func TestFromTransaction_DeepestFailure(t *testing.T) {
	lines := []string{
		"Program A invoke [1]",
		"Program A success",
		"Program B invoke [1]",
		"Program C invoke [2]",
		"Program C success",
		"Program D invoke [2]",
		"Program log: Error: slippage exceeded",
		"Program D failed: custom program error: 0x1771",
		"Program B failed: custom program error: 0x1771",
	}

	tx, err := FromTransaction("sig2", lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Success {
		t.Fatal("expected failure")
	}
	if tx.ErrorCode != "0x1771|6001" {
		t.Errorf("expected error code 0x1771|6001, got %s", tx.ErrorCode)
	}
	if tx.ErrorMessage != "Reason: slippage exceeded" {
		t.Errorf("expected deepest error message, got %q", tx.ErrorMessage)
	}
	if got := tx.FailedInstruction(); got == nil || got.ProgramID != "D" {
		t.Errorf("expected failed instruction D, got %+v", got)
	}
}

func TestFromTransaction_FailureWithoutChildren(t *testing.T) {
	tx, err := FromTransaction("sig3", []string{
		"Program A invoke [1]",
		"Program log: Error: bad input",
		"Program A failed: custom program error: 0x2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Success {
		t.Error("expected failure")
	}
	if tx.ErrorCode != "0x2|2" || tx.ErrorMessage != "Reason: bad input" {
		t.Errorf("unexpected error %s %q", tx.ErrorCode, tx.ErrorMessage)
	}
}

func TestFromTransaction_Unbalanced(t *testing.T) {
	if _, err := FromTransaction("sig4", []string{"Program A success"}); err == nil {
		t.Error("expected error for unbalanced log")
	}
}
