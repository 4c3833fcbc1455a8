package domain

import "encoding/json"

// TransactionTrace is the parsed log of one transaction.
type TransactionTrace struct {
	Signature    string          // transaction signature (primary key)
	ProgramID    string          // program the trace was collected for, empty when ad hoc
	Slot         int64           // Solana slot number
	BlockTime    int64           // Unix timestamp in seconds, 0 when unknown
	Success      bool            // overall result resolved from the invocation tree
	ErrorCode    *string         // "<hex>|<decimal>" of the deepest failure (nullable)
	ErrorMessage *string         // message of the deepest failure (nullable)
	Instructions json.RawMessage // JSON encoded invocation tree
	LogMessages  []string        // raw log lines
}
