package logparser

// TransactionLog is the parsed log of a whole transaction.
type TransactionLog struct {
	Signature    string            `json:"signature"`
	Instructions []*InstructionLog `json:"instructions"`
	RawMessages  []string          `json:"raw_messages"`
	Success      bool              `json:"success"`
	// ErrorCode and ErrorMessage come from the deepest failed invocation.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FromTransaction parses the log messages of one transaction and resolves its
// overall result.
func FromTransaction(signature string, messages []string) (*TransactionLog, error) {
	roots, err := Parse(messages)
	if err != nil {
		return nil, err
	}

	tx := &TransactionLog{
		Signature:    signature,
		Instructions: roots,
		RawMessages:  messages,
		Success:      true,
	}
	if failed := deepestFailure(roots); failed != nil {
		tx.Success = false
		tx.ErrorCode = failed.ErrorCode
		tx.ErrorMessage = failed.ErrorMessage
	}
	return tx, nil
}

// FailedInstruction returns the deepest failed invocation, or nil when the
// transaction succeeded.
func (t *TransactionLog) FailedInstruction() *InstructionLog {
	return deepestFailure(t.Instructions)
}

// deepestFailure walks siblings in order until one fails, then descends into that
// invocation's children. The last failure seen on the way down is returned.
func deepestFailure(nodes []*InstructionLog) *InstructionLog {
	var failed *InstructionLog
	for i := 0; i < len(nodes); {
		if nodes[i].Success {
			i++
			continue
		}
		failed = nodes[i]
		nodes, i = failed.Children, 0
	}
	return failed
}
