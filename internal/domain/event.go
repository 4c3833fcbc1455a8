package domain

import "encoding/json"

// DecodedEvent is a program event decoded from transaction logs.
type DecodedEvent struct {
	EventID     string          // deterministic ID: hash(tx_signature, program_id, event_index)
	ProgramID   string          // emitting program
	Name        string          // event name from the IDL
	TxSignature string          // transaction signature
	EventIndex  int             // index among the program's events in the transaction
	Slot        int64           // Solana slot number
	Data        json.RawMessage // event fields rendered as JSON
}
