package solana

import "context"

// RPCClient defines the JSON-RPC calls this toolkit needs.
type RPCClient interface {
	// GetAccountInfo retrieves raw account data. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, account PublicKey) (*AccountInfo, error)

	// GetTransaction retrieves a confirmed transaction. Returns nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress lists recent signatures involving an address, newest first.
	GetSignaturesForAddress(ctx context.Context, address PublicKey, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// AccountInfo is an account's state with its data already base64-decoded.
type AccountInfo struct {
	Lamports   uint64
	Owner      PublicKey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// Transaction represents a confirmed transaction.
type Transaction struct {
	Slot      uint64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         any
	LogMessages []string
}

// Failed reports whether the transaction carries an execution error.
func (t *Transaction) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime *int64
	Err       any
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}
