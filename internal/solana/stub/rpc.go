package stub

import (
	"context"
	"sync"

	"solana-idl-kit/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.RWMutex
	Accounts     map[solana.PublicKey]*solana.AccountInfo
	Transactions map[string]*solana.Transaction
	Signatures   map[solana.PublicKey][]solana.SignatureInfo

	// Err, when set, is returned by every call.
	Err error
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:     make(map[solana.PublicKey]*solana.AccountInfo),
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[solana.PublicKey][]solana.SignatureInfo),
	}
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, account solana.PublicKey) (*solana.AccountInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Accounts[account], nil
}

// GetTransaction returns the stored transaction or nil.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Transactions[signature], nil
}

// GetSignaturesForAddress pages through the stored signatures, which are kept
// newest first like the real endpoint. Before and Until are exclusive.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address solana.PublicKey, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Err != nil {
		return nil, c.Err
	}

	sigs := c.Signatures[address]
	if opts == nil {
		return sigs, nil
	}

	start := 0
	if opts.Before != "" {
		start = len(sigs)
		for i, s := range sigs {
			if s.Signature == opts.Before {
				start = i + 1
				break
			}
		}
	}

	var out []solana.SignatureInfo
	for _, s := range sigs[start:] {
		if s.Signature == opts.Until {
			break
		}
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
		out = append(out, s)
	}
	return out, nil
}

// AddAccount stores raw account data owned by owner.
func (c *RPCClient) AddAccount(account, owner solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[account] = &solana.AccountInfo{Owner: owner, Data: data, Lamports: 1}
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address solana.PublicKey, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}
