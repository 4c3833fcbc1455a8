package stub

import (
	"context"
	"errors"
	"sync"

	"solana-idl-kit/internal/solana"
)

// WSClient implements solana.WSClient for testing. Notifications are injected
// with Push.
type WSClient struct {
	mu      sync.Mutex
	subs    map[*solana.LogSubscription]chan solana.LogNotification
	filters []solana.LogsFilter
	closed  bool

	// Err, when set, is returned by SubscribeLogs.
	Err error
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{subs: make(map[*solana.LogSubscription]chan solana.LogNotification)}
}

// SubscribeLogs opens a buffered subscription.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (*solana.LogSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if c.closed {
		return nil, errors.New("client closed")
	}
	ch := make(chan solana.LogNotification, 16)
	sub := &solana.LogSubscription{C: ch}
	c.subs[sub] = ch
	c.filters = append(c.filters, filter)
	return sub, nil
}

// Unsubscribe closes the subscription channel.
func (c *WSClient) Unsubscribe(_ context.Context, sub *solana.LogSubscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.subs[sub]; ok {
		delete(c.subs, sub)
		close(ch)
	}
	return nil
}

// Close closes every subscription.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sub, ch := range c.subs {
		delete(c.subs, sub)
		close(ch)
	}
	c.closed = true
	return nil
}

// Push delivers n to every open subscription.
func (c *WSClient) Push(n solana.LogNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		ch <- n
	}
}

// Subscriptions returns the number of open subscriptions.
func (c *WSClient) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Filters returns the filters of every SubscribeLogs call.
func (c *WSClient) Filters() []solana.LogsFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]solana.LogsFilter(nil), c.filters...)
}
