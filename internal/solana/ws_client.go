package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by calls made after Close.
var ErrClientClosed = errors.New("client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// RequestTimeout bounds the wait for a subscribe or unsubscribe reply.
	RequestTimeout time.Duration
	// BufferSize is the capacity of each subscription channel.
	BufferSize int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		RequestTimeout:    30 * time.Second,
		BufferSize:        1024,
	}
}

// wsSub is the client side state of one subscription. serverID changes on resubscribe.
type wsSub struct {
	filter   LogsFilter
	ch       chan LogNotification
	serverID int64
}

type wsReply struct {
	result json.RawMessage
	err    error
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *slog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	closed       atomic.Bool
	reconnecting atomic.Bool
	requestID    atomic.Uint64
	localID      atomic.Uint64

	mu       sync.RWMutex
	subs     map[uint64]*wsSub
	byServer map[int64]uint64
	pending  map[uint64]chan wsReply

	done chan struct{}
	wg   sync.WaitGroup
}

var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultWSConfig().BufferSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultWSConfig().RequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.With("component", "ws"),
		subs:     make(map[uint64]*wsSub),
		byServer: make(map[int64]uint64),
		pending:  make(map[uint64]chan wsReply),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeLogs subscribes to transaction logs matching the filter.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (*LogSubscription, error) {
	serverID, err := c.subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	sub := &wsSub{
		filter:   filter,
		ch:       make(chan LogNotification, c.config.BufferSize),
		serverID: serverID,
	}
	id := c.localID.Add(1)

	c.mu.Lock()
	c.subs[id] = sub
	c.byServer[serverID] = id
	c.mu.Unlock()

	return &LogSubscription{id: id, C: sub.ch}, nil
}

// Unsubscribe cancels a subscription and closes its channel.
func (c *WSClientImpl) Unsubscribe(ctx context.Context, s *LogSubscription) error {
	c.mu.Lock()
	sub, ok := c.subs[s.id]
	if ok {
		delete(c.subs, s.id)
		delete(c.byServer, sub.serverID)
		close(sub.ch)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if _, err := c.request(ctx, "logsUnsubscribe", []any{sub.serverID}); err != nil {
		return fmt.Errorf("logs unsubscribe %d: %w", sub.serverID, err)
	}
	return nil
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	clear(c.byServer)
	clear(c.pending)
	c.mu.Unlock()

	return nil
}

func (c *WSClientImpl) subscribe(ctx context.Context, filter LogsFilter) (int64, error) {
	mentions := map[string]any{"all": nil}
	if len(filter.Mentions) > 0 {
		mentions = map[string]any{"mentions": filter.Mentions}
	}
	commitment := filter.Commitment
	if commitment == "" {
		commitment = DefaultCommitment
	}

	raw, err := c.request(ctx, "logsSubscribe", []any{mentions, map[string]string{"commitment": commitment}})
	if err != nil {
		return 0, fmt.Errorf("logs subscribe: %w", err)
	}

	var serverID int64
	if err := json.Unmarshal(raw, &serverID); err != nil {
		return 0, fmt.Errorf("logs subscribe: bad subscription id %s: %w", raw, err)
	}
	return serverID, nil
}

// request sends a JSON-RPC request and waits for its reply.
func (c *WSClientImpl) request(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	reqID := c.requestID.Add(1)
	replyCh := make(chan wsReply, 1)

	c.mu.Lock()
	c.pending[reqID] = replyCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		return nil, fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.result, reply.err
	case <-timer.C:
		return nil, fmt.Errorf("%s timeout after %s", method, c.config.RequestTimeout)
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			c.scheduleReconnect(&reconnectDelay, nil)
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.connMu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			c.scheduleReconnect(&reconnectDelay, err)
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// scheduleReconnect starts a reconnect unless one is running and doubles the delay.
func (c *WSClientImpl) scheduleReconnect(delay *time.Duration, cause error) {
	if c.reconnecting.Swap(true) {
		return
	}
	if cause != nil {
		c.logger.Warn("websocket read failed, reconnecting", "error", cause, "delay", *delay)
	}
	go c.reconnect(*delay)

	*delay *= 2
	if *delay > c.config.MaxReconnectDelay {
		*delay = c.config.MaxReconnectDelay
	}
}

// sleep waits for d and reports false if the client was closed meanwhile.
func (c *WSClientImpl) sleep(d time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(d):
		return true
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if !c.sleep(delay) {
		return
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn("websocket reconnect failed", "error", err)
		return
	}
	if c.closed.Load() {
		c.connMu.Lock()
		c.conn.Close()
		c.connMu.Unlock()
		return
	}

	// Resubscribe from a separate goroutine: replies arrive through readLoop.
	go c.resubscribeAll()
}

// resubscribeAll re-issues every active subscription after reconnect.
func (c *WSClientImpl) resubscribeAll() {
	c.mu.RLock()
	ids := make([]uint64, 0, len(c.subs))
	filters := make(map[uint64]LogsFilter, len(c.subs))
	for id, sub := range c.subs {
		ids = append(ids, id)
		filters[id] = sub.filter
	}
	c.mu.RUnlock()

	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.RequestTimeout)
		serverID, err := c.subscribe(ctx, filters[id])
		cancel()
		if err != nil {
			c.logger.Warn("resubscribe failed", "subscription", id, "error", err)
			continue
		}

		c.mu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.byServer, sub.serverID)
			sub.serverID = serverID
			c.byServer[serverID] = id
		}
		c.mu.Unlock()
	}
}

// handleMessage routes replies to pending requests and notifications to subscribers.
func (c *WSClientImpl) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("dropping malformed message", "error", err)
		return
	}

	if msg.Method == "logsNotification" && msg.Params != nil {
		c.handleLogsNotification(msg.Params)
		return
	}

	if msg.ID == 0 {
		return
	}

	c.mu.RLock()
	ch, ok := c.pending[msg.ID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	reply := wsReply{result: msg.Result}
	if msg.Error != nil {
		reply.err = msg.Error
	}
	select {
	case ch <- reply:
	default:
	}
}

// handleLogsNotification dispatches log notification to subscriber.
func (c *WSClientImpl) handleLogsNotification(params *wsNotificationParams) {
	value := params.Result.Value
	notif := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if params.Result.Context != nil {
		notif.Slot = params.Result.Context.Slot
	}

	// Hold the read lock while sending so Unsubscribe cannot close the channel underneath.
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byServer[params.Subscription]
	if !ok {
		return
	}
	sub := c.subs[id]

	select {
	case sub.ch <- notif:
	case <-c.done:
	default:
		c.logger.Warn("subscription buffer full, dropping notification",
			"subscription", id, "signature", notif.Signature)
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.logger.Debug("ping failed", "error", err)
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// wsMessage covers replies ({id, result|error}) and notifications ({method, params}).
type wsMessage struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *RPCError             `json:"error,omitempty"`
	Method  string                `json:"method,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string   `json:"signature"`
	Logs      []string `json:"logs"`
	Err       any      `json:"err"`
}
