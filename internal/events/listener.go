package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/observability"
	"solana-idl-kit/internal/solana"
)

// Callback receives the decoded fields of an event together with the slot and
// signature of the transaction that emitted it.
type Callback func(data borsh.Value, slot uint64, signature string)

// Event is a decoded event with its transaction context, as handed to sinks.
type Event struct {
	ProgramID string
	Name      string
	Data      borsh.Value
	Slot      uint64
	Signature string
	Index     int // position among the program's events in the transaction
}

// Sink consumes every decoded event regardless of registered listeners.
type Sink interface {
	Name() string
	Handle(ctx context.Context, e *Event) error
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger }
}

// WithMetrics records dispatch metrics.
func WithMetrics(m *observability.Metrics) ListenerOption {
	return func(l *Listener) { l.metrics = m }
}

// WithSink adds a sink receiving every decoded event.
func WithSink(s Sink) ListenerOption {
	return func(l *Listener) { l.sinks = append(l.sinks, s) }
}

// WithCommitment sets the commitment of the logs subscription.
func WithCommitment(commitment string) ListenerOption {
	return func(l *Listener) { l.commitment = commitment }
}

type registration struct {
	name     string
	callback Callback
}

// Listener dispatches a program's events from a logs subscription to registered
// callbacks. All listeners share one subscription, created with the first
// listener and cancelled when the last one is removed.
type Listener struct {
	ws         solana.WSClient
	parser     *Parser
	logger     *slog.Logger
	metrics    *observability.Metrics
	sinks      []Sink
	commitment string

	mu        sync.Mutex
	nextID    int
	callbacks map[int]registration
	byName    map[string][]int
	sub       *solana.LogSubscription
	wg        sync.WaitGroup
}

// NewListener creates a listener for the program parsed by parser.
func NewListener(ws solana.WSClient, parser *Parser, opts ...ListenerOption) *Listener {
	l := &Listener{
		ws:        ws,
		parser:    parser,
		logger:    slog.Default(),
		callbacks: make(map[int]registration),
		byName:    make(map[string][]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// AddEventListener registers callback for events called name and returns its id.
// The first registration opens the logs subscription.
func (l *Listener) AddEventListener(ctx context.Context, name string, callback Callback) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sub == nil {
		sub, err := l.ws.SubscribeLogs(ctx, solana.LogsFilter{
			Mentions:   []string{l.parser.ProgramID()},
			Commitment: l.commitment,
		})
		if err != nil {
			return 0, fmt.Errorf("subscribe to %s logs: %w", l.parser.ProgramID(), err)
		}
		l.sub = sub
		l.wg.Add(1)
		go l.consume(sub)
		l.logger.Info("logs subscription opened", "program", l.parser.ProgramID())
	}

	id := l.nextID
	l.nextID++
	l.callbacks[id] = registration{name: name, callback: callback}
	l.byName[name] = append(l.byName[name], id)
	l.metrics.SetActiveListeners(len(l.callbacks))

	return id, nil
}

// RemoveEventListener unregisters a callback. Removing the last callback closes
// the logs subscription. Unknown ids are ignored.
func (l *Listener) RemoveEventListener(ctx context.Context, id int) error {
	l.mu.Lock()
	reg, ok := l.callbacks[id]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	delete(l.callbacks, id)
	ids := l.byName[reg.name]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(l.byName, reg.name)
	} else {
		l.byName[reg.name] = ids
	}
	l.metrics.SetActiveListeners(len(l.callbacks))

	var sub *solana.LogSubscription
	if len(l.callbacks) == 0 {
		sub, l.sub = l.sub, nil
	}
	l.mu.Unlock()

	if sub == nil {
		return nil
	}
	l.logger.Info("logs subscription closed", "program", l.parser.ProgramID())
	return l.ws.Unsubscribe(ctx, sub)
}

// Close unregisters every callback, closes the subscription and waits for
// in-flight notifications to be dispatched.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	clear(l.callbacks)
	clear(l.byName)
	l.metrics.SetActiveListeners(0)
	l.mu.Unlock()

	var err error
	if sub != nil {
		err = l.ws.Unsubscribe(ctx, sub)
	}
	l.wg.Wait()
	return err
}

func (l *Listener) consume(sub *solana.LogSubscription) {
	defer l.wg.Done()
	for n := range sub.C {
		l.HandleNotification(context.Background(), n)
	}
}

// HandleNotification dispatches the events of one logs notification. Failed
// transactions are skipped.
func (l *Listener) HandleNotification(ctx context.Context, n solana.LogNotification) {
	l.metrics.RecordNotification(n.Slot)
	if n.Err != nil {
		l.metrics.RecordNotificationSkipped("failed")
		return
	}

	index := 0
	for decoded, err := range l.parser.Events(n.Logs) {
		if err != nil {
			l.metrics.RecordDecodeError("event")
			l.logger.Warn("decode event", "signature", n.Signature, "error", err)
			continue
		}
		l.metrics.RecordEventDecoded(decoded.Name)

		for _, cb := range l.callbacksFor(decoded.Name) {
			cb(decoded.Data, n.Slot, n.Signature)
			l.metrics.RecordDispatched(decoded.Name)
		}

		e := &Event{
			ProgramID: l.parser.ProgramID(),
			Name:      decoded.Name,
			Data:      decoded.Data,
			Slot:      n.Slot,
			Signature: n.Signature,
			Index:     index,
		}
		index++
		for _, s := range l.sinks {
			err := s.Handle(ctx, e)
			l.metrics.RecordPublished(s.Name(), err)
			if err != nil {
				l.logger.Error("sink failed", "sink", s.Name(), "event", e.Name, "signature", e.Signature, "error", err)
			}
		}
	}
}

// callbacksFor snapshots the callbacks of an event in registration order.
func (l *Listener) callbacksFor(name string) []Callback {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.byName[name]
	out := make([]Callback, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.callbacks[id].callback)
	}
	return out
}
