package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/idhash"
	"solana-idl-kit/internal/observability"
	"solana-idl-kit/internal/solana"
	"solana-idl-kit/internal/solana/stub"
	"solana-idl-kit/internal/storage/memory"
)

type received struct {
	round     uint32
	slot      uint64
	signature string
}

type recorder struct {
	mu  sync.Mutex
	got []received
}

func (r *recorder) callback(data borsh.Value, slot uint64, signature string) {
	v, _ := data.(borsh.Struct).Get("roundId")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, received{round: uint32(v.(borsh.U32)), slot: slot, signature: signature})
}

func (r *recorder) all() []received {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]received(nil), r.got...)
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	bodies   [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.bodies = append(p.bodies, data)
	return nil
}

func notification(t *testing.T, l *Listener, sig string, rounds ...uint32) solana.LogNotification {
	t.Helper()
	c := l.parser.coder
	logs := []string{invoke(testProgramID.String(), "1")}
	for _, r := range rounds {
		logs = append(logs, dataLine(t, c, r))
	}
	logs = append(logs, success(testProgramID.String()))
	return solana.LogNotification{Signature: sig, Slot: 55, Logs: logs}
}

func TestListener_SharedSubscription(t *testing.T) {
	ws := stub.NewWSClient()
	l := NewListener(ws, NewParser(testProgramID, newTestCoder(t)))
	ctx := context.Background()

	var a, b recorder
	idA, err := l.AddEventListener(ctx, "NewTransmission", a.callback)
	require.NoError(t, err)
	idB, err := l.AddEventListener(ctx, "NewTransmission", b.callback)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)

	assert.Equal(t, 1, ws.Subscriptions())
	filters := ws.Filters()
	require.Len(t, filters, 1)
	assert.Equal(t, []string{testProgramID.String()}, filters[0].Mentions)

	ws.Push(notification(t, l, "sig1", 1, 2))

	require.Eventually(t, func() bool { return len(b.all()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []received{{1, 55, "sig1"}, {2, 55, "sig1"}}, a.all())

	require.NoError(t, l.RemoveEventListener(ctx, idA))
	assert.Equal(t, 1, ws.Subscriptions(), "subscription kept while listeners remain")

	require.NoError(t, l.RemoveEventListener(ctx, idB))
	assert.Equal(t, 0, ws.Subscriptions(), "last removal closes the subscription")

	// Unknown ids are ignored
	assert.NoError(t, l.RemoveEventListener(ctx, 999))
	require.NoError(t, l.Close(ctx))
}

func TestListener_SubscribeError(t *testing.T) {
	ws := stub.NewWSClient()
	ws.Err = errors.New("refused")
	l := NewListener(ws, NewParser(testProgramID, newTestCoder(t)))

	_, err := l.AddEventListener(context.Background(), "NewTransmission", func(borsh.Value, uint64, string) {})
	assert.ErrorContains(t, err, "refused")
}

func TestListener_HandleNotification(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	pub := &fakePublisher{}
	store := memory.NewEventStore()

	l := NewListener(stub.NewWSClient(), NewParser(testProgramID, newTestCoder(t)),
		WithMetrics(metrics),
		WithSink(NewNATSSink(pub, "feeds")),
		WithSink(NewStoreSink(store)),
	)
	ctx := context.Background()

	var rec recorder
	_, err := l.AddEventListener(ctx, "NewTransmission", rec.callback)
	require.NoError(t, err)
	var other recorder
	_, err = l.AddEventListener(ctx, "SomethingElse", other.callback)
	require.NoError(t, err)

	failed := notification(t, l, "failedSig", 9)
	failed.Err = map[string]any{"InstructionError": []any{0, "Custom"}}
	l.HandleNotification(ctx, failed)
	l.HandleNotification(ctx, notification(t, l, "sig1", 3, 4))

	assert.Equal(t, []received{{3, 55, "sig1"}, {4, 55, "sig1"}}, rec.all())
	assert.Empty(t, other.all())

	// NATS sink
	require.Len(t, pub.subjects, 2)
	assert.Equal(t, "feeds.NewTransmission", pub.subjects[0])
	var msg Message
	require.NoError(t, json.Unmarshal(pub.bodies[1], &msg))
	assert.Equal(t, "sig1", msg.Signature)
	assert.Equal(t, 1, msg.Index)
	assert.Equal(t, uint64(55), msg.Slot)
	data := msg.Data.(map[string]any)
	assert.Equal(t, "-5", data["answer"])
	assert.Equal(t, testFeed.String(), data["feed"])

	// Store sink
	stored, err := store.GetByTxSignature(ctx, "sig1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, idhash.ComputeEventID("sig1", testProgramID.String(), 0), stored[0].EventID)
	assert.JSONEq(t, `{"feed":"`+testFeed.String()+`","roundId":3,"timestamp":1700000000,"answer":"-5"}`, string(stored[0].Data))

	// Metrics
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.NotificationsReceived))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.NotificationsSkipped.WithLabelValues("failed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EventsDecoded.WithLabelValues("NewTransmission")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EventsPublished.WithLabelValues("store", "ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ActiveListeners))

	// Redelivery is harmless for the store sink
	l.HandleNotification(ctx, notification(t, l, "sig1", 3, 4))
	stored, err = store.GetByTxSignature(ctx, "sig1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	require.NoError(t, l.Close(ctx))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ActiveListeners))
}

func TestListener_SinkErrorDoesNotStopDispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	pub := &fakePublisher{err: errors.New("nats down")}

	l := NewListener(stub.NewWSClient(), NewParser(testProgramID, newTestCoder(t)),
		WithMetrics(metrics),
		WithSink(NewNATSSink(pub, "")),
	)
	ctx := context.Background()

	var rec recorder
	_, err := l.AddEventListener(ctx, "NewTransmission", rec.callback)
	require.NoError(t, err)

	l.HandleNotification(ctx, notification(t, l, "sig1", 1, 2))

	assert.Len(t, rec.all(), 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EventsPublished.WithLabelValues("nats", "error")))
	require.NoError(t, l.Close(ctx))
}

func TestNATSSink_Subject(t *testing.T) {
	assert.Equal(t, "NewTransmission", NewNATSSink(nil, "").Subject("NewTransmission"))
	assert.Equal(t, "solana.events.NewTransmission", NewNATSSink(nil, "solana.events").Subject("NewTransmission"))
}
