package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics("test", reg), reg
}

func TestMetrics_ObserveRPC(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveRPC("getTransaction", 20*time.Millisecond, nil)
	m.ObserveRPC("getTransaction", 30*time.Millisecond, errors.New("boom"))

	if got := testutil.CollectAndCount(m.RPCCallLatency); got != 1 {
		t.Errorf("expected 1 latency series, got %d", got)
	}
	if got := testutil.ToFloat64(m.RPCCallErrors.WithLabelValues("getTransaction")); got != 1 {
		t.Errorf("rpc errors: got %v, want 1", got)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordEventDecoded("NewTransmission")
	m.RecordEventDecoded("NewTransmission")
	m.RecordDecodeError("event")
	m.RecordTransactionParsed(true)
	m.RecordTransactionParsed(false)
	m.RecordTransactionParsed(false)
	m.RecordParseError()
	m.RecordDispatched("NewTransmission")
	m.RecordPublished("nats", nil)
	m.RecordPublished("nats", errors.New("down"))
	m.RecordNotificationSkipped("failed")
	m.SetActiveListeners(3)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"decoded", m.EventsDecoded.WithLabelValues("NewTransmission"), 2},
		{"decode errors", m.DecodeErrors.WithLabelValues("event"), 1},
		{"parsed success", m.TransactionsParsed.WithLabelValues("success"), 1},
		{"parsed failed", m.TransactionsParsed.WithLabelValues("failed"), 2},
		{"parse errors", m.ParseErrors, 1},
		{"dispatched", m.EventsDispatched.WithLabelValues("NewTransmission"), 1},
		{"published ok", m.EventsPublished.WithLabelValues("nats", "ok"), 1},
		{"published error", m.EventsPublished.WithLabelValues("nats", "error"), 1},
		{"skipped", m.NotificationsSkipped.WithLabelValues("failed"), 1},
		{"listeners", m.ActiveListeners, 3},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMetrics_HighestSlot(t *testing.T) {
	m, _ := newTestMetrics(t)

	for _, slot := range []uint64{10, 30, 20} {
		m.RecordNotification(slot)
	}

	if got := testutil.ToFloat64(m.HighestSlotSeen); got != 30 {
		t.Errorf("highest slot: got %v, want 30", got)
	}
	if got := testutil.ToFloat64(m.NotificationsReceived); got != 3 {
		t.Errorf("notifications: got %v, want 3", got)
	}
}

func TestMetrics_Backfill(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordBackfilled(42)
	m.ObserveDB("postgres", "insert_trace", time.Now(), errors.New("dup"))

	if got := testutil.ToFloat64(m.LastProcessedSlot); got != 42 {
		t.Errorf("last processed slot: got %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert_trace")); got != 1 {
		t.Errorf("db errors: got %v, want 1", got)
	}
	if testutil.ToFloat64(m.LastSuccessfulIngestion) == 0 {
		t.Error("last successful ingestion not set")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	// None of these may panic
	m.ObserveRPC("getAccountInfo", time.Second, nil)
	m.ObserveDB("postgres", "insert", time.Now(), nil)
	m.RecordEventDecoded("x")
	m.RecordDecodeError("x")
	m.RecordTransactionParsed(true)
	m.RecordParseError()
	m.RecordNotification(1)
	m.RecordNotificationSkipped("x")
	m.RecordDispatched("x")
	m.SetActiveListeners(1)
	m.RecordPublished("x", nil)
	m.RecordBackfilled(1)
}

func TestHandler(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordEventDecoded("Deposited")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_decode_events_total{event="Deposited"} 1`) {
		t.Errorf("metrics output missing decoded counter:\n%s", rec.Body.String())
	}
}
