package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"solana-idl-kit/internal/borsh"
)

// Publisher publishes raw messages. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Message is the JSON body published for every event.
type Message struct {
	Program   string `json:"program"`
	Event     string `json:"event"`
	Slot      uint64 `json:"slot"`
	Signature string `json:"signature"`
	Index     int    `json:"index"`
	Data      any    `json:"data"`
}

// NATSSink publishes events as JSON on "<prefix>.<event name>".
type NATSSink struct {
	pub    Publisher
	prefix string
}

// NewNATSSink creates a sink publishing through pub.
func NewNATSSink(pub Publisher, subjectPrefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: subjectPrefix}
}

// Name identifies the sink in logs and metrics.
func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject events called name are published on.
func (s *NATSSink) Subject(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "." + name
}

// Handle publishes one event.
func (s *NATSSink) Handle(_ context.Context, e *Event) error {
	data, err := json.Marshal(Message{
		Program:   e.ProgramID,
		Event:     e.Name,
		Slot:      e.Slot,
		Signature: e.Signature,
		Index:     e.Index,
		Data:      borsh.Native(e.Data),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Name, err)
	}
	if err := s.pub.Publish(s.Subject(e.Name), data); err != nil {
		return fmt.Errorf("publish event %s: %w", e.Name, err)
	}
	return nil
}

// ConnectNATS connects to url, retrying reconnects forever and logging
// connection state changes.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
