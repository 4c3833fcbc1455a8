package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: slog.LevelWarn, Writer: &buf, NoColor: true})

	l.Info("hidden")
	l.Warn("shown", "slot", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "slot=42")
}

func TestNew_NoColor(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Writer: &buf, NoColor: true}).Info("plain")

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestInit_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Init(Options{Writer: &buf, NoColor: true})
	slog.Info("via default")

	assert.Contains(t, buf.String(), "via default")
}
