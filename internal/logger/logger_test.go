package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{AppName: "usermap", Output: &buf})

	l.Debug("hidden")
	l.Info("account confirmed", "user_id", "u1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "account confirmed", entry["msg"])
	assert.Equal(t, "usermap", entry["app"])
	assert.Equal(t, "u1", entry["user_id"])
}

func TestNew_DevelopmentWritesTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Development: true, Output: &buf})

	l.Debug("visible", "k", "v")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "k=v")
}

func TestInit_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l := Init(Options{Output: &buf})

	assert.Same(t, l, Log)
	slog.Info("through default")
	assert.Contains(t, buf.String(), "through default")
}
