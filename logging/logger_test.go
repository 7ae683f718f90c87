package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*RouteMeshLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	return NewLogger(cfg), &buf
}

func TestRouteMeshLogger_ContextAttrs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	LogDecision(l.WithComponent("runner").WithSession("sess-1", "root").WithContext("tenant", "acme"),
		"billing", "support", true, "switch")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "routing decision", entry["msg"])
	assert.Equal(t, "runner", entry["component"])
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "root", entry["routing_level"])
	assert.Equal(t, "acme", entry["tenant"])
	assert.Equal(t, "support", entry["to_route"])
	assert.Equal(t, true, entry["changed"])
}

func TestRouteMeshLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)

	l.Info("dropped")
	l.Debug("dropped")
	assert.Zero(t, buf.Len())

	LogClassification(l, "mock", time.Millisecond, 0, nil)
	assert.Zero(t, buf.Len(), "successful classifications log at debug")

	LogClassification(l, "mock", time.Millisecond, 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "classification failed")
}

func TestRouteMeshLogger_WithDoesNotMutateParent(t *testing.T) {
	parent, buf := newBufferLogger(LogLevelInfo)
	_ = parent.WithContext("k", "v")

	parent.Info("hello")
	assert.NotContains(t, buf.String(), `"k"`)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug": LogLevelDebug, "INFO": LogLevelInfo, "": LogLevelInfo,
		"warning": LogLevelWarn, "error": LogLevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestWith_AppendsFields(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)

	With(l, "session_id", "s1").Info("turn routed", "rule", "switch")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "s1", entry["session_id"])
	assert.Equal(t, "switch", entry["rule"])
}

func TestStartTimer_ReturnsElapsed(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)

	stop := StartTimer(With(l, "session_id", "s1"), "route")
	time.Sleep(2 * time.Millisecond)
	d := stop()

	assert.GreaterOrEqual(t, d, 2*time.Millisecond)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "operation completed", entry["msg"])
	assert.Equal(t, "route", entry["operation"])
	assert.Equal(t, "s1", entry["session_id"])
}
