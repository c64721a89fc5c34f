package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer, level LogLevel) *WhisperLogger {
	cfg := DefaultLoggerConfig()
	cfg.Output = buf
	cfg.Level = level
	return NewLogger(cfg)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestWhisperLogger_ContextAndArgs(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelDebug).WithComponent("extract").WithThread("t1", "turn-1")

	l.Info("extract.attempt.invalid", "attempt", 2)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "extract.attempt.invalid", lines[0]["msg"])
	assert.Equal(t, "extract", lines[0]["component"])
	assert.Equal(t, "t1", lines[0]["thread_id"])
	assert.Equal(t, "turn-1", lines[0]["turn_id"])
	assert.Equal(t, float64(2), lines[0]["attempt"])
}

func TestWhisperLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelWarn)

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
}

func TestWhisperLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelInfo)

	l.LogToolCall("list_issues", time.Millisecond, false, errors.New("nope"))
	l.LogLLMCall("gpt-4.1-mini", 42, time.Millisecond, true, nil)
	l.LogTurn("t1", 3, time.Millisecond, true, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "tool.invoke.failed", lines[0]["msg"])
	assert.Equal(t, "nope", lines[0]["error"])
	assert.Equal(t, "model.call.completed", lines[1]["msg"])
	assert.Equal(t, float64(42), lines[1]["token_count"])
	assert.Equal(t, "pipeline.turn.completed", lines[2]["msg"])
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf, LogLevelInfo)
	derived := base.WithContext("model", "gpt-4.1-mini")
	derived.Info("x")
	base.Info("y")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "gpt-4.1-mini", lines[0]["model"])
	assert.NotContains(t, lines[1], "model")
}

func TestErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelInfo)
	l.ErrorWithStack(errors.New("kaboom"), "tool.invoke.panic", "tool", "boom")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kaboom", lines[0]["error"])
	assert.Equal(t, "boom", lines[0]["tool"])
	assert.Contains(t, lines[0]["stack_trace"], "TestErrorWithStack")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Info("nothing")
	l.Error("nothing", "k", "v")
}
