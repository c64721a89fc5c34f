package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hupe1980/ghwhisper/agent"
	"github.com/hupe1980/ghwhisper/internal/testutil"
	"github.com/hupe1980/ghwhisper/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStreamer struct {
	events   []runner.StreamEvent
	threadID string
	text     string
}

func (s *stubStreamer) Stream(_ context.Context, threadID, text string) <-chan runner.StreamEvent {
	s.threadID, s.text = threadID, text
	ch := make(chan runner.StreamEvent, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&stubStreamer{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChatValidation(t *testing.T) {
	h := New(&stubStreamer{}).Handler()

	rec := post(t, h, `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "threadId is required")

	rec = post(t, h, `{"threadId":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message is required")

	rec = post(t, h, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreamsEvents(t *testing.T) {
	st := &stubStreamer{events: []runner.StreamEvent{
		{Type: runner.EventAssistant, Text: "Hello"},
		{Type: runner.EventEnd},
	}}
	rec := post(t, New(st).Handler(), `{"threadId":"t1","message":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: assistant\ndata: {\"message\":\"Hello\"}\n\nevent: end\ndata: {}\n\n", rec.Body.String())
	assert.Equal(t, "t1", st.threadID)
	assert.Equal(t, "hi", st.text)
}

func TestChatStreamsError(t *testing.T) {
	st := &stubStreamer{events: []runner.StreamEvent{
		{Type: runner.EventError, Text: "upstream down", Err: errors.New("upstream down")},
	}}
	rec := post(t, New(st).Handler(), `{"threadId":"t1","message":"hi"}`)
	assert.Equal(t, "event: error\ndata: {\"error\":\"upstream down\"}\n\n", rec.Body.String())
}

func TestPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	New(&stubStreamer{}).Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestChatEndToEnd(t *testing.T) {
	m := testutil.NewScriptedModel(testutil.Reply("Hi there.", 1, 1))
	r := runner.New(agent.New(m, nil))
	srv := httptest.NewServer(New(r).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"threadId":"t1","message":"hello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "event: assistant\ndata: {\"message\":\"Hi there.\"}\n\nevent: end\ndata: {}\n\n", string(body))
}
