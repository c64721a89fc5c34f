// Package server exposes the assistant over HTTP: a health check and a chat
// endpoint that streams the turn as Server-Sent Events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/ghwhisper/logging"
	"github.com/hupe1980/ghwhisper/runner"
)

// Streamer runs a turn as an event stream. *runner.Runner implements it.
type Streamer interface {
	Stream(ctx context.Context, threadID, text string) <-chan runner.StreamEvent
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

// Options configures a Server.
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	Logger            logging.Logger
}

// Server serves the HTTP API.
type Server struct {
	streamer Streamer
	opts     Options
	http     *http.Server
}

// New creates a server in front of streamer.
func New(streamer Streamer, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:              ":3000",
		ReadHeaderTimeout: 10 * time.Second,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Server{streamer: streamer, opts: opts}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	return cors(mux)
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.opts.Logger.Info("server.listen", "addr", s.opts.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight streams.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.ThreadID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "threadId is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "message is required"})
		return
	}

	sse := newSSEWriter(w)
	if sse == nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s.opts.Logger.Debug("server.chat.start", "thread_id", req.ThreadID)
	for ev := range s.streamer.Stream(r.Context(), req.ThreadID, req.Message) {
		var err error
		switch ev.Type {
		case runner.EventAssistant:
			err = sse.send(string(ev.Type), map[string]string{"message": ev.Text})
		case runner.EventEnd:
			err = sse.send(string(ev.Type), struct{}{})
		case runner.EventError:
			err = sse.send(string(ev.Type), map[string]string{"error": ev.Text})
		}
		if err != nil {
			// Client went away; the stream stops once the request context ends.
			s.opts.Logger.Debug("server.chat.write_failed", "thread_id", req.ThreadID, "error", err.Error())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cors allows any origin, method and header.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			h.Set("Access-Control-Allow-Headers", "*")
		}
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
