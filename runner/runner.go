package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/ghwhisper/agent"
	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/graph"
	"github.com/hupe1980/ghwhisper/logging"
	"github.com/hupe1980/ghwhisper/session"
)

var (
	// ErrEmptyThread is returned when no thread id is supplied.
	ErrEmptyThread = errors.New("runner: thread id is required")
	// ErrEmptyMessage is returned when the utterance is blank.
	ErrEmptyMessage = errors.New("runner: message is required")
)

// Pipeline runs one turn against a state. *agent.Pipeline implements it.
type Pipeline interface {
	Run(ctx context.Context, st *core.ConversationState, utterance string, optFns ...func(o *agent.TurnOptions)) (agent.Turn, error)
}

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Store persists thread state. Defaults to an in-memory store.
	Store session.Store
	// EventBufferSize sets channel buffering for streamed events.
	EventBufferSize int
	// StreamTokens streams model text fragments as they arrive. Otherwise
	// each completed assistant message is emitted as one event.
	StreamTokens bool
	Logger       logging.Logger
}

// Runner coordinates turn execution and persistence. Public methods are
// safe for concurrent use.
type Runner struct {
	pipeline Pipeline
	opts     Options

	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// New constructs a Runner with optional overrides.
func New(p Pipeline, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	return &Runner{pipeline: p, opts: opts, locks: map[string]*threadLock{}}
}

// Store returns the backing session store.
func (r *Runner) Store() session.Store { return r.opts.Store }

// State returns the persisted state of a thread.
func (r *Runner) State(ctx context.Context, threadID string) (*core.ConversationState, error) {
	return r.opts.Store.Load(ctx, threadID)
}

// SubmitTurn processes one utterance and returns the final state. On
// failure the partially advanced state is persisted and returned together
// with the error.
func (r *Runner) SubmitTurn(ctx context.Context, threadID, text string) (*core.ConversationState, error) {
	return r.runTurn(ctx, threadID, text, nil)
}

func (r *Runner) runTurn(ctx context.Context, threadID, text string, turnOpts []func(o *agent.TurnOptions)) (*core.ConversationState, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrEmptyThread
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	unlock := r.lock(threadID)
	defer unlock()

	st, err := session.LoadOrCreate(ctx, r.opts.Store, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	turn, runErr := r.pipeline.Run(ctx, st, text, turnOpts...)

	// Persist even when the turn was cancelled.
	saveErr := r.opts.Store.Save(context.WithoutCancel(ctx), st)
	if saveErr != nil {
		saveErr = fmt.Errorf("failed to save thread: %w", saveErr)
		r.opts.Logger.Error("runner.save.failed", "thread_id", threadID, "error", saveErr.Error())
	}

	r.opts.Logger.Debug("runner.turn.completed",
		"thread_id", threadID,
		"turn_id", turn.ID,
		"steps", turn.Steps,
		"iterations", turn.Iterations,
		"total_tokens", turn.Usage.TotalTokens,
	)
	return st, errors.Join(runErr, saveErr)
}

// lock serializes turns per thread.
func (r *Runner) lock(threadID string) func() {
	r.mu.Lock()
	l, ok := r.locks[threadID]
	if !ok {
		l = &threadLock{}
		r.locks[threadID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, threadID)
		}
		r.mu.Unlock()
	}
}

// EventType discriminates stream events.
type EventType string

const (
	// EventAssistant carries assistant text.
	EventAssistant EventType = "assistant"
	// EventEnd terminates a successful stream.
	EventEnd EventType = "end"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// StreamEvent is one element of a turn stream.
type StreamEvent struct {
	Type EventType
	Text string
	Err  error
}

// Stream runs a turn asynchronously. The channel yields assistant events
// followed by exactly one end or error event and is then closed. If ctx is
// cancelled the stream stops early without a terminal event once the
// consumer stops reading.
func (r *Runner) Stream(ctx context.Context, threadID, text string) <-chan StreamEvent {
	out := make(chan StreamEvent, r.opts.EventBufferSize)

	emit := func(ev StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var turnOpt func(o *agent.TurnOptions)
	if r.opts.StreamTokens {
		turnOpt = func(o *agent.TurnOptions) {
			o.OnPartial = func(s string) {
				if s != "" {
					emit(StreamEvent{Type: EventAssistant, Text: s})
				}
			}
		}
	} else {
		turnOpt = func(o *agent.TurnOptions) {
			o.Observer = func(s graph.Step) {
				if s.Node != agent.Agent {
					return
				}
				for _, m := range s.Update.Messages {
					if ai, ok := m.(core.AIMessage); ok {
						if text := strings.TrimSpace(ai.Text); text != "" {
							emit(StreamEvent{Type: EventAssistant, Text: text})
						}
					}
				}
			}
		}
	}

	go func() {
		defer close(out)
		_, err := r.runTurn(ctx, threadID, text, []func(o *agent.TurnOptions){turnOpt})
		if err != nil {
			r.opts.Logger.Warn("runner.stream.failed", "thread_id", threadID, "error", err.Error())
			emit(StreamEvent{Type: EventError, Text: err.Error(), Err: err})
			return
		}
		emit(StreamEvent{Type: EventEnd})
	}()

	return out
}
