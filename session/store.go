package session

import (
	"context"
	"errors"

	"github.com/hupe1980/ghwhisper/core"
)

// ErrThreadNotFound is returned by Load for unknown thread ids.
var ErrThreadNotFound = errors.New("session: thread not found")

// Store loads and saves conversation state by thread id. Saves are
// last-write-wins; serializing turns on one thread is the caller's job.
type Store interface {
	Load(ctx context.Context, threadID string) (*core.ConversationState, error)
	Save(ctx context.Context, st *core.ConversationState) error
	Delete(ctx context.Context, threadID string) error
	Close() error
}

// LoadOrCreate returns the stored state for threadID or a fresh one when
// the thread is new.
func LoadOrCreate(ctx context.Context, s Store, threadID string) (*core.ConversationState, error) {
	st, err := s.Load(ctx, threadID)
	if errors.Is(err, ErrThreadNotFound) {
		return core.NewConversationState(threadID), nil
	}
	return st, err
}
