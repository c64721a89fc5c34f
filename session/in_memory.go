package session

import (
	"context"
	"sync"

	"github.com/hupe1980/ghwhisper/core"
)

// InMemoryStore is a volatile Store keeping states in a process local map.
// It is safe for concurrent access. Loaded and saved states are cloned to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.ConversationState
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.ConversationState)}
}

// Load returns a clone of the stored state.
func (s *InMemoryStore) Load(_ context.Context, threadID string) (*core.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	return st.Clone(), nil
}

// Save stores a clone of st.
func (s *InMemoryStore) Save(_ context.Context, st *core.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[st.ThreadID] = st.Clone()
	return nil
}

// Delete removes a thread. Unknown ids are ignored.
func (s *InMemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Threads returns the number of stored threads.
func (s *InMemoryStore) Threads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

// Close implements Store.
func (s *InMemoryStore) Close() error { return nil }
