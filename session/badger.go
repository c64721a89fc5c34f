package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/logging"
)

const keyPrefix = "thread:"

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Dir holds the database files. Required unless InMemory is set.
	Dir string
	// InMemory runs badger without disk persistence.
	InMemory bool
	Logger   logging.Logger
}

// BadgerStore persists states as JSON values keyed by thread id.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a store.
func NewBadgerStore(optFns ...func(o *BadgerOptions)) (*BadgerStore, error) {
	opts := BadgerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("session: badger dir is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{opts.Logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func threadKey(threadID string) []byte { return []byte(keyPrefix + threadID) }

// Load implements Store.
func (s *BadgerStore) Load(_ context.Context, threadID string) (*core.ConversationState, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(threadKey(threadID))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}

	var st core.ConversationState
	if err := json.Unmarshal(val, &st); err != nil {
		return nil, fmt.Errorf("decode thread %s: %w", threadID, err)
	}
	if st.Context == nil {
		st.Context = map[core.ContextKey]string{}
	}
	return &st, nil
}

// Save implements Store.
func (s *BadgerStore) Save(_ context.Context, st *core.ConversationState) error {
	val, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode thread %s: %w", st.ThreadID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(threadKey(st.ThreadID), val)
	})
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, threadID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(threadKey(threadID))
	})
}

// ThreadIDs lists stored thread ids in key order.
func (s *BadgerStore) ThreadIDs(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	return ids, err
}

// Close implements Store.
func (s *BadgerStore) Close() error { return s.db.Close() }

// badgerLogger forwards badger warnings and errors, dropping its chatty
// info and debug output.
type badgerLogger struct{ l logging.Logger }

func (b badgerLogger) Errorf(f string, v ...any) {
	b.l.Error("session.badger", "msg", fmt.Sprintf(f, v...))
}
func (b badgerLogger) Warningf(f string, v ...any) {
	b.l.Warn("session.badger", "msg", fmt.Sprintf(f, v...))
}
func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
