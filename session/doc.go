// Package session persists conversation state per thread.
//
// Store is the contract the runner depends on. InMemoryStore suits tests
// and single-process demos; BadgerStore keeps threads on disk across
// restarts. Both hand out clones so callers never share mutable state with
// the store.
package session
