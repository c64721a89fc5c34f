// Package runner executes turns end to end: it loads the thread's state,
// drives the pipeline, persists the result and exposes both a blocking
// (SubmitTurn) and a streaming (Stream) entry point.
//
// State is saved after every turn, including failed ones, so messages and
// usage recorded by nodes that completed before a failure are kept. Turns
// addressed to the same thread are serialized by the runner.
package runner
