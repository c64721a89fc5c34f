// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the pipeline, tools and servers use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - WhisperLogger with thread/turn context and domain helpers
//   - NoOpLogger for silent operation (tests, library use)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.ParseLevel("debug"), "text", false)
//	logger.WithComponent("runner").WithThread("t-1", turnID).Info("pipeline.turn.start")
//
// Event names are dotted lowercase (pipeline.node.start, tool.invoke.failed).
package logging
