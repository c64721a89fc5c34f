// Package agent assembles the turn pipeline: context extraction, the
// tool-aware model call and tool execution, wired as an explicit state
// machine (PRE_EXTRACT -> AGENT -> TOOLS -> AGENT ... -> END).
//
// A Pipeline is built once per process from a model, an extractor, a tool
// invoker and a skill selector, and is safe for concurrent use on distinct
// conversation states. Turns on the same thread must be serialized by the
// caller.
package agent
