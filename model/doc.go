// Package model defines the provider-agnostic abstractions for talking to
// chat models from the turn pipeline.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool call representation (ToolDefinition, core.ToolCall)
//   - Support a JSON-only constrained mode for structured extraction
//   - Report per-call token usage so callers can accumulate it
//
// Providers (OpenAI, Anthropic) live in sub-packages and implement Model so
// the pipeline stays decoupled from vendor SDKs.
package model
