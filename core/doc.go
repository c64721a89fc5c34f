// Package core provides the foundational domain types shared by every stage
// of the GitHub assistant pipeline:
//
//   - Messages (a closed sum of system, human, AI and tool messages)
//   - ConversationState (per-thread messages, context fields, retry counter, usage)
//   - The context field registry (activeOrg, activeRepo, activeBranch)
//   - Partial state Updates and their merge rules
//   - TokenUsage accounting
//   - Tool call and tool descriptor shapes
//
// The package intentionally keeps model, tool transport and persistence
// concerns out of scope so higher layers depend only on these small types.
package core
