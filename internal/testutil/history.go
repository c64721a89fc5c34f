package testutil

import "github.com/hupe1980/ghwhisper/core"

// UnansweredCallIDs returns the ids of tool calls that are not answered by
// the tool messages directly following their AI message. A history for
// which it returns nothing is accepted by chat completion APIs.
func UnansweredCallIDs(messages []core.Message) []string {
	var missing []string
	for i, m := range messages {
		ai, ok := m.(core.AIMessage)
		if !ok || !ai.HasToolCalls() {
			continue
		}
		answered := map[string]bool{}
		for _, next := range messages[i+1:] {
			tm, ok := next.(core.ToolMessage)
			if !ok {
				break
			}
			answered[tm.CallID] = true
		}
		for _, c := range ai.ToolCalls {
			if !answered[c.ID] {
				missing = append(missing, c.ID)
			}
		}
	}
	return missing
}
