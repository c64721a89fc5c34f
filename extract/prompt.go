package extract

import (
	"fmt"
	"strings"

	"github.com/hupe1980/ghwhisper/core"
)

const retryNote = "IMPORTANT: Your previous output was invalid. Output JSON object only with allowed keys."

// AllowedKeysSection lists the registry keys with their descriptions.
func AllowedKeysSection() string {
	lines := []string{"Allowed state keys (ONLY these; values must be string or null):"}
	for _, f := range core.ContextFields() {
		lines = append(lines, fmt.Sprintf("- %s: %s", f.Key, f.Description))
	}
	return strings.Join(lines, "\n")
}

// ExamplesSection lists utterances that should produce updates.
func ExamplesSection() string {
	lines := []string{"Examples of user messages that SHOULD update state:"}
	for _, f := range core.ContextFields() {
		lines = append(lines, fmt.Sprintf("- %s examples:", f.Key))
		for _, ex := range f.Examples {
			lines = append(lines, fmt.Sprintf("  - %q", ex))
		}
	}
	return strings.Join(lines, "\n")
}

// CurrentStateLine renders the context as key="value" pairs in registry
// order, with "(none)" for unset fields.
func CurrentStateLine(current map[core.ContextKey]string) string {
	parts := make([]string, 0, len(core.ContextKeys()))
	for _, k := range core.ContextKeys() {
		v, ok := current[k]
		if !ok {
			v = "(none)"
		}
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, v))
	}
	return strings.Join(parts, ", ")
}

// BuildPrompt assembles the first-attempt extraction prompt.
func BuildPrompt(current map[core.ContextKey]string, utterance string) string {
	return strings.Join([]string{
		"You extract state updates from the latest USER message.",
		"Return JSON ONLY (no markdown, no commentary).",
		"",
		AllowedKeysSection(),
		"",
		"Rules:",
		"- Output a JSON object (possibly empty).",
		"- Only include keys from the allowed list.",
		"- Only set a key if the user explicitly provided that value to set/change context.",
		"- If the user explicitly wants to clear a value, set that key to null.",
		"- If the user is asking a question, discussing a topic, or NOT providing context values, return {}.",
		"",
		ExamplesSection(),
		"",
		"Current state:",
		CurrentStateLine(current),
		"",
		"User message:",
		utterance,
	}, "\n")
}

// BuildRetryPrompt appends the invalid-output note to the first prompt.
func BuildRetryPrompt(prompt string) string {
	return strings.Join([]string{prompt, "", retryNote}, "\n")
}

// BuildRepairPrompt asks the model to coerce raw into the allowed schema.
func BuildRepairPrompt(raw string) string {
	return strings.Join([]string{
		"You are a JSON repair utility.",
		"Convert the given content into a JSON object that only contains allowed state keys.",
		"Output JSON ONLY.",
		"",
		AllowedKeysSection(),
		"",
		"Rules:",
		"- Output an object (possibly empty).",
		"- Values must be string or null.",
		"- Do not include any other keys.",
		"",
		"Content:",
		raw,
	}, "\n")
}
