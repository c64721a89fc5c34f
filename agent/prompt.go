package agent

import (
	"fmt"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/internal/util"
)

// RetryHint is added to the rules while a schema mismatch is outstanding.
const RetryHint = "- A previous tool call was rejected because its arguments did not match the tool's input schema. " +
	"Check the schema and retry once with corrected arguments, or ask the user for the missing values."

var systemTemplate = util.MustParseTemplate("system", `You are a GitHub-aware assistant with access to GitHub tools.

Rules:
- Always try to answer the user.
- If you need additional info (org/repo/branch/path), ask in normal language.
- Do not guess missing info.
- Use tools when they help.
{{- if .Retry}}
{{.Retry}}
{{- end}}

Context usage rules:
{{- range .Keys}}
- If {{.}} is set, do not ask for it again unless the user asks to change/clear it.
{{- end}}

Current context: {{join " " .Context}}
{{- if .Skills}}

<github_mcp_skill>
{{.Skills}}
</github_mcp_skill>

CRITICAL: Follow the skill guidelines above for token optimization and best practices.
{{end}}`)

type promptData struct {
	Keys    []core.ContextKey
	Context []string
	Retry   string
	Skills  string
}

// SystemPrompt renders the agent instructions for st. skills is the
// rendered skill section, or empty to omit it.
func SystemPrompt(st *core.ConversationState, skills string) (string, error) {
	data := promptData{Keys: core.ContextKeys(), Skills: skills}
	for _, k := range data.Keys {
		v, ok := st.ContextValue(k)
		if !ok {
			v = "(none)"
		}
		data.Context = append(data.Context, fmt.Sprintf("%s=%s", k, v))
	}
	if st.ToolRetryCount > 0 {
		data.Retry = RetryHint
	}
	return systemTemplate.Render(data)
}
