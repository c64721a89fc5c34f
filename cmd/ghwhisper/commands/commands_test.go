package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/ghwhisper/config"
	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatLoop(t *testing.T) {
	in := strings.NewReader("hello\n\n  \ntools only\nEXIT\nnever sent\n")
	var out bytes.Buffer

	var got []string
	err := chatLoop(in, &out, "cli-thread", func(text string) (*core.ConversationState, error) {
		got = append(got, text)
		if text == "tools only" {
			return testutil.NewStateBuilder("cli-thread").Human(text).Build(), nil
		}
		return testutil.NewStateBuilder("cli-thread").Human(text).AI("hi!").Build(), nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "tools only"}, got)
	s := out.String()
	assert.Contains(t, s, "thread_id: cli-thread")
	assert.Contains(t, s, "Bot> hi!")
	assert.Contains(t, s, "Bot> (no assistant message)")
}

func TestChatLoopReportsErrorsAndEndsOnEOF(t *testing.T) {
	var out bytes.Buffer
	err := chatLoop(strings.NewReader("boom"), &out, "t", func(string) (*core.ConversationState, error) {
		return nil, errors.New("upstream down")
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Error> upstream down")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestSkillsCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"skills", "--log-level", "error"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "available_modules: 5")
	assert.Contains(t, out.String(), "core.md:")

	root = NewRootCommand()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"skills", "--log-level", "error", "list", "security", "alerts"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "selected: core.md, security-notifications.md")
	assert.Contains(t, out.String(), "## Module: security-notifications.md")
}

func TestToolsCommandRequiresToken(t *testing.T) {
	t.Setenv(config.EnvGitHubPAT, "")
	root := NewRootCommand()
	root.SetArgs([]string{"tools"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	assert.ErrorIs(t, err, config.ErrMissingEnv)
}

func TestGlobalFlagsOverrideConfig(t *testing.T) {
	g := &globalFlags{logLevel: "debug", logFormat: "json"}
	cfg, err := g.load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}
