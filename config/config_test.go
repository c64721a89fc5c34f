package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(o *Options) {
	return func(o *Options) {
		o.LookupEnv = func(k string) (string, bool) {
			v, ok := m[k]
			return v, ok
		}
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "https://api.githubcopilot.com/mcp/", cfg.MCP.URL)
	assert.True(t, cfg.MCP.Readonly)
	assert.Len(t, cfg.MCP.Toolsets, 8)
	assert.Equal(t, "gpt-4.1-mini", cfg.Model.Name)
	assert.Equal(t, 0.2, cfg.Model.Temperature)
	assert.Equal(t, 0.0, cfg.Model.ExtractorTemperature)
	assert.Equal(t, "cli-thread", cfg.SessionID)
	assert.Equal(t, 25, cfg.Agent.MaxIterations)
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		EnvOpenAIKey:    "sk-test",
		EnvGitHubPAT:    "ghp_test",
		EnvMCPURL:       "http://localhost:8080/mcp",
		EnvPort:         "8081",
		EnvSessionID:    "mine",
		EnvStoreDir:     "/tmp/threads",
		EnvLogLevel:     "debug",
		EnvModel:        "gpt-4o",
		EnvProvider:     "OpenAI",
		EnvAnthropicKey: "",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sk-test", cfg.Model.APIKey())
	assert.Equal(t, "ghp_test", cfg.MCP.Token)
	assert.Equal(t, "http://localhost:8080/mcp", cfg.MCP.URL)
	assert.Equal(t, ":8081", cfg.Server.Addr())
	assert.Equal(t, "mine", cfg.SessionID)
	assert.Equal(t, StoreBadger, cfg.Store.Kind)
	assert.Equal(t, "/tmp/threads", cfg.Store.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
}

func TestInvalidPort(t *testing.T) {
	_, err := Load(envMap(map[string]string{EnvPort: "http"}))
	assert.Error(t, err)
}

func TestYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ghwhisper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
model:
  provider: anthropic
  name: claude-3-5-sonnet-20241022
mcp:
  toolsets: [repos, issues]
  readonly: false
agent:
  max_iterations: 5
`), 0o600))

	cfg, err := Load(func(o *Options) { o.Path = path }, envMap(map[string]string{EnvPort: "9001"}))
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, []string{"repos", "issues"}, cfg.MCP.Toolsets)
	assert.False(t, cfg.MCP.Readonly)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.githubcopilot.com/mcp/", cfg.MCP.URL)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(func(o *Options) { o.Path = filepath.Join(t.TempDir(), "nope.yaml") })
	assert.Error(t, err)
}

func TestValidateMissingSecrets(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), EnvOpenAIKey)
	assert.Contains(t, err.Error(), EnvGitHubPAT)

	cfg.Model.Provider = ProviderAnthropic
	cfg.MCP.Token = "x"
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), EnvAnthropicKey)

	cfg.Model.AnthropicKey = "k"
	cfg.Store = StoreConfig{Kind: StoreBadger}
	assert.Error(t, cfg.Validate())
}
