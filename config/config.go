// Package config loads runtime configuration from an optional YAML file
// overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingEnv reports a required secret that is not configured.
var ErrMissingEnv = errors.New("missing required environment variable")

// Environment variables read by Load.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGitHubPAT    = "GITHUB_PAT"
	EnvMCPURL       = "GITHUB_MCP_URL"
	EnvPort         = "PORT"
	EnvSessionID    = "SESSION_ID"
	EnvModel        = "GHWHISPER_MODEL"
	EnvProvider     = "GHWHISPER_PROVIDER"
	EnvStoreDir     = "GHWHISPER_STORE_DIR"
	EnvLogLevel     = "GHWHISPER_LOG_LEVEL"
)

// Providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Config is the complete runtime configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	MCP    MCPConfig    `yaml:"mcp"`
	Skills SkillsConfig `yaml:"skills"`
	Store  StoreConfig  `yaml:"store"`
	Agent  AgentConfig  `yaml:"agent"`
	Log    LogConfig    `yaml:"log"`
	// SessionID is the default CLI thread.
	SessionID string `yaml:"session_id"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// ModelConfig selects the chat and extractor models.
type ModelConfig struct {
	Provider             string  `yaml:"provider"`
	Name                 string  `yaml:"name"`
	Temperature          float64 `yaml:"temperature"`
	ExtractorName        string  `yaml:"extractor_name"`
	ExtractorTemperature float64 `yaml:"extractor_temperature"`
	BaseURL              string  `yaml:"base_url"`
	OpenAIKey            string  `yaml:"-"`
	AnthropicKey         string  `yaml:"-"`
}

// APIKey returns the key for the selected provider.
func (m ModelConfig) APIKey() string {
	if m.Provider == ProviderAnthropic {
		return m.AnthropicKey
	}
	return m.OpenAIKey
}

// MCPConfig configures the GitHub MCP connection.
type MCPConfig struct {
	URL      string   `yaml:"url"`
	Token    string   `yaml:"-"`
	Toolsets []string `yaml:"toolsets"`
	Readonly bool     `yaml:"readonly"`
}

// SkillsConfig points at custom skill files. Empty values use the
// embedded defaults.
type SkillsConfig struct {
	Dir          string `yaml:"dir"`
	RegistryFile string `yaml:"registry_file"`
}

// StoreConfig selects thread persistence.
type StoreConfig struct {
	Kind string `yaml:"kind"`
	Dir  string `yaml:"dir"`
}

// AgentConfig bounds the turn pipeline.
type AgentConfig struct {
	MaxIterations  int  `yaml:"max_iterations"`
	MaxOutputChars int  `yaml:"max_output_chars"`
	StreamTokens   bool `yaml:"stream_tokens"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000},
		Model: ModelConfig{
			Provider:             ProviderOpenAI,
			Name:                 "gpt-4.1-mini",
			Temperature:          0.2,
			ExtractorName:        "gpt-4.1-mini",
			ExtractorTemperature: 0,
		},
		MCP: MCPConfig{
			URL: "https://api.githubcopilot.com/mcp/",
			Toolsets: []string{
				"repos", "issues", "actions", "discussions",
				"notifications", "pull_requests", "users", "projects",
			},
			Readonly: true,
		},
		Store:     StoreConfig{Kind: StoreMemory},
		Agent:     AgentConfig{MaxIterations: 25, MaxOutputChars: 200_000},
		Log:       LogConfig{Level: "info", Format: "text"},
		SessionID: "cli-thread",
	}
}

// Options configures Load.
type Options struct {
	// Path is an optional YAML file. A missing file is an error only when
	// the path was set explicitly.
	Path string
	// LookupEnv resolves environment variables. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds the configuration: defaults, then the YAML file, then the
// environment.
func Load(optFns ...func(o *Options)) (*Config, error) {
	opts := Options{LookupEnv: os.LookupEnv}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := Default()
	if opts.Path != "" {
		b, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", opts.Path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", opts.Path, err)
		}
	}
	if err := cfg.applyEnv(opts.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvOpenAIKey); ok {
		c.Model.OpenAIKey = v
	}
	if v, ok := get(EnvAnthropicKey); ok {
		c.Model.AnthropicKey = v
	}
	if v, ok := get(EnvGitHubPAT); ok {
		c.MCP.Token = v
	}
	if v, ok := get(EnvMCPURL); ok {
		c.MCP.URL = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v, ok := get(EnvSessionID); ok {
		c.SessionID = v
	}
	if v, ok := get(EnvModel); ok {
		c.Model.Name = v
	}
	if v, ok := get(EnvProvider); ok {
		c.Model.Provider = strings.ToLower(v)
	}
	if v, ok := get(EnvStoreDir); ok {
		c.Store.Kind = StoreBadger
		c.Store.Dir = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = v
	}
	return nil
}

// Validate checks required secrets and value ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.Model.Provider {
	case ProviderOpenAI:
		if c.Model.OpenAIKey == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingEnv, EnvOpenAIKey))
		}
	case ProviderAnthropic:
		if c.Model.AnthropicKey == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingEnv, EnvAnthropicKey))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.Model.Provider))
	}
	if c.MCP.Token == "" {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingEnv, EnvGitHubPAT))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreBadger:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required for the badger store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, errors.New("agent.max_iterations must be positive"))
	}
	return errors.Join(errs...)
}
