// Package commands implements the ghwhisper subcommands.
package commands

import (
	"context"
	"os"

	"github.com/hupe1980/ghwhisper"
	"github.com/hupe1980/ghwhisper/config"
	"github.com/hupe1980/ghwhisper/logging"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "ghwhisper",
		Short:         "GitHub-aware assistant backed by the GitHub MCP server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format (text, json)")

	root.AddCommand(
		newServeCommand(g),
		newChatCommand(g),
		newSkillsCommand(g),
		newToolsCommand(g),
	)
	return root
}

// load reads the config and applies flag overrides.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(func(o *config.Options) { o.Path = g.configPath })
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.WhisperLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "ghwhisper",
	})
}

// newAssistant validates cfg and wires the full application.
func newAssistant(ctx context.Context, cfg *config.Config, logger logging.Logger) (*ghwhisper.Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return ghwhisper.New(ctx, func(o *ghwhisper.Options) {
		o.Config = cfg
		o.Logger = logger
	})
}
