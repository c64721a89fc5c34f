// Package ghwhisper provides a high-level façade wiring the GitHub assistant
// together: configuration, chat and extractor models, the MCP tool catalog,
// skill selection, the turn pipeline, thread persistence and the runner.
//
// Most applications interact with this package by:
//  1. Loading a config.Config (or using config.Default with secrets set)
//  2. Creating an Assistant via New, optionally overriding collaborators
//  3. Calling SubmitTurn or Stream per user message
//  4. Calling Close on shutdown
package ghwhisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/ghwhisper/agent"
	"github.com/hupe1980/ghwhisper/config"
	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/extract"
	"github.com/hupe1980/ghwhisper/logging"
	"github.com/hupe1980/ghwhisper/model"
	"github.com/hupe1980/ghwhisper/model/anthropic"
	"github.com/hupe1980/ghwhisper/model/openai"
	"github.com/hupe1980/ghwhisper/runner"
	"github.com/hupe1980/ghwhisper/session"
	"github.com/hupe1980/ghwhisper/skill"
	"github.com/hupe1980/ghwhisper/tool"
	"github.com/hupe1980/ghwhisper/tool/mcp"
)

// Options configures the Assistant. Unset collaborators are built from
// Config.
type Options struct {
	// Config defaults to config.Default().
	Config *config.Config
	// Model answers the user. Defaults to the configured provider.
	Model model.Model
	// ExtractorModel infers context updates. Defaults to the configured
	// provider at the extractor temperature.
	ExtractorModel model.Model
	// Provider supplies tools. Defaults to the GitHub MCP client.
	Provider tool.Provider
	// Store persists threads. Defaults to the configured store kind.
	Store session.Store
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Assistant is the assembled application.
type Assistant struct {
	cfg      *config.Config
	catalog  *tool.Catalog
	selector *skill.Selector
	runner   *runner.Runner
	closers  []io.Closer
	logger   logging.Logger
}

// New wires all collaborators. The tool catalog is fetched once here and
// stays fixed for the Assistant's lifetime.
func New(ctx context.Context, optFns ...func(o *Options)) (*Assistant, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	cfg := opts.Config
	logger := opts.Logger

	a := &Assistant{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	chat, extractorModel, err := buildModels(cfg, opts.Model, opts.ExtractorModel)
	if err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		if cfg.MCP.Token == "" {
			return nil, fmt.Errorf("%w: %s", config.ErrMissingEnv, config.EnvGitHubPAT)
		}
		client := mcp.NewClient(func(o *mcp.Options) {
			o.URL = cfg.MCP.URL
			o.Token = cfg.MCP.Token
			o.Toolsets = cfg.MCP.Toolsets
			o.Readonly = cfg.MCP.Readonly
			o.Logger = component(logger, "mcp")
		})
		a.closers = append(a.closers, client)
		provider = client
	}

	a.catalog, err = tool.NewCatalog(ctx, provider, func(o *tool.CatalogOptions) {
		o.Logger = component(logger, "tool")
	})
	if err != nil {
		return nil, fmt.Errorf("load tools: %w", err)
	}
	logger.Info("assistant.tools.loaded", "count", a.catalog.Len())

	a.selector, err = NewSkillSelector(cfg.Skills, component(logger, "skill"))
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		if store, err = buildStore(cfg.Store, component(logger, "session")); err != nil {
			return nil, err
		}
	}
	a.closers = append(a.closers, store)

	invoker := tool.NewInvoker(a.catalog, provider, func(o *tool.InvokerOptions) {
		if cfg.Agent.MaxOutputChars > 0 {
			o.MaxOutputChars = cfg.Agent.MaxOutputChars
		}
		o.Logger = component(logger, "tool")
	})
	pipeline := agent.New(chat, invoker, func(o *agent.Options) {
		o.MaxIterations = cfg.Agent.MaxIterations
		o.Extractor = extract.New(extractorModel, func(o *extract.Options) { o.Logger = component(logger, "extract") })
		o.Skills = a.selector
		o.Logger = component(logger, "pipeline")
	})
	a.runner = runner.New(pipeline, func(o *runner.Options) {
		o.Store = store
		o.StreamTokens = cfg.Agent.StreamTokens
		o.Logger = component(logger, "runner")
	})

	ok = true
	return a, nil
}

func component(l logging.Logger, name string) logging.Logger {
	if wl, ok := l.(*logging.WhisperLogger); ok {
		return wl.WithComponent(name)
	}
	return l
}

func buildModels(cfg *config.Config, chat, extractor model.Model) (model.Model, model.Model, error) {
	if chat != nil && extractor != nil {
		return chat, extractor, nil
	}
	key := cfg.Model.APIKey()
	if key == "" {
		env := config.EnvOpenAIKey
		if cfg.Model.Provider == config.ProviderAnthropic {
			env = config.EnvAnthropicKey
		}
		return nil, nil, fmt.Errorf("%w: %s", config.ErrMissingEnv, env)
	}

	build := func(name string, temperature float64) (model.Model, error) {
		switch cfg.Model.Provider {
		case config.ProviderOpenAI:
			return openai.NewModel(func(o *openai.Options) {
				o.Model = name
				o.Temperature = temperature
				o.APIKey = key
				o.BaseURL = cfg.Model.BaseURL
			}), nil
		case config.ProviderAnthropic:
			return anthropic.NewModel(func(o *anthropic.Options) {
				o.Model = anthropicsdk.Model(name)
				o.Temperature = temperature
				o.APIKey = key
			}), nil
		default:
			return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
		}
	}

	var err error
	if chat == nil {
		if chat, err = build(cfg.Model.Name, cfg.Model.Temperature); err != nil {
			return nil, nil, err
		}
	}
	if extractor == nil {
		name := cfg.Model.ExtractorName
		if name == "" {
			name = cfg.Model.Name
		}
		if extractor, err = build(name, cfg.Model.ExtractorTemperature); err != nil {
			return nil, nil, err
		}
	}
	return chat, extractor, nil
}

// NewSkillSelector builds the selector for cfg: the embedded modules unless a
// directory or registry file overrides them.
func NewSkillSelector(cfg config.SkillsConfig, logger logging.Logger) (*skill.Selector, error) {
	registry := skill.DefaultRegistry()
	if cfg.RegistryFile != "" {
		f, err := os.Open(cfg.RegistryFile)
		if err != nil {
			return nil, fmt.Errorf("open skill registry: %w", err)
		}
		defer f.Close()
		if registry, err = skill.LoadRegistry(f); err != nil {
			return nil, err
		}
	}

	var store skill.Store = skill.DefaultStore()
	if cfg.Dir != "" {
		store = skill.NewDirStore(cfg.Dir)
	}
	return skill.NewSelector(registry, skill.NewCache(store), func(o *skill.SelectorOptions) { o.Logger = logger }), nil
}

func buildStore(cfg config.StoreConfig, logger logging.Logger) (session.Store, error) {
	switch cfg.Kind {
	case "", config.StoreMemory:
		return session.NewInMemoryStore(), nil
	case config.StoreBadger:
		return session.NewBadgerStore(func(o *session.BadgerOptions) {
			o.Dir = cfg.Dir
			o.Logger = logger
		})
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

// SubmitTurn processes one utterance on a thread and returns its state.
func (a *Assistant) SubmitTurn(ctx context.Context, threadID, text string) (*core.ConversationState, error) {
	return a.runner.SubmitTurn(ctx, threadID, text)
}

// Stream processes one utterance and streams the assistant's output.
func (a *Assistant) Stream(ctx context.Context, threadID, text string) <-chan runner.StreamEvent {
	return a.runner.Stream(ctx, threadID, text)
}

// Runner exposes the underlying runner, e.g. for the HTTP server.
func (a *Assistant) Runner() *runner.Runner { return a.runner }

// Tools returns the discovered tool descriptors.
func (a *Assistant) Tools() []core.ToolDescriptor { return a.catalog.Descriptors() }

// Skills returns the skill selector.
func (a *Assistant) Skills() *skill.Selector { return a.selector }

// Config returns the effective configuration.
func (a *Assistant) Config() *config.Config { return a.cfg }

// Close releases the tool session and the thread store.
func (a *Assistant) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
