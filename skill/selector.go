package skill

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/ghwhisper/logging"
)

// Delimiter separates rendered modules.
const Delimiter = "\n\n---\n\n"

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	Logger logging.Logger
}

// Selector maps utterances to rendered guidance.
type Selector struct {
	registry *Registry
	cache    *Cache
	logger   logging.Logger
}

// NewSelector creates a selector over a registry and a shared cache.
func NewSelector(registry *Registry, cache *Cache, optFns ...func(o *SelectorOptions)) *Selector {
	opts := SelectorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Selector{registry: registry, cache: cache, logger: opts.Logger}
}

// Select returns the module names needed for utterance in registry order:
// every always-load module plus optional modules with a keyword hit.
func (s *Selector) Select(utterance string) []string {
	lowered := strings.ToLower(utterance)
	var names []string
	for _, m := range s.registry.modules {
		if m.AlwaysLoad || m.Matches(lowered) {
			names = append(names, m.Name)
		}
	}
	return names
}

// Render loads the selected modules and joins them, each under a
// "## Module: <name>" header. Modules missing from the store are skipped.
func (s *Selector) Render(utterance string) (string, error) {
	names := s.Select(utterance)
	parts := make([]string, 0, len(names))
	loaded := make([]string, 0, len(names))
	for _, name := range names {
		content, err := s.cache.Get(name)
		if errors.Is(err, ErrModuleNotFound) {
			s.logger.Warn("skill.module.missing", "module", name)
			continue
		}
		if err != nil {
			return "", err
		}
		if content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("## Module: %s\n\n%s", name, content))
		loaded = append(loaded, name)
	}
	combined := strings.Join(parts, Delimiter)
	chars := utf8.RuneCountInString(combined)
	s.logger.Debug("skill.selected", "modules", loaded, "chars", chars, "tokens_approx", chars/4)
	return combined, nil
}

// ModuleStats describes one registry module.
type ModuleStats struct {
	Exists           bool `json:"exists" yaml:"exists"`
	SizeChars        int  `json:"size_chars,omitempty" yaml:"size_chars,omitempty"`
	SizeTokensApprox int  `json:"size_tokens_approx,omitempty" yaml:"size_tokens_approx,omitempty"`
	Loaded           bool `json:"loaded" yaml:"loaded"`
}

// Stats summarizes the registry against the store and cache.
type Stats struct {
	AvailableModules int                    `json:"available_modules" yaml:"available_modules"`
	LoadedModules    int                    `json:"loaded_modules" yaml:"loaded_modules"`
	Modules          map[string]ModuleStats `json:"modules" yaml:"modules"`
}

// Stats reports per-module existence, size and cache state. It reads the
// store directly and leaves the cache untouched.
func (s *Selector) Stats() Stats {
	st := Stats{
		AvailableModules: s.registry.Len(),
		LoadedModules:    len(s.cache.Loaded()),
		Modules:          make(map[string]ModuleStats, s.registry.Len()),
	}
	for _, m := range s.registry.modules {
		content, err := s.cache.store.ReadModule(m.Name)
		if err != nil {
			st.Modules[m.Name] = ModuleStats{}
			continue
		}
		size := utf8.RuneCountInString(content)
		st.Modules[m.Name] = ModuleStats{
			Exists:           true,
			SizeChars:        size,
			SizeTokensApprox: size / 4,
			Loaded:           s.cache.IsLoaded(m.Name),
		}
	}
	return st
}
