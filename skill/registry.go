// Package skill selects static guidance modules for the agent prompt.
//
// A Registry lists modules with trigger keywords. Given a user utterance the
// Selector picks every always-load module plus each optional module with a
// case-insensitive keyword hit, loads their bodies through a Cache backed by
// a Store and concatenates them in registry order.
package skill

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoAlwaysLoad is returned for registries that could select nothing.
var ErrNoAlwaysLoad = errors.New("registry has no always-load module")

// Module describes one guidance module.
type Module struct {
	Name        string   `yaml:"name"`
	Keywords    []string `yaml:"keywords"`
	AlwaysLoad  bool     `yaml:"always_load"`
	Description string   `yaml:"description"`
}

// Matches reports whether the lowercased utterance contains any keyword.
func (m Module) Matches(lowered string) bool {
	for _, kw := range m.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Registry is an ordered, immutable set of modules.
type Registry struct {
	modules []Module
}

// NewRegistry validates and builds a registry. Names must be unique and at
// least one module must be always-load.
func NewRegistry(modules ...Module) (*Registry, error) {
	seen := make(map[string]struct{}, len(modules))
	always := false
	for _, m := range modules {
		if m.Name == "" {
			return nil, fmt.Errorf("module without name")
		}
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("duplicate module %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		always = always || m.AlwaysLoad
	}
	if !always {
		return nil, ErrNoAlwaysLoad
	}
	out := make([]Module, len(modules))
	copy(out, modules)
	return &Registry{modules: out}, nil
}

// Modules returns the modules in registry order.
func (r *Registry) Modules() []Module {
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Len returns the number of modules.
func (r *Registry) Len() int { return len(r.modules) }

// DefaultRegistry returns the built-in GitHub module set.
func DefaultRegistry() *Registry {
	return &Registry{modules: []Module{
		{
			Name:        "core.md",
			AlwaysLoad:  true,
			Description: "Core token optimization rules",
		},
		{
			Name: "repository.md",
			Keywords: []string{"repo", "repository", "file", "files", "code", "directory",
				"folder", "branch", "commit", "read", "dosya", "klasör"},
			Description: "Repository and file operations",
		},
		{
			Name: "issues-prs.md",
			Keywords: []string{"issue", "issues", "pr", "pull request", "review", "merge",
				"assign", "comment", "label"},
			Description: "Issues and Pull Requests",
		},
		{
			Name: "security-notifications.md",
			Keywords: []string{"security", "alert", "notification", "scan", "secret",
				"güvenlik", "bildirim", "work on", "daily", "todo"},
			Description: "Security alerts and notifications",
		},
		{
			Name:        "tools-reference.md",
			Keywords:    []string{"tools", "list tools", "available", "what can"},
			Description: "Complete tool reference",
		},
	}}
}

type registryFile struct {
	Modules []Module `yaml:"modules"`
}

// LoadRegistry reads a YAML registry:
//
//	modules:
//	  - name: core.md
//	    always_load: true
//	  - name: repository.md
//	    keywords: [repo, file]
func LoadRegistry(r io.Reader) (*Registry, error) {
	var f registryFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode skill registry: %w", err)
	}
	return NewRegistry(f.Modules...)
}
