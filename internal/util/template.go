package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// funcs are the helpers available to prompt templates.
var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
}

// Template is a parsed prompt template. Prompts are plain text, so no HTML
// escaping is applied.
type Template struct {
	tmpl *template.Template
}

// ParseTemplate parses text once for repeated rendering.
func ParseTemplate(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Template{tmpl: tmpl}, nil
}

// MustParseTemplate is like ParseTemplate but panics on error. It is meant
// for package-level templates.
func MustParseTemplate(name, text string) *Template {
	t, err := ParseTemplate(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Render executes the template against data.
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTemplate replaces template variables in text using state. Text
// without template markers is returned unchanged.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}
	t, err := ParseTemplate("prompt", text)
	if err != nil {
		return "", err
	}
	return t.Render(state)
}
