package core

// ContextKey names one of the conversation context fields the pipeline is
// allowed to track. The set is closed; see ContextKeys.
type ContextKey string

const (
	// ActiveOrg is the current GitHub organization or user namespace.
	ActiveOrg ContextKey = "activeOrg"
	// ActiveRepo is the current repository, usually owner/repo.
	ActiveRepo ContextKey = "activeRepo"
	// ActiveBranch is the current git branch.
	ActiveBranch ContextKey = "activeBranch"
)

// ContextField documents a registered context key for prompt construction.
type ContextField struct {
	Key         ContextKey
	Description string
	Examples    []string
	Hints       []string
}

var contextFields = []ContextField{
	{
		Key:         ActiveOrg,
		Description: "Current GitHub organization context (org or user namespace).",
		Examples: []string{
			"My org is acme",
			"Use organization openai",
			"Switch to org my-company",
			"clear org",
		},
		Hints: []string{"org", "organization", "workspace"},
	},
	{
		Key:         ActiveRepo,
		Description: "Current GitHub repository context (usually owner/repo).",
		Examples: []string{
			"Use repo open-telemetry/opentelemetry-collector",
			"Repository is foo/bar",
			"Switch to repo my-org/my-repo",
			"clear repo",
		},
		Hints: []string{"repo", "repository", "project"},
	},
	{
		Key:         ActiveBranch,
		Description: "Current git branch context (e.g., main, develop, feature/foo).",
		Examples: []string{
			"Use branch main",
			"branch develop",
			"Switch to feature/login",
			"clear branch",
		},
		Hints: []string{"branch", "ref"},
	},
}

// ContextFields returns the registered fields in registry order.
func ContextFields() []ContextField {
	out := make([]ContextField, len(contextFields))
	copy(out, contextFields)
	return out
}

// ContextKeys returns the registered keys in registry order.
func ContextKeys() []ContextKey {
	keys := make([]ContextKey, 0, len(contextFields))
	for _, f := range contextFields {
		keys = append(keys, f.Key)
	}
	return keys
}

// IsContextKey reports whether k belongs to the registry.
func IsContextKey(k string) bool {
	for _, f := range contextFields {
		if string(f.Key) == k {
			return true
		}
	}
	return false
}

// ContextUpdate is a partial change to context fields. A key mapped to nil
// clears the field; a key mapped to a value sets it; an absent key leaves
// the field untouched.
type ContextUpdate map[ContextKey]*string

// Set records a value for k and returns the update for chaining.
func (u ContextUpdate) Set(k ContextKey, v string) ContextUpdate {
	u[k] = &v
	return u
}

// Clear records an explicit unset for k and returns the update for chaining.
func (u ContextUpdate) Clear(k ContextKey) ContextUpdate {
	u[k] = nil
	return u
}
