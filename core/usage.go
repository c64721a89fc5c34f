package core

// TokenUsage captures prompt/completion/total token counts. Values form a
// commutative monoid under field-wise addition with the zero value as
// identity.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns u merged with delta. A nil delta contributes the zero element.
func (u TokenUsage) Add(delta *TokenUsage) TokenUsage {
	if delta == nil {
		return u
	}
	return TokenUsage{
		PromptTokens:     u.PromptTokens + delta.PromptTokens,
		CompletionTokens: u.CompletionTokens + delta.CompletionTokens,
		TotalTokens:      u.TotalTokens + delta.TotalTokens,
	}
}

// IsZero reports whether u is the identity element.
func (u TokenUsage) IsZero() bool { return u == TokenUsage{} }
