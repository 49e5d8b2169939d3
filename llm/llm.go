// Package llm defines the provider-neutral calling surface the engine and
// the collaboration pipeline speak. Concrete transports live in the
// subpackages (openrouter, anthropic).
package llm

import "context"

// Turn roles. These match the roles stored on persisted messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation turn sent to a provider.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	// Model is the fully resolved model identifier.
	Model string

	// Turns is the assembled conversation, oldest first.
	Turns []Turn

	// Temperature is passed through to the provider.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Usage reports token consumption for a single call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the provider's answer to a Request.
type Response struct {
	// Content is the completion text.
	Content string

	// Model is the identifier the provider actually served, which may be
	// more specific than the requested one.
	Model string

	// FinishReason is the provider's stop reason, verbatim.
	FinishReason string

	// Usage is the provider-reported token usage.
	Usage Usage
}

// Caller executes completion calls against a provider.
type Caller interface {
	Call(ctx context.Context, req Request) (*Response, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, req Request) (*Response, error)

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
