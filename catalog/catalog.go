// Package catalog maintains the registry of known model identifiers and
// their capabilities: context window, streaming support, and per-1k-token
// pricing. Model resolution anywhere in the engine ends with a membership
// check against a Catalog.
package catalog

import (
	"errors"
	"sort"
	"sync"
)

// DefaultContextWindow is the conservative window assumed for models that
// do not declare one.
const DefaultContextWindow = 8000

// ErrUnknownModel is returned when a resolved model identifier is not
// present in the catalog. Resolution never falls back to another model.
var ErrUnknownModel = errors.New("unknown model")

// Cost holds USD pricing per 1000 tokens.
type Cost struct {
	Input  float64 `json:"input_cost_per_1k"`
	Output float64 `json:"output_cost_per_1k"`
}

// ModelInfo describes a single model entry.
type ModelInfo struct {
	// ID is the full identifier in provider/model form, e.g.
	// "anthropic/claude-3.5-sonnet".
	ID string `json:"id"`

	// Provider is the upstream provider name.
	Provider string `json:"provider"`

	// DisplayName is a human-readable name for UIs and reports.
	DisplayName string `json:"display_name"`

	// ContextWindow is the model's maximum context size in tokens.
	ContextWindow int `json:"context_window"`

	// SupportsStreaming reports whether the provider can stream responses.
	SupportsStreaming bool `json:"supports_streaming"`

	// Cost is the per-1k-token pricing used by usage reports.
	Cost Cost `json:"cost"`
}

// Catalog is the read surface the engine and the collaboration pipeline
// resolve models against.
type Catalog interface {
	// Has reports whether the identifier is registered.
	Has(id string) bool

	// Get returns the entry for the identifier.
	Get(id string) (ModelInfo, bool)

	// ContextWindow returns the model's context window, or
	// DefaultContextWindow when the model is unknown or declares none.
	ContextWindow(id string) int

	// List returns all registered identifiers in sorted order.
	List() []string
}

// Registry is an in-memory Catalog safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelInfo
}

// NewRegistry creates a Registry seeded with the given models.
func NewRegistry(models ...ModelInfo) *Registry {
	r := &Registry{models: make(map[string]ModelInfo, len(models))}
	for _, m := range models {
		r.models[m.ID] = m
	}
	return r
}

// Default returns a Registry seeded with the stock model set.
func Default() *Registry {
	return NewRegistry(
		ModelInfo{
			ID:                "openai/gpt-4-turbo",
			Provider:          "openai",
			DisplayName:       "GPT-4 Turbo",
			ContextWindow:     128000,
			SupportsStreaming: true,
			Cost:              Cost{Input: 0.01, Output: 0.03},
		},
		ModelInfo{
			ID:                "anthropic/claude-3.5-sonnet",
			Provider:          "anthropic",
			DisplayName:       "Claude 3.5 Sonnet",
			ContextWindow:     200000,
			SupportsStreaming: true,
			Cost:              Cost{Input: 0.003, Output: 0.015},
		},
		ModelInfo{
			ID:                "openai/gpt-3.5-turbo",
			Provider:          "openai",
			DisplayName:       "GPT-3.5 Turbo",
			ContextWindow:     16385,
			SupportsStreaming: true,
			Cost:              Cost{Input: 0.0005, Output: 0.0015},
		},
	)
}

// Register adds or replaces an entry.
func (r *Registry) Register(info ModelInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[info.ID] = info
}

// Has reports whether the identifier is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[id]
	return ok
}

// Get returns the entry for the identifier.
func (r *Registry) Get(id string) (ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.models[id]
	return info, ok
}

// ContextWindow returns the model's context window, falling back to
// DefaultContextWindow for unknown models or entries without one.
func (r *Registry) ContextWindow(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.models[id]
	if !ok || info.ContextWindow <= 0 {
		return DefaultContextWindow
	}
	return info.ContextWindow
}

// List returns all registered identifiers in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
