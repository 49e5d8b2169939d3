// Package usage records per-call token consumption and computes cost
// reports from catalog pricing. Recording is notify-only: it never
// blocks and never fails the calling operation.
package usage

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/catalog"
)

// Operation kinds recorded on events.
const (
	OpMessage       = "message"
	OpSummarization = "summarization"
	OpCollaboration = "collaboration"
)

// Fallback per-1k pricing for models the catalog has no entry for.
const (
	FallbackInputCostPer1K  = 0.002
	FallbackOutputCostPer1K = 0.006
)

// Event is one recorded LLM call.
type Event struct {
	ID              uuid.UUID  `json:"id"`
	ThreadID        *uuid.UUID `json:"thread_id,omitempty"`
	CollaborationID string     `json:"collaboration_id,omitempty"`
	Model           string     `json:"model"`
	Operation       string     `json:"operation"`
	InputTokens     int        `json:"input_tokens"`
	OutputTokens    int        `json:"output_tokens"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Recorder receives usage events. Implementations must not block the
// caller; dropping events under pressure is acceptable.
type Recorder interface {
	Record(event Event)
}

// Noop discards all events.
type Noop struct{}

// Record implements Recorder.
func (Noop) Record(Event) {}

// Func adapts a function to the Recorder interface.
type Func func(Event)

// Record implements Recorder.
func (f Func) Record(e Event) { f(e) }

// CostBreakdown is the USD cost of a token count under a model's pricing.
type CostBreakdown struct {
	Input  float64 `json:"input_cost"`
	Output float64 `json:"output_cost"`
	Total  float64 `json:"total_cost"`
}

// Cost computes the USD cost of a call, falling back to the default
// pricing when the model is not in the catalog.
func Cost(cat catalog.Catalog, model string, inputTokens, outputTokens int) CostBreakdown {
	inPer1K, outPer1K := FallbackInputCostPer1K, FallbackOutputCostPer1K
	if cat != nil {
		if info, ok := cat.Get(model); ok {
			inPer1K, outPer1K = info.Cost.Input, info.Cost.Output
		}
	}
	in := float64(inputTokens) / 1000 * inPer1K
	out := float64(outputTokens) / 1000 * outPer1K
	return CostBreakdown{Input: in, Output: out, Total: in + out}
}
