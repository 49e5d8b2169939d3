package usage

import (
	"math"
	"testing"

	"github.com/loomlabs/loom/catalog"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCostFromCatalogPricing(t *testing.T) {
	cat := catalog.Default()

	// gpt-4-turbo: 0.01 in / 0.03 out per 1k.
	got := Cost(cat, "openai/gpt-4-turbo", 2000, 1000)
	if !almostEqual(got.Input, 0.02) {
		t.Errorf("Input = %f, want 0.02", got.Input)
	}
	if !almostEqual(got.Output, 0.03) {
		t.Errorf("Output = %f, want 0.03", got.Output)
	}
	if !almostEqual(got.Total, 0.05) {
		t.Errorf("Total = %f, want 0.05", got.Total)
	}
}

func TestCostFallbackForUnknownModel(t *testing.T) {
	got := Cost(catalog.Default(), "mistral/mixtral-8x7b", 1000, 1000)
	want := FallbackInputCostPer1K + FallbackOutputCostPer1K
	if !almostEqual(got.Total, want) {
		t.Errorf("Total = %f, want %f", got.Total, want)
	}
}

func TestCostNilCatalog(t *testing.T) {
	got := Cost(nil, "anything", 500, 500)
	want := 0.5*FallbackInputCostPer1K + 0.5*FallbackOutputCostPer1K
	if !almostEqual(got.Total, want) {
		t.Errorf("Total = %f, want %f", got.Total, want)
	}
}

func TestFuncRecorder(t *testing.T) {
	var events []Event
	rec := Func(func(e Event) { events = append(events, e) })

	rec.Record(Event{Model: "m", Operation: OpMessage, InputTokens: 10, OutputTokens: 5})

	if len(events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(events))
	}
	if events[0].Operation != OpMessage {
		t.Errorf("Operation = %q", events[0].Operation)
	}
}

func TestPostgresRecorderNeverBlocks(t *testing.T) {
	// No pool and no drain loop: Record must still return immediately
	// once the buffer fills, dropping the surplus.
	rec := NewPostgresRecorder(nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < DefaultBufferSize*2; i++ {
			rec.Record(Event{Model: "m", Operation: OpMessage})
		}
	}()

	select {
	case <-done:
	default:
		// Give the goroutine a moment; it should not be stuck on a send.
		<-done
	}

	if got := len(rec.events); got != DefaultBufferSize {
		t.Errorf("buffered events = %d, want %d (surplus dropped)", got, DefaultBufferSize)
	}
}
