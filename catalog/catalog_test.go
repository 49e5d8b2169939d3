package catalog

import "testing"

func TestDefaultSeedsStockModels(t *testing.T) {
	r := Default()

	tests := []struct {
		id     string
		window int
	}{
		{"openai/gpt-4-turbo", 128000},
		{"anthropic/claude-3.5-sonnet", 200000},
		{"openai/gpt-3.5-turbo", 16385},
	}

	for _, tt := range tests {
		if !r.Has(tt.id) {
			t.Errorf("Default() missing %s", tt.id)
			continue
		}
		if got := r.ContextWindow(tt.id); got != tt.window {
			t.Errorf("ContextWindow(%s) = %d, want %d", tt.id, got, tt.window)
		}
	}
}

func TestContextWindowUnknownModel(t *testing.T) {
	r := Default()
	if got := r.ContextWindow("mistral/mixtral-8x7b"); got != DefaultContextWindow {
		t.Errorf("ContextWindow(unknown) = %d, want %d", got, DefaultContextWindow)
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if r.Has("local/test-model") {
		t.Fatal("empty registry should not contain local/test-model")
	}

	r.Register(ModelInfo{
		ID:            "local/test-model",
		Provider:      "local",
		ContextWindow: 4096,
		Cost:          Cost{Input: 0.001, Output: 0.002},
	})

	info, ok := r.Get("local/test-model")
	if !ok {
		t.Fatal("Get after Register returned not found")
	}
	if info.ContextWindow != 4096 {
		t.Errorf("ContextWindow = %d, want 4096", info.ContextWindow)
	}
	if info.Cost.Output != 0.002 {
		t.Errorf("Cost.Output = %f, want 0.002", info.Cost.Output)
	}
}

func TestListSorted(t *testing.T) {
	r := Default()
	ids := r.List()
	if len(ids) != 3 {
		t.Fatalf("List() returned %d ids, want 3", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Errorf("List() not sorted: %q before %q", ids[i-1], ids[i])
		}
	}
}
