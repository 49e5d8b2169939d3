package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loomlabs/loom/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, srv
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without api key should fail")
	}
}

func TestCallSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "openai/gpt-4-turbo" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Temperature != 0.7 {
			t.Errorf("temperature = %f", req.Temperature)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model": "openai/gpt-4-turbo",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": "hello there"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	})

	resp, err := client.Call(context.Background(), llm.Request{
		Model:       "openai/gpt-4-turbo",
		Turns:       []llm.Turn{{Role: llm.RoleUser, Content: "hi"}},
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Content != "hello there" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 16 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
}

func TestCallRateLimited(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Call(context.Background(), llm.Request{Model: "m", Turns: []llm.Turn{{Role: "user", Content: "x"}}})
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	var rl *llm.RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter != "30" {
		t.Errorf("RetryAfter not propagated: %v", err)
	}
}

func TestCallUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Call(context.Background(), llm.Request{Model: "m", Turns: []llm.Turn{{Role: "user", Content: "x"}}})
	if !errors.Is(err, llm.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestCallBadRequestIncludesMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model is required"},
		})
	})

	_, err := client.Call(context.Background(), llm.Request{Model: "m", Turns: []llm.Turn{{Role: "user", Content: "x"}}})
	if !errors.Is(err, llm.ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestCallRetriesOnTimeout(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			time.Sleep(500 * time.Millisecond) // beyond the client timeout
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "m",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": "recovered"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	defer srv.Close()

	client, err := New(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := client.Call(context.Background(), llm.Request{Model: "m", Turns: []llm.Turn{{Role: "user", Content: "x"}}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("Content = %q", resp.Content)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestCallDoesNotRetryAPIErrors(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	})

	client.Call(context.Background(), llm.Request{Model: "m", Turns: []llm.Turn{{Role: "user", Content: "x"}}})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
