// Package openrouter implements llm.Caller against the OpenRouter
// chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/loomlabs/loom/llm"
)

// Defaults for the OpenRouter transport.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxAttempts = 3
)

// Backoff bounds for timeout retries.
const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 10 * time.Second
)

// Config holds OpenRouter client configuration.
type Config struct {
	// APIKey is the OpenRouter API key. Required.
	APIKey string

	// BaseURL overrides the API base URL. Default: DefaultBaseURL.
	BaseURL string

	// Timeout is the per-attempt request timeout. Default: DefaultTimeout.
	Timeout time.Duration

	// MaxAttempts is the total number of attempts for timed-out requests.
	// Only timeouts are retried; API errors surface immediately.
	// Default: DefaultMaxAttempts.
	MaxAttempts int

	// Referer and Title are sent as the HTTP-Referer and X-Title headers
	// OpenRouter uses for app attribution. Optional.
	Referer string
	Title   string

	// HTTPClient overrides the underlying client. Timeout is still
	// applied per request via context.
	HTTPClient *http.Client
}

// Client calls the OpenRouter chat-completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates an OpenRouter client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{cfg: cfg, http: hc}, nil
}

type chatRequest struct {
	Model       string     `json:"model"`
	Messages    []llm.Turn `json:"messages"`
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Call implements llm.Caller. Timed-out attempts are retried with
// exponential backoff; all other failures surface immediately.
func (c *Client) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    req.Turns,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.do(ctx, body)
		if err == nil {
			return resp, nil
		}
		if !isTimeout(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("openrouter: request timed out after %d attempts: %w",
		c.cfg.MaxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openrouter: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		httpReq.Header.Set("X-Title", c.cfg.Title)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("openrouter: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.statusError(httpResp, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openrouter: %w", llm.ErrEmptyResponse)
	}

	return &llm.Response{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: llm.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// statusError maps non-200 responses to the transport error taxonomy.
func (c *Client) statusError(resp *http.Response, body []byte) error {
	var apiErr apiError
	message := ""
	if err := json.Unmarshal(body, &apiErr); err == nil {
		message = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &llm.RateLimitError{RetryAfter: resp.Header.Get("Retry-After")}
	case http.StatusUnauthorized:
		return fmt.Errorf("openrouter: %w", llm.ErrUnauthorized)
	case http.StatusBadRequest:
		if message == "" {
			message = "invalid request"
		}
		return fmt.Errorf("openrouter: %w: %s", llm.ErrBadRequest, message)
	default:
		if message == "" {
			message = string(body)
		}
		return fmt.Errorf("openrouter: api error (status %d): %s", resp.StatusCode, message)
	}
}

// isTimeout reports whether the error is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
