package loom

import (
	"fmt"
	"time"

	"github.com/loomlabs/loom/catalog"
	"github.com/loomlabs/loom/llm"
	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/summarize"
	"github.com/loomlabs/loom/usage"
)

// Default configuration values.
const (
	DefaultModel              = "openai/gpt-3.5-turbo"
	DefaultSummarizationModel = "anthropic/claude-3.5-sonnet"
	DefaultMaxContextTokens   = 8000
	DefaultMaxContextMessages = 20
	DefaultSummarizeThreshold = summarize.DefaultThreshold

	// DefaultSummarizationTimeout bounds one background summarization job.
	DefaultSummarizationTimeout = 2 * time.Minute
)

// Config holds the engine configuration.
type Config struct {
	// Store persists threads, messages and summaries (required).
	Store storage.Store

	// Caller executes LLM calls (required).
	Caller llm.Caller

	// Catalog validates model identifiers and supplies context windows.
	// Default: catalog.Default().
	Catalog catalog.Catalog

	// Usage receives usage events after every LLM call.
	// Default: usage.Noop.
	Usage usage.Recorder

	// Logger receives engine logs. Default: discard.
	Logger Logger

	// DefaultModel is the process-wide model default, the last step of
	// resolution. Default: DefaultModel.
	DefaultModel string

	// SummarizationModel produces summaries. Default:
	// DefaultSummarizationModel.
	SummarizationModel string

	// SummarizeThreshold is the messages-since-summary count that
	// triggers summarization. Zero means DefaultSummarizeThreshold;
	// negative disables the trigger.
	SummarizeThreshold int

	// MaxContextTokens caps the assembly budget. The effective budget is
	// the smaller of this and the model's context window.
	// Default: DefaultMaxContextTokens.
	MaxContextTokens int

	// MaxContextMessages caps how many recent messages are considered
	// for assembly. Default: DefaultMaxContextMessages.
	MaxContextMessages int

	// SummarizationTimeout bounds one background summarization job.
	// Default: DefaultSummarizationTimeout.
	SummarizationTimeout time.Duration
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if c.Caller == nil {
		return fmt.Errorf("%w: caller is required", ErrInvalidConfig)
	}
	if c.MaxContextTokens < 0 {
		return fmt.Errorf("%w: max_context_tokens must be non-negative, got %d",
			ErrInvalidConfig, c.MaxContextTokens)
	}
	if c.MaxContextMessages < 0 {
		return fmt.Errorf("%w: max_context_messages must be non-negative, got %d",
			ErrInvalidConfig, c.MaxContextMessages)
	}
	return nil
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Catalog == nil {
		c.Catalog = catalog.Default()
	}
	if c.Usage == nil {
		c.Usage = usage.Noop{}
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.SummarizationModel == "" {
		c.SummarizationModel = DefaultSummarizationModel
	}
	if c.SummarizeThreshold == 0 {
		c.SummarizeThreshold = DefaultSummarizeThreshold
	}
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = DefaultMaxContextTokens
	}
	if c.MaxContextMessages == 0 {
		c.MaxContextMessages = DefaultMaxContextMessages
	}
	if c.SummarizationTimeout == 0 {
		c.SummarizationTimeout = DefaultSummarizationTimeout
	}
}
