package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loomlabs/loom/llm"
)

// Sentinel errors for summarization.
var (
	// ErrSummarizationFailed indicates the LLM call failed or returned
	// nothing usable.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrNoMessages indicates there is nothing to summarize.
	ErrNoMessages = errors.New("no messages to summarize")
)

// Result is a produced summary plus the usage it cost.
type Result struct {
	Text  string
	Model string
	Usage llm.Usage
}

// Engine produces summaries through an llm.Caller.
type Engine struct {
	caller llm.Caller
	model  string
}

// NewEngine creates a summarization engine bound to one model.
func NewEngine(caller llm.Caller, model string) *Engine {
	return &Engine{caller: caller, model: model}
}

// Model returns the model the engine summarizes with.
func (e *Engine) Model() string {
	return e.model
}

// Summarize folds the prior summary (may be empty) and the given
// messages into a new summary. On failure nothing is produced; the
// caller's state stays untouched and the trigger fires again on the
// next append.
func (e *Engine) Summarize(ctx context.Context, priorSummary string, messages []Message) (*Result, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	conversation := FormatMessagesAsText(messages)
	var userPrompt string
	if priorSummary != "" {
		userPrompt = BuildUserPromptWithPrior(priorSummary, conversation)
	} else {
		userPrompt = BuildUserPrompt(conversation)
	}

	resp, err := e.caller.Call(ctx, llm.Request{
		Model: e.model,
		Turns: []llm.Turn{
			{Role: llm.RoleSystem, Content: SystemPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response from summarizer", ErrSummarizationFailed)
	}

	return &Result{Text: text, Model: e.model, Usage: resp.Usage}, nil
}
