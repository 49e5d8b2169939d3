package loom

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/assemble"
	"github.com/loomlabs/loom/llm"
	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/summarize"
	"github.com/loomlabs/loom/usage"
)

// SendParams configures one message send.
type SendParams struct {
	// Content is the user's message. Required.
	Content string

	// Model overrides the thread and process defaults for this call.
	Model string

	// Temperature is passed through to the provider. Zero means the
	// provider default.
	Temperature float64
}

// SendResult is the outcome of one send.
type SendResult struct {
	// Message is the persisted assistant reply.
	Message *storage.Message

	// UserMessage is the persisted user message.
	UserMessage *storage.Message

	// Model is the resolved model the call used.
	Model string

	// Truncated reports that even the single most recent message
	// exceeded the token budget and the context was sent over budget.
	Truncated bool

	// ContextMessages is how many turns the assembled context carried.
	ContextMessages int

	// ContextTokens is the assembly's token estimate.
	ContextTokens int

	// Usage is the provider-reported token usage.
	Usage llm.Usage

	// SummarizationQueued reports that this send tripped the
	// summarization trigger.
	SummarizationQueued bool
}

// SendMessage appends the user message, assembles the context, calls
// the model, persists the assistant reply and evaluates the
// summarization trigger. The whole pipeline runs inside the thread's
// exclusive section; sends on the same thread serialize in arrival
// order while distinct threads proceed concurrently.
func (e *Engine) SendMessage(ctx context.Context, threadID uuid.UUID, params SendParams) (*SendResult, error) {
	if strings.TrimSpace(params.Content) == "" {
		return nil, NewThreadError("SendMessage", threadID, ErrEmptyContent)
	}

	var (
		res *SendResult
		err error
	)
	e.guard.do(threadID, func() {
		res, err = e.send(ctx, threadID, params)
	})
	return res, err
}

func (e *Engine) send(ctx context.Context, threadID uuid.UUID, params SendParams) (*SendResult, error) {
	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewThreadError("SendMessage", threadID, ErrThreadNotFound)
		}
		return nil, NewThreadError("SendMessage", threadID, err)
	}

	model, err := e.resolveModel(params.Model, thread.DefaultModel)
	if err != nil {
		return nil, NewThreadError("SendMessage", threadID, err)
	}

	userMsg := &storage.Message{
		ID:       uuid.New(),
		ThreadID: threadID,
		Seq:      thread.MessageCount + 1,
		Role:     storage.RoleUser,
		Content:  params.Content,
	}
	if err := e.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, NewThreadError("SendMessage", threadID, err)
	}

	assembled, err := e.assembleContext(ctx, thread, userMsg, model)
	if err != nil {
		return nil, NewThreadError("SendMessage", threadID, err)
	}

	resp, err := e.caller.Call(ctx, llm.Request{
		Model:       model,
		Turns:       assembled.Turns,
		Temperature: params.Temperature,
	})
	if err != nil {
		// Transport errors bubble unmodified through Unwrap.
		return nil, NewThreadError("SendMessage", threadID, err)
	}

	e.usage.Record(usage.Event{
		ThreadID:     &threadID,
		Model:        model,
		Operation:    usage.OpMessage,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})

	assistantMsg := &storage.Message{
		ID:       uuid.New(),
		ThreadID: threadID,
		Seq:      userMsg.Seq + 1,
		Role:     storage.RoleAssistant,
		Content:  resp.Content,
		Model:    model,
		Tokens:   resp.Usage.CompletionTokens,
	}
	if err := e.store.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, NewThreadError("SendMessage", threadID, err)
	}

	queued := false
	sinceSummary := thread.MessagesSinceSummary + 2
	if summarize.ShouldSummarize(sinceSummary, e.cfg.SummarizeThreshold) {
		queued = e.dispatchSummarization(threadID)
	}

	if assembled.Truncated {
		e.logger.Warn("context over budget",
			"thread_id", threadID,
			"model", model,
			"estimated_tokens", assembled.EstimatedTokens)
	}
	e.logger.Debug("message sent",
		"thread_id", threadID,
		"model", model,
		"context_turns", len(assembled.Turns),
		"dropped", assembled.Dropped,
		"summarization_queued", queued)

	return &SendResult{
		Message:             assistantMsg,
		UserMessage:         userMsg,
		Model:               model,
		Truncated:           assembled.Truncated,
		ContextMessages:     len(assembled.Turns),
		ContextTokens:       assembled.EstimatedTokens,
		Usage:               resp.Usage,
		SummarizationQueued: queued,
	}, nil
}

// assembleContext builds the provider turn list for a call: system
// prompt, effective summary, then the recent messages after the summary
// boundary, trimmed to the smaller of the configured budget and the
// model's context window.
func (e *Engine) assembleContext(ctx context.Context, thread *storage.Thread, newest *storage.Message, model string) (assemble.Result, error) {
	summary, err := e.store.LatestSummary(ctx, thread.ID)
	if err != nil {
		return assemble.Result{}, err
	}

	afterSeq := 0
	summaryText := ""
	if summary != nil {
		afterSeq = summary.ToSeq
		summaryText = summary.Text
	}

	msgs, err := e.store.GetMessages(ctx, thread.ID, storage.MessagesQuery{
		AfterSeq: afterSeq,
		Limit:    e.cfg.MaxContextMessages,
	})
	if err != nil {
		return assemble.Result{}, err
	}
	// The store read races nothing (we hold the thread guard), but the
	// newest message must be present even if the window cap cut it off.
	if len(msgs) == 0 || msgs[len(msgs)-1].Seq != newest.Seq {
		msgs = append(msgs, newest)
	}

	turns := make([]llm.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = llm.Turn{Role: m.Role, Content: m.Content}
	}

	budget := e.cfg.MaxContextTokens
	if window := e.catalog.ContextWindow(model); window < budget {
		budget = window
	}

	result := assemble.Assemble(assemble.Input{
		SystemPrompt: thread.SystemPrompt,
		Summary:      summaryText,
		Messages:     turns,
		Model:        model,
		TokenBudget:  budget,
	})
	return result, nil
}
