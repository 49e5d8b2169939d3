package loom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/assemble"
	"github.com/loomlabs/loom/llm"
	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/summarize"
	"github.com/loomlabs/loom/usage"
)

// fakeCaller answers chat calls with canned text and summarization
// calls (recognized by the summarizer system prompt) separately, so
// tests can fail one path without the other.
type fakeCaller struct {
	mu            sync.Mutex
	chatCalls     []llm.Request
	summaryCalls  []llm.Request
	summaryErr    error
	summaryOutput string
}

func (c *fakeCaller) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(req.Turns) > 0 && req.Turns[0].Content == summarize.SystemPrompt {
		c.summaryCalls = append(c.summaryCalls, req)
		if c.summaryErr != nil {
			return nil, c.summaryErr
		}
		out := c.summaryOutput
		if out == "" {
			out = fmt.Sprintf("digest %d", len(c.summaryCalls))
		}
		return &llm.Response{Content: out, Model: req.Model,
			Usage: llm.Usage{PromptTokens: 80, CompletionTokens: 40, TotalTokens: 120}}, nil
	}

	c.chatCalls = append(c.chatCalls, req)
	return &llm.Response{
		Content: fmt.Sprintf("reply %d", len(c.chatCalls)),
		Model:   req.Model,
		Usage:   llm.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

func newTestEngine(t *testing.T, cfg *Config) (*Engine, *fakeCaller, *storage.MemoryStore) {
	t.Helper()
	caller := &fakeCaller{}
	store := storage.NewMemoryStore()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Store == nil {
		cfg.Store = store
	}
	if cfg.Caller == nil {
		cfg.Caller = caller
	}
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, caller, store
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(&Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(empty) = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(&Config{Store: storage.NewMemoryStore()}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(no caller) = %v, want ErrInvalidConfig", err)
	}
}

func TestSendMessagePersistsBothSides(t *testing.T) {
	engine, caller, _ := newTestEngine(t, nil)
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{SystemPrompt: "be helpful"})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	res, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: "hello"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if res.UserMessage.Seq != 1 || res.Message.Seq != 2 {
		t.Errorf("seqs = (%d, %d), want (1, 2)", res.UserMessage.Seq, res.Message.Seq)
	}
	if res.Message.Role != storage.RoleAssistant || res.Message.Content != "reply 1" {
		t.Errorf("assistant message = %+v", res.Message)
	}
	if res.Model != DefaultModel {
		t.Errorf("Model = %q, want process default %q", res.Model, DefaultModel)
	}
	if res.Message.Model != res.Model {
		t.Errorf("assistant message model = %q", res.Message.Model)
	}

	msgs, err := engine.GetMessages(ctx, thread.ID, 0, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("persisted messages = %d, want 2", len(msgs))
	}

	// System prompt leads the assembled context.
	if got := caller.chatCalls[0].Turns[0]; got.Role != llm.RoleSystem || got.Content != "be helpful" {
		t.Errorf("first turn = %+v, want the system prompt", got)
	}
}

func TestSendMessageModelPrecedence(t *testing.T) {
	engine, caller, _ := newTestEngine(t, nil)
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{DefaultModel: "anthropic/claude-3.5-sonnet"})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	if _, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: "a"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got := caller.chatCalls[0].Model; got != "anthropic/claude-3.5-sonnet" {
		t.Errorf("model = %q, want thread default", got)
	}

	if _, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: "b", Model: "openai/gpt-4-turbo"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got := caller.chatCalls[1].Model; got != "openai/gpt-4-turbo" {
		t.Errorf("model = %q, want the override", got)
	}
}

func TestSendMessageUnknownModel(t *testing.T) {
	engine, caller, store := newTestEngine(t, nil)
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	_, err = engine.SendMessage(ctx, thread.ID, SendParams{Content: "x", Model: "nope/unknown"})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("err = %v, want ErrUnknownModel", err)
	}
	if len(caller.chatCalls) != 0 {
		t.Error("no LLM call should happen for an unknown model")
	}
	msgs, _ := store.GetMessages(ctx, thread.ID, storage.MessagesQuery{})
	if len(msgs) != 0 {
		t.Error("nothing should be persisted when resolution fails")
	}
}

func TestSendMessageThreadNotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	_, err := engine.SendMessage(context.Background(), uuid.New(), SendParams{Content: "x"})
	if !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("err = %v, want ErrThreadNotFound", err)
	}
}

func TestSendMessageEmptyContent(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	_, err := engine.SendMessage(context.Background(), uuid.New(), SendParams{Content: "   "})
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestSummarizationTriggerAtThreshold(t *testing.T) {
	engine, caller, _ := newTestEngine(t, nil)
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	// Four sends: 8 messages, below the threshold of 10.
	for i := 0; i < 4; i++ {
		res, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: fmt.Sprintf("msg %d", i)})
		if err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
		if res.SummarizationQueued {
			t.Errorf("send %d queued summarization below threshold", i)
		}
	}
	engine.Wait()
	if len(caller.summaryCalls) != 0 {
		t.Fatalf("summarization ran below threshold")
	}

	// Fifth send: 10 messages, at the threshold.
	res, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: "msg 4"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !res.SummarizationQueued {
		t.Fatal("send at threshold did not queue summarization")
	}
	engine.Wait()

	if len(caller.summaryCalls) != 1 {
		t.Fatalf("summarization calls = %d, want 1", len(caller.summaryCalls))
	}

	got, err := engine.GetThread(ctx, thread.ID)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if got.MessagesSinceSummary != 0 {
		t.Errorf("MessagesSinceSummary = %d, want 0 after commit", got.MessagesSinceSummary)
	}

	sum, err := engine.LatestSummary(ctx, thread.ID)
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if sum == nil || sum.FromSeq != 1 || sum.ToSeq != 10 {
		t.Errorf("summary = %+v, want covering seq 1-10", sum)
	}
	if sum.TriggerReason != summarize.TriggerMessageCount {
		t.Errorf("TriggerReason = %q", sum.TriggerReason)
	}

	// The next send's context carries the summary and only the messages
	// past its boundary.
	if _, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: "after summary"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	last := caller.chatCalls[len(caller.chatCalls)-1]
	foundSummary := false
	for _, turn := range last.Turns {
		if strings.HasPrefix(turn.Content, assemble.SummaryPrefix) {
			foundSummary = true
		}
		if turn.Content == "msg 0" {
			t.Error("context still carries a summarized message")
		}
	}
	if !foundSummary {
		t.Error("context after summarization is missing the summary turn")
	}
}

func TestSummarizationFailureLeavesStateUntouched(t *testing.T) {
	engine, caller, _ := newTestEngine(t, nil)
	caller.summaryErr = errors.New("summarizer down")
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: fmt.Sprintf("msg %d", i)}); err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
	}
	engine.Wait()

	if len(caller.summaryCalls) != 1 {
		t.Fatalf("summarization attempts = %d, want 1", len(caller.summaryCalls))
	}

	got, err := engine.GetThread(ctx, thread.ID)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if got.MessagesSinceSummary != 10 {
		t.Errorf("MessagesSinceSummary = %d, want 10 (failure must not reset)", got.MessagesSinceSummary)
	}
	sum, _ := engine.LatestSummary(ctx, thread.ID)
	if sum != nil {
		t.Errorf("summary = %+v, want none after failure", sum)
	}

	// Recovery: the next append re-trips the trigger and succeeds.
	caller.mu.Lock()
	caller.summaryErr = nil
	caller.mu.Unlock()

	if _, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: "retry"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	engine.Wait()

	sum, err = engine.LatestSummary(ctx, thread.ID)
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if sum == nil || sum.ToSeq != 12 {
		t.Errorf("summary = %+v, want one covering seq 1-12", sum)
	}
}

func TestManualSummarize(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if _, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: "one"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	sum, err := engine.Summarize(ctx, thread.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.TriggerReason != summarize.TriggerManual {
		t.Errorf("TriggerReason = %q, want manual", sum.TriggerReason)
	}

	got, _ := engine.GetThread(ctx, thread.ID)
	if got.MessagesSinceSummary != 0 {
		t.Errorf("MessagesSinceSummary = %d, want 0", got.MessagesSinceSummary)
	}

	// Nothing new to fold: manual summarize with no messages past the
	// boundary reports ErrNoMessages.
	if _, err := engine.Summarize(ctx, thread.ID); !errors.Is(err, summarize.ErrNoMessages) {
		t.Errorf("err = %v, want ErrNoMessages", err)
	}
}

func TestSendMessageTruncatedFlag(t *testing.T) {
	engine, _, _ := newTestEngine(t, &Config{MaxContextTokens: 10})
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	res, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: strings.Repeat("x", 500)})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false for an over-budget singleton")
	}
	if res.ContextMessages == 0 {
		t.Error("assembly must never produce zero turns")
	}
}

func TestConcurrentSendsSameThreadSerialize(t *testing.T) {
	engine, _, store := newTestEngine(t, nil)
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: fmt.Sprintf("c %d", n)}); err != nil {
				t.Errorf("SendMessage %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()
	engine.Wait()

	msgs, err := store.GetMessages(ctx, thread.ID, storage.MessagesQuery{})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 20 {
		t.Fatalf("messages = %d, want 20", len(msgs))
	}
	// Seqs are dense and strictly increasing; user/assistant alternate.
	for i, m := range msgs {
		if m.Seq != i+1 {
			t.Fatalf("msgs[%d].Seq = %d, want %d (interleaved append)", i, m.Seq, i+1)
		}
		wantRole := storage.RoleUser
		if i%2 == 1 {
			wantRole = storage.RoleAssistant
		}
		if m.Role != wantRole {
			t.Fatalf("msgs[%d].Role = %s, want %s", i, m.Role, wantRole)
		}
	}
}

func TestUsageRecordedPerOperation(t *testing.T) {
	var mu sync.Mutex
	var events []usage.Event
	rec := usage.Func(func(e usage.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	engine, _, _ := newTestEngine(t, &Config{Usage: rec, SummarizeThreshold: 2})
	ctx := context.Background()

	thread, err := engine.CreateThread(ctx, ThreadParams{})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if _, err := engine.SendMessage(ctx, thread.ID, SendParams{Content: "hi"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	engine.Wait()

	mu.Lock()
	defer mu.Unlock()
	ops := map[string]int{}
	for _, e := range events {
		ops[e.Operation]++
		if e.ThreadID == nil || *e.ThreadID != thread.ID {
			t.Errorf("event thread id = %v", e.ThreadID)
		}
	}
	if ops[usage.OpMessage] != 1 || ops[usage.OpSummarization] != 1 {
		t.Errorf("operations = %v, want one message and one summarization", ops)
	}
}
