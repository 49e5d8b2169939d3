package loom

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/summarize"
	"github.com/loomlabs/loom/usage"
)

// dispatchSummarization queues a background summarization job on the
// thread's exclusive queue. The job waits behind any sends already in
// line, so its input set is exactly the messages present when it runs.
// Failures are logged and swallowed; the counter stays up, so the next
// append re-trips the trigger.
func (e *Engine) dispatchSummarization(threadID uuid.UUID) bool {
	return e.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SummarizationTimeout)
		defer cancel()

		e.guard.do(threadID, func() {
			if err := e.runSummarization(ctx, threadID, summarize.TriggerMessageCount); err != nil {
				e.logger.Error("summarization failed", "thread_id", threadID, "error", err)
			}
		})
	})
}

// Summarize runs summarization for a thread synchronously, inside the
// thread's exclusive section. Used by the manual trigger; the automatic
// path goes through the background dispatch.
func (e *Engine) Summarize(ctx context.Context, threadID uuid.UUID) (*storage.Summary, error) {
	var (
		sum *storage.Summary
		err error
	)
	e.guard.do(threadID, func() {
		sum, err = e.summarizeLocked(ctx, threadID, summarize.TriggerManual)
	})
	return sum, err
}

func (e *Engine) runSummarization(ctx context.Context, threadID uuid.UUID, trigger string) error {
	_, err := e.summarizeLocked(ctx, threadID, trigger)
	if errors.Is(err, summarize.ErrNoMessages) {
		return nil
	}
	return err
}

// summarizeLocked folds the prior summary plus the messages past its
// boundary into a new summary and commits it atomically with the
// counter reset. Caller must hold the thread guard.
func (e *Engine) summarizeLocked(ctx context.Context, threadID uuid.UUID, trigger string) (*storage.Summary, error) {
	if _, err := e.store.GetThread(ctx, threadID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewThreadError("Summarize", threadID, ErrThreadNotFound)
		}
		return nil, NewThreadError("Summarize", threadID, err)
	}

	prior, err := e.store.LatestSummary(ctx, threadID)
	if err != nil {
		return nil, NewThreadError("Summarize", threadID, err)
	}

	afterSeq := 0
	priorText := ""
	if prior != nil {
		afterSeq = prior.ToSeq
		priorText = prior.Text
	}

	msgs, err := e.store.GetMessages(ctx, threadID, storage.MessagesQuery{AfterSeq: afterSeq})
	if err != nil {
		return nil, NewThreadError("Summarize", threadID, err)
	}
	if len(msgs) == 0 {
		return nil, summarize.ErrNoMessages
	}

	input := make([]summarize.Message, len(msgs))
	for i, m := range msgs {
		input[i] = summarize.Message{Role: m.Role, Content: m.Content}
	}

	result, err := e.summarizer.Summarize(ctx, priorText, input)
	if err != nil {
		return nil, NewThreadError("Summarize", threadID, err)
	}

	e.usage.Record(usage.Event{
		ThreadID:     &threadID,
		Model:        result.Model,
		Operation:    usage.OpSummarization,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	})

	sum := &storage.Summary{
		ID:            uuid.New(),
		ThreadID:      threadID,
		Text:          result.Text,
		FromSeq:       msgs[0].Seq,
		ToSeq:         msgs[len(msgs)-1].Seq,
		TriggerReason: trigger,
		Model:         result.Model,
	}
	if err := e.store.SaveSummary(ctx, sum); err != nil {
		return nil, NewThreadError("Summarize", threadID, err)
	}

	e.logger.Info("summary committed",
		"thread_id", threadID,
		"from_seq", sum.FromSeq,
		"to_seq", sum.ToSeq,
		"trigger", trigger)
	return sum, nil
}
