package loom

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/storage"
)

// DefaultUserID owns threads created without an explicit user.
const DefaultUserID = "default_user"

// ThreadParams configures a new thread.
type ThreadParams struct {
	// UserID owns the thread. Default: DefaultUserID.
	UserID string

	// Title is an optional display title.
	Title string

	// SystemPrompt is prepended to every assembly for this thread.
	SystemPrompt string

	// DefaultModel is the thread-level model default. When set it must
	// exist in the catalog.
	DefaultModel string
}

// ThreadUpdate holds the mutable thread fields; nil fields are left
// unchanged.
type ThreadUpdate struct {
	Title        *string
	SystemPrompt *string
	DefaultModel *string
	Status       *string
}

// ListThreadsParams filters and paginates ListThreads.
type ListThreadsParams struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// CreateThread creates a new conversation thread.
func (e *Engine) CreateThread(ctx context.Context, params ThreadParams) (*storage.Thread, error) {
	if params.DefaultModel != "" && !e.catalog.Has(params.DefaultModel) {
		return nil, NewThreadError("CreateThread", uuid.Nil,
			fmt.Errorf("%w: %s", ErrUnknownModel, params.DefaultModel))
	}
	if params.UserID == "" {
		params.UserID = DefaultUserID
	}

	thread := &storage.Thread{
		ID:           uuid.New(),
		UserID:       params.UserID,
		Title:        params.Title,
		SystemPrompt: params.SystemPrompt,
		DefaultModel: params.DefaultModel,
		Status:       storage.StatusActive,
	}
	if err := e.store.CreateThread(ctx, thread); err != nil {
		return nil, NewThreadError("CreateThread", thread.ID, err)
	}

	e.logger.Info("thread created", "thread_id", thread.ID, "user_id", thread.UserID)
	return thread, nil
}

// GetThread returns a thread by ID.
func (e *Engine) GetThread(ctx context.Context, id uuid.UUID) (*storage.Thread, error) {
	thread, err := e.store.GetThread(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewThreadError("GetThread", id, ErrThreadNotFound)
		}
		return nil, NewThreadError("GetThread", id, err)
	}
	return thread, nil
}

// UpdateThread applies the non-nil fields. A new DefaultModel must
// exist in the catalog.
func (e *Engine) UpdateThread(ctx context.Context, id uuid.UUID, update ThreadUpdate) (*storage.Thread, error) {
	if update.DefaultModel != nil && *update.DefaultModel != "" && !e.catalog.Has(*update.DefaultModel) {
		return nil, NewThreadError("UpdateThread", id,
			fmt.Errorf("%w: %s", ErrUnknownModel, *update.DefaultModel))
	}

	thread, err := e.store.UpdateThread(ctx, id, storage.ThreadUpdate{
		Title:        update.Title,
		SystemPrompt: update.SystemPrompt,
		DefaultModel: update.DefaultModel,
		Status:       update.Status,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewThreadError("UpdateThread", id, ErrThreadNotFound)
		}
		return nil, NewThreadError("UpdateThread", id, err)
	}
	return thread, nil
}

// ListThreads returns matching threads newest first plus the total
// match count.
func (e *Engine) ListThreads(ctx context.Context, params ListThreadsParams) ([]*storage.Thread, int, error) {
	threads, total, err := e.store.ListThreads(ctx, storage.ListThreadsParams{
		UserID: params.UserID,
		Status: params.Status,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return nil, 0, NewThreadError("ListThreads", uuid.Nil, err)
	}
	return threads, total, nil
}

// GetMessages returns a window of a thread's messages, oldest first.
func (e *Engine) GetMessages(ctx context.Context, threadID uuid.UUID, afterSeq, limit int) ([]*storage.Message, error) {
	if _, err := e.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	msgs, err := e.store.GetMessages(ctx, threadID, storage.MessagesQuery{AfterSeq: afterSeq, Limit: limit})
	if err != nil {
		return nil, NewThreadError("GetMessages", threadID, err)
	}
	return msgs, nil
}

// Summaries returns a thread's summaries, newest first.
func (e *Engine) Summaries(ctx context.Context, threadID uuid.UUID, limit int) ([]*storage.Summary, error) {
	if _, err := e.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	sums, err := e.store.ListSummaries(ctx, threadID, limit)
	if err != nil {
		return nil, NewThreadError("Summaries", threadID, err)
	}
	return sums, nil
}

// LatestSummary returns the thread's effective summary, or nil when the
// thread has none.
func (e *Engine) LatestSummary(ctx context.Context, threadID uuid.UUID) (*storage.Summary, error) {
	if _, err := e.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	sum, err := e.store.LatestSummary(ctx, threadID)
	if err != nil {
		return nil, NewThreadError("LatestSummary", threadID, err)
	}
	return sum, nil
}
