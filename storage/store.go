// Package storage defines the persistence contract for threads,
// messages and summaries, with a PostgreSQL implementation and an
// in-memory implementation for tests and development.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Thread statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Thread is one conversation.
type Thread struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	SystemPrompt string    `json:"system_prompt"`
	DefaultModel string    `json:"default_model"`

	// MessageCount is the total number of messages; the next message's
	// Seq is MessageCount+1.
	MessageCount int `json:"message_count"`

	// MessagesSinceSummary counts appends since the last committed
	// summary. It resets to zero exactly when a summary commits.
	MessagesSinceSummary int `json:"messages_since_summary"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one immutable turn in a thread. Seq is unique and
// monotonically increasing per thread.
type Message struct {
	ID       uuid.UUID `json:"id"`
	ThreadID uuid.UUID `json:"thread_id"`
	Seq      int       `json:"seq"`
	Role     string    `json:"role"`
	Content  string    `json:"content"`

	// Model is set on assistant messages only.
	Model string `json:"model,omitempty"`

	// Tokens is the provider-reported completion token count, when known.
	Tokens    int       `json:"tokens,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is one committed digest of a thread segment. The effective
// summary is the latest; older rows are retained for audit.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	ThreadID uuid.UUID `json:"thread_id"`
	Text     string    `json:"text"`

	// FromSeq and ToSeq bound the message range the summary covers.
	FromSeq int `json:"from_seq"`
	ToSeq   int `json:"to_seq"`

	// TriggerReason records why the summary was produced.
	TriggerReason string    `json:"trigger_reason"`
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
}

// ThreadUpdate holds the mutable thread fields; nil fields are left
// unchanged.
type ThreadUpdate struct {
	Title        *string
	SystemPrompt *string
	DefaultModel *string
	Status       *string
}

// ListThreadsParams filters and paginates thread listings.
type ListThreadsParams struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// MessagesQuery selects a window of a thread's messages. Results are
// always ordered oldest first.
type MessagesQuery struct {
	// AfterSeq selects messages with Seq > AfterSeq. Zero means from the
	// beginning.
	AfterSeq int

	// Limit caps the result. With AfterSeq zero the window is the LAST
	// Limit messages, so recent context reads stay cheap. Zero means no
	// cap.
	Limit int
}

// Store is the persistence contract the engine runs on.
type Store interface {
	// CreateThread inserts a new thread.
	CreateThread(ctx context.Context, thread *Thread) error

	// GetThread returns the thread or ErrNotFound.
	GetThread(ctx context.Context, id uuid.UUID) (*Thread, error)

	// UpdateThread applies the non-nil fields and returns the updated
	// thread, or ErrNotFound.
	UpdateThread(ctx context.Context, id uuid.UUID, update ThreadUpdate) (*Thread, error)

	// ListThreads returns matching threads newest first plus the total
	// match count.
	ListThreads(ctx context.Context, params ListThreadsParams) ([]*Thread, int, error)

	// AppendMessage inserts the message and bumps the thread's
	// MessageCount and MessagesSinceSummary in the same transaction.
	AppendMessage(ctx context.Context, msg *Message) error

	// GetMessages returns a window of the thread's messages, oldest
	// first.
	GetMessages(ctx context.Context, threadID uuid.UUID, q MessagesQuery) ([]*Message, error)

	// SaveSummary inserts the summary and resets the thread's
	// MessagesSinceSummary to zero in the same transaction.
	SaveSummary(ctx context.Context, summary *Summary) error

	// LatestSummary returns the thread's effective summary, or nil when
	// the thread has none.
	LatestSummary(ctx context.Context, threadID uuid.UUID) (*Summary, error)

	// ListSummaries returns the thread's summaries newest first.
	ListSummaries(ctx context.Context, threadID uuid.UUID, limit int) ([]*Summary, error)
}
