package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL with pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL store on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a pool for the given URL, verifies the connection and
// returns a store on it.
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStore(pool), pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS loom_threads (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT 'default_user',
	title TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	default_model TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	messages_since_summary INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loom_threads_user ON loom_threads (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS loom_messages (
	id UUID PRIMARY KEY,
	thread_id UUID NOT NULL REFERENCES loom_threads(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	tokens INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (thread_id, seq)
);

CREATE TABLE IF NOT EXISTS loom_summaries (
	id UUID PRIMARY KEY,
	thread_id UUID NOT NULL REFERENCES loom_threads(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	from_seq INTEGER NOT NULL,
	to_seq INTEGER NOT NULL,
	trigger_reason TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loom_summaries_thread ON loom_summaries (thread_id, created_at DESC);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateThread inserts a new thread.
func (s *PostgresStore) CreateThread(ctx context.Context, thread *Thread) error {
	query := `
		INSERT INTO loom_threads (id, user_id, title, system_prompt, default_model, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING message_count, messages_since_summary, created_at, updated_at
	`
	if thread.Status == "" {
		thread.Status = StatusActive
	}
	err := s.pool.QueryRow(ctx, query,
		thread.ID, thread.UserID, thread.Title, thread.SystemPrompt, thread.DefaultModel, thread.Status,
	).Scan(&thread.MessageCount, &thread.MessagesSinceSummary, &thread.CreatedAt, &thread.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

const threadColumns = `id, user_id, title, system_prompt, default_model, message_count,
	messages_since_summary, status, created_at, updated_at`

func scanThread(row pgx.Row) (*Thread, error) {
	var t Thread
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.SystemPrompt, &t.DefaultModel,
		&t.MessageCount, &t.MessagesSinceSummary, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan thread: %w", err)
	}
	return &t, nil
}

// GetThread retrieves a thread by ID.
func (s *PostgresStore) GetThread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM loom_threads WHERE id = $1`
	return scanThread(s.pool.QueryRow(ctx, query, id))
}

// UpdateThread applies the non-nil fields and returns the updated thread.
func (s *PostgresStore) UpdateThread(ctx context.Context, id uuid.UUID, update ThreadUpdate) (*Thread, error) {
	query := `
		UPDATE loom_threads
		SET title = COALESCE($2, title),
		    system_prompt = COALESCE($3, system_prompt),
		    default_model = COALESCE($4, default_model),
		    status = COALESCE($5, status),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + threadColumns
	return scanThread(s.pool.QueryRow(ctx, query, id,
		update.Title, update.SystemPrompt, update.DefaultModel, update.Status))
}

// ListThreads returns matching threads newest first plus the total count.
func (s *PostgresStore) ListThreads(ctx context.Context, params ListThreadsParams) ([]*Thread, int, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	var total int
	countQuery := `
		SELECT COUNT(*) FROM loom_threads
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
	`
	if err := s.pool.QueryRow(ctx, countQuery, params.UserID, params.Status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count threads: %w", err)
	}

	query := `
		SELECT ` + threadColumns + `
		FROM loom_threads
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := s.pool.Query(ctx, query, params.UserID, params.Status, limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Title, &t.SystemPrompt, &t.DefaultModel,
			&t.MessageCount, &t.MessagesSinceSummary, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, &t)
	}
	return threads, total, rows.Err()
}

// AppendMessage inserts the message and bumps the thread counters in one
// transaction.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO loom_messages (id, thread_id, seq, role, content, model, tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, msg.ID, msg.ThreadID, msg.Seq, msg.Role, msg.Content, msg.Model, msg.Tokens).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE loom_threads
		SET message_count = message_count + 1,
		    messages_since_summary = messages_since_summary + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, msg.ThreadID)
	if err != nil {
		return fmt.Errorf("failed to update thread counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

// GetMessages returns a window of the thread's messages, oldest first.
func (s *PostgresStore) GetMessages(ctx context.Context, threadID uuid.UUID, q MessagesQuery) ([]*Message, error) {
	var (
		query string
		args  []any
	)
	switch {
	case q.AfterSeq > 0 && q.Limit > 0:
		query = `SELECT id, thread_id, seq, role, content, model, tokens, created_at
			FROM loom_messages WHERE thread_id = $1 AND seq > $2 ORDER BY seq ASC LIMIT $3`
		args = []any{threadID, q.AfterSeq, q.Limit}
	case q.AfterSeq > 0:
		query = `SELECT id, thread_id, seq, role, content, model, tokens, created_at
			FROM loom_messages WHERE thread_id = $1 AND seq > $2 ORDER BY seq ASC`
		args = []any{threadID, q.AfterSeq}
	case q.Limit > 0:
		// Last Limit messages, returned oldest first.
		query = `SELECT id, thread_id, seq, role, content, model, tokens, created_at FROM (
				SELECT id, thread_id, seq, role, content, model, tokens, created_at
				FROM loom_messages WHERE thread_id = $1 ORDER BY seq DESC LIMIT $2
			) recent ORDER BY seq ASC`
		args = []any{threadID, q.Limit}
	default:
		query = `SELECT id, thread_id, seq, role, content, model, tokens, created_at
			FROM loom_messages WHERE thread_id = $1 ORDER BY seq ASC`
		args = []any{threadID}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Seq, &m.Role, &m.Content, &m.Model, &m.Tokens, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// SaveSummary inserts the summary and resets the since-summary counter
// in one transaction.
func (s *PostgresStore) SaveSummary(ctx context.Context, summary *Summary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO loom_summaries (id, thread_id, text, from_seq, to_seq, trigger_reason, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, summary.ID, summary.ThreadID, summary.Text, summary.FromSeq, summary.ToSeq,
		summary.TriggerReason, summary.Model).Scan(&summary.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE loom_threads
		SET messages_since_summary = 0, updated_at = NOW()
		WHERE id = $1
	`, summary.ThreadID)
	if err != nil {
		return fmt.Errorf("failed to reset summary counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

const summaryColumns = `id, thread_id, text, from_seq, to_seq, trigger_reason, model, created_at`

// LatestSummary returns the effective summary, or nil when none exists.
func (s *PostgresStore) LatestSummary(ctx context.Context, threadID uuid.UUID) (*Summary, error) {
	query := `SELECT ` + summaryColumns + `
		FROM loom_summaries WHERE thread_id = $1 ORDER BY created_at DESC, to_seq DESC LIMIT 1`

	var sum Summary
	err := s.pool.QueryRow(ctx, query, threadID).Scan(
		&sum.ID, &sum.ThreadID, &sum.Text, &sum.FromSeq, &sum.ToSeq,
		&sum.TriggerReason, &sum.Model, &sum.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest summary: %w", err)
	}
	return &sum, nil
}

// ListSummaries returns the thread's summaries newest first.
func (s *PostgresStore) ListSummaries(ctx context.Context, threadID uuid.UUID, limit int) ([]*Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + summaryColumns + `
		FROM loom_summaries WHERE thread_id = $1 ORDER BY created_at DESC, to_seq DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.ThreadID, &sum.Text, &sum.FromSeq, &sum.ToSeq,
			&sum.TriggerReason, &sum.Model, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}
