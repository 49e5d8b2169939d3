package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and development mode. All
// operations are safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	threads   map[uuid.UUID]*Thread
	messages  map[uuid.UUID][]*Message
	summaries map[uuid.UUID][]*Summary
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:   make(map[uuid.UUID]*Thread),
		messages:  make(map[uuid.UUID][]*Message),
		summaries: make(map[uuid.UUID][]*Summary),
	}
}

// CreateThread inserts a new thread.
func (s *MemoryStore) CreateThread(ctx context.Context, thread *Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	t := *thread
	if t.Status == "" {
		t.Status = StatusActive
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	s.threads[t.ID] = &t
	*thread = t
	return nil
}

// GetThread returns a copy of the thread or ErrNotFound.
func (s *MemoryStore) GetThread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

// UpdateThread applies the non-nil fields and returns the updated thread.
func (s *MemoryStore) UpdateThread(ctx context.Context, id uuid.UUID, update ThreadUpdate) (*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.SystemPrompt != nil {
		t.SystemPrompt = *update.SystemPrompt
	}
	if update.DefaultModel != nil {
		t.DefaultModel = *update.DefaultModel
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	t.UpdatedAt = time.Now()
	copied := *t
	return &copied, nil
}

// ListThreads returns matching threads newest first plus the total count.
func (s *MemoryStore) ListThreads(ctx context.Context, params ListThreadsParams) ([]*Thread, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Thread
	for _, t := range s.threads {
		if params.UserID != "" && t.UserID != params.UserID {
			continue
		}
		if params.Status != "" && t.Status != params.Status {
			continue
		}
		copied := *t
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := params.Offset
	if offset > total {
		offset = total
	}
	matched = matched[offset:]

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// AppendMessage inserts the message and bumps the thread counters
// atomically under the store lock.
func (s *MemoryStore) AppendMessage(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[msg.ThreadID]
	if !ok {
		return ErrNotFound
	}

	m := *msg
	m.CreatedAt = time.Now()
	s.messages[msg.ThreadID] = append(s.messages[msg.ThreadID], &m)
	t.MessageCount++
	t.MessagesSinceSummary++
	t.UpdatedAt = m.CreatedAt
	*msg = m
	return nil
}

// GetMessages returns a window of the thread's messages, oldest first.
func (s *MemoryStore) GetMessages(ctx context.Context, threadID uuid.UUID, q MessagesQuery) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[threadID]
	var window []*Message
	for _, m := range all {
		if m.Seq > q.AfterSeq {
			window = append(window, m)
		}
	}
	if q.Limit > 0 && q.AfterSeq == 0 && len(window) > q.Limit {
		window = window[len(window)-q.Limit:]
	} else if q.Limit > 0 && len(window) > q.Limit {
		window = window[:q.Limit]
	}

	out := make([]*Message, len(window))
	for i, m := range window {
		copied := *m
		out[i] = &copied
	}
	return out, nil
}

// SaveSummary inserts the summary and resets the since-summary counter
// atomically under the store lock.
func (s *MemoryStore) SaveSummary(ctx context.Context, summary *Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[summary.ThreadID]
	if !ok {
		return ErrNotFound
	}

	sum := *summary
	sum.CreatedAt = time.Now()
	s.summaries[summary.ThreadID] = append(s.summaries[summary.ThreadID], &sum)
	t.MessagesSinceSummary = 0
	t.UpdatedAt = sum.CreatedAt
	*summary = sum
	return nil
}

// LatestSummary returns the effective summary, or nil when none exists.
func (s *MemoryStore) LatestSummary(ctx context.Context, threadID uuid.UUID) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := s.summaries[threadID]
	if len(sums) == 0 {
		return nil, nil
	}
	copied := *sums[len(sums)-1]
	return &copied, nil
}

// ListSummaries returns the thread's summaries newest first.
func (s *MemoryStore) ListSummaries(ctx context.Context, threadID uuid.UUID, limit int) ([]*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := s.summaries[threadID]
	if limit <= 0 || limit > len(sums) {
		limit = len(sums)
	}

	out := make([]*Summary, 0, limit)
	for i := len(sums) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *sums[i]
		out = append(out, &copied)
	}
	return out, nil
}
