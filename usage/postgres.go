package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomlabs/loom/catalog"
)

// DefaultBufferSize is the event channel capacity. When the buffer is
// full new events are dropped rather than blocking the send path.
const DefaultBufferSize = 256

const usageSchema = `
CREATE TABLE IF NOT EXISTS loom_usage_events (
	id UUID PRIMARY KEY,
	thread_id UUID,
	collaboration_id TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL,
	operation TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loom_usage_created ON loom_usage_events (created_at DESC);
`

// PostgresRecorder persists usage events through a buffered channel so
// the hot path never waits on the database.
type PostgresRecorder struct {
	pool    *pgxpool.Pool
	catalog catalog.Catalog
	events  chan Event
	done    chan struct{}
	stopped chan struct{}
}

var _ Recorder = (*PostgresRecorder)(nil)

// NewPostgresRecorder creates a recorder on an existing pool. Start must
// be called before events are drained.
func NewPostgresRecorder(pool *pgxpool.Pool, cat catalog.Catalog) *PostgresRecorder {
	return &PostgresRecorder{
		pool:    pool,
		catalog: cat,
		events:  make(chan Event, DefaultBufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Migrate creates the usage table if it does not exist.
func (r *PostgresRecorder) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, usageSchema); err != nil {
		return fmt.Errorf("failed to run usage migrations: %w", err)
	}
	return nil
}

// Start launches the drain loop.
func (r *PostgresRecorder) Start() {
	go r.drain()
}

// Close stops the drain loop after flushing buffered events.
func (r *PostgresRecorder) Close() {
	close(r.done)
	<-r.stopped
}

// Record implements Recorder. It never blocks; events are dropped when
// the buffer is full.
func (r *PostgresRecorder) Record(e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	select {
	case r.events <- e:
	default:
	}
}

func (r *PostgresRecorder) drain() {
	defer close(r.stopped)
	for {
		select {
		case e := <-r.events:
			r.insert(e)
		case <-r.done:
			for {
				select {
				case e := <-r.events:
					r.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (r *PostgresRecorder) insert(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Insert failures are dropped; usage is best-effort accounting.
	_, _ = r.pool.Exec(ctx, `
		INSERT INTO loom_usage_events (id, thread_id, collaboration_id, model, operation, input_tokens, output_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.ThreadID, e.CollaborationID, e.Model, e.Operation, e.InputTokens, e.OutputTokens, e.CreatedAt)
}

// ModelUsage aggregates usage for one model.
type ModelUsage struct {
	Model        string        `json:"model"`
	Calls        int           `json:"calls"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Cost         CostBreakdown `json:"cost"`
}

// OperationUsage aggregates usage for one operation kind.
type OperationUsage struct {
	Operation   string `json:"operation"`
	Calls       int    `json:"calls"`
	TotalTokens int    `json:"total_tokens"`
}

// Report is an aggregate usage summary over a time window.
type Report struct {
	Since        time.Time        `json:"since"`
	Calls        int              `json:"calls"`
	InputTokens  int              `json:"input_tokens"`
	OutputTokens int              `json:"output_tokens"`
	TotalCost    float64          `json:"total_cost"`
	ByModel      []ModelUsage     `json:"by_model"`
	ByOperation  []OperationUsage `json:"by_operation"`
}

// Summary aggregates all events recorded since the given time.
func (r *PostgresRecorder) Summary(ctx context.Context, since time.Time) (*Report, error) {
	report := &Report{Since: since}

	rows, err := r.pool.Query(ctx, `
		SELECT model, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM loom_usage_events
		WHERE created_at >= $1
		GROUP BY model
		ORDER BY model
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage by model: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m ModelUsage
		if err := rows.Scan(&m.Model, &m.Calls, &m.InputTokens, &m.OutputTokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		m.Cost = Cost(r.catalog, m.Model, m.InputTokens, m.OutputTokens)
		report.ByModel = append(report.ByModel, m)
		report.Calls += m.Calls
		report.InputTokens += m.InputTokens
		report.OutputTokens += m.OutputTokens
		report.TotalCost += m.Cost.Total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	opRows, err := r.pool.Query(ctx, `
		SELECT operation, COUNT(*), COALESCE(SUM(input_tokens + output_tokens), 0)
		FROM loom_usage_events
		WHERE created_at >= $1
		GROUP BY operation
		ORDER BY operation
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage by operation: %w", err)
	}
	defer opRows.Close()

	for opRows.Next() {
		var op OperationUsage
		if err := opRows.Scan(&op.Operation, &op.Calls, &op.TotalTokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		report.ByOperation = append(report.ByOperation, op)
	}
	return report, opRows.Err()
}
