package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_messages_sent_total",
			Help: "Total chat messages processed",
		},
		[]string{"model"},
	)

	Summarizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_summarizations_total",
			Help: "Total summarization runs",
		},
		[]string{"trigger", "status"}, // trigger: "message_count" or "manual"
	)

	Collaborations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_collaborations_total",
			Help: "Total collaboration pipeline runs",
		},
		[]string{"complexity"}, // "simple" or "complex"
	)

	ContextTruncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loom_context_truncations_total",
			Help: "Assemblies that exceeded the token budget",
		},
	)

	TokensConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_tokens_consumed_total",
			Help: "Tokens consumed across LLM calls",
		},
		[]string{"model", "direction"}, // direction: "input" or "output"
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loom_llm_call_duration_seconds",
			Help:    "Upstream LLM call duration",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "operation"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loom_postgres_latency_seconds",
			Help:    "PostgreSQL query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
