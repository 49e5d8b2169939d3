package loom

import (
	"sync"

	"github.com/loomlabs/loom/catalog"
	"github.com/loomlabs/loom/llm"
	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/summarize"
	"github.com/loomlabs/loom/usage"
)

// Version is the current loom version
const Version = "1.0.0"

// Engine is the conversation engine: thread lifecycle, the send-message
// pipeline (append, assemble, call, record, trigger) and background
// summarization. All methods are safe for concurrent use; operations on
// the same thread serialize in arrival order.
type Engine struct {
	store      storage.Store
	caller     llm.Caller
	catalog    catalog.Catalog
	usage      usage.Recorder
	logger     Logger
	cfg        *Config
	guard      *threadGuard
	summarizer *summarize.Engine

	mu     sync.Mutex
	closed bool
	jobs   sync.WaitGroup
}

// New creates an Engine from the configuration.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfgCopy := *cfg
	cfgCopy.ApplyDefaults()
	if err := cfgCopy.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		store:      cfgCopy.Store,
		caller:     cfgCopy.Caller,
		catalog:    cfgCopy.Catalog,
		usage:      cfgCopy.Usage,
		logger:     cfgCopy.Logger,
		cfg:        &cfgCopy,
		guard:      newThreadGuard(),
		summarizer: summarize.NewEngine(cfgCopy.Caller, cfgCopy.SummarizationModel),
	}, nil
}

// Catalog returns the engine's model catalog.
func (e *Engine) Catalog() catalog.Catalog {
	return e.catalog
}

// Close waits for in-flight background summarization jobs to finish.
// Subsequent sends still work but no new background jobs are started.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.jobs.Wait()
}

// Wait blocks until all background summarization jobs dispatched so far
// have finished.
func (e *Engine) Wait() {
	e.jobs.Wait()
}

// dispatch runs fn on a background goroutine tracked for Close/Wait,
// unless the engine is closed.
func (e *Engine) dispatch(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		fn()
	}()
	return true
}
