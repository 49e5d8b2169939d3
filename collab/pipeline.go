package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loomlabs/loom/catalog"
	"github.com/loomlabs/loom/llm"
	"github.com/loomlabs/loom/usage"
)

// Stage names a phase of a collaboration run.
type Stage string

// Run stages, in order. Deciding evaluates the classifier verdict and
// the force flag; Reviewing only runs when it decides so.
const (
	StagePlanning  Stage = "planning"
	StageWriting   Stage = "writing"
	StageDeciding  Stage = "deciding"
	StageReviewing Stage = "reviewing"
	StageDone      Stage = "done"
)

// Per-stage call settings. Review runs cooler for consistent edits.
const (
	plannerTemperature  = 0.7
	plannerMaxTokens    = 500
	writerTemperature   = 0.7
	writerMaxTokens     = 1500
	reviewerTemperature = 0.5
	reviewerMaxTokens   = 1500
)

// StageError reports which stage aborted the run.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("collaboration stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Logger is the minimal logging interface the pipeline needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Request is one collaboration invocation.
type Request struct {
	// Query is the user's question. Required.
	Query string `json:"query"`

	// Context is optional supporting text included in every stage prompt.
	Context string `json:"context,omitempty"`

	// IncludeTrace requests the per-stage trace on the result.
	IncludeTrace bool `json:"include_trace,omitempty"`

	// ForceFullPipeline runs the Reviewer regardless of the classifier.
	ForceFullPipeline bool `json:"force_full_pipeline,omitempty"`
}

// StageTrace records one stage of a traced run.
type StageTrace struct {
	Stage      Stage         `json:"stage"`
	Role       Role          `json:"role,omitempty"`
	Model      string        `json:"model,omitempty"`
	Output     string        `json:"output,omitempty"`
	Tokens     int           `json:"tokens"`
	Duration   time.Duration `json:"duration_ms"`
	Skipped    bool          `json:"skipped,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
}

// Result is a completed collaboration run.
type Result struct {
	ID            string        `json:"collaboration_id"`
	FinalResponse string        `json:"final_response"`
	Plan          string        `json:"plan,omitempty"`
	Draft         string        `json:"draft,omitempty"`
	Complexity    Complexity    `json:"complexity"`
	ReviewerRan   bool          `json:"reviewer_ran"`
	TotalTokens   int           `json:"total_tokens"`
	Duration      time.Duration `json:"duration_ms"`

	// Trace is populated only when the request asked for it.
	Trace []StageTrace `json:"trace,omitempty"`
}

// Config wires a Pipeline.
type Config struct {
	// Caller executes the stage LLM calls. Required.
	Caller llm.Caller

	// Agents is the role registry. Defaults to NewRegistry().
	Agents *Registry

	// Catalog validates per-stage model assignments. Required.
	Catalog catalog.Catalog

	// Usage receives per-stage usage events. Defaults to usage.Noop.
	Usage usage.Recorder

	// Classifier overrides the complexity thresholds.
	Classifier *ClassifierConfig

	// ReviewMaxChars caps the draft excerpt for review. Defaults to
	// DefaultReviewMaxChars.
	ReviewMaxChars int

	// Logger defaults to a noop logger.
	Logger Logger
}

// Pipeline runs collaborations. Runs are independent and unguarded:
// concurrent runs never serialize on each other.
type Pipeline struct {
	caller         llm.Caller
	agents         *Registry
	catalog        catalog.Catalog
	usage          usage.Recorder
	classifier     ClassifierConfig
	reviewMaxChars int
	logger         Logger
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Caller == nil {
		return nil, errors.New("collab: caller is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("collab: catalog is required")
	}
	if cfg.Agents == nil {
		cfg.Agents = NewRegistry()
	}
	if cfg.Usage == nil {
		cfg.Usage = usage.Noop{}
	}
	classifier := DefaultClassifierConfig()
	if cfg.Classifier != nil {
		classifier = *cfg.Classifier
	}
	if cfg.ReviewMaxChars <= 0 {
		cfg.ReviewMaxChars = DefaultReviewMaxChars
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Pipeline{
		caller:         cfg.Caller,
		agents:         cfg.Agents,
		catalog:        cfg.Catalog,
		usage:          cfg.Usage,
		classifier:     classifier,
		reviewMaxChars: cfg.ReviewMaxChars,
		logger:         cfg.Logger,
	}, nil
}

// Agents returns the pipeline's role registry.
func (p *Pipeline) Agents() *Registry {
	return p.agents
}

// Run executes one collaboration. A stage failure aborts the run and
// surfaces as a StageError naming the stage; nothing from a failed run
// is delivered.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Query == "" {
		return nil, &StageError{Stage: StagePlanning, Err: errors.New("query is required")}
	}

	id := uuid.NewString()[:8]
	start := time.Now()
	complexity := p.classifier.Classify(req.Query, req.Context)
	useReviewer := complexity.IsComplex || req.ForceFullPipeline

	p.logger.Info("collaboration started",
		"collaboration_id", id,
		"query_length", len(req.Query),
		"complexity_score", complexity.Score,
		"use_reviewer", useReviewer)

	res := &Result{ID: id, Complexity: complexity}
	contextPrefix := ""
	if req.Context != "" {
		contextPrefix = "Context: " + req.Context + "\n\n"
	}

	// Planning.
	plannerPrompt := fmt.Sprintf(`%sUser Question: %s

Create a clear plan for answering this question. Output 3-5 bullet points.`, contextPrefix, req.Query)

	plan, err := p.invoke(ctx, res, req, StagePlanning, RolePlanner, plannerPrompt,
		plannerTemperature, plannerMaxTokens)
	if err != nil {
		return nil, err
	}
	res.Plan = plan

	// Writing.
	writerPrompt := fmt.Sprintf(`%sUser Question: %s

=== PLANNER'S OUTLINE ===
%s

Based on this plan, write a comprehensive response addressing each point.`, contextPrefix, req.Query, plan)

	draft, err := p.invoke(ctx, res, req, StageWriting, RoleWriter, writerPrompt,
		writerTemperature, writerMaxTokens)
	if err != nil {
		return nil, err
	}
	res.Draft = draft

	// Deciding.
	decision := StageTrace{Stage: StageDeciding, Tokens: 0}
	if useReviewer {
		decision.Output = fmt.Sprintf("review (score=%d, forced=%v)", complexity.Score, req.ForceFullPipeline)
	} else {
		decision.Output = fmt.Sprintf("skip review (score=%d < %d)", complexity.Score, p.classifier.ComplexThreshold)
	}
	if req.IncludeTrace {
		res.Trace = append(res.Trace, decision)
	}

	// Reviewing, or the draft stands as final.
	if useReviewer {
		excerpt := ExtractKeySections(draft, p.reviewMaxChars)
		reviewerPrompt := fmt.Sprintf(`%sUser Question: %s

=== PLANNER'S OUTLINE ===
%s

=== KEY SECTIONS OF WRITER'S DRAFT ===
%s

[Note: This is an optimized review with key sections only. Full draft length: %d chars]

Based on these key sections, review and provide the final, polished response.
Ensure all plan points are addressed. Fix any issues but keep changes minimal.`,
			contextPrefix, req.Query, plan, excerpt, len(draft))

		final, err := p.invoke(ctx, res, req, StageReviewing, RoleReviewer, reviewerPrompt,
			reviewerTemperature, reviewerMaxTokens)
		if err != nil {
			return nil, err
		}
		res.FinalResponse = final
		res.ReviewerRan = true
	} else {
		res.FinalResponse = draft
		if req.IncludeTrace {
			res.Trace = append(res.Trace, StageTrace{
				Stage:      StageReviewing,
				Role:       RoleReviewer,
				Skipped:    true,
				SkipReason: fmt.Sprintf("complexity_score=%d < %d", complexity.Score, p.classifier.ComplexThreshold),
			})
		}
		p.logger.Info("reviewer skipped",
			"collaboration_id", id,
			"complexity_score", complexity.Score)
	}

	res.Duration = time.Since(start)
	if req.IncludeTrace {
		res.Trace = append(res.Trace, StageTrace{Stage: StageDone, Duration: res.Duration})
	}

	p.logger.Info("collaboration completed",
		"collaboration_id", id,
		"total_tokens", res.TotalTokens,
		"duration", res.Duration,
		"reviewer_ran", res.ReviewerRan)
	return res, nil
}

// invoke runs one LLM-backed stage: resolve the role's model from the
// registry, validate it against the catalog, call, record usage, trace.
func (p *Pipeline) invoke(ctx context.Context, res *Result, req Request, stage Stage, role Role, userPrompt string, temperature float64, maxTokens int) (string, error) {
	agent, err := p.agents.Get(role)
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}
	if !p.catalog.Has(agent.Model) {
		return "", &StageError{Stage: stage, Err: fmt.Errorf("%w: %s", catalog.ErrUnknownModel, agent.Model)}
	}

	p.logger.Debug("agent stage", "stage", string(stage), "role", string(role), "model", agent.Model)
	start := time.Now()

	resp, err := p.caller.Call(ctx, llm.Request{
		Model: agent.Model,
		Turns: []llm.Turn{
			{Role: llm.RoleSystem, Content: agent.SystemPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}

	p.usage.Record(usage.Event{
		CollaborationID: res.ID,
		Model:           agent.Model,
		Operation:       usage.OpCollaboration,
		InputTokens:     resp.Usage.PromptTokens,
		OutputTokens:    resp.Usage.CompletionTokens,
	})

	res.TotalTokens += resp.Usage.TotalTokens
	if req.IncludeTrace {
		res.Trace = append(res.Trace, StageTrace{
			Stage:    stage,
			Role:     role,
			Model:    agent.Model,
			Output:   resp.Content,
			Tokens:   resp.Usage.TotalTokens,
			Duration: time.Since(start),
		})
	}
	return resp.Content, nil
}
