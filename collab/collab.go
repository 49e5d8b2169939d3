// Package collab orchestrates the Planner → Writer → [Reviewer]
// collaboration pipeline. A deterministic complexity classifier decides
// whether the Reviewer stage runs; per-role model assignments live in a
// hot-swappable registry read once at run start.
package collab

import (
	"errors"
	"fmt"
	"sync"
)

// Role identifies a collaboration agent.
type Role string

// The three collaboration roles, in stage order.
const (
	RolePlanner  Role = "planner"
	RoleWriter   Role = "writer"
	RoleReviewer Role = "reviewer"
)

// ErrUnknownRole is returned for roles outside the fixed set.
var ErrUnknownRole = errors.New("unknown agent role")

// stageOrder fixes listing order for the registry.
var stageOrder = []Role{RolePlanner, RoleWriter, RoleReviewer}

// AgentConfig binds a role to a model and its system prompt.
type AgentConfig struct {
	Role         Role   `json:"role"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
	Description  string `json:"description"`
}

// DefaultAgents returns the stock role assignments.
func DefaultAgents() map[Role]AgentConfig {
	return map[Role]AgentConfig{
		RolePlanner: {
			Role:  RolePlanner,
			Model: "openai/gpt-4-turbo",
			SystemPrompt: `You are a strategic PLANNER agent. Your role is to:
1. Analyze the user's question or request carefully
2. Identify key points that need to be addressed
3. Create a clear, structured outline for the response
4. Consider different perspectives and approaches

Output a concise plan (3-5 bullet points) that will guide the Writer agent.
Focus on WHAT should be covered, not the actual content.
Be specific and actionable in your planning.`,
			Description: "Analyzes questions and creates response strategies",
		},
		RoleWriter: {
			Role:  RoleWriter,
			Model: "anthropic/claude-3.5-sonnet",
			SystemPrompt: `You are a skilled WRITER agent. Your role is to:
1. Follow the plan provided by the Planner agent
2. Generate detailed, well-structured content
3. Ensure clarity and coherence in your writing
4. Cover all points in the plan thoroughly

You will receive the original question AND the Planner's outline.
Write comprehensive content that addresses each planned point.
Be informative, accurate, and engaging.`,
			Description: "Generates detailed content based on the plan",
		},
		RoleReviewer: {
			Role:  RoleReviewer,
			Model: "openai/gpt-4-turbo",
			SystemPrompt: `You are a critical REVIEWER agent. Your role is to:
1. Review the key sections and summary of the Writer's content
2. Check if the plan points are properly addressed
3. Identify any gaps, errors, or areas for improvement
4. Provide a refined, polished final response

You will see: Original question, the plan, then key sections of the draft.
This is an optimized review - you only see critical parts to review efficiently.
Output the FINAL polished response, incorporating necessary improvements.
Keep improvements subtle - only fix real issues, don't over-edit.`,
			Description: "Reviews and polishes the final output",
		},
	}
}

// Registry holds the mutable role-to-model assignments. Reads and
// swaps are safe for concurrent use; a pipeline run reads each role
// once at stage start.
type Registry struct {
	mu     sync.RWMutex
	agents map[Role]AgentConfig
}

// NewRegistry creates a registry seeded with DefaultAgents.
func NewRegistry() *Registry {
	return &Registry{agents: DefaultAgents()}
}

// Get returns the configuration for a role.
func (r *Registry) Get(role Role) (AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.agents[role]
	if !ok {
		return AgentConfig{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return cfg, nil
}

// SetModel hot-swaps the model for a role. In-flight runs keep the
// assignment they read at stage start; subsequent runs pick up the new
// one.
func (r *Registry) SetModel(role Role, model string) (AgentConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.agents[role]
	if !ok {
		return AgentConfig{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	cfg.Model = model
	r.agents[role] = cfg
	return cfg, nil
}

// List returns all agent configurations in stage order.
func (r *Registry) List() []AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentConfig, 0, len(stageOrder))
	for _, role := range stageOrder {
		if cfg, ok := r.agents[role]; ok {
			out = append(out, cfg)
		}
	}
	return out
}
