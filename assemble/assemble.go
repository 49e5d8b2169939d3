// Package assemble builds the turn list sent to a provider from a
// thread's system prompt, its effective summary, and its recent
// messages, trimming to a token budget. Assembly is pure: inputs are
// never mutated and equal inputs yield equal outputs.
package assemble

import (
	"github.com/loomlabs/loom/llm"
	"github.com/loomlabs/loom/tokens"
)

// SummaryPrefix marks the summary turn injected ahead of the recent
// messages so the model can tell digest from dialogue.
const SummaryPrefix = "[Previous conversation summary]: "

// Input describes one assembly.
type Input struct {
	// SystemPrompt is the thread's system prompt. Empty means no system turn.
	SystemPrompt string

	// Summary is the effective summary text, without prefix. Empty means
	// no summary turn.
	Summary string

	// Messages are the candidate recent messages, oldest first.
	Messages []llm.Turn

	// Model selects the token estimation family.
	Model string

	// TokenBudget is the assembly budget. Non-positive disables trimming.
	TokenBudget int
}

// Result is the assembled context.
type Result struct {
	// Turns is the final turn list: system, summary, then messages,
	// oldest first.
	Turns []llm.Turn

	// EstimatedTokens is the estimate for Turns under the input model.
	EstimatedTokens int

	// Dropped counts messages trimmed to fit the budget.
	Dropped int

	// Truncated reports that the result still exceeds the budget even
	// though only the most recent message remains. The newest message is
	// never dropped; callers decide whether to fail or send anyway.
	Truncated bool
}

// Assemble builds the provider turn list. The system prompt and summary
// are always included; messages are trimmed oldest first until the
// estimate fits the budget or a single message remains.
func Assemble(in Input) Result {
	preserved := make([]llm.Turn, 0, 2)
	if in.SystemPrompt != "" {
		preserved = append(preserved, llm.Turn{Role: llm.RoleSystem, Content: in.SystemPrompt})
	}
	if in.Summary != "" {
		preserved = append(preserved, llm.Turn{Role: llm.RoleAssistant, Content: SummaryPrefix + in.Summary})
	}

	base := tokens.ConversationOverhead
	for _, t := range preserved {
		base += tokens.EstimateMessage(t.Content, in.Model)
	}

	costs := make([]int, len(in.Messages))
	total := base
	for i, m := range in.Messages {
		costs[i] = tokens.EstimateMessage(m.Content, in.Model)
		total += costs[i]
	}

	start := 0
	if in.TokenBudget > 0 {
		for total > in.TokenBudget && len(in.Messages)-start > 1 {
			total -= costs[start]
			start++
		}
	}

	msgs := in.Messages[start:]
	turns := make([]llm.Turn, 0, len(preserved)+len(msgs))
	turns = append(turns, preserved...)
	turns = append(turns, msgs...)

	if len(turns) == 0 {
		total = 0
	}

	return Result{
		Turns:           turns,
		EstimatedTokens: total,
		Dropped:         start,
		Truncated:       in.TokenBudget > 0 && total > in.TokenBudget,
	}
}
