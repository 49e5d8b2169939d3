// Package tokens provides deterministic token estimation for conversation
// budgeting. Estimates are character-ratio approximations, not exact
// tokenizer counts; the assembler only needs a stable, conservative
// measure to trim against.
package tokens

import "strings"

// Overheads applied on top of raw content estimates, mirroring the
// per-message framing and conversation priming tokens providers charge.
const (
	// MessageOverhead is added once per message for role framing.
	MessageOverhead = 4

	// ConversationOverhead is added once per assembled conversation.
	ConversationOverhead = 3

	// DefaultCharsPerToken is the conservative fallback ratio used when
	// the model family is unknown. Unknown models must never error here;
	// they just estimate with the densest (largest) count.
	DefaultCharsPerToken = 4
)

// familyRatio maps a model identifier prefix to an approximate
// characters-per-token ratio, expressed as a fraction to keep the
// arithmetic integral (Claude tokenizes around 3.5 chars per token).
type familyRatio struct {
	prefix string
	num    int // characters
	den    int // tokens
}

// Longest prefix wins. Identifiers follow the provider/model form used by
// the model catalog.
var familyRatios = []familyRatio{
	{prefix: "anthropic/", num: 35, den: 10},
	{prefix: "openai/", num: 4, den: 1},
	{prefix: "claude", num: 35, den: 10},
	{prefix: "gpt-", num: 4, den: 1},
}

// Estimate returns the approximate token count for text under the given
// model's tokenizer family. It is pure and deterministic: equal inputs
// always produce equal outputs, and longer text never estimates lower
// than a prefix of itself.
func Estimate(text, model string) int {
	if text == "" {
		return 0
	}
	num, den := DefaultCharsPerToken, 1
	best := -1
	for _, r := range familyRatios {
		if strings.HasPrefix(model, r.prefix) && len(r.prefix) > best {
			num, den = r.num, r.den
			best = len(r.prefix)
		}
	}
	return len(text) * den / num
}

// EstimateMessage returns the estimate for a single message including the
// per-message overhead.
func EstimateMessage(content, model string) int {
	return Estimate(content, model) + MessageOverhead
}

// EstimateConversation returns the estimate for a whole conversation:
// per-message estimates plus overheads, plus the conversation overhead.
// An empty conversation costs zero.
func EstimateConversation(contents []string, model string) int {
	if len(contents) == 0 {
		return 0
	}
	total := ConversationOverhead
	for _, c := range contents {
		total += EstimateMessage(c, model)
	}
	return total
}
