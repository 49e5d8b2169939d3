// Package summarize decides when a thread needs summarization and
// produces summaries by folding the prior summary and the superseded
// messages through a single LLM call.
package summarize

// Trigger reasons recorded on committed summaries.
const (
	// TriggerMessageCount marks summaries produced by the message-count
	// trigger.
	TriggerMessageCount = "message_count"

	// TriggerManual marks summaries requested explicitly.
	TriggerManual = "manual"
)

// Default engine settings. Summaries are short digests, so the call runs
// cold and tightly capped.
const (
	DefaultThreshold = 10
	Temperature      = 0.3
	MaxTokens        = 200
)

// ShouldSummarize reports whether a thread with the given number of
// messages since its last summary needs summarization. A non-positive
// threshold disables the trigger.
func ShouldSummarize(messagesSinceLastSummary, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	return messagesSinceLastSummary >= threshold
}
