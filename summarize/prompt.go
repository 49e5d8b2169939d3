package summarize

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs the model to produce compact digests.
const SystemPrompt = `You are a conversation summarizer. You produce compact, factual digests of conversations between a user and an assistant. You never invent details and you never address the user directly.`

// maxContentChars caps how much of a single message is quoted into the
// summarization prompt.
const maxContentChars = 500

const userPromptTemplate = `Summarize the following conversation in at most 150 words.

Focus on:
- The main topics discussed and any conclusions reached
- Decisions made and preferences the user expressed
- Open questions or tasks that remain unresolved

Conversation:
%s

Summary:`

const userPromptWithPriorTemplate = `A summary of the earlier part of this conversation:
%s

Continue from that summary and fold in the new messages below. Produce a single combined summary of the whole conversation in at most 150 words.

Focus on:
- The main topics discussed and any conclusions reached
- Decisions made and preferences the user expressed
- Open questions or tasks that remain unresolved

New messages:
%s

Summary:`

// Message is a role/content pair formatted into the prompt.
type Message struct {
	Role    string
	Content string
}

// BuildUserPrompt builds the summarization prompt for a fresh summary.
func BuildUserPrompt(conversation string) string {
	return fmt.Sprintf(userPromptTemplate, conversation)
}

// BuildUserPromptWithPrior builds the prompt that folds a prior summary
// into the new one.
func BuildUserPromptWithPrior(priorSummary, conversation string) string {
	return fmt.Sprintf(userPromptWithPriorTemplate, priorSummary, conversation)
}

// FormatMessagesAsText renders messages as labelled lines for the
// prompt, truncating long contents.
func FormatMessagesAsText(messages []Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		content := msg.Content
		if len(content) > maxContentChars {
			content = content[:maxContentChars-3] + "..."
		}
		b.WriteString(roleLabel(msg.Role))
		b.WriteString(": ")
		b.WriteString(content)
	}
	return b.String()
}

func roleLabel(role string) string {
	switch role {
	case "user":
		return "User"
	case "assistant":
		return "Assistant"
	case "system":
		return "System"
	default:
		return role
	}
}
