// Package anthropic implements llm.Caller directly against the Anthropic
// Messages API, for deployments that skip the OpenRouter gateway.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/loomlabs/loom/llm"
)

// DefaultMaxTokens caps completions when the request does not set one;
// the Messages API requires an explicit limit.
const DefaultMaxTokens = 1024

// Client adapts an anthropic SDK client to llm.Caller.
type Client struct {
	client *sdk.Client
}

// New creates a Caller backed by the given SDK client.
func New(client *sdk.Client) *Client {
	return &Client{client: client}
}

// Call implements llm.Caller. System turns are lifted into the system
// prompt; user and assistant turns map to message params in order.
func (c *Client) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var system []sdk.TextBlockParam
	messages := make([]sdk.MessageParam, 0, len(req.Turns))
	for _, turn := range req.Turns {
		switch turn.Role {
		case llm.RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: turn.Content})
		case llm.RoleAssistant:
			messages = append(messages, sdk.NewAssistantMessage(sdk.NewTextBlock(turn.Content)))
		default:
			messages = append(messages, sdk.NewUserMessage(sdk.NewTextBlock(turn.Content)))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(sdk.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}
	if content.Len() == 0 {
		return nil, fmt.Errorf("anthropic: %w", llm.ErrEmptyResponse)
	}

	return &llm.Response{
		Content:      content.String(),
		Model:        string(message.Model),
		FinishReason: string(message.StopReason),
		Usage: llm.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}, nil
}
