package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicCapability implements Capability with the Claude messages API.
type AnthropicCapability struct {
	client *anthropic.Client
}

func NewAnthropicCapability(apiKey string) *AnthropicCapability {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicCapability{client: &client}
}

// Invoke sends the prompt and parses the structured JSON response.
// The assistant turn is prefilled with "{" so the model continues with the
// object body instead of prose.
func (c *AnthropicCapability) Invoke(ctx context.Context, prompt, mdl string, maxTokens int) (Analysis, Usage, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(mdl),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")),
		},
	})
	if err != nil {
		return Analysis{}, Usage{}, fmt.Errorf("failed to call Claude API: %w", err)
	}

	usage := Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return Analysis{}, usage, fmt.Errorf("empty response from model %s", mdl)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte("{"+responseText), &analysis); err != nil {
		return Analysis{}, usage, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}
	if err := analysis.Validate(); err != nil {
		return Analysis{}, usage, err
	}
	return analysis, usage, nil
}
