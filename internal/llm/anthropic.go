// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const defaultMaxTokens = 4096

// AnthropicBackend calls the Claude Messages API through the official SDK.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic returns a backend for cfg. Extra request options (base URL,
// HTTP client) are appended after the API key. SDK retries are off;
// callers retry through CallWithRetry.
func NewAnthropic(cfg types.AIConfig, opts ...option.RequestOption) *AnthropicBackend {
	all := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		all = append(all, option.WithBaseURL(cfg.BaseURL))
	}
	all = append(all, opts...)

	model := cfg.Model
	if model == "" {
		model = types.DefaultConfig().AI.Model
	}
	return &AnthropicBackend{
		client:    anthropic.NewClient(all...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

// Complete sends prompt as a single user message. JSON requests carry a
// system instruction and run at temperature 0.
func (b *AnthropicBackend) Complete(ctx context.Context, prompt string, shape Shape) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if shape == ShapeJSON {
		params.System = []anthropic.TextBlockParam{{Text: jsonInstruction}}
		params.Temperature = anthropic.Float(0)
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return text.String(), nil
}
