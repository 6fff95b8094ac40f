package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/mcpsentinel/sentinel-core/internal/errors"
)

const maxResponseTokens = 1024

// AnthropicProvider calls the Claude Messages API, matching the
// original classifier's primary provider.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxResponseTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeJudgeProvider, "anthropic inference failed")
	}
	if len(msg.Content) == 0 {
		return "", apperrors.New(apperrors.ErrorTypeJudgeProvider, "anthropic response had no content blocks")
	}

	text := msg.Content[0].Text
	if text == "" {
		return "", apperrors.New(apperrors.ErrorTypeJudgeProvider, fmt.Sprintf("anthropic returned a non-text first block (%s)", msg.Content[0].Type))
	}
	return text, nil
}
