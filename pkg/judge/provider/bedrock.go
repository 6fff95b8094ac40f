package provider

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	apperrors "github.com/mcpsentinel/sentinel-core/internal/errors"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// BedrockProvider calls a Claude model through AWS Bedrock's
// InvokeModel API, serving as the secondary provider when the direct
// Anthropic API is unreachable or disallowed by network policy.
type BedrockProvider struct {
	client  *bedrockruntime.Client
	modelID string
}

func NewBedrockProvider(client *bedrockruntime.Client, modelID string) *BedrockProvider {
	return &BedrockProvider{client: client, modelID: modelID}
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockResponse struct {
	Content []bedrockContentBlock `json:"content"`
}

func (p *BedrockProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxResponseTokens,
		System:           systemPrompt,
		Messages:         []bedrockMessage{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode bedrock request")
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeJudgeProvider, "bedrock invoke model failed")
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeJudgeProvider, "decode bedrock response")
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return "", apperrors.New(apperrors.ErrorTypeJudgeProvider, "bedrock response had no text content")
	}
	return resp.Content[0].Text, nil
}
