// Package provider defines the LLM backend port the judge worker calls
// through, with an Anthropic primary implementation and an AWS Bedrock
// secondary, so a provider outage can be worked around by operator
// configuration rather than a code change.
package provider

import "context"

// Provider completes one classification turn: a fixed system prompt and
// a per-request user prompt, returning the model's raw text response.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
