// Package slackhook posts finalized DetectionOutcomes to a Slack
// channel via slack-go/slack, for operators who want to see a
// detection the moment it is scored rather than poll the outcome
// store.
package slackhook

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/mcpsentinel/sentinel-core/pkg/correlator"
)

type Hook struct {
	client  *slack.Client
	channel string
}

func New(token, channel string) *Hook {
	return &Hook{client: slack.New(token), channel: channel}
}

func (h *Hook) Notify(ctx context.Context, outcome correlator.DetectionOutcome) error {
	color := colorFor(outcome.Classification)
	attachment := slack.Attachment{
		Color: color,
		Title: fmt.Sprintf("MCP detection: %s", outcome.Classification),
		Fields: []slack.AttachmentField{
			{Title: "Composite ID", Value: outcome.CompositeID, Short: true},
			{Title: "Score", Value: fmt.Sprintf("%d", outcome.Score), Short: true},
			{Title: "Registry matched", Value: fmt.Sprintf("%t", outcome.RegistryMatched), Short: true},
			{Title: "Judge available", Value: fmt.Sprintf("%t", outcome.JudgeAvailable), Short: true},
		},
	}
	_, _, err := h.client.PostMessageContext(ctx, h.channel, slack.MsgOptionAttachments(attachment))
	return err
}

func colorFor(classification string) string {
	switch classification {
	case correlator.ClassUnauthorized:
		return "danger"
	case correlator.ClassSuspect:
		return "warning"
	default:
		return "good"
	}
}
