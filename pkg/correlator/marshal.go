package correlator

import (
	"encoding/json"
	"time"

	"github.com/mcpsentinel/sentinel-core/pkg/judge"
)

func marshalOutcome(outcome DetectionOutcome) ([]byte, error) {
	return json.Marshal(outcome)
}

// judgeVerdictWire is the gateway-shaped judge verdict published for
// transparency alongside the finalised detection.
type judgeVerdictWire struct {
	EventID           string    `json:"event_id"`
	Timestamp         time.Time `json:"timestamp"`
	DetectionID       string    `json:"detection_id"`
	Classification    string    `json:"classification"`
	Confidence        int       `json:"confidence"`
	Reasoning         string    `json:"reasoning"`
	ScoreContribution int       `json:"score_contribution"`
	ModelVersion      string    `json:"model_version"`
	HostID            string    `json:"host_id"`
}

func marshalJudgeVerdict(g *CorrelationGroup, result judge.Result) ([]byte, error) {
	return json.Marshal(judgeVerdictWire{
		Timestamp:         time.Now().UTC(),
		Classification:    string(result.Classification),
		Confidence:        result.Confidence,
		Reasoning:         result.Reasoning,
		ScoreContribution: result.ScoreContribution,
		ModelVersion:      result.Model,
		HostID:            hostIdentifierOf(g),
	})
}
