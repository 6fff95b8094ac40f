package evidence

import (
	"encoding/json"
)

// ParseGateway decodes a gateway-classifier frame:
// {event_id, timestamp, detection_id, classification, confidence,
//  reasoning, score_contribution, model_version, host_id}.
func ParseGateway(raw []byte) (*EvidenceRecord, error) {
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, NewParseError(ParseErrSchemaViolation, "not a JSON object: %v", err)
	}

	eventID, _ := frame["event_id"].(string)
	hostID, _ := frame["host_id"].(string)
	classificationRaw, _ := frame["classification"].(string)
	if eventID == "" || hostID == "" {
		return nil, NewParseError(ParseErrSchemaViolation, "missing required field event_id/host_id")
	}
	classification := GatewayClassification(classificationRaw)
	switch classification {
	case ClassAuthorized, ClassSuspect, ClassUnauthorized:
	default:
		return nil, NewParseError(ParseErrSchemaViolation, "invalid classification %q", classificationRaw)
	}

	tsRaw, ok := frame["timestamp"]
	if !ok {
		return nil, NewParseError(ParseErrSchemaViolation, "missing required field timestamp")
	}
	ts, err := ParseTimestamp(tsRaw)
	if err != nil {
		return nil, NewParseError(ParseErrBadTimestamp, "%v", err)
	}

	confidence, _ := numField(frame, "confidence")
	if confidence < 0 {
		confidence = 0
	} else if confidence > 100 {
		confidence = 100
	}
	reasoning, _ := frame["reasoning"].(string)
	modelVersion, _ := frame["model_version"].(string)

	return &EvidenceRecord{
		EventID:           eventID,
		SourceKind:        SourceGateway,
		SourceLabel:       "gateway.judge",
		Timestamp:         ts,
		HostIdentifier:    hostID,
		EvidenceType:      EvidenceGateway,
		ScoreContribution: ScoreBaselineGateway,
		Details: GatewayDetails{
			Classification: classification,
			Confidence:     confidence,
			Reasoning:      reasoning,
			ModelVersion:   modelVersion,
		},
		CompositeKeyHint: &CompositeKeyHint{HostIdentifier: hostID},
		Extra: extraFields(frame, "event_id", "timestamp", "detection_id", "classification",
			"confidence", "reasoning", "score_contribution", "model_version", "host_id"),
	}, nil
}
