package evidence

import (
	"encoding/json"
	"time"
)

// WireEvent is the JSON shape published to the enriched.<source_kind>
// subjects after rule enrichment. EnrichedEvent.Details is a
// discriminated Go interface that downstream consumers (the judge
// worker, the correlator) do not need to recover as a concrete type —
// they read it as a plain map, so the wire format flattens it rather
// than carrying Go type information across the broker.
type WireEvent struct {
	EventID           string         `json:"event_id"`
	SourceKind        string         `json:"source_kind"`
	SourceLabel       string         `json:"source_label,omitempty"`
	Timestamp         time.Time      `json:"ts"`
	HostIdentifier    string         `json:"host_identifier"`
	EvidenceType      string         `json:"evidence_type"`
	ScoreContribution int            `json:"score_contribution"`
	CompositeID       string         `json:"composite_id"`
	Details           map[string]any `json:"details,omitempty"`
	Snippet           string         `json:"snippet,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`

	MatchedRules      []MatchedRule  `json:"matched_rules,omitempty"`
	Enrichment        map[string]any `json:"enrichment,omitempty"`
	EnrichmentApplied bool           `json:"enrichment_applied"`
	ScoreBonus        int            `json:"score_bonus,omitempty"`
}

// ToWire flattens an EnrichedEvent for publication, deriving its
// composite identity from CompositeKeyHint when the record carries one
// and from its typed Details otherwise.
func (e EnrichedEvent) ToWire() WireEvent {
	w := WireEvent{
		EventID:           e.EventID,
		SourceKind:        string(e.SourceKind),
		SourceLabel:       e.SourceLabel,
		Timestamp:         e.Timestamp,
		HostIdentifier:    e.HostIdentifier,
		EvidenceType:      string(e.EvidenceType),
		ScoreContribution: e.ScoreContribution,
		CompositeID:       DeriveCompositeIdentity(&e.EvidenceRecord),
		Snippet:           string(e.Snippet),
		Extra:             e.Extra,
		MatchedRules:      e.MatchedRules,
		Enrichment:        e.Enrichment,
		EnrichmentApplied: e.EnrichmentApplied,
		ScoreBonus:        e.ScoreBonus,
	}
	if e.Details != nil {
		w.Details = e.Details.AsMap()
	}
	return w
}

// Marshal is a convenience wrapper producing the canonical JSON bytes
// published to the enriched-event subjects.
func (e EnrichedEvent) Marshal() ([]byte, error) {
	return json.Marshal(e.ToWire())
}

// DecodeWireEvent parses a WireEvent previously produced by
// EnrichedEvent.Marshal.
func DecodeWireEvent(data []byte) (WireEvent, error) {
	var w WireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return WireEvent{}, err
	}
	return w, nil
}
