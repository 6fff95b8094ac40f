// Package evidence defines the canonical EvidenceRecord shape emitted by
// every source parser, the EnrichedEvent the rule engine produces from
// it, and the composite identity used to group evidence from different
// sources into one detection.
package evidence

import "time"

// SourceKind identifies which of the three sensor classes produced a
// record. The value also selects the inbound/outbound subject names.
type SourceKind string

const (
	SourceEndpoint SourceKind = "endpoint"
	SourceNetwork  SourceKind = "network"
	SourceGateway  SourceKind = "gateway"
)

// EvidenceType discriminates the shape of Details.
type EvidenceType string

const (
	EvidenceFile    EvidenceType = "file"
	EvidenceProcess EvidenceType = "process"
	EvidenceNetwork EvidenceType = "network"
	EvidenceGateway EvidenceType = "gateway"
)

// Baseline score_contribution per source_kind, fixed by every parser and
// never rewritten by rule enrichment.
const (
	ScoreBaselineEndpoint = 11
	ScoreBaselineNetwork  = 3
	ScoreBaselineGateway  = 5
)

// MaxSnippetBytes is the UTF-8 byte ceiling for EvidenceRecord.Snippet.
const MaxSnippetBytes = 1024

// CompositeKeyHint carries the identifiers a parser was able to observe,
// which the correlator may use to derive a CompositeIdentity before a
// full composite_id has been computed upstream.
type CompositeKeyHint struct {
	HostIdentifier string
	Port           int
	ManifestHash   string
	ProcessHash    string
}

// FileDetails is EvidenceRecord.Details when EvidenceType == file.
type FileDetails struct {
	FilePath     string
	FileHash     string
	ManifestHash string
	Port         *int
}

// ProcessDetails is EvidenceRecord.Details when EvidenceType == process.
type ProcessDetails struct {
	ProcessName string
	ProcessHash string
	CommandLine string
	Port        *int
}

// NetworkDetails is EvidenceRecord.Details when EvidenceType == network.
type NetworkDetails struct {
	SrcIP       string
	SrcPort     int
	DestIP      string
	DestPort    int
	Proto       string
	Service     string
	ConnState   string
	SignatureID string
	Signature   string
	Severity    string
	Port        *int
}

// GatewayClassification is the verdict a gateway-source record (or a
// synthetic judge verdict) carries.
type GatewayClassification string

const (
	ClassAuthorized   GatewayClassification = "authorized"
	ClassSuspect      GatewayClassification = "suspect"
	ClassUnauthorized GatewayClassification = "unauthorized"
)

// GatewayDetails is EvidenceRecord.Details when EvidenceType == gateway.
type GatewayDetails struct {
	Classification GatewayClassification
	Confidence     int
	Reasoning      string
	ModelVersion   string
}

// Details is implemented by exactly one of {FileDetails, ProcessDetails,
// NetworkDetails, GatewayDetails}. It exists so EvidenceRecord.Details
// can hold a discriminated sum type rather than a bare map — the rule
// engine's field interpreter (pkg/rules) walks it via AsMap.
type Details interface {
	// AsMap projects the typed details onto a dotted-path-addressable
	// map, e.g. {"dest_port": 3000}, so the rule engine's condition
	// evaluator can look fields up uniformly regardless of which
	// EvidenceType produced them.
	AsMap() map[string]any

	// PortValue returns the details' port, if any. Used when deriving a
	// CompositeIdentity from an evidence record that carries no explicit
	// composite_key_hint.
	PortValue() *int
}

func (d FileDetails) AsMap() map[string]any {
	m := map[string]any{
		"file_path":     d.FilePath,
		"file_hash":     d.FileHash,
		"manifest_hash": d.ManifestHash,
	}
	if d.Port != nil {
		m["port"] = *d.Port
	}
	return m
}

func (d FileDetails) PortValue() *int { return d.Port }

func (d ProcessDetails) AsMap() map[string]any {
	m := map[string]any{
		"process_name": d.ProcessName,
		"process_hash": d.ProcessHash,
		"command_line": d.CommandLine,
	}
	if d.Port != nil {
		m["port"] = *d.Port
	}
	return m
}

func (d ProcessDetails) PortValue() *int { return d.Port }

func (d NetworkDetails) AsMap() map[string]any {
	m := map[string]any{
		"src_ip":    d.SrcIP,
		"src_port":  d.SrcPort,
		"dest_ip":   d.DestIP,
		"dest_port": d.DestPort,
		"proto":     d.Proto,
	}
	if d.Service != "" {
		m["service"] = d.Service
	}
	if d.ConnState != "" {
		m["conn_state"] = d.ConnState
	}
	if d.SignatureID != "" {
		m["signature_id"] = d.SignatureID
	}
	if d.Signature != "" {
		m["signature"] = d.Signature
	}
	if d.Severity != "" {
		m["severity"] = d.Severity
	}
	if d.Port != nil {
		m["port"] = *d.Port
	} else {
		m["port"] = d.DestPort
	}
	return m
}

func (d NetworkDetails) PortValue() *int {
	if d.Port != nil {
		return d.Port
	}
	p := d.DestPort
	return &p
}

func (d GatewayDetails) AsMap() map[string]any {
	return map[string]any{
		"classification": string(d.Classification),
		"confidence":     d.Confidence,
		"reasoning":      d.Reasoning,
		"model_version":  d.ModelVersion,
	}
}

func (d GatewayDetails) PortValue() *int { return nil }

// MatchedRule is the record appended to EnrichedEvent.MatchedRules for
// every rule whose conditions were satisfied.
type MatchedRule struct {
	RuleID   string
	Name     string
	Severity string
	Tags     []string
}

// EvidenceRecord is the canonical normalised form emitted by every
// parser, before any rule enrichment.
type EvidenceRecord struct {
	EventID           string
	SourceKind        SourceKind
	SourceLabel       string
	Timestamp         time.Time
	HostIdentifier    string
	EvidenceType      EvidenceType
	ScoreContribution int
	Details           Details

	CompositeKeyHint *CompositeKeyHint
	Snippet          []byte

	// Extra carries arbitrary source fields not part of the required
	// schema, preserved verbatim so a downstream rule or the judge
	// prompt can still reference them.
	Extra map[string]any
}

// EnrichedEvent is an EvidenceRecord plus the rules it matched and any
// enrichment fields those rules applied.
type EnrichedEvent struct {
	EvidenceRecord

	MatchedRules     []MatchedRule
	Enrichment       map[string]any
	EnrichmentApplied bool
	ScoreBonus        int
}

// fieldsProtectedFromEnrichment lists the EvidenceRecord fields a rule's
// enrichment map may never overwrite, so a misconfigured rule can't
// corrupt identity or scoring fields it has no business touching.
var fieldsProtectedFromEnrichment = map[string]struct{}{
	"event_id":           {},
	"ts":                 {},
	"source_kind":        {},
	"host_identifier":     {},
	"score_contribution":  {},
}

// IsProtectedField reports whether key names a required EvidenceRecord
// field that enrichment must never overwrite.
func IsProtectedField(key string) bool {
	_, ok := fieldsProtectedFromEnrichment[key]
	return ok
}
