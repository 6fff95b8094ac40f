package evidence

import (
	"encoding/json"
)

// ParseEndpoint decodes an endpoint-scanner frame:
// {event_id, timestamp, host_id, detection_type: file|process, evidence:{...}}
func ParseEndpoint(raw []byte) (*EvidenceRecord, error) {
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, NewParseError(ParseErrSchemaViolation, "not a JSON object: %v", err)
	}

	eventID, ok := frame["event_id"].(string)
	if !ok || eventID == "" {
		return nil, NewParseError(ParseErrSchemaViolation, "missing required field event_id")
	}
	hostID, ok := frame["host_id"].(string)
	if !ok || hostID == "" {
		return nil, NewParseError(ParseErrSchemaViolation, "missing required field host_id")
	}
	detectionType, ok := frame["detection_type"].(string)
	if !ok || (detectionType != "file" && detectionType != "process") {
		return nil, NewParseError(ParseErrSchemaViolation, "missing or invalid detection_type")
	}
	rawEvidence, ok := frame["evidence"].(map[string]any)
	if !ok {
		return nil, NewParseError(ParseErrSchemaViolation, "missing required field evidence")
	}
	tsRaw, ok := frame["timestamp"]
	if !ok {
		return nil, NewParseError(ParseErrSchemaViolation, "missing required field timestamp")
	}
	ts, err := ParseTimestamp(tsRaw)
	if err != nil {
		return nil, NewParseError(ParseErrBadTimestamp, "%v", err)
	}

	rec := &EvidenceRecord{
		EventID:           eventID,
		SourceKind:        SourceEndpoint,
		SourceLabel:       "endpoint.scanner",
		Timestamp:         ts,
		HostIdentifier:    hostID,
		ScoreContribution: ScoreBaselineEndpoint,
		Extra:             extraFields(frame, "event_id", "timestamp", "host_id", "detection_type", "evidence"),
	}

	var port *int
	if p, ok := numField(rawEvidence, "port"); ok {
		port = &p
	}

	switch detectionType {
	case "file":
		filePath, _ := rawEvidence["file_path"].(string)
		fileHash, _ := rawEvidence["file_hash"].(string)
		manifestHash, _ := rawEvidence["manifest_hash"].(string)
		if filePath == "" || fileHash == "" {
			return nil, NewParseError(ParseErrSchemaViolation, "file evidence missing file_path/file_hash")
		}
		rec.EvidenceType = EvidenceFile
		rec.Details = FileDetails{FilePath: filePath, FileHash: fileHash, ManifestHash: manifestHash, Port: port}
		rec.CompositeKeyHint = &CompositeKeyHint{HostIdentifier: hostID, ManifestHash: manifestHash}
	case "process":
		processName, _ := rawEvidence["process_name"].(string)
		processHash, _ := rawEvidence["process_hash"].(string)
		commandLine, _ := rawEvidence["command_line"].(string)
		if processName == "" || processHash == "" {
			return nil, NewParseError(ParseErrSchemaViolation, "process evidence missing process_name/process_hash")
		}
		rec.EvidenceType = EvidenceProcess
		rec.Details = ProcessDetails{ProcessName: processName, ProcessHash: processHash, CommandLine: commandLine, Port: port}
		rec.CompositeKeyHint = &CompositeKeyHint{HostIdentifier: hostID, ProcessHash: processHash}
	}
	if port != nil {
		rec.CompositeKeyHint.Port = *port
	}

	if snippet, ok := rawEvidence["snippet"].(string); ok && snippet != "" {
		rec.Snippet = TruncateSnippet([]byte(snippet))
	}

	return rec, nil
}

func numField(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func extraFields(frame map[string]any, known ...string) map[string]any {
	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[k] = struct{}{}
	}
	extra := make(map[string]any)
	for k, v := range frame {
		if _, ok := knownSet[k]; !ok {
			extra[k] = v
		}
	}
	return extra
}
