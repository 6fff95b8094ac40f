package evidence

import (
	"encoding/json"
	"strconv"
)

// ParseNetwork decodes a network-sensor frame, disambiguating between
// Zeek and Suricata shapes: a frame carrying id.orig_h / conn_state is
// Zeek, a frame carrying event_type or alert is Suricata, anything else
// is unknown_schema.
func ParseNetwork(raw []byte) (*EvidenceRecord, error) {
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, NewParseError(ParseErrSchemaViolation, "not a JSON object: %v", err)
	}

	if looksLikeZeek(frame) {
		return parseZeek(frame)
	}
	if looksLikeSuricata(frame) {
		return parseSuricata(frame)
	}
	return nil, NewParseError(ParseErrUnknownSchema, "frame matches neither Zeek nor Suricata shape")
}

func looksLikeZeek(frame map[string]any) bool {
	if _, ok := frame["id"].(map[string]any); ok {
		if id, ok := frame["id"].(map[string]any); ok {
			if _, has := id["orig_h"]; has {
				return true
			}
		}
	}
	_, hasConnState := frame["conn_state"]
	return hasConnState
}

func looksLikeSuricata(frame map[string]any) bool {
	_, hasEventType := frame["event_type"]
	_, hasAlert := frame["alert"]
	return hasEventType || hasAlert
}

func parseZeek(frame map[string]any) (*EvidenceRecord, error) {
	uid, _ := frame["uid"].(string)
	if uid == "" {
		return nil, NewParseError(ParseErrSchemaViolation, "zeek frame missing uid")
	}
	tsRaw, ok := frame["ts"]
	if !ok {
		return nil, NewParseError(ParseErrSchemaViolation, "zeek frame missing ts")
	}
	ts, err := ParseTimestamp(tsRaw)
	if err != nil {
		return nil, NewParseError(ParseErrBadTimestamp, "%v", err)
	}

	id, _ := frame["id"].(map[string]any)
	if id == nil {
		return nil, NewParseError(ParseErrSchemaViolation, "zeek frame missing id tuple")
	}
	origH, _ := id["orig_h"].(string)
	respH, _ := id["resp_h"].(string)
	respP, respOK := numField(id, "resp_p")
	if origH == "" || respH == "" || !respOK {
		return nil, NewParseError(ParseErrSchemaViolation, "zeek frame missing id.orig_h/resp_h/resp_p")
	}
	origP, _ := numField(id, "orig_p")
	proto, _ := frame["proto"].(string)
	service, _ := frame["service"].(string)
	connState, _ := frame["conn_state"].(string)

	details := NetworkDetails{
		SrcIP:     origH,
		SrcPort:   origP,
		DestIP:    respH,
		DestPort:  respP,
		Proto:     proto,
		Service:   service,
		ConnState: connState,
		Port:      &respP,
	}

	return &EvidenceRecord{
		EventID:           "network.zeek." + uid,
		SourceKind:        SourceNetwork,
		SourceLabel:       "network.zeek",
		Timestamp:         ts,
		HostIdentifier:    origH,
		EvidenceType:      EvidenceNetwork,
		ScoreContribution: ScoreBaselineNetwork,
		Details:           details,
		CompositeKeyHint:  &CompositeKeyHint{HostIdentifier: origH, Port: respP},
		Extra:             extraFields(frame, "uid", "ts", "id", "proto", "service", "conn_state"),
	}, nil
}

func parseSuricata(frame map[string]any) (*EvidenceRecord, error) {
	flowID, _ := frame["flow_id"].(string)
	if flowID == "" {
		if f, ok := numField(frame, "flow_id"); ok {
			flowID = strconv.Itoa(f)
		}
	}
	if flowID == "" {
		return nil, NewParseError(ParseErrSchemaViolation, "suricata frame missing flow_id")
	}
	tsRaw, ok := frame["timestamp"]
	if !ok {
		return nil, NewParseError(ParseErrSchemaViolation, "suricata frame missing timestamp")
	}
	ts, err := ParseTimestamp(tsRaw)
	if err != nil {
		return nil, NewParseError(ParseErrBadTimestamp, "%v", err)
	}

	srcIP, _ := frame["src_ip"].(string)
	destIP, _ := frame["dest_ip"].(string)
	destPort, destOK := numField(frame, "dest_port")
	if srcIP == "" || destIP == "" || !destOK {
		return nil, NewParseError(ParseErrSchemaViolation, "suricata frame missing src_ip/dest_ip/dest_port")
	}
	srcPort, _ := numField(frame, "src_port")
	proto, _ := frame["proto"].(string)

	var sigID, sig, severity string
	if alert, ok := frame["alert"].(map[string]any); ok {
		sig, _ = alert["signature"].(string)
		severity, _ = alert["severity"].(string)
		if n, ok := numField(alert, "signature_id"); ok {
			sigID = strconv.Itoa(n)
		} else if s, ok := alert["signature_id"].(string); ok {
			sigID = s
		}
	}

	details := NetworkDetails{
		SrcIP:       srcIP,
		SrcPort:     srcPort,
		DestIP:      destIP,
		DestPort:    destPort,
		Proto:       proto,
		SignatureID: sigID,
		Signature:   sig,
		Severity:    severity,
		Port:        &destPort,
	}

	return &EvidenceRecord{
		EventID:           "network.suricata." + flowID,
		SourceKind:        SourceNetwork,
		SourceLabel:       "network.suricata",
		Timestamp:         ts,
		HostIdentifier:    srcIP,
		EvidenceType:      EvidenceNetwork,
		ScoreContribution: ScoreBaselineNetwork,
		Details:           details,
		CompositeKeyHint:  &CompositeKeyHint{HostIdentifier: srcIP, Port: destPort},
		Extra:             extraFields(frame, "flow_id", "timestamp", "src_ip", "src_port", "dest_ip", "dest_port", "proto", "alert"),
	}, nil
}

