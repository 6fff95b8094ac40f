package evidence

import "testing"

func TestParseNetwork_Zeek(t *testing.T) {
	raw := []byte(`{
		"uid": "C1a2b3",
		"ts": 1785000000.5,
		"id": {"orig_h": "10.0.0.5", "orig_p": 51422, "resp_h": "10.0.0.9", "resp_p": 9000},
		"proto": "tcp",
		"conn_state": "SF"
	}`)
	rec, err := ParseNetwork(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SourceLabel != "network.zeek" {
		t.Errorf("unexpected source label: %s", rec.SourceLabel)
	}
	nd := rec.Details.(NetworkDetails)
	if nd.DestPort != 9000 {
		t.Errorf("unexpected dest port: %d", nd.DestPort)
	}
	if rec.ScoreContribution != ScoreBaselineNetwork {
		t.Errorf("unexpected baseline score: %d", rec.ScoreContribution)
	}
}

func TestParseNetwork_Suricata(t *testing.T) {
	raw := []byte(`{
		"flow_id": "998877",
		"timestamp": "2026-07-30T10:00:00Z",
		"src_ip": "10.0.0.5",
		"src_port": 51422,
		"dest_ip": "10.0.0.9",
		"dest_port": 9000,
		"proto": "TCP",
		"alert": {"signature": "MCP default port", "signature_id": 100200, "category": "policy-violation", "severity": "2"}
	}`)
	rec, err := ParseNetwork(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SourceLabel != "network.suricata" {
		t.Errorf("unexpected source label: %s", rec.SourceLabel)
	}
	nd := rec.Details.(NetworkDetails)
	if nd.SignatureID != "100200" {
		t.Errorf("unexpected signature id: %s", nd.SignatureID)
	}
}

func TestParseNetwork_UnknownSchema(t *testing.T) {
	raw := []byte(`{"foo": "bar"}`)
	_, err := ParseNetwork(raw)
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != ParseErrUnknownSchema {
		t.Fatalf("expected ParseError(unknown_schema), got %v", err)
	}
}
