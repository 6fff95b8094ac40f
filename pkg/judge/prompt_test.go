package judge

import (
	"strings"
	"testing"
)

func TestBuildPrompt_IncludesEvidenceAndFooter(t *testing.T) {
	req := Request{
		HostIDHash: "abcdef0123456789fedcba",
		Timestamp:  "2026-01-01T00:00:00Z",
		Evidence: []EvidenceItem{
			{Type: "file", Source: "endpoint", FilePath: "/opt/mcp/server.json"},
			{Type: "network", Source: "network", Snippet: strings.Repeat("x", 600)},
		},
	}

	prompt := BuildPrompt(req)

	if !strings.Contains(prompt, "File: /opt/mcp/server.json") {
		t.Fatal("expected file path to appear in prompt")
	}
	if !strings.Contains(prompt, "Host ID (hashed): abcdef0123456789...") {
		t.Fatalf("expected truncated host id hash, got prompt: %s", prompt)
	}
	if !strings.Contains(prompt, "CLASSIFICATION: [AUTHORIZED|SUSPECT|UNAUTHORIZED]") {
		t.Fatal("expected response-format footer")
	}
	if strings.Count(prompt, strings.Repeat("x", 501)) != 0 {
		t.Fatal("snippet must be truncated to 500 bytes in the prompt")
	}
}

func TestParseResponse_WellFormed(t *testing.T) {
	raw := "CLASSIFICATION: unauthorized\nCONFIDENCE: 87\nREASONING: unusual install path"
	result := ParseResponse(raw)

	if result.Classification != VerdictUnauthorized {
		t.Fatalf("expected unauthorized, got %s", result.Classification)
	}
	if result.Confidence != 87 {
		t.Fatalf("expected confidence 87, got %d", result.Confidence)
	}
	if result.Reasoning != "unusual install path" {
		t.Fatalf("expected reasoning extracted, got %q", result.Reasoning)
	}
	if result.ScoreContribution != 5 {
		t.Fatalf("expected unauthorized score 5, got %d", result.ScoreContribution)
	}
}

func TestParseResponse_ConfidenceClamped(t *testing.T) {
	raw := "CLASSIFICATION: suspect\nCONFIDENCE: 250"
	result := ParseResponse(raw)
	if result.Confidence != 100 {
		t.Fatalf("expected confidence clamped to 100, got %d", result.Confidence)
	}

	raw = "CLASSIFICATION: suspect\nCONFIDENCE: -5"
	result = ParseResponse(raw)
	if result.Confidence != 0 {
		t.Fatalf("expected confidence clamped to 0, got %d", result.Confidence)
	}
}

func TestParseResponse_MalformedDefaultsToSuspect(t *testing.T) {
	raw := "the model did not follow the format at all"
	result := ParseResponse(raw)

	if result.Classification != VerdictSuspect {
		t.Fatalf("expected fallback classification suspect, got %s", result.Classification)
	}
	if result.Confidence != 50 {
		t.Fatalf("expected fallback confidence 50, got %d", result.Confidence)
	}
	if result.Reasoning != raw {
		t.Fatal("expected reasoning to fall back to the whole response body")
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	req := Request{
		HostIDHash: "h1",
		Timestamp:  "2026-01-01T00:00:00Z",
		Evidence:   []EvidenceItem{{Type: "file", Source: "endpoint"}},
	}

	k1 := req.CacheKey()
	k2 := req.CacheKey()
	if k1 != k2 {
		t.Fatal("expected identical requests to produce identical cache keys")
	}

	other := req
	other.HostIDHash = "h2"
	if other.CacheKey() == k1 {
		t.Fatal("expected different requests to produce different cache keys")
	}
}
