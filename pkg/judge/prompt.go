package judge

import (
	"fmt"
	"strconv"
	"strings"
)

// SystemPrompt is the fixed system prompt sent with every classification
// request, carried over verbatim from the original classifier so a
// cached verdict and a freshly computed one are assigning the same
// question to the model.
const SystemPrompt = `You are a security analyst specializing in Model Context Protocol (MCP) server detection.

Your task is to analyze evidence about a detected MCP server and classify it as either:
1. AUTHORIZED: Legitimate, expected MCP server used for valid business purposes
2. SUSPECT: Unclear legitimacy, requires further investigation
3. UNAUTHORIZED: Likely malicious or policy-violating MCP server

Consider these factors:
- File paths and locations (production vs dev vs unusual locations)
- Process names and command-line arguments
- Network patterns (common ports vs unusual ports)
- Context clues from manifest files
- Typical enterprise software patterns

Provide your classification with a confidence score (0-100) and brief reasoning.`

const snippetPromptBytes = 500

// responseFooter is appended verbatim to every prompt so the model's
// answer is mechanically parseable; BuildPrompt and ParseResponse must
// stay in lockstep with each other's expectations of this exact shape.
const responseFooter = "\nProvide your classification in this exact format:\nCLASSIFICATION: [AUTHORIZED|SUSPECT|UNAUTHORIZED]\nCONFIDENCE: [0-100]\nREASONING: [your analysis]"

// BuildPrompt renders req into the user-turn prompt text.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Please analyze this MCP server detection:\n")

	if len(req.Evidence) > 0 {
		b.WriteString("\nEvidence:")
		for i, ev := range req.Evidence {
			fmt.Fprintf(&b, "\n%d. Type: %s", i+1, orUnknown(ev.Type))
			fmt.Fprintf(&b, "\n   Source: %s", orUnknown(ev.Source))
			if ev.FilePath != "" {
				fmt.Fprintf(&b, "\n   File: %s", ev.FilePath)
			}
			if ev.ProcessName != "" {
				fmt.Fprintf(&b, "\n   Process: %s", ev.ProcessName)
			}
			if ev.Snippet != "" {
				snippet := ev.Snippet
				if len(snippet) > snippetPromptBytes {
					snippet = snippet[:snippetPromptBytes]
				}
				fmt.Fprintf(&b, "\n   Snippet:\n   %s", snippet)
			}
		}
	}

	if req.HostIDHash != "" {
		prefix := req.HostIDHash
		if len(prefix) > 16 {
			prefix = prefix[:16]
		}
		fmt.Fprintf(&b, "\n\nHost ID (hashed): %s...", prefix)
	}
	if req.Timestamp != "" {
		fmt.Fprintf(&b, "\nDetection time: %s", req.Timestamp)
	}

	b.WriteString(responseFooter)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// ParseResponse extracts CLASSIFICATION/CONFIDENCE/REASONING lines from
// raw model output. An unrecognised or missing classification defaults
// to suspect with confidence 50, matching the original classifier so a
// provider that drifts from the requested format degrades to the safe
// middle verdict rather than failing the request outright.
func ParseResponse(raw string) Result {
	classification := VerdictSuspect
	confidence := 50
	reasoning := raw

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "CLASSIFICATION:"):
			v := strings.ToLower(strings.TrimSpace(strings.SplitN(line, ":", 2)[1]))
			switch Verdict(v) {
			case VerdictAuthorized, VerdictSuspect, VerdictUnauthorized:
				classification = Verdict(v)
			}
		case strings.HasPrefix(line, "CONFIDENCE:"):
			v := strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			if n, err := strconv.Atoi(v); err == nil {
				confidence = clamp(n, 0, 100)
			}
		case strings.HasPrefix(line, "REASONING:"):
			reasoning = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		}
	}

	return Result{
		Classification:    classification,
		Confidence:        confidence,
		Reasoning:         reasoning,
		ScoreContribution: ScoreFor(classification),
		RawResponse:       raw,
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
