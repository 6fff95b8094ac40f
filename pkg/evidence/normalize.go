package evidence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ParseErrorKind enumerates the error kinds a parser can raise; all of
// them are poison. Each has the same string value as the matching
// ErrorType in internal/errors.
type ParseErrorKind string

const (
	ParseErrSchemaViolation ParseErrorKind = "schema_violation"
	ParseErrBadTimestamp    ParseErrorKind = "bad_timestamp"
	ParseErrUnknownSchema   ParseErrorKind = "unknown_schema"
)

// ParseError is returned by every parser on malformed input. It is
// always poison: the caller acks and drops rather than retrying.
type ParseError struct {
	Kind    ParseErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewParseError(kind ParseErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ParseTimestamp accepts an ISO-8601 string (with a trailing "Z" mapped
// to UTC) or a numeric epoch in seconds (int or float). It never
// substitutes "now" on failure — callers must surface bad_timestamp as
// poison rather than silently processing a record under the wrong
// time.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return parseTimestampString(t)
	case float64:
		return epochToTime(t), nil
	case int64:
		return epochToTime(float64(t)), nil
	case int:
		return epochToTime(float64(t)), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value type %T", v)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp string")
	}

	// Numeric string: epoch seconds, possibly fractional.
	if f, err := strconv.ParseFloat(s, 64); err == nil && looksNumeric(s) {
		return epochToTime(f), nil
	}

	candidate := s
	if strings.HasSuffix(candidate, "Z") {
		// time.RFC3339 already treats a trailing Z as UTC; this branch
		// exists to make that mapping explicit rather than implicit in
		// the layout string.
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, candidate); err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable ISO-8601 timestamp: %q", s)
}

func looksNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			return false
		}
	}
	return true
}

func epochToTime(seconds float64) time.Time {
	whole := int64(seconds)
	frac := seconds - float64(whole)
	return time.Unix(whole, int64(frac*1e9)).UTC()
}

// TruncateSnippet truncates b to at most MaxSnippetBytes bytes of valid
// UTF-8, trimming back to the last full codepoint boundary rather than
// splitting a multi-byte rune.
func TruncateSnippet(b []byte) []byte {
	if len(b) <= MaxSnippetBytes {
		return b
	}
	cut := MaxSnippetBytes
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}
