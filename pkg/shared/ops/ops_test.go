package ops

import (
	"fmt"
	"testing"
)

func TestOperationErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{
			name: "full error",
			err: &OperationError{
				Operation: "publish enriched event",
				Component: "nats",
				Resource:  "enriched.endpoint",
				Cause:     fmt.Errorf("connection timeout"),
			},
			expected: "failed to publish enriched event, component: nats, resource: enriched.endpoint, cause: connection timeout",
		},
		{
			name: "minimal error",
			err: &OperationError{
				Operation: "load rule corpus",
				Cause:     fmt.Errorf("invalid yaml"),
			},
			expected: "failed to load rule corpus, cause: invalid yaml",
		},
		{
			name: "no cause",
			err: &OperationError{
				Operation: "validate registry row",
				Component: "registry",
			},
			expected: "failed to validate registry row, component: registry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOperationErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap("publish", "nats", cause)
	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}
