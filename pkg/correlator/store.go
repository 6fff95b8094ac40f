package correlator

import "context"

// Store is the detection-outcome persistence port. Writes must be
// idempotent on (composite_id, window_open_ts) — a redelivered or
// re-evaluated close of the same aggregation window must not produce a
// duplicate row.
type Store interface {
	Write(ctx context.Context, outcome DetectionOutcome) error
}
