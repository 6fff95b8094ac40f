// Package registry defines the read-only registry lookup port (the
// registry matcher): approved, non-expired MCP server registrations
// cross-referenced against correlation evidence to suppress known-good
// detections.
package registry

import "context"

// RegistryPenalty is the fixed score adjustment applied by the
// correlator when a lookup matches.
const RegistryPenalty = -6

// Match is one approved, non-expired registry row.
type Match struct {
	CompositeID  string
	HostIDHash   string
	Port         int
	ManifestHash string
}

// Lookup is the registry port. Implementations must apply the
// priority-ordered match rule themselves (exact composite_id, then
// exact (host_id_hash, port, manifest_hash) triple, then exact
// manifest_hash) and filter to status=approved, non-expired rows.
type Lookup interface {
	// Find returns the first matching approved row for the given keys,
	// or (nil, nil) if none match. Any of the key arguments may be
	// empty/zero when the caller could not observe that field; a key
	// the matcher cannot evaluate (e.g. the triple rule with a missing
	// port) is simply skipped.
	Find(ctx context.Context, compositeID, hostIDHash string, port int, manifestHash string) (*Match, error)
}
