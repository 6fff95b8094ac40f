package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// sentinel stands in for a missing component in the composite identity
// construction, so that two records missing the same field hash the
// same way. An empty string counts as missing and is hashed as the
// sentinel too.
const sentinel = "\x00absent\x00"

// CompositeIdentity computes the 64-char lowercase hex sha256 over
// (host_identifier, port, manifest_hash, process_hash), substituting
// sentinel for any component that is missing. The result depends on
// exactly which components are supplied: two events for the same target
// that populate different components (one with a manifest hash, one
// without) get different identities.
func CompositeIdentity(hostIdentifier string, port *int, manifestHash, processHash string) string {
	h := sha256.New()

	writeComponent(h, hostIdentifier)
	if port != nil {
		writeComponent(h, strconv.Itoa(*port))
	} else {
		writeComponent(h, sentinel)
	}
	writeComponent(h, manifestHash)
	writeComponent(h, processHash)

	return hex.EncodeToString(h.Sum(nil))
}

func writeComponent(h interface{ Write([]byte) (int, error) }, v string) {
	if v == "" {
		v = sentinel
	}
	_, _ = h.Write([]byte(v))
	_, _ = h.Write([]byte{0})
}

// HashHostID returns the sha256 hex digest of a host identifier, used
// wherever a host value must be carried (e.g. in a judge prompt or a
// DetectionOutcome) without exposing the raw identifier.
func HashHostID(hostIdentifier string) string {
	sum := sha256.Sum256([]byte(hostIdentifier))
	return hex.EncodeToString(sum[:])
}

// DeriveCompositeIdentity computes the composite identity for an
// EvidenceRecord, preferring an explicit CompositeKeyHint and falling
// back to whatever the typed Details expose.
func DeriveCompositeIdentity(e *EvidenceRecord) string {
	if e.CompositeKeyHint != nil {
		var port *int
		if e.CompositeKeyHint.Port != 0 {
			p := e.CompositeKeyHint.Port
			port = &p
		}
		return CompositeIdentity(e.CompositeKeyHint.HostIdentifier, port, e.CompositeKeyHint.ManifestHash, e.CompositeKeyHint.ProcessHash)
	}

	var port *int
	var manifestHash, processHash string

	if e.Details != nil {
		port = e.Details.PortValue()
		switch d := e.Details.(type) {
		case FileDetails:
			manifestHash = d.ManifestHash
		case ProcessDetails:
			processHash = d.ProcessHash
		}
	}

	return CompositeIdentity(e.HostIdentifier, port, manifestHash, processHash)
}
