// Package pgstore persists DetectionOutcome rows to Postgres over the
// same database/sql + pgx-stdlib wiring pgregistry uses, so the
// correlator's idempotent write and the registry's read-only lookup
// share one connection pool and one driver adapter in cmd/sentinel-core.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/mcpsentinel/sentinel-core/internal/errors"
	"github.com/mcpsentinel/sentinel-core/pkg/correlator"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Write upserts a DetectionOutcome keyed on (composite_id,
// window_open_ts). A conflicting row is overwritten in place rather
// than rejected, so a correlator restart that re-closes an
// already-finalized window converges on the same outcome instead of
// erroring.
func (s *Store) Write(ctx context.Context, outcome correlator.DetectionOutcome) error {
	evidence, err := json.Marshal(outcome.Evidence)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeStoreWriteFailed, "marshal evidence for detection outcome")
	}
	matchedRules, err := json.Marshal(outcome.MatchedRules)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeStoreWriteFailed, "marshal matched rules for detection outcome")
	}

	const query = `
		INSERT INTO detection_outcomes (
			detection_id, composite_id, window_open_ts, ts, host_id_hash,
			score, classification, evidence, registry_matched, judge_available, matched_rules
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (composite_id, window_open_ts) DO UPDATE SET
			ts = EXCLUDED.ts,
			score = EXCLUDED.score,
			classification = EXCLUDED.classification,
			evidence = EXCLUDED.evidence,
			registry_matched = EXCLUDED.registry_matched,
			judge_available = EXCLUDED.judge_available,
			matched_rules = EXCLUDED.matched_rules`

	_, err = s.db.ExecContext(ctx, query,
		outcome.DetectionID, outcome.CompositeID, outcome.WindowOpenTS, outcome.Timestamp, outcome.HostIDHash,
		outcome.Score, outcome.Classification, evidence, outcome.RegistryMatched, outcome.JudgeAvailable, matchedRules,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeStoreWriteFailed, "write detection outcome")
	}
	return nil
}
