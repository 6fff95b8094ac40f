// Package pgregistry implements registry.Lookup against the Postgres
// registry_entries table (the relational store behind the registry
// CRUD surface — out of scope here, read-only), through database/sql's
// connection pool with the jackc/pgx/v5 stdlib driver.
package pgregistry

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/mcpsentinel/sentinel-core/internal/errors"
	"github.com/mcpsentinel/sentinel-core/pkg/registry"
)

// Store implements registry.Lookup over a *sql.DB opened against the
// pgx stdlib driver (github.com/jackc/pgx/v5/stdlib), so the same
// database/sql-shaped interface the rest of Go's ecosystem tooling
// (sqlmock in tests, connection pool metrics) expects is available here
// too.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const baseWhere = `status = 'approved' AND (expires_at IS NULL OR expires_at > now())`

// Find tries progressively looser match rules in priority order: exact
// composite_id, then the full (host_id_hash, port, manifest_hash)
// triple, then manifest_hash alone. Each rule is tried in order and the
// first hit wins; a rule whose required inputs are absent is skipped
// rather than treated as a non-match that falls through silently.
func (s *Store) Find(ctx context.Context, compositeID, hostIDHash string, port int, manifestHash string) (*registry.Match, error) {
	if compositeID != "" {
		if m, err := s.queryOne(ctx, `composite_id = $1 AND `+baseWhere, compositeID); err != nil || m != nil {
			return m, err
		}
	}
	if hostIDHash != "" && port != 0 && manifestHash != "" {
		if m, err := s.queryOne(ctx,
			`host_id_hash = $1 AND port = $2 AND manifest_hash = $3 AND `+baseWhere,
			hostIDHash, port, manifestHash); err != nil || m != nil {
			return m, err
		}
	}
	if manifestHash != "" {
		if m, err := s.queryOne(ctx, `manifest_hash = $1 AND `+baseWhere, manifestHash); err != nil || m != nil {
			return m, err
		}
	}
	return nil, nil
}

func (s *Store) queryOne(ctx context.Context, where string, args ...any) (*registry.Match, error) {
	query := `SELECT composite_id, host_id_hash, port, manifest_hash
		FROM registry_entries
		WHERE ` + where + `
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)

	var m registry.Match
	var compositeID, hostIDHash, manifestHash *string
	var port *int

	if err := row.Scan(&compositeID, &hostIDHash, &port, &manifestHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeRegistryUnavail, "registry lookup query failed")
	}

	if compositeID != nil {
		m.CompositeID = *compositeID
	}
	if hostIDHash != nil {
		m.HostIDHash = *hostIDHash
	}
	if port != nil {
		m.Port = *port
	}
	if manifestHash != nil {
		m.ManifestHash = *manifestHash
	}
	return &m, nil
}
