package pgregistry

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestFind_CompositeIDExactMatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"composite_id", "host_id_hash", "port", "manifest_hash"}).
		AddRow("c1", "h1", 3000, "m1")
	mock.ExpectQuery(`composite_id = \$1`).WithArgs("c1").WillReturnRows(rows)

	store := New(db)
	match, err := store.Find(context.Background(), "c1", "", 0, "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if match == nil || match.CompositeID != "c1" {
		t.Fatalf("expected composite_id match, got %+v", match)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFind_FallsThroughToTripleThenManifest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`composite_id = \$1`).WithArgs("c-absent").WillReturnRows(
		sqlmock.NewRows([]string{"composite_id", "host_id_hash", "port", "manifest_hash"}))
	mock.ExpectQuery(`host_id_hash = \$1 AND port = \$2 AND manifest_hash = \$3`).
		WithArgs("h1", 3000, "m1").
		WillReturnRows(sqlmock.NewRows([]string{"composite_id", "host_id_hash", "port", "manifest_hash"}))
	mock.ExpectQuery(`manifest_hash = \$1`).WithArgs("m1").WillReturnRows(
		sqlmock.NewRows([]string{"composite_id", "host_id_hash", "port", "manifest_hash"}).
			AddRow(nil, nil, nil, "m1"))

	store := New(db)
	match, err := store.Find(context.Background(), "c-absent", "h1", 3000, "m1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if match == nil || match.ManifestHash != "m1" {
		t.Fatalf("expected manifest_hash fallback match, got %+v", match)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFind_NoMatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`manifest_hash = \$1`).WithArgs("m-unknown").WillReturnRows(
		sqlmock.NewRows([]string{"composite_id", "host_id_hash", "port", "manifest_hash"}))

	store := New(db)
	match, err := store.Find(context.Background(), "", "", 0, "m-unknown")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if match != nil {
		t.Fatalf("expected no match, got %+v", match)
	}
}
