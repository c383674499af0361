// Package testutil provides the PostgreSQL harness for store integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Tables emptied between tests. goose_db_version is kept so migrations are
// applied once per database.
var Tables = []string{
	"diary_entries",
	"risk_detection_settings",
	"risk_assessments",
	"alert_sessions",
	"counseling_resources",
}

// goose keeps dialect and base FS as package state.
var gooseMu sync.Mutex

// PGTest connects to POSTGRES_URL, brings the schema up to date, and starts
// from empty tables. The returned cleanup empties them again and closes db.
//
//	db, cleanup := testutil.PGTest(t)
//	defer cleanup()
//
// Without POSTGRES_URL the test is skipped.
func PGTest(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	dsn := os.Getenv("POSTGRES_URL")
	if dsn == "" {
		t.Skip("POSTGRES_URL not set, skipping PostgreSQL store test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("pgtest: open: %v", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: ping: %v", err)
	}
	if err := migrate(ctx, db, MigrationsDir()); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: migrate: %v", err)
	}
	if err := Truncate(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: truncate: %v", err)
	}

	return db, func() {
		_ = Truncate(ctx, db)
		_ = db.Close()
	}
}

// MigrationsDir is the repository's migrations/ directory, resolved from this
// source file so tests work from any package directory.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// Truncate empties every table in Tables.
func Truncate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(Tables, ", ")+" CASCADE")
	return err
}

func migrate(ctx context.Context, db *sql.DB, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetLogger(goose.NopLogger())
	return goose.UpContext(ctx, db, dir)
}
