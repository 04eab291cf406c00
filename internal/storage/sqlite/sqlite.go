// Package sqlite is the sqlite-backed implementation of the repository
// ports declared in internal/storage: a thin struct wrapping *sql.DB plus
// one file per aggregate, built with go-jet's statement builder instead of
// hand-written SQL strings.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-jet/jet/v2/sqlite"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the shared handle every repository method above hangs off of.
// The mutex serializes writers: sqlite allows only one at a time, so
// multi-statement transactions (dequeue, replace-all persistence) go
// through it rather than relying on sqlite's own busy-retry behavior.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens filePath (or an in-memory database for ":memory:") and runs
// pending migrations.
func New(filePath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", filePath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// sqlite supports exactly one writer; a single connection avoids
	// SQLITE_BUSY from the pool handing a second writer a new connection
	// while the first holds a transaction.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// PingContext backs the HTTP health check.
func (s *SQLite) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// driverTimestampFormat is the exact layout the sqlite3 driver binds
// time.Time values with; literals must use the same layout (and UTC) so
// text comparisons order the same way the times do.
const driverTimestampFormat = "2006-01-02 15:04:05.999999999-07:00"

func tsExp(t time.Time) sqlite.TimestampExpression {
	return sqlite.TimestampExp(sqlite.String(t.UTC().Format(driverTimestampFormat)))
}
