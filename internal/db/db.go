// Package db stores the history of clustering runs in SQLite.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/clusterview/internal/timeutil"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the SQLite handle holding run history.
type DB struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// pragmas go into the DSN so the driver applies them to every pooled
// connection, not just the first.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

func dsn(path string) string {
	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	db := &DB{DB: sqlDB, path: path, clock: timeutil.RealClock{}}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// SetClock replaces the clock used to stamp new runs.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

// sourceName is the tailsql source label for this database.
func (db *DB) sourceName() string {
	return "sqlite://" + db.path
}

// AttachAdminRoutes mounts live SQL debugging of the run history under
// /debug/tailsql/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB(db.sourceName(), db.DB, &tailsql.DBOptions{
		Label: "Cluster runs",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	return nil
}
