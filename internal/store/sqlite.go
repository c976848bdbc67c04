// Package store owns the SQLite file: schema, spatial mirror triggers, and the
// location write path.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaDDL string

//go:embed triggers.sql
var triggerDDL string

// TriggerNames lists the triggers that keep locations_rtree in sync with locations.
var TriggerNames = []string{
	"tr_locations_insert",
	"tr_locations_update",
	"tr_locations_delete",
}

// Options configures how an existing database is opened.
type Options struct {
	// ReadOnly rejects writes on every pooled connection.
	ReadOnly bool
	// MaxOpenConns caps the pool; 0 keeps the database/sql default.
	MaxOpenConns int
}

// SQLiteStore wraps the database handle for one SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Create deletes any database at path, creates its parent directory, and opens a
// fresh single-connection database tuned for bulk loading with the schema applied.
func Create(ctx context.Context, path string) (*SQLiteStore, error) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(err, "sqlite: remove %s", p)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "sqlite: create parent directory")
	}

	db, err := sql.Open("sqlite", dsn(path, nil))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// PRAGMA foreign_keys is per connection, so the importer must hold exactly one.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-32000",
		"PRAGMA temp_store=FILE",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.ApplySchema(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// Open opens an existing database for the API server.
func Open(path string, opts Options) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "sqlite: stat %s", path)
	}

	pragmas := []string{"foreign_keys(1)"}
	if opts.ReadOnly {
		pragmas = append(pragmas, "query_only(1)")
	}
	db, err := sql.Open("sqlite", dsn(path, pragmas))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// dsn builds a modernc.org/sqlite URI whose pragmas run on every new connection.
func dsn(path string, pragmas []string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// DB returns the underlying handle.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ApplySchema creates tables, indexes and triggers in a single script.
func (s *SQLiteStore) ApplySchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaDDL+"\n"+triggerDDL)
	return eris.Wrap(err, "sqlite: apply schema")
}

// DropTriggers removes the mirror triggers ahead of a bulk load.
func (s *SQLiteStore) DropTriggers(ctx context.Context) error {
	for _, name := range TriggerNames {
		if _, err := s.db.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+name); err != nil {
			return eris.Wrapf(err, "sqlite: drop trigger %s", name)
		}
	}
	return nil
}

// CreateTriggers restores the mirror triggers.
func (s *SQLiteStore) CreateTriggers(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, triggerDDL)
	return eris.Wrap(err, "sqlite: create triggers")
}

// SetForeignKeys toggles foreign key enforcement. It has no effect inside a
// transaction and applies to the importer's single connection only.
func (s *SQLiteStore) SetForeignKeys(ctx context.Context, on bool) error {
	pragma := "PRAGMA foreign_keys = OFF"
	if on {
		pragma = "PRAGMA foreign_keys = ON"
	}
	_, err := s.db.ExecContext(ctx, pragma)
	return eris.Wrapf(err, "sqlite: exec %s", pragma)
}

// Analyze refreshes planner statistics.
func (s *SQLiteStore) Analyze(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "ANALYZE")
	return eris.Wrap(err, "sqlite: analyze")
}

// Triggers returns the names of mirror triggers currently defined.
func (s *SQLiteStore) Triggers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'trigger' AND tbl_name = 'locations' ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list triggers")
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trigger")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: list triggers iterate")
}

// Size returns the main database file size in bytes.
func (s *SQLiteStore) Size() (int64, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: stat")
	}
	return fi.Size(), nil
}
