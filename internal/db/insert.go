// Package db provides shared database helpers for batched bulk inserts.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Conflict selects the INSERT conflict clause.
type Conflict int

const (
	// ConflictAbort fails the statement (and the batch) on a constraint violation.
	ConflictAbort Conflict = iota
	// ConflictIgnore skips rows that violate a uniqueness constraint.
	ConflictIgnore
)

// InsertConfig defines the target of a bulk insert.
type InsertConfig struct {
	Table      string   // target table (e.g., "locations")
	Columns    []string // columns bound positionally from each row
	OnConflict Conflict
}

// SQL renders the parameterised INSERT statement for cfg.
func (cfg InsertConfig) SQL() string {
	verb := "INSERT"
	if cfg.OnConflict == ConflictIgnore {
		verb = "INSERT OR IGNORE"
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cfg.Columns)), ", ")
	return fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb, quoteIdent(cfg.Table), quoteAndJoin(cfg.Columns), placeholders)
}

// BulkInsert executes one prepared INSERT per row inside tx and returns the number
// of rows actually written (ignored conflicts are not counted).
func BulkInsert(ctx context.Context, tx *sql.Tx, cfg InsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: insert: no columns specified")
	}

	stmt, err := tx.PrepareContext(ctx, cfg.SQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: insert: prepare for %s", cfg.Table)
	}
	defer stmt.Close() //nolint:errcheck

	var written int64
	for i, row := range rows {
		if len(row) != len(cfg.Columns) {
			return written, eris.Errorf("db: insert: row %d for %s has %d values, want %d",
				i, cfg.Table, len(row), len(cfg.Columns))
		}
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return written, eris.Wrapf(err, "db: insert: row %d into %s", i, cfg.Table)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return written, eris.Wrap(err, "db: insert: rows affected")
		}
		written += n
	}
	return written, nil
}

// quoteIdent double-quotes an identifier for SQLite.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
