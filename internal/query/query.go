// Package query answers the read-only questions the API asks of the store.
// Hidden locations and pending types never appear in any result.
package query

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Store runs queries against an explicitly owned database handle.
type Store struct {
	db *sql.DB
}

// New creates a query store over db. The caller keeps ownership of db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks that the database answers a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return eris.Wrap(s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one), "query: ping")
}

// placeholders returns "?, ?, ..." for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// likePattern wraps s for a substring LIKE match with its wildcards escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// splitIDs parses a GROUP_CONCAT list of integers. It never returns nil.
func splitIDs(s sql.NullString) ([]int64, error) {
	ids := []int64{}
	if !s.Valid || s.String == "" {
		return ids, nil
	}
	for _, part := range strings.Split(s.String, ",") {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "query: parse type id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
