package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// MirrorReport compares locations with their spatial index entries.
type MirrorReport struct {
	Locations int64 `json:"locations"`
	Indexed   int64 `json:"indexed"`
	// Missing counts locations with no locations_rtree row.
	Missing int64 `json:"missing"`
	// Orphaned counts locations_rtree rows with no location.
	Orphaned int64 `json:"orphaned"`
}

// OK reports whether every location is indexed exactly once.
func (r MirrorReport) OK() bool {
	return r.Locations == r.Indexed && r.Missing == 0 && r.Orphaned == 0
}

// VerifyMirror counts both sides of the locations/locations_rtree mirror.
func (s *SQLiteStore) VerifyMirror(ctx context.Context) (MirrorReport, error) {
	var r MirrorReport
	queries := []struct {
		sql  string
		dest *int64
	}{
		{`SELECT COUNT(*) FROM locations`, &r.Locations},
		{`SELECT COUNT(*) FROM locations_rtree`, &r.Indexed},
		{`SELECT COUNT(*) FROM locations l WHERE NOT EXISTS (SELECT 1 FROM locations_rtree r WHERE r.id = l.id)`, &r.Missing},
		{`SELECT COUNT(*) FROM locations_rtree r WHERE NOT EXISTS (SELECT 1 FROM locations l WHERE l.id = r.id)`, &r.Orphaned},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return r, eris.Wrap(err, "sqlite: verify mirror")
		}
	}
	return r, nil
}

// Checkpoint folds the write-ahead log back into the main file.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return eris.Wrap(err, "sqlite: wal checkpoint")
}
