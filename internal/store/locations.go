package store

import (
	"context"
	"database/sql"
	"math"

	"github.com/rotisserie/eris"

	"github.com/risingfruit/forage/internal/geospatial"
	"github.com/risingfruit/forage/internal/model"
)

// rtreeSlack covers the outward rounding of the 32-bit floats R*Tree stores.
const rtreeSlack = 1e-4

// LocationRepository is the only runtime write path for locations. Every write runs
// in one transaction and checks that the spatial mirror followed the row, so a
// write made while the mirror triggers are missing is rolled back.
type LocationRepository struct {
	db *sql.DB
}

// NewLocationRepository creates a repository over s.
func NewLocationRepository(s *SQLiteStore) *LocationRepository {
	return &LocationRepository{db: s.db}
}

// Insert adds a location and its type links.
func (r *LocationRepository) Insert(ctx context.Context, loc model.Location, typeIDs []int64) error {
	if !(geospatial.Point{Lat: loc.Lat, Lng: loc.Lng}).Valid() {
		return eris.Errorf("locations: invalid coordinates (%g, %g)", loc.Lat, loc.Lng)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO locations (
				id, lat, lng, unverified, description, season_start, season_stop,
				no_season, author, address, access, import_link, original_ids,
				hidden, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			loc.ID, loc.Lat, loc.Lng, loc.Unverified, loc.Description, loc.SeasonStart, loc.SeasonStop,
			loc.NoSeason, loc.Author, loc.Address, loc.Access, loc.ImportLink, loc.OriginalIDs,
			loc.Hidden, loc.CreatedAt, loc.UpdatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "locations: insert %d", loc.ID)
		}
		for _, tid := range typeIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO location_types (location_id, type_id) VALUES (?, ?)`,
				loc.ID, tid,
			); err != nil {
				return eris.Wrapf(err, "locations: link %d to type %d", loc.ID, tid)
			}
		}
		return checkMirror(ctx, tx, loc.ID, loc.Lat, loc.Lng)
	})
}

// Move changes a location's coordinates.
func (r *LocationRepository) Move(ctx context.Context, id int64, lat, lng float64) error {
	if !(geospatial.Point{Lat: lat, Lng: lng}).Valid() {
		return eris.Errorf("locations: invalid coordinates (%g, %g)", lat, lng)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE locations SET lat = ?, lng = ?, updated_at = datetime('now') WHERE id = ?`,
			lat, lng, id,
		)
		if err != nil {
			return eris.Wrapf(err, "locations: move %d", id)
		}
		if err := checkRowsAffected(res, id); err != nil {
			return err
		}
		return checkMirror(ctx, tx, id, lat, lng)
	})
}

// SetHidden soft-deletes or restores a location. The mirror row is kept either way.
func (r *LocationRepository) SetHidden(ctx context.Context, id int64, hidden bool) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE locations SET hidden = ?, updated_at = datetime('now') WHERE id = ?`,
			hidden, id,
		)
		if err != nil {
			return eris.Wrapf(err, "locations: set hidden %d", id)
		}
		return checkRowsAffected(res, id)
	})
}

// Delete removes a location, its type links and its mirror row.
func (r *LocationRepository) Delete(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM location_types WHERE location_id = ?`, id); err != nil {
			return eris.Wrapf(err, "locations: unlink %d", id)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "locations: delete %d", id)
		}
		if err := checkRowsAffected(res, id); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations_rtree WHERE id = ?`, id).Scan(&n); err != nil {
			return eris.Wrapf(err, "locations: check mirror %d", id)
		}
		if n != 0 {
			return eris.Errorf("locations: mirror row for %d survived delete", id)
		}
		return nil
	})
}

func (r *LocationRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "locations: begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "locations: commit")
}

func checkMirror(ctx context.Context, tx *sql.Tx, id int64, lat, lng float64) error {
	var minLat, maxLat, minLng, maxLng float64
	err := tx.QueryRowContext(ctx,
		`SELECT min_lat, max_lat, min_lng, max_lng FROM locations_rtree WHERE id = ?`, id,
	).Scan(&minLat, &maxLat, &minLng, &maxLng)
	if err == sql.ErrNoRows {
		return eris.Errorf("locations: no mirror row for %d", id)
	}
	if err != nil {
		return eris.Wrapf(err, "locations: check mirror %d", id)
	}
	if math.Abs(minLat-lat) > rtreeSlack || math.Abs(maxLat-lat) > rtreeSlack ||
		math.Abs(minLng-lng) > rtreeSlack || math.Abs(maxLng-lng) > rtreeSlack {
		return eris.Errorf("locations: mirror row for %d does not match (%g, %g)", id, lat, lng)
	}
	return nil
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("location not found: %d", id)
	}
	return nil
}
