package query

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/risingfruit/forage/internal/geospatial"
	"github.com/risingfruit/forage/internal/model"
)

// BoundsQuery selects locations inside a bounding box.
type BoundsQuery struct {
	BBox         geospatial.BBox
	TypeIDs      []int64 // any of; empty means no type filter
	Limit        int
	Offset       int
	VerifiedOnly bool
	// Center, when set, orders results by distance from it and fills DistanceM.
	Center *geospatial.Point
}

// where renders the predicate shared by LocationsInBounds and CountInBounds.
// The R*Tree narrows candidates; the exact BETWEEN on the location row drops the
// ones admitted only by the index's outward float32 rounding.
func (q BoundsQuery) where() (string, []any) {
	b := q.BBox
	var sb strings.Builder
	sb.WriteString(`
		FROM locations_rtree r
		JOIN locations l ON l.id = r.id
		WHERE r.min_lat <= ? AND r.max_lat >= ?
		  AND r.min_lng <= ? AND r.max_lng >= ?
		  AND l.lat BETWEEN ? AND ?
		  AND l.lng BETWEEN ? AND ?
		  AND l.hidden = 0`)
	args := []any{
		b.MaxLat, b.MinLat, b.MaxLng, b.MinLng,
		b.MinLat, b.MaxLat, b.MinLng, b.MaxLng,
	}

	if q.VerifiedOnly {
		sb.WriteString(` AND l.unverified = 0`)
	}
	if len(q.TypeIDs) > 0 {
		sb.WriteString(` AND EXISTS (SELECT 1 FROM location_types f WHERE f.location_id = l.id AND f.type_id IN (`)
		sb.WriteString(placeholders(len(q.TypeIDs)))
		sb.WriteString(`))`)
		for _, id := range q.TypeIDs {
			args = append(args, id)
		}
	}
	return sb.String(), args
}

// LocationsInBounds returns one page of visible locations inside q.BBox, ordered by
// id or, with a center, by distance then id. Each row carries all of its type ids,
// not only the ones matched by the type filter.
func (s *Store) LocationsInBounds(ctx context.Context, q BoundsQuery) ([]model.LocationSummary, error) {
	where, args := q.where()

	var sb strings.Builder
	sb.WriteString(`
		SELECT l.id, l.lat, l.lng, l.description, l.access, l.season_start, l.season_stop,
		       l.unverified,
		       (SELECT GROUP_CONCAT(lt.type_id) FROM location_types lt WHERE lt.location_id = l.id)`)
	sb.WriteString(where)

	if q.Center != nil {
		sb.WriteString(`
		ORDER BY ` + distanceFunc + `(?, ?, l.lat, l.lng), l.id`)
		args = append(args, q.Center.Lat, q.Center.Lng)
	} else {
		sb.WriteString(`
		ORDER BY l.id`)
	}
	sb.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "query: locations in bounds")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.LocationSummary{}
	for rows.Next() {
		var (
			loc                                  model.LocationSummary
			desc, access, seasonStart, seasonEnd sql.NullString
			typeIDs                              sql.NullString
		)
		if err := rows.Scan(&loc.ID, &loc.Lat, &loc.Lng, &desc, &access, &seasonStart, &seasonEnd,
			&loc.Unverified, &typeIDs); err != nil {
			return nil, eris.Wrap(err, "query: scan location")
		}
		loc.Description = nullString(desc)
		loc.Access = nullString(access)
		loc.SeasonStart = nullString(seasonStart)
		loc.SeasonStop = nullString(seasonEnd)
		if loc.TypeIDs, err = splitIDs(typeIDs); err != nil {
			return nil, err
		}
		if q.Center != nil {
			d := geospatial.Haversine(*q.Center, geospatial.Point{Lat: loc.Lat, Lng: loc.Lng})
			loc.DistanceM = &d
		}
		out = append(out, loc)
	}
	return out, eris.Wrap(rows.Err(), "query: locations in bounds iterate")
}

// CountInBounds counts every location LocationsInBounds could return for q,
// ignoring q.Limit, q.Offset and q.Center.
func (s *Store) CountInBounds(ctx context.Context, q BoundsQuery) (int, error) {
	where, args := q.where()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+where, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "query: count in bounds")
	}
	return n, nil
}

// LocationByID returns a visible location with its types, or nil when the id is
// unknown or hidden. Pending types are left out of Types but stay in TypeIDs.
func (s *Store) LocationByID(ctx context.Context, id int64) (*model.LocationDetail, error) {
	var (
		d                                        model.LocationDetail
		desc, seasonStart, seasonStop, author    sql.NullString
		address, access, importLink, originalIDs sql.NullString
		createdAt, updatedAt, typeIDs            sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT l.id, l.lat, l.lng, l.unverified, l.description, l.season_start, l.season_stop,
		       l.no_season, l.author, l.address, l.access, l.import_link, l.original_ids,
		       l.hidden, l.created_at, l.updated_at,
		       (SELECT GROUP_CONCAT(lt.type_id) FROM location_types lt WHERE lt.location_id = l.id)
		FROM locations l
		WHERE l.id = ? AND l.hidden = 0`, id,
	).Scan(&d.ID, &d.Lat, &d.Lng, &d.Unverified, &desc, &seasonStart, &seasonStop,
		&d.NoSeason, &author, &address, &access, &importLink, &originalIDs,
		&d.Hidden, &createdAt, &updatedAt, &typeIDs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "query: location %d", id)
	}

	d.Description = nullString(desc)
	d.SeasonStart = nullString(seasonStart)
	d.SeasonStop = nullString(seasonStop)
	d.Author = nullString(author)
	d.Address = nullString(address)
	d.Access = nullString(access)
	d.ImportLink = nullString(importLink)
	d.OriginalIDs = nullString(originalIDs)
	d.CreatedAt = nullString(createdAt)
	d.UpdatedAt = nullString(updatedAt)

	if d.TypeIDs, err = splitIDs(typeIDs); err != nil {
		return nil, err
	}
	if d.Types, err = s.typeSummaries(ctx, d.TypeIDs); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) typeSummaries(ctx context.Context, ids []int64) ([]model.TypeSummary, error) {
	out := []model.TypeSummary{}
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, en_name, scientific_name, category_mask
		FROM types
		WHERE pending = 0 AND id IN (`+placeholders(len(ids))+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query: type summaries")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			t                    model.TypeSummary
			enName, sci, catMask sql.NullString
		)
		if err := rows.Scan(&t.ID, &enName, &sci, &catMask); err != nil {
			return nil, eris.Wrap(err, "query: scan type summary")
		}
		t.EnName = nullString(enName)
		t.ScientificName = nullString(sci)
		t.CategoryMask = nullString(catMask)
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "query: type summaries iterate")
}
