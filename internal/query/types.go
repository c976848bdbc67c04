package query

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/risingfruit/forage/internal/model"
)

// TypeFilter narrows the types listing. Both matches are LIKE substring matches
// and follow SQLite's case folding, which covers ASCII only.
type TypeFilter struct {
	Category string // substring of category_mask
	Search   string // substring of en_name or scientific_name
}

// Types lists non-pending types sorted by English name, with parent names and
// localized names resolved.
func (s *Store) Types(ctx context.Context, f TypeFilter) ([]model.Type, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT t.id, t.parent_id, p.en_name, t.scientific_name, NULL, t.taxonomic_rank,
		       t.en_name, NULL, t.wikipedia_url, t.category_mask, t.pending, t.localized_names
		FROM types t
		LEFT JOIN types p ON p.id = t.parent_id
		WHERE t.pending = 0`)
	var args []any
	if f.Category != "" {
		sb.WriteString(` AND t.category_mask LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Category))
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		sb.WriteString(` AND (t.en_name LIKE ? ESCAPE '\' OR t.scientific_name LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	sb.WriteString(` ORDER BY t.en_name, t.id`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "query: types")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Type{}
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "query: types iterate")
}

// TypeByID returns a non-pending type with its non-pending children and the number
// of locations linked to it, or nil when the id is unknown or pending.
func (s *Store) TypeByID(ctx context.Context, id int64) (*model.TypeDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.parent_id, p.en_name, t.scientific_name, t.scientific_synonyms,
		       t.taxonomic_rank, t.en_name, t.en_synonyms, t.wikipedia_url, t.category_mask,
		       t.pending, t.localized_names
		FROM types t
		LEFT JOIN types p ON p.id = t.parent_id
		WHERE t.id = ? AND t.pending = 0`, id)
	t, err := scanType(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "query: type %d", id)
	}

	d := &model.TypeDetail{Type: *t}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Children, err = s.children(gctx, id)
		return err
	})
	g.Go(func() error {
		err := s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM location_types WHERE type_id = ?`, id,
		).Scan(&d.LocationCount)
		return eris.Wrapf(err, "query: location count for type %d", id)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) children(ctx context.Context, id int64) ([]model.TypeChild, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, en_name, scientific_name
		FROM types
		WHERE parent_id = ? AND pending = 0
		ORDER BY en_name, id`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "query: children of %d", id)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.TypeChild{}
	for rows.Next() {
		var (
			c           model.TypeChild
			enName, sci sql.NullString
		)
		if err := rows.Scan(&c.ID, &enName, &sci); err != nil {
			return nil, eris.Wrap(err, "query: scan child")
		}
		c.EnName = nullString(enName)
		c.ScientificName = nullString(sci)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "query: children iterate")
}

type scanner interface {
	Scan(dest ...any) error
}

// scanType reads the twelve type columns in model.Type order. sql.ErrNoRows is
// returned unwrapped.
func scanType(sc scanner) (*model.Type, error) {
	var (
		t                             model.Type
		parentID                      sql.NullInt64
		parentName, sci, sciSyn, rank sql.NullString
		enName, enSyn, wiki, catMask  sql.NullString
	)
	err := sc.Scan(&t.ID, &parentID, &parentName, &sci, &sciSyn, &rank,
		&enName, &enSyn, &wiki, &catMask, &t.Pending, &t.LocalizedNames)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "query: scan type")
	}
	t.ParentID = nullInt(parentID)
	t.ParentName = nullString(parentName)
	t.ScientificName = nullString(sci)
	t.ScientificSynonyms = nullString(sciSyn)
	t.TaxonomicRank = nullString(rank)
	t.EnName = nullString(enName)
	t.EnSynonyms = nullString(enSyn)
	t.WikipediaURL = nullString(wiki)
	t.CategoryMask = nullString(catMask)
	return &t, nil
}

// Stats returns the landing page counts. The three counts run concurrently and
// are not taken from a single snapshot.
func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	counts := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM locations WHERE hidden = 0`, &st.LocationsTotal},
		{`SELECT COUNT(*) FROM locations WHERE hidden = 0 AND unverified = 0`, &st.LocationsVerified},
		{`SELECT COUNT(*) FROM types WHERE pending = 0`, &st.TypesTotal},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() error {
			return eris.Wrap(s.db.QueryRowContext(gctx, c.sql).Scan(c.dest), "query: stats")
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}
