package query

import (
	"context"
	"database/sql/driver"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risingfruit/forage/internal/geospatial"
	"github.com/risingfruit/forage/internal/model"
	"github.com/risingfruit/forage/internal/store"
)

func strp(s string) *string { return &s }

// seed builds a small dataset:
//
//	types: 1 Fruit (root), 2 Pear (child of 1), 3 Apple (child of 1),
//	       4 Secret (pending, child of 1), 5 Nut, 6 %Odd_ (category "1_0")
//	locations: 100..104 in Portland, 105 hidden, 106 far away
func seed(t *testing.T) *Store {
	t.Helper()
	q, _ := seedRepo(t)
	return q
}

func seedRepo(t *testing.T) (*Store, *store.LocationRepository) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Create(ctx, filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	_, err = s.DB().ExecContext(ctx, `
		INSERT INTO types (id, parent_id, scientific_name, en_name, category_mask, pending, localized_names, wikipedia_url) VALUES
			(1, NULL, 'Fructus', 'Fruit', '1', 0, '{"de":"Obst"}', 'https://en.wikipedia.org/wiki/Fruit'),
			(2, 1, 'Pyrus', 'Pear', '1', 0, NULL, NULL),
			(3, 1, 'Malus', 'Apple', '3', 0, '{not json', NULL),
			(4, 1, 'Secretus', 'Secret', '1', 1, NULL, NULL),
			(5, NULL, 'Juglans', 'Nut', '2', 0, NULL, NULL),
			(6, NULL, 'Oddus', '%Odd_', '1_0', 0, NULL, NULL)`)
	require.NoError(t, err)

	repo := store.NewLocationRepository(s)
	locs := []struct {
		loc   model.Location
		types []int64
	}{
		{model.Location{ID: 100, Lat: 45.50, Lng: -122.60, Description: strp("center")}, []int64{2, 3}},
		{model.Location{ID: 101, Lat: 45.51, Lng: -122.61, Unverified: true}, []int64{3}},
		{model.Location{ID: 102, Lat: 45.55, Lng: -122.65, Access: strp("4")}, []int64{5}},
		{model.Location{ID: 103, Lat: 45.52, Lng: -122.60}, nil},
		{model.Location{ID: 104, Lat: 45.50, Lng: -122.59}, []int64{3, 4}},
		{model.Location{ID: 105, Lat: 45.50, Lng: -122.60}, []int64{3}},
		{model.Location{ID: 106, Lat: -33.86, Lng: 151.21}, []int64{3}},
	}
	for _, l := range locs {
		require.NoError(t, repo.Insert(ctx, l.loc, l.types))
	}
	require.NoError(t, repo.SetHidden(ctx, 105, true))

	return New(s.DB()), repo
}

func portland(t *testing.T) geospatial.BBox {
	t.Helper()
	b, err := geospatial.NewBBox(
		geospatial.Point{Lat: 45.4, Lng: -122.7},
		geospatial.Point{Lat: 45.6, Lng: -122.5},
	)
	require.NoError(t, err)
	return b
}

func ids(locs []model.LocationSummary) []int64 {
	out := make([]int64, len(locs))
	for i, l := range locs {
		out[i] = l.ID
	}
	return out
}

func TestLocationsInBounds_Basic(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	locs, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: portland(t), Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101, 102, 103, 104}, ids(locs), "hidden and distant excluded, id order")

	assert.ElementsMatch(t, []int64{2, 3}, locs[0].TypeIDs)
	assert.Equal(t, "center", *locs[0].Description)
	assert.Nil(t, locs[0].DistanceM)
	assert.True(t, locs[1].Unverified)
	assert.NotNil(t, locs[3].TypeIDs)
	assert.Empty(t, locs[3].TypeIDs)

	box := portland(t)
	for _, l := range locs {
		assert.True(t, box.Contains(geospatial.Point{Lat: l.Lat, Lng: l.Lng}))
	}
}

func TestLocationsInBounds_CornerOrderInvariant(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	swapped, err := geospatial.NewBBox(
		geospatial.Point{Lat: 45.6, Lng: -122.5},
		geospatial.Point{Lat: 45.4, Lng: -122.7},
	)
	require.NoError(t, err)

	a, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: portland(t), Limit: 100})
	require.NoError(t, err)
	b, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: swapped, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, ids(a), ids(b))
}

func TestLocationsInBounds_Filters(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	locs, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: portland(t), Limit: 100, VerifiedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 102, 103, 104}, ids(locs))

	locs, err = q.LocationsInBounds(ctx, BoundsQuery{BBox: portland(t), Limit: 100, TypeIDs: []int64{2, 5}})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 102}, ids(locs))
	assert.ElementsMatch(t, []int64{2, 3}, locs[0].TypeIDs, "all type ids kept, not only matched ones")

	locs, err = q.LocationsInBounds(ctx, BoundsQuery{BBox: portland(t), Limit: 100, TypeIDs: []int64{999}})
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestLocationsInBounds_Pagination(t *testing.T) {
	q := seed(t)
	ctx := context.Background()
	base := BoundsQuery{BBox: portland(t)}

	var all []int64
	for offset := 0; offset < 10; offset += 2 {
		bq := base
		bq.Limit, bq.Offset = 2, offset
		page, err := q.LocationsInBounds(ctx, bq)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page), 2)
		all = append(all, ids(page)...)

		total, err := q.CountInBounds(ctx, bq)
		require.NoError(t, err)
		assert.Equal(t, 5, total, "total is invariant to limit and offset")
	}
	assert.Equal(t, []int64{100, 101, 102, 103, 104}, all)
}

func TestLocationsInBounds_CenterOrdering(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	center := &geospatial.Point{Lat: 45.55, Lng: -122.65}
	locs, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: portland(t), Limit: 100, Center: center})
	require.NoError(t, err)
	require.Len(t, locs, 5)
	assert.Equal(t, int64(102), locs[0].ID)

	for i, l := range locs {
		require.NotNil(t, l.DistanceM)
		if i > 0 {
			assert.GreaterOrEqual(t, *l.DistanceM, *locs[i-1].DistanceM)
		}
	}
	assert.InDelta(t, 0, *locs[0].DistanceM, 1e-6)
}

func TestLocationsInBounds_CenterOrderingFollowsDistanceM(t *testing.T) {
	q, repo := seedRepo(t)
	ctx := context.Background()
	// At 60N a flat-map ranking puts 2 nearer; on the sphere 1 is nearer.
	require.NoError(t, repo.Insert(ctx, model.Location{ID: 1, Lat: 60, Lng: 30}, nil))
	require.NoError(t, repo.Insert(ctx, model.Location{ID: 2, Lat: 74.9, Lng: 0}, nil))

	box, err := geospatial.NewBBox(
		geospatial.Point{Lat: 50, Lng: -10},
		geospatial.Point{Lat: 80, Lng: 40},
	)
	require.NoError(t, err)

	center := &geospatial.Point{Lat: 60, Lng: 0}
	locs, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: box, Limit: 10, Center: center})
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, []int64{1, 2}, ids(locs))
	assert.LessOrEqual(t, *locs[0].DistanceM, *locs[1].DistanceM)
}

func TestHaversineSQL(t *testing.T) {
	got, err := haversineSQL(nil, []driver.Value{float64(45), int64(0), float64(45), float64(0)})
	require.NoError(t, err)
	assert.InDelta(t, 0, got, 1e-9)

	_, err = haversineSQL(nil, []driver.Value{"45", 0.0, 45.0, 0.0})
	assert.Error(t, err)
}

func TestLocationsInBounds_CenterTieBreaksByID(t *testing.T) {
	q, repo := seedRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, model.Location{ID: 99, Lat: 45.50, Lng: -122.60}, nil))
	require.NoError(t, repo.Insert(ctx, model.Location{ID: 107, Lat: 45.50, Lng: -122.60}, nil))

	center := &geospatial.Point{Lat: 45.50, Lng: -122.60}
	locs, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: portland(t), Limit: 3, Center: center})
	require.NoError(t, err)
	assert.Equal(t, []int64{99, 100, 107}, ids(locs))
}

func TestLocationsInBounds_EmptyBox(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	box, err := geospatial.NewBBox(geospatial.Point{Lat: 10, Lng: 10}, geospatial.Point{Lat: 11, Lng: 11})
	require.NoError(t, err)

	locs, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: box, Limit: 1000})
	require.NoError(t, err)
	assert.NotNil(t, locs)
	assert.Empty(t, locs)

	total, err := q.CountInBounds(ctx, BoundsQuery{BBox: box})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestLocationsInBounds_PointOnEdge(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	box, err := geospatial.NewBBox(geospatial.Point{Lat: 45.50, Lng: -122.60}, geospatial.Point{Lat: 45.50, Lng: -122.60})
	require.NoError(t, err)
	locs, err := q.LocationsInBounds(ctx, BoundsQuery{BBox: box, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, ids(locs))
}

func TestLocationByID(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	d, err := q.LocationByID(ctx, 104)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.ElementsMatch(t, []int64{3, 4}, d.TypeIDs)
	require.Len(t, d.Types, 1, "pending type summarised out")
	assert.Equal(t, int64(3), d.Types[0].ID)
	assert.Equal(t, "Apple", *d.Types[0].EnName)
	assert.Equal(t, "3", *d.Types[0].CategoryMask)

	d, err = q.LocationByID(ctx, 103)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Empty(t, d.TypeIDs)
	assert.NotNil(t, d.Types)

	d, err = q.LocationByID(ctx, 105)
	require.NoError(t, err)
	assert.Nil(t, d, "hidden")

	d, err = q.LocationByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestTypes(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	types, err := q.Types(ctx, TypeFilter{})
	require.NoError(t, err)
	var names []string
	for _, ty := range types {
		names = append(names, *ty.EnName)
	}
	assert.Equal(t, []string{"%Odd_", "Apple", "Fruit", "Nut", "Pear"}, names)

	apple := types[1]
	assert.Equal(t, "Fruit", *apple.ParentName)
	assert.Equal(t, int64(1), *apple.ParentID)
	assert.NotNil(t, apple.LocalizedNames)
	assert.Empty(t, apple.LocalizedNames, "malformed JSON degrades to empty")

	fruit := types[2]
	assert.Nil(t, fruit.ParentName)
	assert.Equal(t, model.LocalizedNames{"de": "Obst"}, fruit.LocalizedNames)
}

func TestTypes_Filters(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter TypeFilter
		want   []int64
	}{
		{"category", TypeFilter{Category: "3"}, []int64{3}},
		{"search en_name", TypeFilter{Search: "ea"}, []int64{2}},
		{"search scientific", TypeFilter{Search: "jug"}, []int64{5}},
		{"both", TypeFilter{Category: "1", Search: "ru"}, []int64{1, 2}},
		{"wildcards literal", TypeFilter{Search: "%"}, []int64{6}},
		{"underscore literal", TypeFilter{Category: "_"}, []int64{6}},
		{"pending never listed", TypeFilter{Search: "Secret"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			types, err := q.Types(ctx, tt.filter)
			require.NoError(t, err)
			var got []int64
			for _, ty := range types {
				got = append(got, ty.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeByID(t *testing.T) {
	q := seed(t)
	ctx := context.Background()

	d, err := q.TypeByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Len(t, d.Children, 2)
	assert.Equal(t, "Apple", *d.Children[0].EnName)
	assert.Equal(t, "Pear", *d.Children[1].EnName)
	assert.Equal(t, 0, d.LocationCount)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Fruit", *d.WikipediaURL)

	d, err = q.TypeByID(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 5, d.LocationCount, "counts every join row, hidden and distant included")
	assert.NotNil(t, d.Children)
	assert.Empty(t, d.Children)

	d, err = q.TypeByID(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, d, "pending")

	d, err = q.TypeByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestStats(t *testing.T) {
	q := seed(t)

	st, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Stats{LocationsTotal: 6, LocationsVerified: 5, TypesTotal: 5}, *st)
}

func TestPing(t *testing.T) {
	q := seed(t)
	assert.NoError(t, q.Ping(context.Background()))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%a\%b\_c\\%`, likePattern(`a%b_c\`))
}
