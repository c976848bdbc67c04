// Package geospatial holds the planar helpers used by bounding box search:
// coordinate validation, corner normalisation and great-circle distance.
package geospatial

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371008.8

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies in [-90,90] x [-180,180].
func (p Point) Valid() bool {
	return ValidLat(p.Lat) && ValidLng(p.Lng)
}

// Geom returns the point as an XY geometry (x = lng, y = lat).
func (p Point) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat})
}

// ValidLat reports whether lat is a finite latitude.
func ValidLat(lat float64) bool { return lat >= -90 && lat <= 90 }

// ValidLng reports whether lng is a finite longitude.
func ValidLng(lng float64) bool { return lng >= -180 && lng <= 180 }

// BBox represents a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// NewBBox builds the axis-aligned rectangle spanned by two corners. The corners may
// be given in either order: a southwest/northeast pair and a northeast/southwest
// pair produce the same box. Boxes crossing the antimeridian are not supported;
// callers split them into two queries.
func NewBBox(sw, ne Point) (BBox, error) {
	if !sw.Valid() {
		return BBox{}, eris.Errorf("geo: invalid corner (%g, %g)", sw.Lat, sw.Lng)
	}
	if !ne.Valid() {
		return BBox{}, eris.Errorf("geo: invalid corner (%g, %g)", ne.Lat, ne.Lng)
	}
	b := geom.NewBounds(geom.XY).Extend(sw.Geom()).Extend(ne.Geom())
	return BBox{
		MinLng: b.Min(0),
		MinLat: b.Min(1),
		MaxLng: b.Max(0),
		MaxLat: b.Max(1),
	}, nil
}

// Bounds returns the box as go-geom bounds.
func (b BBox) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// Contains reports whether p lies inside or on the border of b.
func (b BBox) Contains(p Point) bool {
	return b.Bounds().OverlapsPoint(geom.XY, geom.Coord{p.Lng, p.Lat})
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
