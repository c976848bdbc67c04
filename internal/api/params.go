package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/risingfruit/forage/internal/geospatial"
	"github.com/risingfruit/forage/internal/query"
)

const (
	defaultLimit    = 1000
	maxLimit        = 5000
	maxTypeIDs      = 500
	minSearchLength = 2
)

// paramError is a client mistake in the query string. Its message is returned
// to the caller as is.
type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func badParam(format string, args ...any) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

func requiredFloat(q url.Values, name string, valid func(float64) bool) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, badParam("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badParam("%s must be a number", name)
	}
	if !valid(v) {
		return 0, badParam("%s is out of range", name)
	}
	return v, nil
}

func optionalInt(q url.Values, name string, def, lo, hi int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badParam("%s must be an integer", name)
	}
	if v < lo || v > hi {
		return 0, badParam("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

func optionalBool(q url.Values, name string) (bool, error) {
	raw := strings.ToLower(q.Get(name))
	switch raw {
	case "":
		return false, nil
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, badParam("%s must be a boolean", name)
}

// parseTypeIDs reads a comma-separated id list of at most maxTypeIDs entries.
// Empty entries are ignored; any other non-integer entry rejects the whole list.
func parseTypeIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, badParam("invalid type IDs format")
		}
		if len(ids) == maxTypeIDs {
			return nil, badParam("at most %d type IDs allowed", maxTypeIDs)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseBoundsQuery validates the /api/locations query string.
func parseBoundsQuery(q url.Values) (query.BoundsQuery, error) {
	var bq query.BoundsQuery

	swLat, err := requiredFloat(q, "sw_lat", geospatial.ValidLat)
	if err != nil {
		return bq, err
	}
	swLng, err := requiredFloat(q, "sw_lng", geospatial.ValidLng)
	if err != nil {
		return bq, err
	}
	neLat, err := requiredFloat(q, "ne_lat", geospatial.ValidLat)
	if err != nil {
		return bq, err
	}
	neLng, err := requiredFloat(q, "ne_lng", geospatial.ValidLng)
	if err != nil {
		return bq, err
	}
	bq.BBox, err = geospatial.NewBBox(
		geospatial.Point{Lat: swLat, Lng: swLng},
		geospatial.Point{Lat: neLat, Lng: neLng},
	)
	if err != nil {
		return bq, badParam("%s", err.Error())
	}

	if bq.Limit, err = optionalInt(q, "limit", defaultLimit, 1, maxLimit); err != nil {
		return bq, err
	}
	if bq.Offset, err = optionalInt(q, "offset", 0, 0, math.MaxInt); err != nil {
		return bq, err
	}
	if bq.VerifiedOnly, err = optionalBool(q, "verified_only"); err != nil {
		return bq, err
	}
	if raw := q.Get("types"); raw != "" {
		if bq.TypeIDs, err = parseTypeIDs(raw); err != nil {
			return bq, err
		}
	}

	hasLat, hasLng := q.Get("center_lat") != "", q.Get("center_lng") != ""
	switch {
	case hasLat && hasLng:
		lat, err := requiredFloat(q, "center_lat", geospatial.ValidLat)
		if err != nil {
			return bq, err
		}
		lng, err := requiredFloat(q, "center_lng", geospatial.ValidLng)
		if err != nil {
			return bq, err
		}
		bq.Center = &geospatial.Point{Lat: lat, Lng: lng}
	case hasLat || hasLng:
		return bq, badParam("center_lat and center_lng must be given together")
	}
	return bq, nil
}

// parseTypeFilter validates the /api/types query string.
func parseTypeFilter(q url.Values) (query.TypeFilter, error) {
	f := query.TypeFilter{Category: q.Get("category")}
	if q.Has("search") {
		f.Search = q.Get("search")
		if utf8.RuneCountInString(f.Search) < minSearchLength {
			return f, badParam("search must be at least %d characters", minSearchLength)
		}
	}
	return f, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badParam("id must be an integer")
	}
	return id, nil
}
