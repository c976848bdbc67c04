package query

import (
	"database/sql/driver"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"

	"github.com/risingfruit/forage/internal/geospatial"
)

// distanceFunc is the SQL name of the great-circle distance in meters:
// haversine_m(lat1, lng1, lat2, lng2).
const distanceFunc = "haversine_m"

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(distanceFunc, 4, haversineSQL); err != nil {
		panic(eris.Wrapf(err, "query: register %s", distanceFunc))
	}
}

// haversineSQL evaluates geospatial.Haversine so rows sort by exactly the
// distance reported in DistanceM.
func haversineSQL(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var c [4]float64
	for i, a := range args {
		switch v := a.(type) {
		case float64:
			c[i] = v
		case int64:
			c[i] = float64(v)
		default:
			return nil, eris.Errorf("%s: argument %d is %T, want a number", distanceFunc, i+1, a)
		}
	}
	return geospatial.Haversine(
		geospatial.Point{Lat: c[0], Lng: c[1]},
		geospatial.Point{Lat: c[2], Lng: c[3]},
	), nil
}
