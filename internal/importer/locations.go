package importer

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/risingfruit/forage/internal/db"
	"github.com/risingfruit/forage/internal/fetcher"
	"github.com/risingfruit/forage/internal/metrics"
)

var (
	locationsSink = db.InsertConfig{
		Table: "locations",
		Columns: []string{
			"id", "lat", "lng", "unverified", "description", "season_start", "season_stop",
			"no_season", "author", "address", "access", "import_link", "original_ids",
			"hidden", "created_at", "updated_at",
		},
	}
	rtreeSink = db.InsertConfig{
		Table:   "locations_rtree",
		Columns: []string{"id", "min_lat", "max_lat", "min_lng", "max_lng"},
	}
	linksSink = db.InsertConfig{
		Table:      "location_types",
		Columns:    []string{"location_id", "type_id"},
		OnConflict: db.ConflictIgnore,
	}
)

// LocationStats reports the outcome of the locations pass.
type LocationStats struct {
	Locations     int64
	Indexed       int64
	Links         int64
	SkippedRows   int64
	SkippedTokens int64
}

// ImportLocations loads the locations file at path. The mirror triggers are
// dropped for the pass and the importer writes locations_rtree itself, in the
// same transaction as the location rows. Rows whose id, lat or lng do not parse
// are skipped.
func (im *Importer) ImportLocations(ctx context.Context, path string) (LocationStats, error) {
	var stats LocationStats
	im.log.Info("importing locations",
		zap.String("path", path),
		zap.Int("batch_size", im.opts.BatchSize),
	)

	if err := im.store.SetForeignKeys(ctx, false); err != nil {
		return stats, eris.Wrap(err, "importer: locations")
	}
	if err := im.store.DropTriggers(ctx); err != nil {
		return stats, eris.Wrap(err, "importer: locations")
	}

	acc, err := db.NewAccumulator(im.store.DB(), im.opts.BatchSize, locationsSink, rtreeSink, linksSink)
	if err != nil {
		return stats, eris.Wrap(err, "importer: locations")
	}
	var logged int64
	acc.OnFlush = func(info db.FlushInfo) {
		if info.Total/int64(im.opts.ProgressEvery) > logged/int64(im.opts.ProgressEvery) {
			im.log.Info("imported locations", zap.Int64("count", info.Total))
		}
		logged = info.Total
	}

	_, err = im.eachRecord(ctx, path, func(rec fetcher.Record) error {
		loc, rtree, links, ok := locationRows(rec, &stats)
		if !ok {
			stats.SkippedRows++
			return nil
		}
		return acc.Add(ctx, [][]any{loc}, [][]any{rtree}, links)
	})
	if err != nil {
		return stats, eris.Wrap(err, "importer: locations")
	}
	if err := acc.Close(ctx); err != nil {
		return stats, eris.Wrap(err, "importer: locations")
	}

	totals := acc.Totals()
	stats.Locations = totals[0].Queued
	stats.Indexed = totals[1].Queued
	stats.Links = totals[2].Written

	im.log.Info("imported locations total",
		zap.Int64("locations", stats.Locations),
		zap.Int64("indexed", stats.Indexed),
		zap.Int64("links", stats.Links),
		zap.Int64("skipped_rows", stats.SkippedRows),
		zap.Int64("skipped_type_ids", stats.SkippedTokens),
	)
	metrics.ImportRowsTotal.WithLabelValues("locations").Add(float64(stats.Locations))
	metrics.ImportRowsTotal.WithLabelValues("locations_rtree").Add(float64(stats.Indexed))
	metrics.ImportRowsTotal.WithLabelValues("location_types").Add(float64(stats.Links))
	metrics.ImportSkippedTotal.WithLabelValues("row").Add(float64(stats.SkippedRows))
	metrics.ImportSkippedTotal.WithLabelValues("type_id_token").Add(float64(stats.SkippedTokens))

	im.log.Info("recreating triggers")
	if err := im.store.CreateTriggers(ctx); err != nil {
		return stats, eris.Wrap(err, "importer: locations")
	}
	if err := im.store.SetForeignKeys(ctx, true); err != nil {
		return stats, eris.Wrap(err, "importer: locations")
	}

	report, err := im.store.VerifyMirror(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "importer: locations")
	}
	im.log.Info("spatial index verified",
		zap.Int64("locations", report.Locations),
		zap.Int64("indexed", report.Indexed),
	)
	if !report.OK() {
		return stats, eris.Errorf("importer: spatial index out of sync: %d locations, %d indexed, %d missing, %d orphaned",
			report.Locations, report.Indexed, report.Missing, report.Orphaned)
	}
	return stats, nil
}

// locationRows builds the rows one CSV record contributes to each sink. ok is false
// when id, lat or lng is not numeric.
func locationRows(rec fetcher.Record, stats *LocationStats) (loc, rtree []any, links [][]any, ok bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(rec.Get("id")), 10, 64)
	if err != nil {
		return nil, nil, nil, false
	}
	lat, ok := parseCoord(rec.Get("lat"))
	if !ok {
		return nil, nil, nil, false
	}
	lng, ok := parseCoord(rec.Get("lng"))
	if !ok {
		return nil, nil, nil, false
	}

	loc = []any{
		id, lat, lng,
		ParseBool(rec.Get("unverified")),
		nullable(rec.Get("description")),
		nullable(rec.Get("season_start")),
		nullable(rec.Get("season_stop")),
		ParseBool(rec.Get("no_season")),
		nullable(rec.Get("author")),
		nullable(rec.Get("address")),
		nullable(rec.Get("access")),
		nullable(rec.Get("import_link")),
		nullable(rec.Get("original_ids")),
		ParseBool(rec.Get("hidden")),
		nullable(rec.Get("created_at")),
		nullable(rec.Get("updated_at")),
	}
	rtree = []any{id, lat, lat, lng, lng}

	typeIDs, skipped := ParseTypeIDs(rec.Get("type_ids"))
	stats.SkippedTokens += int64(skipped)
	for _, tid := range typeIDs {
		links = append(links, []any{id, tid})
	}
	return loc, rtree, links, true
}

// parseCoord parses a finite float. Range is not checked here.
func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
