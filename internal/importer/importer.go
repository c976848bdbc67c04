// Package importer loads the types and locations CSV exports into a fresh SQLite
// store.
package importer

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/risingfruit/forage/internal/fetcher"
	"github.com/risingfruit/forage/internal/store"
)

const (
	TypesFile     = "types.csv"
	LocationsFile = "locations.csv"

	defaultBatchSize      = 5000
	defaultTypesBatchSize = 1000
	defaultProgressEvery  = 100000
)

// Options configures an import run.
type Options struct {
	DataDir        string
	BatchSize      int // location records per commit
	TypesBatchSize int // type rows per commit
	ProgressEvery  int // locations between progress lines
}

func (o *Options) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.TypesBatchSize <= 0 {
		o.TypesBatchSize = defaultTypesBatchSize
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = defaultProgressEvery
	}
}

// Result summarizes a completed run.
type Result struct {
	Types         int64  `json:"types"`
	Locations     int64  `json:"locations"`
	Indexed       int64  `json:"indexed"`
	Links         int64  `json:"links"`
	SkippedRows   int64  `json:"skipped_rows"`
	SkippedTokens int64  `json:"skipped_tokens"`
	DBPath        string `json:"db_path"`
	SizeBytes     int64  `json:"size_bytes"`
}

// SizeMB returns the database file size in mebibytes.
func (r *Result) SizeMB() float64 { return float64(r.SizeBytes) / (1024 * 1024) }

// LoggerName tags every line the importer logs.
const LoggerName = "import"

// Importer runs the load passes against one store. It must hold the store's only
// connection for the duration of the run.
type Importer struct {
	store *store.SQLiteStore
	opts  Options
	log   *zap.Logger
}

// New creates an importer over s.
func New(s *store.SQLiteStore, opts Options) *Importer {
	opts.setDefaults()
	return &Importer{store: s, opts: opts, log: zap.L().Named(LoggerName)}
}

// Run recreates the database at dbPath and imports types then locations from
// opts.DataDir. The store is closed before Run returns.
func Run(ctx context.Context, dbPath string, opts Options) (res *Result, err error) {
	log := zap.L().Named(LoggerName)
	log.Info("creating database", zap.String("path", dbPath))

	s, err := store.Create(ctx, dbPath)
	if err != nil {
		return nil, eris.Wrap(err, "importer: create database")
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "importer: close database")
		}
	}()

	im := New(s, opts)
	res = &Result{DBPath: dbPath}

	res.Types, err = im.ImportTypes(ctx, filepath.Join(im.opts.DataDir, TypesFile))
	if err != nil {
		return nil, err
	}

	loc, err := im.ImportLocations(ctx, filepath.Join(im.opts.DataDir, LocationsFile))
	if err != nil {
		return nil, err
	}
	res.Locations = loc.Locations
	res.Indexed = loc.Indexed
	res.Links = loc.Links
	res.SkippedRows = loc.SkippedRows
	res.SkippedTokens = loc.SkippedTokens

	if err := im.Optimize(ctx); err != nil {
		return nil, err
	}

	if res.SizeBytes, err = s.Size(); err != nil {
		return nil, eris.Wrap(err, "importer: database size")
	}
	im.logSummary(res)
	return res, nil
}

// Optimize refreshes planner statistics and folds the WAL into the main file.
// VACUUM is not run: it needs temporary space proportional to the database.
func (im *Importer) Optimize(ctx context.Context) error {
	im.log.Info("optimizing database")
	if err := im.store.Analyze(ctx); err != nil {
		return eris.Wrap(err, "importer: optimize")
	}
	im.log.Info("analysis complete; vacuum skipped")
	if err := im.store.Checkpoint(ctx); err != nil {
		return eris.Wrap(err, "importer: optimize")
	}
	im.log.Info("optimization complete")
	return nil
}

func (im *Importer) logSummary(res *Result) {
	p := message.NewPrinter(language.English)
	im.log.Info("import summary",
		zap.String("types", p.Sprintf("%d", res.Types)),
		zap.String("locations", p.Sprintf("%d", res.Locations)),
		zap.String("indexed", p.Sprintf("%d", res.Indexed)),
		zap.String("links", p.Sprintf("%d", res.Links)),
		zap.String("skipped_rows", p.Sprintf("%d", res.SkippedRows)),
		zap.String("skipped_type_ids", p.Sprintf("%d", res.SkippedTokens)),
		zap.String("database", res.DBPath),
		zap.String("size", p.Sprintf("%.1f MB", res.SizeMB())),
	)
}

// eachRecord streams the CSV file at path into fn. A missing file is logged and
// reported through missing without an error. An error from fn stops the stream.
func (im *Importer) eachRecord(ctx context.Context, path string, fn func(fetcher.Record) error) (missing bool, err error) {
	f, err := fetcher.OpenFile(path)
	if eris.Is(err, fetcher.ErrSourceMissing) {
		im.log.Error("source file not found", zap.String("path", path))
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recCh, errCh := fetcher.StreamRecords(ctx, f, fetcher.CSVOptions{})
	for rec := range recCh {
		if err := fn(rec); err != nil {
			cancel()
			for range recCh {
			}
			return false, err
		}
	}
	if err := <-errCh; err != nil {
		return false, eris.Wrapf(err, "importer: read %s", path)
	}
	return false, nil
}
