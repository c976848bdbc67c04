package importer

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/risingfruit/forage/internal/db"
	"github.com/risingfruit/forage/internal/fetcher"
	"github.com/risingfruit/forage/internal/metrics"
	"github.com/risingfruit/forage/internal/model"
)

// LocalizedColumns are the types.csv columns folded into localized_names. The
// language code is the column name without the "_name" suffix.
var LocalizedColumns = []string{
	"ar_name", "de_name", "el_name", "es_name", "fr_name", "he_name",
	"it_name", "nl_name", "pl_name", "pt_name", "sk_name", "sv_name",
	"tr_name", "uk_name", "vi_name", "zh_hans_name", "zh_hant_name",
}

var typesSink = db.InsertConfig{
	Table: "types",
	Columns: []string{
		"id", "parent_id", "scientific_name", "scientific_synonyms",
		"taxonomic_rank", "en_name", "en_synonyms", "wikipedia_url",
		"category_mask", "pending", "localized_names",
	},
}

// ImportTypes loads the types file at path. Foreign keys are off for the pass
// because a parent may appear after its children. A row without a valid id
// aborts the run.
func (im *Importer) ImportTypes(ctx context.Context, path string) (int64, error) {
	im.log.Info("importing types", zap.String("path", path))

	if err := im.store.SetForeignKeys(ctx, false); err != nil {
		return 0, eris.Wrap(err, "importer: types")
	}

	acc, err := db.NewAccumulator(im.store.DB(), im.opts.TypesBatchSize, typesSink)
	if err != nil {
		return 0, eris.Wrap(err, "importer: types")
	}
	acc.OnFlush = func(info db.FlushInfo) {
		im.log.Info("imported types", zap.Int64("count", info.Total))
	}

	missing, err := im.eachRecord(ctx, path, func(rec fetcher.Record) error {
		row, err := typeRow(rec)
		if err != nil {
			return err
		}
		return acc.Add(ctx, [][]any{row})
	})
	if err != nil {
		return 0, eris.Wrap(err, "importer: types")
	}
	if missing {
		return 0, im.store.SetForeignKeys(ctx, true)
	}
	if err := acc.Close(ctx); err != nil {
		return 0, eris.Wrap(err, "importer: types")
	}
	if err := im.store.SetForeignKeys(ctx, true); err != nil {
		return 0, eris.Wrap(err, "importer: types")
	}

	n := acc.Records()
	metrics.ImportRowsTotal.WithLabelValues("types").Add(float64(n))
	im.log.Info("imported types total", zap.Int64("count", n))
	return n, nil
}

func typeRow(rec fetcher.Record) ([]any, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rec.Get("id")), 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "type row %d: id %q", rec.Line, rec.Get("id"))
	}

	var parentID any
	if p := strings.TrimSpace(rec.Get("parent_id")); p != "" {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "type row %d: parent_id %q", rec.Line, p)
		}
		parentID = v
	}

	names := model.LocalizedNames{}
	for _, col := range LocalizedColumns {
		names.Set(strings.TrimSuffix(col, "_name"), rec.Get(col))
	}
	localized, err := names.Value()
	if err != nil {
		return nil, eris.Wrapf(err, "type row %d", rec.Line)
	}

	return []any{
		id,
		parentID,
		nullable(rec.Get("scientific_name")),
		nullable(rec.Get("scientific_synonyms")),
		nullable(rec.Get("taxonomic_rank")),
		nullable(rec.Get("en_name")),
		nullable(rec.Get("en_synonyms")),
		nullable(rec.Get("en_wikipedia_url")),
		nullable(rec.Get("category_mask")),
		ParseBool(rec.Get("pending")),
		localized,
	}, nil
}
