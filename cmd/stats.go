package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/risingfruit/forage/internal/model"
	"github.com/risingfruit/forage/internal/query"
	"github.com/risingfruit/forage/internal/store"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print location and type counts from the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := store.Open(cfg.Store.Path, store.Options{ReadOnly: true})
		if err != nil {
			return eris.Wrap(err, "open database")
		}
		defer s.Close() //nolint:errcheck

		st, err := query.New(s.DB()).Stats(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		return writeStats(cmd.OutOrStdout(), st, statsFormat)
	},
}

func writeStats(w io.Writer, st *model.Stats, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(st), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close() //nolint:errcheck
		return eris.Wrap(enc.Encode(st), "encode yaml")
	default:
		return eris.Errorf("unknown format %q (want json or yaml)", format)
	}
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(statsCmd)
}
