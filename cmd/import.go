package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/risingfruit/forage/internal/importer"
)

var (
	importDataDir string
	importDBPath  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Rebuild the SQLite database from types.csv and locations.csv",
	Long:  "Deletes the database at --db-path, recreates the schema and bulk loads the CSV files in --data-dir. Types are loaded before locations.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if importDataDir != "" {
			cfg.Import.DataDir = importDataDir
		}
		if importDBPath != "" {
			cfg.Store.Path = importDBPath
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		res, err := importer.Run(ctx, cfg.Store.Path, importer.Options{
			DataDir:        cfg.Import.DataDir,
			BatchSize:      cfg.Import.BatchSize,
			TypesBatchSize: cfg.Import.TypesBatchSize,
			ProgressEvery:  cfg.Import.ProgressEvery,
		})
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.Int64("types", res.Types),
			zap.Int64("locations", res.Locations),
			zap.String("database", res.DBPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDataDir, "data-dir", "", "directory containing types.csv and locations.csv (default from config)")
	importCmd.Flags().StringVar(&importDBPath, "db-path", "", "output database path (default from config)")
	rootCmd.AddCommand(importCmd)
}
