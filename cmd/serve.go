package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/risingfruit/forage/internal/api"
	"github.com/risingfruit/forage/internal/query"
	"github.com/risingfruit/forage/internal/store"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the map API and frontend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		s, err := store.Open(cfg.Store.Path, store.Options{ReadOnly: true})
		if err != nil {
			return eris.Wrap(err, "open database")
		}
		defer s.Close() //nolint:errcheck

		handler, cache := newHandler(s)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("database", cfg.Store.Path),
			zap.String("static_dir", cfg.Server.StaticDir),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		logCacheStats(cache)
		return nil
	},
}

// newHandler wires the router from config. The database handle stays owned by
// the caller. The returned cache is nil when caching is disabled.
func newHandler(s *store.SQLiteStore) (http.Handler, *api.ResponseCache) {
	var cache *api.ResponseCache
	if cfg.Server.CacheEntries > 0 {
		cache = api.NewResponseCache(cfg.Server.CacheEntries, time.Duration(cfg.Server.CacheTTLSecs)*time.Second)
	}
	return api.NewRouter(api.Deps{
		Query:       query.New(s.DB()),
		Cache:       cache,
		CORSOrigins: cfg.Server.CORSOrigins,
		StaticDir:   cfg.Server.StaticDir,
		Logger:      zap.L().Named("http"),
	}), cache
}

func logCacheStats(cache *api.ResponseCache) {
	if cache == nil {
		return
	}
	st := cache.Stats()
	zap.L().Info("response cache",
		zap.Int("entries", st.Entries),
		zap.Int64("hits", st.Hits),
		zap.Int64("misses", st.Misses),
		zap.Float64("hit_rate", st.HitRate),
	)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
