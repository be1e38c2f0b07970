package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/openvdb"
	"github.com/hupe1980/openvdb/config"
	"github.com/hupe1980/openvdb/server"
)

const shutdownTimeout = 30 * time.Second

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Recover state from the data directory and serve the HTTP API. On SIGINT
or SIGTERM the server drains in-flight requests, writes a final snapshot
and closes the WAL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.Listen = listenAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (overrides config)")
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	if len(cfg.APIKeys) == 0 {
		logger.Warn("no API keys configured; every authenticated route will return 401")
	}

	metrics := server.NewMetrics()

	opts, err := dbOptions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	opts = append(opts, openvdb.WithMetricsCollector(metrics))

	db, err := openvdb.Open(ctx, opts...)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	srv := server.New(db, func(o *server.Options) {
		o.APIKeys = cfg.APIKeys
		o.RateLimit = rate.Limit(cfg.RateLimit.RPS)
		o.Burst = cfg.RateLimit.Burst
		o.Metrics = metrics
		o.Logger = logger.Logger
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen, "index", cfg.Index, "data_dir", cfg.DataDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Snapshot.Interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Snapshot.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if db.PendingEntries() == 0 {
						continue
					}
					// Failures are logged by the database; the loop retries
					// on the next tick.
					_ = db.SnapshotNow(gctx)
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	if err := db.SnapshotNow(context.Background()); err != nil {
		logger.Error("final snapshot failed", "error", err)
	}
	if err := db.Close(); err != nil {
		return errors.Join(runErr, fmt.Errorf("close database: %w", err))
	}

	return runErr
}
