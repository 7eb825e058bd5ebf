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

	"goatfarm-breeding-forecast/internal/digest"
	"goatfarm-breeding-forecast/internal/history"
	"goatfarm-breeding-forecast/internal/metrics"
	"goatfarm-breeding-forecast/internal/records"
	"goatfarm-breeding-forecast/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the farm API server and the breeding digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := records.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open record store")
		}
		defer store.Close()

		m := metrics.New()
		opts := server.Options{
			Store:       store,
			Policy:      cfg.Breeding,
			News:        newFetcher(),
			Metrics:     m,
			Logger:      zap.L().Named("server"),
			CORSOrigins: cfg.Server.CORSOrigins,
		}

		var recorder *history.Recorder
		if cfg.History.DatabaseURL != "" {
			recorder, err = history.Open(ctx, cfg.History.DatabaseURL, cfg.History.Schema)
			if err != nil {
				return err
			}
			defer recorder.Close()
			opts.History = recorder
		}

		if cfg.Digest.Enabled {
			digestOpts := digest.Options{
				Store:    store,
				Policy:   cfg.Breeding,
				Owners:   cfg.Digest.Owners,
				Schedule: cfg.Digest.Schedule,
				Metrics:  m,
				Logger:   zap.L(),
			}
			if cfg.Digest.Record && recorder != nil {
				digestOpts.History = recorder
			}
			d, err := digest.New(digestOpts)
			if err != nil {
				return err
			}
			if err := d.Start(ctx); err != nil {
				return err
			}
			defer func() { <-d.Stop().Done() }()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.New(opts).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
