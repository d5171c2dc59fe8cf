package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kamoku/internal/server"
	"github.com/hyperjump/kamoku/internal/watcher"
)

func newServeCmd(configPath func() string) *cobra.Command {
	var (
		debug bool
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load or build the index and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, resolved, err := loadConfig(configPath())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("watch") {
				cfg.Watch.Enabled = watch
			}
			logger, err := newLoggerFor(cfg, debug)
			if err != nil {
				return err
			}
			defer logger.Sync()
			logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug || debug))

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.open(ctx); err != nil {
				return err
			}

			if cfg.Watch.Enabled {
				w, err := watcher.NewWatcher(
					[]string{cfg.Storage.CorpusPath, cfg.Storage.SecondaryCorpusPath},
					func(ctx context.Context) error {
						_, err := a.rebuild(ctx)
						return err
					},
					watcher.WithLogger(logger),
					watcher.WithDebounce(cfg.Watch.Debounce),
				)
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
			}

			srv := server.NewServer(a.engine, &cfg.Server, logger,
				server.WithRebuild(a.rebuild),
				server.WithDiskUsage(a.store.DiskUsage),
			)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild when the corpus files change (overrides watch.enabled)")
	return cmd
}
