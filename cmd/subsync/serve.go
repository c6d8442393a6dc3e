package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"xui-sub-sync/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve subscription feeds and run the reconciliation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			e, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()

			if cfg.Sync.Enabled {
				if err := e.scheduler.Start(ctx); err != nil {
					return err
				}
				defer e.scheduler.Stop()
			} else {
				logger.Info("XTLS sync is disabled, scheduler not started")
			}

			if logger.IsLevelEnabled(logrus.DebugLevel) {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			api := httpapi.NewServer(e.feeds, e.scheduler, e.qr, httpapi.Options{
				SubscriptionName:    cfg.Subscription.Name,
				PublicURL:           cfg.Subscription.PublicURL,
				UpdateIntervalHours: cfg.Subscription.UpdateIntervalHours,
				Metrics:             e.metrics.Handler(),
			}, logger)

			srv := &http.Server{
				Addr:              cfg.Server.ListenAddr,
				Handler:           api.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("Serving subscriptions on %s", cfg.Server.ListenAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
				logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			logger.Info("HTTP server stopped")
			return nil
		},
	}
}
