package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ngo-inquiry-tracker/internal/cache"
)

func newServeCmd(logLevel *string) *cobra.Command {
	var warm bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Runs the dashboard, newsletter and admin API. A background loop removes
cache files older than CACHE_CLEANUP_MAX_AGE every CACHE_CLEANUP_INTERVAL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			router, err := a.router()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go cache.RunCleaner(ctx, a.files, cfg.Cache.CleanupInterval, cfg.Cache.CleanupMaxAge,
				logger.WithField("component", "cache-cleaner"))
			go a.purgeLimiter(ctx, cfg.Newsletter.SubscribeWindow)

			if warm {
				go func() {
					if _, err := a.inquiryService(nil).Dashboard(ctx); err != nil {
						logger.WithError(err).Warn("cache warm-up failed")
					}
				}()
			}

			httpServer := &http.Server{
				Addr:         cfg.Server.Addr(),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.WithFields(logrus.Fields{
					"addr":      httpServer.Addr,
					"cache_dir": a.files.Directory(),
					"dip":       cfg.DIP.BaseURL,
				}).Info("Server starting")
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown server: %w", err)
				}
				logger.Info("Server stopped")
				return nil
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			}
		},
	}

	cmd.Flags().BoolVar(&warm, "warm", false, "build the dashboard cache right after startup")
	return cmd
}

func (a *app) purgeLimiter(ctx context.Context, every time.Duration) {
	if a.limiter == nil || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.limiter.Purge()
		case <-ctx.Done():
			return
		}
	}
}
