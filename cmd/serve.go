package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"davbridge/internal/bridge"
	"davbridge/internal/codec"
	"davbridge/internal/config"
	"davbridge/internal/dav"
	"davbridge/internal/httpapi"
	"davbridge/internal/httpapi/middleware"
	"davbridge/internal/ident"
	"davbridge/internal/webhook"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP bridge until interrupted.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
			if len(cfg.Auth.APIKeys) == 0 {
				return fmt.Errorf("no API keys configured, set AUTH_API_KEYS")
			}
			if cfg.DAV.DryRun {
				logger.Info("Performing a dry run. No records will be written.")
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			davClient, err := newDAVClient(ctx, logger, cfg)
			if err != nil {
				return err
			}
			registry, err := newRegistry(logger, cfg)
			if err != nil {
				return err
			}
			dispatcher := newDispatcher(logger, registry, cfg)
			defer dispatcher.Wait()

			b := bridge.New(logger, davClient, codec.New(ident.UUID{}), dispatcher, cfg.DAV.DryRun)

			limiter := middleware.NewRateLimiter(cfg.Auth.RatePerMinute, cfg.Auth.Burst, 10*time.Minute)
			defer limiter.Stop()

			srv := &http.Server{
				Addr: cfg.Server.Addr(),
				Handler: httpapi.NewRouter(httpapi.RouterDeps{
					Logger:   logger,
					Records:  httpapi.NewRecordHandler(b, logger),
					Webhooks: httpapi.NewWebhookHandler(registry, logger),
					Health:   httpapi.NewHealthHandler(davClient, c.App.Version),
					Limiter:  limiter,
					APIKeys:  cfg.Auth.APIKeys,
				}),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Listening.", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down.")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
			return nil
		},
	}
}

func newDAVClient(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*dav.Client, error) {
	client, err := dav.NewClient(ctx, logger, dav.Options{
		Endpoint:        cfg.DAV.Endpoint,
		Username:        cfg.DAV.Username,
		Password:        cfg.DAV.Password,
		UserAgent:       cfg.DAV.UserAgent,
		CalendarName:    cfg.DAV.CalendarName,
		CalendarPath:    cfg.DAV.CalendarPath,
		AddressBookName: cfg.DAV.AddressBookName,
		AddressBookPath: cfg.DAV.AddressBookPath,
		Timeout:         cfg.DAV.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dav client: %w", err)
	}
	return client, nil
}

func newRegistry(logger *slog.Logger, cfg *config.Config) (webhook.Registry, error) {
	if cfg.Webhook.StateFile == "" {
		return webhook.NewMemoryRegistry(ident.UUID{}), nil
	}
	return webhook.NewFileRegistry(logger, cfg.Webhook.StateFile, ident.UUID{})
}

func newDispatcher(logger *slog.Logger, registry webhook.Registry, cfg *config.Config) *webhook.Dispatcher {
	return webhook.NewDispatcher(logger, registry, &http.Client{Timeout: cfg.Webhook.Timeout}, webhook.DispatcherOptions{
		MaxRetries:  cfg.Webhook.MaxRetries,
		Concurrency: cfg.Webhook.Concurrency,
		UserAgent:   cfg.DAV.UserAgent,
	})
}
