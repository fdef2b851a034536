package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/italolelis/grabber/internal/config"
	"github.com/italolelis/grabber/internal/downloader"
	"github.com/italolelis/grabber/internal/http/rest"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/notifier"
	"github.com/italolelis/grabber/internal/telemetry"
	"github.com/italolelis/grabber/internal/transfer"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const notifyTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the download control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.Info("grabber starting...", "log_level", cfg.LogLevel, "version", version)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start History Store
	history, closeHistory, err := openHistory(ctx, cfg, tel)
	if err != nil {
		return err
	}
	defer closeHistory()

	// =========================================================================
	// Start Downloader
	engine := transfer.NewEngine(transfer.Config{
		UserAgent:      cfg.Transfer.UserAgent,
		ConnectTimeout: cfg.Transfer.ConnectTimeout,
		ChunkSize:      cfg.Transfer.ChunkSize,
	}, transfer.NewHTTPClient(cfg.Transfer.ConnectTimeout), tel)

	d := downloader.NewDownloader(engine, history, cfg.TargetDir)

	// =========================================================================
	// Start API Service
	server := setupServer(ctx, d, tel, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watchNotifications(gctx, d, notifier.New(cfg.DiscordWebhookURL, &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   notifyTimeout,
		}))

		return nil
	})

	g.Go(func() error {
		logger.Info("Initializing API support", "host", cfg.Web.BindAddress, "target_dir", cfg.TargetDir)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("start shutdown")

		// Outstanding requests and the active transfer share one deadline; a
		// transfer still running when it expires is cancelled.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		if err := d.Shutdown(ctx); err != nil {
			logger.Error("active download cancelled at shutdown", "err", err)
		}

		return nil
	})

	return g.Wait()
}

func watchNotifications(ctx context.Context, d *downloader.Downloader, notif notifier.Notifier) {
	logger := logctx.LoggerFromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.OnDownloadFinished:
			s := job.Status()
			logger.Info("download finished", "transfer_id", s.ID, "target", s.Path)

			if err := notif.Notify(ctx, "✅ Download finished: "+s.URL+" -> "+s.Path); err != nil {
				logger.Error("failed to send notification", "transfer_id", s.ID, "err", err)
			}
		case job := <-d.OnDownloadFailed:
			s := job.Status()
			logger.Error("download failed", "transfer_id", s.ID, "kind", s.ErrorKind, "err", s.Error)

			if err := notif.Notify(ctx, "❌ Download failed: "+s.URL+" ("+s.Error+")"); err != nil {
				logger.Error("failed to send notification", "transfer_id", s.ID, "err", err)
			}
		}
	}
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, d *downloader.Downloader, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)

	r.Handle("/metrics", tel.Handler())
	r.Mount("/", rest.NewDownloadsHandler(d).Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
