package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mpereira/qbt_monitor/internal/config"
	"github.com/mpereira/qbt_monitor/internal/http/rest"
	"github.com/mpereira/qbt_monitor/internal/logctx"
	"github.com/mpereira/qbt_monitor/internal/monitor"
	"github.com/mpereira/qbt_monitor/internal/notifier"
	"github.com/mpereira/qbt_monitor/internal/qbt"
	"github.com/mpereira/qbt_monitor/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("qbt monitor starting...", "log_level", cfg.LogLevel, "endpoint", cfg.QbtBaseURL)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Torrent Client
	client := qbt.NewClient(cfg.QbtBaseURL, cfg.QbtUsername, cfg.QbtPassword, !cfg.QbtVerifySSL)

	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("authentication error: %w", err)
	}

	logger.Info("authenticated with torrent server", "endpoint", cfg.QbtBaseURL)

	// =========================================================================
	// Start Monitor
	mon, err := setupMonitor(ctx, client, tel, cfg)
	if err != nil {
		return err
	}

	// =========================================================================
	// Start API Service
	server := setupServer(ctx, mon, tel, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	})

	// =========================================================================
	// Start Poll Loop
	g.Go(func() error {
		logger.Info("polling torrent server", "endpoint", cfg.QbtBaseURL, "poll_interval", cfg.PollInterval.String())

		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				logger.Info("poll loop shutting down")

				return nil
			case <-ticker.C:
				if err := tel.InstrumentPoll(gctx, mon.Update); err != nil {
					logger.Error("poll cycle failed", "err", err)
				}
			}
		}
	})

	return g.Wait()
}

// setupMonitor wires the event sink, instruments the client and establishes
// the baseline snapshot plus a first full poll.
func setupMonitor(ctx context.Context, client *qbt.Client, tel *telemetry.Telemetry, cfg *config.Config) (*monitor.Monitor, error) {
	logger := logctx.LoggerFromContext(ctx)

	var notifiers []notifier.Notifier

	if cfg.DiscordWebhookURL != "" {
		notifiers = append(notifiers, &notifier.DiscordNotifier{WebhookURL: cfg.DiscordWebhookURL})

		logger.Info("discord notifications enabled")
	}

	if cfg.PushbulletToken != "" {
		pb := notifier.NewPushbulletNotifier(cfg.PushbulletToken)
		if err := pb.Test(); err != nil {
			logger.Warn("pushbullet token check failed, continuing without it", "err", err)
		} else {
			notifiers = append(notifiers, pb)

			logger.Info("pushbullet notifications enabled")
		}
	}

	var mon *monitor.Monitor

	// The sink reads torrent sizes back from the monitor; the source func
	// breaks the construction cycle.
	sink := notifier.NewEventSink(notifier.StatusSourceFunc(func() []monitor.Torrent {
		return mon.Torrents()
	}), tel, notifiers...)

	opts := []monitor.Option{monitor.WithSettleDelay(cfg.SettleDelay)}
	if cfg.StartedIncludePaused {
		opts = append(opts, monitor.WithPausedInStarted())
	}

	mon = monitor.New(monitor.NewInstrumentedClient(client, tel, "qbittorrent"), sink, cfg.QbtBaseURL, opts...)

	if err := mon.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to establish baseline snapshot: %w", err)
	}

	if err := tel.InstrumentPoll(ctx, mon.Update); err != nil {
		logger.Error("initial poll cycle failed", "err", err)
	}

	return mon, nil
}

// setupServer prepares the handlers and middlewares for the http rest server.
func setupServer(ctx context.Context, mon *monitor.Monitor, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	r := chi.NewRouter()

	r.Use(telemetry.RequestID)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Use(telemetry.HTTPLogging)

	r.Handle("/metrics", tel.Handler())
	r.Mount("/", rest.NewStatusHandler(cfg.Web.Username, cfg.Web.Password, mon, tel).Routes())

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
