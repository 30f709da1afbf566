package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/vitalsd/internal/api"
	"codeberg.org/mutker/vitalsd/internal/collector"
	"codeberg.org/mutker/vitalsd/internal/config"
	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/history"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/pid"
	"codeberg.org/mutker/vitalsd/internal/relay"
	"codeberg.org/mutker/vitalsd/internal/storage"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load(config.WithArgs(os.Args[1:]))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel.String(), logger.IsService())
	logger.Debug().Str("file", cfg.ConfigFile()).Msg("Config loaded")
}

func main() {
	errFactory := errors.New()

	if err := pid.Write(cfg.PIDFile); err != nil {
		logger.FatalWithCode(errFactory.Wrap(errors.CodeOf(err), err)).Str("pid_file", cfg.PIDFile).Msg("Failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		logger.ErrorWithCode(errFactory.Wrap(errors.CodeOf(err), err)).Msg("Daemon stopped with error")
		return
	}
	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context) error {
	errFactory := errors.New()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.New(reg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	st, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return errFactory.Wrap(errors.ErrOpenStorage, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	store, err := history.New(st, cfg.History, history.WithObserver(metrics))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	hub, err := relay.NewHub(cfg.Relay,
		relay.WithObserver(metrics),
		relay.WithAllowedOrigins(cfg.AllowedOrigins),
	)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer hub.Close()

	beacons := collector.NewDispatcher()
	collector.New(store, hub, collector.WithObserver(metrics)).Register(beacons)

	handler := api.New(api.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RateWindow:     cfg.RateWindow,
	}, store, beacons, api.WithRelay(hub), api.WithGatherer(reg)).Routes()

	cfg.Watch(ctx, func(next *config.Config) {
		logger.SetLevel(next.LogLevel.String())
		logger.Info().Str("log_level", next.LogLevel.String()).Msg("Config reloaded")
	}, func(err error) {
		logger.Warn().Err(err).Msg("Ignoring invalid config change")
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("listen", cfg.Listen).
			Str("storage", cfg.Storage.Backend).
			Strs("signals", store.Signals()).
			Msg("Serving")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- errFactory.Wrap(errors.ErrServe, err)
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	// Relay connections are hijacked and not tracked by Shutdown.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
