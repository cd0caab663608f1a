// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/kylealanhale/quicli/internal/config"
	"github.com/kylealanhale/quicli/internal/logging"
	"github.com/kylealanhale/quicli/internal/metrics"
	"github.com/kylealanhale/quicli/pkg/progress"
	"github.com/kylealanhale/quicli/pkg/progress/sinks"
)

// App holds the services shared by every command: the logger, the progress
// event hub with its sinks, and the optional metrics endpoint.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	hub      *progress.Hub
	state    *sinks.StateSink
	metrics  *metrics.Server
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetRegistry returns the Prometheus registry progress metrics live in.
func (a *App) GetRegistry() *prometheus.Registry {
	return a.registry
}

// GetState returns the in-memory view of every renderer the app has seen.
func (a *App) GetState() *sinks.StateSink {
	return a.state
}

// RendererOptions returns the options every renderer built by a command
// should share: output stream, logger, event hub and configured resolution.
func (a *App) RendererOptions(out io.Writer) []progress.Option {
	return []progress.Option{
		progress.WithOutput(out),
		progress.WithLogger(a.logger.Named("progress")),
		progress.WithEmitter(a.hub),
		progress.WithResolution(progress.Resolution(a.cfg.Progress.Resolution)),
	}
}

// NewApp builds the services described by cfg. It fails fast when the
// logger, metrics collectors or metrics listener cannot be initialized.
func NewApp(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}

	hubCfg := cfg.HubOptions()
	hubCfg.Logger = logger.Named("hub")
	state := sinks.NewStateSink()
	hub := progress.NewHub(hubCfg, promSink, state, sinks.NewLogSink(logger.Named("events")))

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		hub:      hub,
		state:    state,
	}

	if cfg.Metrics.Addr != "" {
		a.metrics, err = metrics.NewServer(cfg.Metrics.Addr, reg, state, logger.Named("metrics"))
		if err != nil {
			_ = hub.Close(context.Background())
			return nil, fmt.Errorf("init metrics server: %w", err)
		}
		if _, err := a.metrics.Start(); err != nil {
			_ = hub.Close(context.Background())
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
	}

	logger.Debug("application services initialized")
	return a, nil
}

// Close drains the event hub, stops the metrics endpoint and flushes the
// logger. It is called by a Cobra hook after the command finishes.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.hub.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	// Sync on a terminal's stderr returns EINVAL on Linux; nothing useful to do with it.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
