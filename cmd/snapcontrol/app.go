package main

import (
	"context"
	"fmt"

	"github.com/JPKribs/snapcontrol/config"
	"github.com/JPKribs/snapcontrol/discovery"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/mopidy"
	"github.com/JPKribs/snapcontrol/registry"
	"github.com/JPKribs/snapcontrol/snapcast"
	"github.com/JPKribs/snapcontrol/utilities"
	"github.com/JPKribs/snapcontrol/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MARK: newApplication
// Creates and configures a new application instance
func newApplication(configPath string, overrides Overrides) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger := internal.NewLogger(cfg.Log.Level)
	healthCheck := internal.NewHealthChecker(version.AsString())

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Application{
		config:      cfg,
		configPath:  configPath,
		logger:      logger,
		healthCheck: healthCheck,
		metrics:     metrics,
		registry:    newRegistry(cfg, registry.NewMetrics(metrics), logger),
		publisher:   discovery.NewPublisher(logger),
	}, nil
}

// MARK: applyOverrides
func applyOverrides(cfg *config.Config, overrides Overrides) error {
	if overrides.Port != 0 {
		addr, err := utilities.ReplacePort(cfg.Server.HTTPAddr, overrides.Port)
		if err != nil {
			return fmt.Errorf("applying -port: %w", err)
		}
		cfg.Server.HTTPAddr = addr
	}
	if overrides.LogLevel != "" {
		cfg.Log.Level = overrides.LogLevel
	}
	return nil
}

// MARK: newRegistry
// Wires the control and media-player backends into a registry.
func newRegistry(cfg *config.Config, metrics *registry.Metrics, logger *internal.Logger) *registry.Registry {
	dialer := snapcast.NewDialer(snapcast.DialOptions{
		DialTimeout:  cfg.Snapcast.DialTimeoutDuration(),
		KeepAlive:    DialKeepAlive,
		WriteTimeout: cfg.Snapcast.RequestTimeoutDuration(),
	}, logger)

	connOpts := snapcast.Options{
		Reconnect:           cfg.Snapcast.ReconnectEnabled(),
		ReconnectInitial:    utilities.Seconds(cfg.Snapcast.ReconnectInitial),
		ReconnectMax:        utilities.Seconds(cfg.Snapcast.ReconnectMax),
		ReconnectMaxElapsed: utilities.Seconds(cfg.Snapcast.ReconnectMaxElapsed),
		RequestTimeout:      cfg.Snapcast.RequestTimeoutDuration(),
	}

	mediaHTTP := mopidy.NewHTTPClient(cfg.Mopidy.RequestTimeoutDuration())

	return registry.New(
		func(key string, announcement discovery.ServiceAnnouncement) *snapcast.Connection {
			return snapcast.NewConnection(key, dialer, connOpts, logger)
		},
		func(key string, announcement discovery.ServiceAnnouncement) *mopidy.Client {
			return mopidy.NewClient(key, announcement.Address, announcement.Port, mediaHTTP)
		},
		registry.Options{
			SyncConcurrency: cfg.Snapcast.SyncConcurrency,
			RequestTimeout:  cfg.Snapcast.RequestTimeoutDuration(),
		},
		metrics,
		logger,
	)
}

// MARK: start
// Initializes and starts all application components
func (app *Application) start(ctx context.Context) error {
	app.logger.Info("Starting snapcontrol", "version", version.Version, "config", app.configPath)

	if err := app.startDiscovery(ctx); err != nil {
		return fmt.Errorf("starting discovery: %w", err)
	}

	if err := app.startResync(); err != nil {
		return fmt.Errorf("starting resync: %w", err)
	}

	if err := app.startManagementServer(); err != nil {
		return fmt.Errorf("starting management server: %w", err)
	}

	app.publishService()
	app.updateReadiness()

	app.waitGroup.Add(1)
	go func() {
		defer app.waitGroup.Done()
		<-ctx.Done()
		app.shutdown()
	}()

	return nil
}

// MARK: shutdown
// Stops components in order: HTTP server, advertisement, subscriptions, then the registry.
func (app *Application) shutdown() {
	app.shutdownOnce.Do(func() {
		app.healthCheck.SetReady(false)
		app.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if app.server != nil {
			if err := app.server.Shutdown(shutdownCtx); err != nil {
				app.logger.Error("Server shutdown failed", "error", err)
			}
		}

		if err := app.publisher.Unpublish(); err != nil {
			app.logger.Warn("Failed to withdraw advertisement", "error", err)
		}

		for _, sub := range app.subscriptions {
			sub.Close()
			if err := sub.Err(); err != nil {
				app.logger.Warn("Discovery subscription ended with error", "service_type", sub.ServiceType(), "error", err)
			} else {
				app.logger.Info("Discovery subscription closed", "service_type", sub.ServiceType())
			}
		}
		if app.browser != nil {
			if err := app.browser.Close(); err != nil {
				app.logger.Warn("Discovery backend close failed", "error", err)
			}
		}

		if err := app.registry.Close(shutdownCtx); err != nil {
			app.logger.Error("Registry shutdown failed", "error", err)
		}

		app.healthCheck.SetAlive(false)
		app.logger.Info("Shutdown complete")
	})
}
