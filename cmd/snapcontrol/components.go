package main

import (
	"context"
	"fmt"

	"github.com/JPKribs/snapcontrol/config"
	"github.com/JPKribs/snapcontrol/discovery"
	"github.com/JPKribs/snapcontrol/utilities"
	"github.com/JPKribs/snapcontrol/version"
)

// MARK: startDiscovery
// Opens the discovery backend and subscribes to the control and media-player service types.
func (app *Application) startDiscovery(ctx context.Context) error {
	d := app.config.Discovery

	browser, err := discovery.OpenBrowser(d.Backend, discovery.ZeroconfOptions{
		BrowseWindow:   d.BrowseWindowDuration(),
		BrowseInterval: d.BrowseIntervalDuration(),
		MissedRounds:   d.MissedRounds,
	}, app.logger)
	if err != nil {
		return err
	}
	app.browser = browser
	app.watcher = discovery.NewWatcher(browser, d.Domain, app.logger)

	control, err := app.watcher.Subscribe(ctx, d.ControlService, discovery.ServiceControl,
		app.registry.OnControlAdded, app.registry.OnControlRemoved)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", d.ControlService, err)
	}
	app.subscriptions = append(app.subscriptions, control)

	media, err := app.watcher.Subscribe(ctx, d.MediaService, discovery.ServiceMediaPlayer,
		app.registry.OnMediaAdded, app.registry.OnMediaRemoved)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", d.MediaService, err)
	}
	app.subscriptions = append(app.subscriptions, media)

	app.logger.Info("Started discovery", "backend", app.watcher.Backend(), "domain", d.Domain)
	return nil
}

// MARK: startResync
func (app *Application) startResync() error {
	return app.registry.StartResync(app.config.Snapcast.SyncIntervalDuration())
}

// MARK: publishService
// Advertises the HTTP surface over mDNS when enabled. Failures are logged only.
func (app *Application) publishService() {
	d := app.config.Discovery
	if !d.Publish {
		return
	}

	port, err := utilities.PortOf(app.config.Server.HTTPAddr)
	if err != nil {
		app.logger.Warn("Cannot publish service", "error", err)
		return
	}

	txt := []string{"path=/", "version=" + version.AsString()}
	preferAvahi := d.Backend != config.BackendZeroconf

	if err := app.publisher.Publish(d.PublishName, port, txt, preferAvahi); err != nil {
		app.logger.Warn("Failed to publish service", "name", d.PublishName, "error", err)
		return
	}

	name, backend := app.publisher.Published()
	app.logger.Info("Published service", "name", name, "port", port, "backend", backend)
}

// MARK: updateReadiness
func (app *Application) updateReadiness() {
	ready := app.server != nil && len(app.subscriptions) == 2
	app.healthCheck.SetReady(ready)
	app.logger.Info("Readiness updated", "ready", ready)
}
