package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	v1 "github.com/JPKribs/snapcontrol/api/v1"
)

// MARK: startManagementServer
// Binds the HTTP listener and serves the API in the background.
func (app *Application) startManagementServer() error {
	apiServer := v1.NewAPIServer(app.config, app.registry, app.healthCheck, app.metrics, app.watcher.Backend(), app.logger)

	listener, err := net.Listen("tcp", app.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", app.config.Server.HTTPAddr, err)
	}

	app.server = &http.Server{
		Addr:              app.config.Server.HTTPAddr,
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		IdleTimeout:       IdleTimeout,
	}

	app.waitGroup.Add(1)
	go func() {
		defer app.waitGroup.Done()
		app.logger.Info("Starting management server", "addr", listener.Addr().String())

		if err := app.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("Management server failed", "error", err)
			app.cancel()
		}
	}()

	return nil
}
