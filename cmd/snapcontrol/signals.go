package main

import (
	"os"
	"os/signal"
	"syscall"
)

// MARK: handleSignals
// SIGINT and SIGTERM shut down; SIGHUP runs an immediate resync pass.
func (app *Application) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	app.waitGroup.Add(1)
	go func() {
		defer app.waitGroup.Done()
		defer signal.Stop(sigChan)

		for {
			select {
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGHUP:
					app.handleResyncNow()
				case syscall.SIGINT, syscall.SIGTERM:
					app.logger.Info("Received shutdown signal", "signal", sig.String())
					app.cancel()
					return
				}
			case <-app.context.Done():
				return
			}
		}
	}()
}

// MARK: handleResyncNow
func (app *Application) handleResyncNow() {
	app.logger.Info("Received SIGHUP, refreshing control servers")
	report := app.registry.SyncOnce(app.context)
	app.logger.Info("Refresh finished",
		"refreshed", report.Refreshed,
		"skipped", report.Skipped,
		"failed", report.Failed)
}
