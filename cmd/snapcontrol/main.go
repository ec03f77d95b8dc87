package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/JPKribs/snapcontrol/version"
)

// MARK: main
// Main application entry point
func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "Path to configuration file")
		versionFlag = flag.Bool("version", false, "Show version information")
		port        = flag.Int("port", 0, "Override the HTTP listen port")
		logLevel    = flag.String("loglevel", "", "Override the log level (debug, info, warn, error)")
		debug       = flag.Bool("debug", false, "Shorthand for -loglevel debug")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("snapcontrol v%s\n", version.AsString())
		os.Exit(0)
	}

	overrides := Overrides{Port: *port, LogLevel: *logLevel}
	if *debug {
		overrides.LogLevel = "debug"
	}

	if err := runApplication(*configPath, overrides); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// MARK: runApplication
// Runs the complete application lifecycle
func runApplication(configPath string, overrides Overrides) error {
	app, err := newApplication(configPath, overrides)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.context = ctx
	app.cancel = cancel
	defer cancel()

	if err := app.start(ctx); err != nil {
		app.shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.handleSignals()
	app.waitGroup.Wait()

	return nil
}
