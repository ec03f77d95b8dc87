package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/JPKribs/snapcontrol/config"
	"github.com/JPKribs/snapcontrol/discovery"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/registry"
	"github.com/prometheus/client_golang/prometheus"
)

// MARK: Overrides
// Command line values that take precedence over the config file.
type Overrides struct {
	Port     int
	LogLevel string
}

type Application struct {
	config        *config.Config
	configPath    string
	logger        *internal.Logger
	healthCheck   *internal.HealthChecker
	metrics       *prometheus.Registry
	registry      *registry.Registry
	browser       discovery.Browser
	watcher       *discovery.Watcher
	subscriptions []*discovery.Subscription
	publisher     *discovery.Publisher
	server        *http.Server
	context       context.Context
	cancel        context.CancelFunc
	waitGroup     sync.WaitGroup
	shutdownOnce  sync.Once
}
