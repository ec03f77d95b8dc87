package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MARK: Load
// Loads configuration from a YAML file, applies defaults and validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// MARK: Default
// Returns a configuration holding only default values.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// MARK: setDefaults
func (c *Config) setDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.WebRoot == "" {
		c.Server.WebRoot = DefaultWebRoot
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{DefaultCORSOrigin}
	}
	if c.Server.MutationRate == nil {
		rate := float64(DefaultMutationRate)
		c.Server.MutationRate = &rate
	}
	if c.Server.MutationBurst == 0 {
		c.Server.MutationBurst = DefaultMutationBurst
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	d := &c.Discovery
	if d.Backend == "" {
		d.Backend = BackendAuto
	}
	if d.Domain == "" {
		d.Domain = DefaultDomain
	}
	if d.ControlService == "" {
		d.ControlService = DefaultControlService
	}
	if d.MediaService == "" {
		d.MediaService = DefaultMediaService
	}
	if d.BrowseWindow == 0 {
		d.BrowseWindow = DefaultBrowseWindow
	}
	if d.BrowseInterval == 0 {
		d.BrowseInterval = DefaultBrowseInterval
	}
	if d.MissedRounds == 0 {
		d.MissedRounds = DefaultMissedRounds
	}
	if d.PublishName == "" {
		d.PublishName = DefaultPublishName
	}

	s := &c.Snapcast
	if s.SyncInterval == 0 {
		s.SyncInterval = DefaultSyncInterval
	}
	if s.SyncConcurrency == 0 {
		s.SyncConcurrency = DefaultSyncConcurrency
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.DialTimeout == 0 {
		s.DialTimeout = DefaultDialTimeout
	}
	if s.Reconnect == nil {
		enabled := true
		s.Reconnect = &enabled
	}
	if s.ReconnectInitial == 0 {
		s.ReconnectInitial = DefaultReconnectInitial
	}
	if s.ReconnectMax == 0 {
		s.ReconnectMax = DefaultReconnectMax
	}

	if c.Mopidy.RequestTimeout == 0 {
		c.Mopidy.RequestTimeout = DefaultMopidyTimeout
	}
}

// MARK: Validate
// Checks the configuration for values the components cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Discovery.Backend {
	case BackendAuto, BackendAvahi, BackendZeroconf:
	default:
		errs = append(errs, fmt.Errorf("unknown discovery backend: %s", c.Discovery.Backend))
	}

	if strings.TrimSpace(c.Discovery.ControlService) == "" {
		errs = append(errs, fmt.Errorf("discovery control_service cannot be empty"))
	}
	if strings.TrimSpace(c.Discovery.MediaService) == "" {
		errs = append(errs, fmt.Errorf("discovery media_service cannot be empty"))
	}

	positive := map[string]int{
		"discovery.browse_window":    c.Discovery.BrowseWindow,
		"discovery.browse_interval":  c.Discovery.BrowseInterval,
		"discovery.missed_rounds":    c.Discovery.MissedRounds,
		"snapcast.sync_interval":     c.Snapcast.SyncInterval,
		"snapcast.sync_concurrency":  c.Snapcast.SyncConcurrency,
		"snapcast.request_timeout":   c.Snapcast.RequestTimeout,
		"snapcast.dial_timeout":      c.Snapcast.DialTimeout,
		"snapcast.reconnect_initial": c.Snapcast.ReconnectInitial,
		"snapcast.reconnect_max":     c.Snapcast.ReconnectMax,
		"mopidy.request_timeout":     c.Mopidy.RequestTimeout,
	}
	for _, name := range sortedKeys(positive) {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, positive[name]))
		}
	}

	if c.Snapcast.ReconnectMaxElapsed < 0 {
		errs = append(errs, fmt.Errorf("snapcast.reconnect_max_elapsed cannot be negative"))
	}
	if c.Snapcast.ReconnectMax < c.Snapcast.ReconnectInitial {
		errs = append(errs, fmt.Errorf("snapcast.reconnect_max must be at least reconnect_initial"))
	}

	rate := c.Server.MutationLimit()
	if rate < 0 {
		errs = append(errs, fmt.Errorf("server.mutation_rate cannot be negative"))
	}
	if rate > 0 && c.Server.MutationBurst < 1 {
		errs = append(errs, fmt.Errorf("server.mutation_burst must be at least 1 when mutation_rate is set"))
	}

	return errors.Join(errs...)
}

// MARK: MutationLimit
// Returns the mutation requests allowed per second; 0 disables the limiter.
func (s ServerConfig) MutationLimit() float64 {
	if s.MutationRate == nil {
		return DefaultMutationRate
	}
	return *s.MutationRate
}

// MARK: ReconnectEnabled
func (s SnapcastConfig) ReconnectEnabled() bool {
	return s.Reconnect == nil || *s.Reconnect
}

// MARK: Duration helpers

func (d DiscoveryConfig) BrowseWindowDuration() time.Duration {
	return seconds(d.BrowseWindow)
}

func (d DiscoveryConfig) BrowseIntervalDuration() time.Duration {
	return seconds(d.BrowseInterval)
}

func (s SnapcastConfig) SyncIntervalDuration() time.Duration {
	return seconds(s.SyncInterval)
}

func (s SnapcastConfig) RequestTimeoutDuration() time.Duration {
	return seconds(s.RequestTimeout)
}

func (s SnapcastConfig) DialTimeoutDuration() time.Duration {
	return seconds(s.DialTimeout)
}

func (m MopidyConfig) RequestTimeoutDuration() time.Duration {
	return seconds(m.RequestTimeout)
}
