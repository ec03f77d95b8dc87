package config

// MARK: Config
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Snapcast  SnapcastConfig  `yaml:"snapcast"`
	Mopidy    MopidyConfig    `yaml:"mopidy"`
}

// MARK: ServerConfig
type ServerConfig struct {
	HTTPAddr      string   `yaml:"http_addr"`
	WebRoot       string   `yaml:"web_root"`
	CORSOrigins   []string `yaml:"cors_origins"`
	MutationRate  *float64 `yaml:"mutation_rate"`
	MutationBurst int      `yaml:"mutation_burst"`
}

// MARK: LogConfig
type LogConfig struct {
	Level string `yaml:"level"`
}

// MARK: DiscoveryConfig
type DiscoveryConfig struct {
	Backend        string `yaml:"backend"`
	Domain         string `yaml:"domain"`
	ControlService string `yaml:"control_service"`
	MediaService   string `yaml:"media_service"`
	BrowseWindow   int    `yaml:"browse_window"`
	BrowseInterval int    `yaml:"browse_interval"`
	MissedRounds   int    `yaml:"missed_rounds"`
	Publish        bool   `yaml:"publish"`
	PublishName    string `yaml:"publish_name"`
}

// MARK: SnapcastConfig
// Timings are whole seconds; ReconnectMaxElapsed of 0 retries forever.
type SnapcastConfig struct {
	SyncInterval        int   `yaml:"sync_interval"`
	SyncConcurrency     int   `yaml:"sync_concurrency"`
	RequestTimeout      int   `yaml:"request_timeout"`
	DialTimeout         int   `yaml:"dial_timeout"`
	Reconnect           *bool `yaml:"reconnect"`
	ReconnectInitial    int   `yaml:"reconnect_initial"`
	ReconnectMax        int   `yaml:"reconnect_max"`
	ReconnectMaxElapsed int   `yaml:"reconnect_max_elapsed"`
}

// MARK: MopidyConfig
type MopidyConfig struct {
	RequestTimeout int `yaml:"request_timeout"`
}
