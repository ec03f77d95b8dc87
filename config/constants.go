package config

const (
	DefaultHTTPAddr      = "0.0.0.0:8080"
	DefaultWebRoot       = "./web"
	DefaultCORSOrigin    = "*"
	DefaultLogLevel      = "info"
	DefaultMutationRate  = 10.0
	DefaultMutationBurst = 20

	BackendAuto     = "auto"
	BackendAvahi    = "avahi"
	BackendZeroconf = "zeroconf"

	DefaultDomain         = "local."
	DefaultControlService = "_snapcast-tcp._tcp"
	DefaultMediaService   = "_mopidy-http._tcp"
	DefaultBrowseWindow   = 5
	DefaultBrowseInterval = 15
	DefaultMissedRounds   = 3
	DefaultPublishName    = "snapcontrol"

	DefaultSyncInterval     = 60
	DefaultSyncConcurrency  = 4
	DefaultRequestTimeout   = 5
	DefaultDialTimeout      = 5
	DefaultReconnectInitial = 1
	DefaultReconnectMax     = 30

	DefaultMopidyTimeout = 10
)
