package v1

import (
	"time"

	"github.com/JPKribs/snapcontrol/config"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/registry"
	"github.com/JPKribs/snapcontrol/snapcast"
	"github.com/JPKribs/snapcontrol/utilities"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// MARK: ServerView
type ServerView struct {
	Name         string            `json:"name"`
	Address      string            `json:"address"`
	Port         int               `json:"port"`
	State        string            `json:"state"`
	AddedAt      time.Time         `json:"added_at"`
	LastSyncedAt *time.Time        `json:"last_synced_at,omitempty"`
	Clients      []snapcast.Client `json:"clients"`
	Streams      []snapcast.Stream `json:"streams"`
}

// MARK: LegacyServer
// Entry of the /snap_servers.json map consumed by the bundled frontend.
type LegacyServer struct {
	Host    string            `json:"host"`
	Port    int               `json:"port"`
	Clients []snapcast.Client `json:"clients"`
	Streams []snapcast.Stream `json:"streams"`
}

// MARK: MediaView
type MediaView struct {
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Port     int       `json:"port"`
	Endpoint string    `json:"endpoint"`
	AddedAt  time.Time `json:"added_at"`
}

// MARK: MutateRequest
type MutateRequest struct {
	ServerName string                `json:"server_name"`
	EntityID   string                `json:"entity_id"`
	Action     string                `json:"action"`
	Params     snapcast.MutateParams `json:"params"`
}

// MARK: StatusResponse
type StatusResponse struct {
	Version    string                       `json:"version"`
	Discovery  string                       `json:"discovery"`
	Ready      bool                         `json:"ready"`
	Registry   registry.Stats               `json:"registry"`
	SystemIP   []string                     `json:"system_ip"`
	Interfaces []utilities.NetworkInterface `json:"interfaces"`
	Timestamp  string                       `json:"timestamp"`
}

type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Server    string                 `json:"server,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

type LogResponse struct {
	Logs   []LogEntry `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type APIServer struct {
	cfg       *config.Config
	registry  *registry.Registry
	health    *internal.HealthChecker
	gatherer  prometheus.Gatherer
	discovery string
	limiter   *rate.Limiter
	logger    *internal.Logger
}
