package registry

import (
	"context"
	"sync"
	"time"

	"github.com/JPKribs/snapcontrol/discovery"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/mopidy"
	"github.com/JPKribs/snapcontrol/snapcast"
	"github.com/prometheus/client_golang/prometheus"
)

// MARK: Entry
// One registered server. Value is owned by the entry and is closed before the entry is dropped.
type Entry[T any] struct {
	Key          string                        `json:"key"`
	Announcement discovery.ServiceAnnouncement `json:"announcement"`
	AddedAt      time.Time                     `json:"added_at"`
	Value        T                             `json:"-"`
}

// MARK: ConnectionFactory
type ConnectionFactory func(key string, announcement discovery.ServiceAnnouncement) *snapcast.Connection

// MARK: MediaFactory
type MediaFactory func(key string, announcement discovery.ServiceAnnouncement) *mopidy.Client

// MARK: Options
type Options struct {
	SyncConcurrency int
	RequestTimeout  time.Duration
}

// MARK: SyncReport
// Outcome of one resynchronization pass.
type SyncReport struct {
	Refreshed int           `json:"refreshed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// MARK: Stats
type Stats struct {
	ControlServers int            `json:"control_servers"`
	MediaServers   int            `json:"media_servers"`
	States         map[string]int `json:"states"`
	LastSync       *SyncReport    `json:"last_sync,omitempty"`
	LastSyncAt     time.Time      `json:"last_sync_at,omitempty"`
}

// MARK: Registry
// Maps logical server names to live backends for each tracked service kind.
type Registry struct {
	control       *table[*snapcast.Connection]
	media         *table[*mopidy.Client]
	newConnection ConnectionFactory
	newMedia      MediaFactory
	opts          Options
	metrics       *Metrics
	logger        *internal.Logger

	lifetime context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool

	// passMu is held for a whole SyncOnce pass.
	passMu sync.Mutex

	resyncMu     sync.Mutex
	resyncCancel context.CancelFunc
	resyncDone   chan struct{}
	lastSync     *SyncReport
	lastSyncAt   time.Time
}

// MARK: Metrics
type Metrics struct {
	serversRegistered *prometheus.GaugeVec
	discoveryEvents   *prometheus.CounterVec
	resyncDuration    prometheus.Histogram
	refreshResults    *prometheus.CounterVec
	mutationResults   *prometheus.CounterVec
}
