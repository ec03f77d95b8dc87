package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/godbus/dbus/v5"
	"github.com/grandcat/zeroconf"
	"github.com/holoplot/go-avahi"
)

// MARK: ServiceKind
type ServiceKind int

const (
	ServiceControl ServiceKind = iota
	ServiceMediaPlayer
)

func (k ServiceKind) String() string {
	switch k {
	case ServiceControl:
		return "control"
	case ServiceMediaPlayer:
		return "media_player"
	default:
		return "unknown"
	}
}

// MARK: ServiceAnnouncement
// One resolved service instance. Values are never mutated; an update produces a new one.
type ServiceAnnouncement struct {
	Name    string      `json:"name"`
	Address string      `json:"address"`
	Port    int         `json:"port"`
	Kind    ServiceKind `json:"kind"`
}

// MARK: EventType
type EventType int

const (
	EventAnnounced EventType = iota
	EventUpdated
	EventWithdrawn
)

func (t EventType) String() string {
	switch t {
	case EventAnnounced:
		return "announced"
	case EventUpdated:
		return "updated"
	case EventWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// MARK: Event
// A raw event from a browser backend. Err is set when the instance could not be resolved.
type Event struct {
	Type      EventType
	Name      string
	Addresses []string
	Port      int
	Err       error
}

// MARK: Browser
// A multicast discovery backend. Browse blocks until ctx ends or the backend fails.
type Browser interface {
	Browse(ctx context.Context, serviceType, domain string, events chan<- Event) error
	Name() string
	Close() error
}

// MARK: Watcher
type Watcher struct {
	browser Browser
	domain  string
	logger  *internal.Logger
	buffer  int
}

// MARK: Subscription
type Subscription struct {
	serviceType string
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
	mu          sync.Mutex
	err         error
}

// MARK: AvahiBrowser
type AvahiBrowser struct {
	conn   *dbus.Conn
	server *avahi.Server
	logger *internal.Logger
}

// MARK: ZeroconfBrowser
type ZeroconfBrowser struct {
	window       time.Duration
	interval     time.Duration
	missedRounds int
	logger       *internal.Logger
}

// MARK: ZeroconfOptions
type ZeroconfOptions struct {
	BrowseWindow   time.Duration
	BrowseInterval time.Duration
	MissedRounds   int
}

// MARK: Publisher
// Advertises the HTTP surface on the local network.
type Publisher struct {
	logger     *internal.Logger
	conn       *dbus.Conn
	server     *avahi.Server
	entryGroup *avahi.EntryGroup
	zcServer   *zeroconf.Server
	hostName   string
	published  string
	useAvahi   bool
	mu         sync.Mutex
}
