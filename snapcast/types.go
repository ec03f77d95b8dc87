package snapcast

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JPKribs/snapcontrol/internal"
)

// MARK: State
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MARK: Volume
type Volume struct {
	Percent int  `json:"percent"`
	Muted   bool `json:"muted"`
}

// MARK: Client
// A playback client as reported by the control server.
type Client struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Muted     bool   `json:"muted"`
	Volume    int    `json:"volume"`
	Latency   int    `json:"latency"`
	Connected bool   `json:"connected"`
	Stream    string `json:"stream"`
	GroupID   string `json:"group_id"`
}

// MARK: Stream
type Stream struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Meta   map[string]any `json:"meta"`
}

// MARK: Snapshot
// Cached entity state of one control server. A published snapshot is never modified;
// changes produce a new snapshot.
type Snapshot struct {
	Clients []Client `json:"clients"`
	Streams []Stream `json:"streams"`
	index   map[string]int
}

// MARK: ControlClient
// One open control-protocol session with a server.
type ControlClient interface {
	Status(ctx context.Context) (*Snapshot, error)
	SetMuted(ctx context.Context, clientID string, muted bool) (Volume, error)
	SetLatency(ctx context.Context, clientID string, latency int) (int, error)
	DeleteClient(ctx context.Context, clientID string) error
	SetStream(ctx context.Context, groupID, streamID string) (string, error)
	Done() <-chan struct{}
	Close() error
}

// MARK: NotificationHandler
// Receives server-initiated notifications in arrival order. It must not call back into the client.
type NotificationHandler func(method string, params json.RawMessage)

// MARK: Dialer
type Dialer func(ctx context.Context, address string, port int, notify NotificationHandler) (ControlClient, error)

// MARK: DialOptions
type DialOptions struct {
	DialTimeout  time.Duration
	KeepAlive    time.Duration
	WriteTimeout time.Duration
}

// MARK: RPCClient
// Newline delimited JSON-RPC 2.0 over one TCP connection. Calls are multiplexed by id.
type RPCClient struct {
	conn         net.Conn
	seq          atomic.Uint64
	pending      sync.Map
	sending      sync.Mutex
	notify       NotificationHandler
	writeTimeout time.Duration
	logger       *internal.Logger
	done         chan struct{}
	closeOnce    sync.Once
	err          error
}

// MARK: RPCError
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return "rpc error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// MARK: Options
// Connection behaviour. ReconnectMaxElapsed of 0 retries until the connection is closed.
type Options struct {
	Reconnect           bool
	ReconnectInitial    time.Duration
	ReconnectMax        time.Duration
	ReconnectMaxElapsed time.Duration
	RequestTimeout      time.Duration
}

// MARK: Connection
type Connection struct {
	name   string
	dialer Dialer
	opts   Options
	logger *internal.Logger

	mu       sync.RWMutex
	state    State
	client   ControlClient
	snapshot *Snapshot
	syncedAt time.Time
	address  string
	port     int

	opMu sync.Mutex

	lifetime  context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// MARK: Action
type Action string

const (
	ActionMute       Action = "mute"
	ActionUnmute     Action = "unmute"
	ActionDelete     Action = "delete"
	ActionSetLatency Action = "set_latency"
	ActionSetStream  Action = "set_stream"
)

// MARK: MutateParams
type MutateParams struct {
	Latency *int   `json:"latency,omitempty"`
	Stream  string `json:"stream,omitempty"`
}
