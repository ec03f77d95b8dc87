package registry

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JPKribs/snapcontrol/discovery"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/mopidy"
	"github.com/JPKribs/snapcontrol/snapcast"
)

var errRefused = errors.New("connection refused")

func testLogger() *internal.Logger {
	return internal.NewLoggerWithWriter("debug", io.Discard)
}

// session is a control session whose Status can be gated or failed.
type session struct {
	statusErr  atomic.Pointer[error]
	gate       chan struct{}
	inFlight   *atomic.Int32
	maxFlight  *atomic.Int32
	statusHits atomic.Int32

	done      chan struct{}
	closeOnce sync.Once
}

func newSession() *session {
	return &session{done: make(chan struct{})}
}

func (s *session) failStatus(err error) {
	s.statusErr.Store(&err)
}

func (s *session) Status(ctx context.Context) (*snapcast.Snapshot, error) {
	s.statusHits.Add(1)
	if s.inFlight != nil {
		n := s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		for {
			peak := s.maxFlight.Load()
			if n <= peak || s.maxFlight.CompareAndSwap(peak, n) {
				break
			}
		}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.statusErr.Load(); err != nil && *err != nil {
		return nil, *err
	}
	return snapcast.NewSnapshot(
		[]snapcast.Client{{ID: "c1", Name: "Kitchen", GroupID: "g1", Stream: "default", Connected: true}},
		[]snapcast.Stream{{ID: "default", Status: "playing"}},
	), nil
}

func (s *session) SetMuted(ctx context.Context, clientID string, muted bool) (snapcast.Volume, error) {
	return snapcast.Volume{Percent: 40, Muted: muted}, nil
}

func (s *session) SetLatency(ctx context.Context, clientID string, latency int) (int, error) {
	return latency, nil
}

func (s *session) DeleteClient(ctx context.Context, clientID string) error {
	return nil
}

func (s *session) SetStream(ctx context.Context, groupID, streamID string) (string, error) {
	return streamID, nil
}

func (s *session) Done() <-chan struct{} {
	return s.done
}

func (s *session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// network hands out sessions per address; addresses without one refuse the dial.
type network struct {
	mu       sync.Mutex
	sessions map[string]*session
	block    chan struct{}
	dials    atomic.Int32
}

func newNetwork() *network {
	return &network{sessions: map[string]*session{}}
}

func (n *network) add(address string, s *session) {
	n.mu.Lock()
	n.sessions[address] = s
	n.mu.Unlock()
}

func (n *network) dial(ctx context.Context, address string, port int, notify snapcast.NotificationHandler) (snapcast.ControlClient, error) {
	n.dials.Add(1)
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.sessions[address]
	if !ok {
		return nil, errRefused
	}
	return s, nil
}

func newTestRegistry(n *network, opts Options, metrics *Metrics) *Registry {
	logger := testLogger()
	connOpts := snapcast.Options{RequestTimeout: time.Second}
	return New(
		func(key string, ann discovery.ServiceAnnouncement) *snapcast.Connection {
			return snapcast.NewConnection(key, n.dial, connOpts, logger)
		},
		func(key string, ann discovery.ServiceAnnouncement) *mopidy.Client {
			return mopidy.NewClient(key, ann.Address, ann.Port, mopidy.NewHTTPClient(time.Second))
		},
		opts,
		metrics,
		logger,
	)
}

func controlAnnouncement(name, address string) discovery.ServiceAnnouncement {
	return discovery.ServiceAnnouncement{
		Name:    name + "._snapcast-tcp._tcp.local.",
		Address: address,
		Port:    1705,
		Kind:    discovery.ServiceControl,
	}
}

func mediaAnnouncement(name, address string) discovery.ServiceAnnouncement {
	return discovery.ServiceAnnouncement{
		Name:    name + "._mopidy-http._tcp.local.",
		Address: address,
		Port:    6680,
		Kind:    discovery.ServiceMediaPlayer,
	}
}
