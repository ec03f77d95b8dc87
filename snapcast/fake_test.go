package snapcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeControl is an in-memory control server session.
type fakeControl struct {
	mu       sync.Mutex
	status   *Snapshot
	statusFn func(ctx context.Context) (*Snapshot, error)
	failNext map[string]error
	calls    []string

	// muteEntered is closed when SetMuted starts; SetMuted then waits on muteGate.
	muteGate    chan struct{}
	muteEntered chan struct{}

	statusCalls atomic.Int32
	done        chan struct{}
	closeOnce   sync.Once
}

func newFakeControl(status *Snapshot) *fakeControl {
	return &fakeControl{status: status, failNext: map[string]error{}, done: make(chan struct{})}
}

func (f *fakeControl) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if err, ok := f.failNext[method]; ok {
		delete(f.failNext, method)
		return err
	}
	return nil
}

func (f *fakeControl) fail(method string, err error) {
	f.mu.Lock()
	f.failNext[method] = err
	f.mu.Unlock()
}

func (f *fakeControl) setStatus(s *Snapshot) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

func (f *fakeControl) Status(ctx context.Context) (*Snapshot, error) {
	f.statusCalls.Add(1)
	if f.statusFn != nil {
		return f.statusFn(ctx)
	}
	if err := f.record("Status"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	clients := append([]Client(nil), f.status.Clients...)
	streams := append([]Stream(nil), f.status.Streams...)
	return NewSnapshot(clients, streams), nil
}

func (f *fakeControl) SetMuted(ctx context.Context, clientID string, muted bool) (Volume, error) {
	if err := f.record("SetMuted"); err != nil {
		return Volume{}, err
	}
	if f.muteGate != nil {
		close(f.muteEntered)
		select {
		case <-f.muteGate:
		case <-ctx.Done():
			return Volume{}, ctx.Err()
		}
	}
	return Volume{Percent: 55, Muted: muted}, nil
}

func (f *fakeControl) SetLatency(ctx context.Context, clientID string, latency int) (int, error) {
	if err := f.record("SetLatency"); err != nil {
		return 0, err
	}
	return latency, nil
}

func (f *fakeControl) DeleteClient(ctx context.Context, clientID string) error {
	return f.record("DeleteClient")
}

func (f *fakeControl) SetStream(ctx context.Context, groupID, streamID string) (string, error) {
	if err := f.record("SetStream:" + groupID); err != nil {
		return "", err
	}
	return streamID, nil
}

func (f *fakeControl) Done() <-chan struct{} { return f.done }

func (f *fakeControl) Close() error {
	f.drop()
	return nil
}

// drop simulates the server going away.
func (f *fakeControl) drop() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *fakeControl) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeDialer hands out sessions from a queue; an error entry fails that dial.
type fakeDialer struct {
	mu       sync.Mutex
	sessions []*fakeControl
	errs     []error
	dials    atomic.Int32
	block    chan struct{}
	notify   NotificationHandler
}

var errDialRefused = errors.New("connection refused")

func (d *fakeDialer) dial(ctx context.Context, address string, port int, notify NotificationHandler) (ControlClient, error) {
	d.dials.Add(1)
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify = notify
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(d.sessions) == 0 {
		return nil, errDialRefused
	}
	session := d.sessions[0]
	if len(d.sessions) > 1 {
		d.sessions = d.sessions[1:]
	}
	return session, nil
}

func (d *fakeDialer) handler() NotificationHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.notify
}

func ptr[T any](v T) *T { return &v }

func livingRoomStatus() *Snapshot {
	return NewSnapshot([]Client{
		{ID: "c1", Name: "Kitchen", Volume: 70, Connected: true, Stream: "default", GroupID: "g1"},
		{ID: "c2", Name: "Patio", Volume: 40, Connected: true, Stream: "default", GroupID: "g1"},
	}, []Stream{
		{ID: "default", Status: "playing", Meta: map[string]any{}},
		{ID: "radio", Status: "idle", Meta: map[string]any{}},
	})
}
