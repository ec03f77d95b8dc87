package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JPKribs/snapcontrol/discovery"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/mopidy"
	"github.com/JPKribs/snapcontrol/snapcast"
)

// MARK: New
func New(newConnection ConnectionFactory, newMedia MediaFactory, opts Options, metrics *Metrics, logger *internal.Logger) *Registry {
	if opts.SyncConcurrency <= 0 {
		opts.SyncConcurrency = 1
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &Registry{
		control:       newTable[*snapcast.Connection](),
		media:         newTable[*mopidy.Client](),
		newConnection: newConnection,
		newMedia:      newMedia,
		opts:          opts,
		metrics:       metrics,
		logger:        logger,
		lifetime:      lifetime,
		cancel:        cancel,
	}
}

// MARK: admit
// Runs fn under the lifecycle lock unless the registry is closed.
func (r *Registry) admit(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	fn()
	return true
}

// MARK: OnControlAdded
// Registers a control server and connects to it in the background.
func (r *Registry) OnControlAdded(announcement discovery.ServiceAnnouncement) {
	key := discovery.CanonicalName(announcement.Name)
	r.metrics.DiscoveryEvent(discovery.ServiceControl.String(), "added")

	if _, exists := r.control.get(key); exists {
		r.logger.Debug("Control server already registered", "name", key)
		return
	}

	entry := &Entry[*snapcast.Connection]{
		Key:          key,
		Announcement: announcement,
		AddedAt:      time.Now(),
		Value:        r.newConnection(key, announcement),
	}

	inserted := false
	admitted := r.admit(func() {
		inserted = r.control.insertIfAbsent(entry)
		if inserted {
			r.wg.Add(1)
		}
	})
	if !admitted || !inserted {
		entry.Value.Close()
		if !admitted {
			r.logger.Debug("Registry closed, ignoring control server", "name", key)
		}
		return
	}

	r.metrics.SetRegistered(discovery.ServiceControl.String(), r.control.len())
	r.logger.Info("Registered control server", "name", key, "address", announcement.Address, "port", announcement.Port)

	go r.run(entry)
}

// MARK: run
// Connects the entry and drops it from the table once its connection reaches CLOSED.
func (r *Registry) run(entry *Entry[*snapcast.Connection]) {
	defer r.wg.Done()

	conn := entry.Value
	if err := conn.Connect(r.lifetime, entry.Announcement.Address, entry.Announcement.Port); err != nil {
		switch {
		case errors.Is(err, internal.ErrTransientUnavailable):
			r.logger.Info("Control server not reachable yet", "name", entry.Key, "error", err)
		case errors.Is(err, internal.ErrConnectionClosed):
			r.logger.Debug("Control server closed during connect", "name", entry.Key)
		default:
			r.logger.Warn("Failed to connect control server", "name", entry.Key, "error", err)
		}
	}

	<-conn.Done()

	if r.control.removeEntry(entry) {
		r.metrics.SetRegistered(discovery.ServiceControl.String(), r.control.len())
		r.logger.Warn("Dropped unrecoverable control server", "name", entry.Key)
	}
}

// MARK: OnControlRemoved
// Unregisters a control server. The connection is closed after it leaves the table.
func (r *Registry) OnControlRemoved(announcement discovery.ServiceAnnouncement) {
	key := discovery.CanonicalName(announcement.Name)
	r.metrics.DiscoveryEvent(discovery.ServiceControl.String(), "removed")

	entry, exists := r.control.remove(key)
	if !exists {
		r.logger.Debug("Control server not registered", "name", key)
		return
	}

	r.metrics.SetRegistered(discovery.ServiceControl.String(), r.control.len())
	r.logger.Info("Unregistered control server", "name", key)

	closeEntry := func() {
		if err := entry.Value.Close(); err != nil {
			r.logger.Debug("Control server close returned error", "name", key, "error", err)
		}
	}

	if !r.admit(func() { r.wg.Add(1) }) {
		closeEntry()
		return
	}
	go func() {
		defer r.wg.Done()
		closeEntry()
	}()
}

// MARK: OnMediaAdded
func (r *Registry) OnMediaAdded(announcement discovery.ServiceAnnouncement) {
	key := discovery.CanonicalName(announcement.Name)
	r.metrics.DiscoveryEvent(discovery.ServiceMediaPlayer.String(), "added")

	entry := &Entry[*mopidy.Client]{
		Key:          key,
		Announcement: announcement,
		AddedAt:      time.Now(),
		Value:        r.newMedia(key, announcement),
	}

	inserted := false
	if !r.admit(func() { inserted = r.media.insertIfAbsent(entry) }) {
		r.logger.Debug("Registry closed, ignoring media server", "name", key)
		return
	}
	if !inserted {
		r.logger.Debug("Media server already registered", "name", key)
		return
	}

	r.metrics.SetRegistered(discovery.ServiceMediaPlayer.String(), r.media.len())
	r.logger.Info("Registered media server", "name", key, "address", announcement.Address, "port", announcement.Port)
}

// MARK: OnMediaRemoved
func (r *Registry) OnMediaRemoved(announcement discovery.ServiceAnnouncement) {
	key := discovery.CanonicalName(announcement.Name)
	r.metrics.DiscoveryEvent(discovery.ServiceMediaPlayer.String(), "removed")

	if _, exists := r.media.remove(key); !exists {
		r.logger.Debug("Media server not registered", "name", key)
		return
	}

	r.metrics.SetRegistered(discovery.ServiceMediaPlayer.String(), r.media.len())
	r.logger.Info("Unregistered media server", "name", key)
}

// MARK: ResolveControl
func (r *Registry) ResolveControl(key string) (*snapcast.Connection, error) {
	entry, err := r.ControlEntry(key)
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// MARK: ControlEntry
func (r *Registry) ControlEntry(key string) (*Entry[*snapcast.Connection], error) {
	entry, exists := r.control.get(key)
	if !exists {
		return nil, fmt.Errorf("%w: control server %q", internal.ErrNotFound, key)
	}
	return entry, nil
}

// MARK: ResolveMedia
func (r *Registry) ResolveMedia(key string) (*mopidy.Client, error) {
	entry, exists := r.media.get(key)
	if !exists {
		return nil, fmt.Errorf("%w: media server %q", internal.ErrNotFound, key)
	}
	return entry.Value, nil
}

// MARK: Keys
// Returns the registered names of one service kind in sorted order.
func (r *Registry) Keys(kind discovery.ServiceKind) []string {
	switch kind {
	case discovery.ServiceControl:
		return r.control.keys()
	case discovery.ServiceMediaPlayer:
		return r.media.keys()
	default:
		return []string{}
	}
}

// MARK: ControlEntries
func (r *Registry) ControlEntries() []*Entry[*snapcast.Connection] {
	return r.control.snapshot()
}

// MARK: MediaEntries
func (r *Registry) MediaEntries() []*Entry[*mopidy.Client] {
	return r.media.snapshot()
}

// MARK: Mutate
// Resolves serverName and applies one client mutation on it.
func (r *Registry) Mutate(ctx context.Context, serverName, entityID string, action snapcast.Action, params snapcast.MutateParams) error {
	conn, err := r.ResolveControl(serverName)
	if err == nil {
		err = conn.Mutate(ctx, entityID, action, params)
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	r.metrics.MutationResult(string(action), result)
	return err
}

// MARK: Stats
func (r *Registry) Stats() Stats {
	entries := r.control.snapshot()
	states := make(map[string]int)
	for _, entry := range entries {
		states[entry.Value.State().String()]++
	}

	r.resyncMu.Lock()
	last, lastAt := r.lastSync, r.lastSyncAt
	r.resyncMu.Unlock()

	return Stats{
		ControlServers: len(entries),
		MediaServers:   r.media.len(),
		States:         states,
		LastSync:       last,
		LastSyncAt:     lastAt,
	}
}

// MARK: Close
// Stops resynchronization and closes every registered connection. Safe to call more than once.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.StopResync()
	r.cancel()

	var errs []error
	for _, entry := range r.control.snapshot() {
		r.control.removeEntry(entry)
		if err := entry.Value.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", entry.Key, err))
		}
	}
	for _, entry := range r.media.snapshot() {
		r.media.removeEntry(entry)
	}
	r.metrics.SetRegistered(discovery.ServiceControl.String(), 0)
	r.metrics.SetRegistered(discovery.ServiceMediaPlayer.String(), 0)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for connections: %w", ctx.Err()))
	}

	r.logger.Info("Registry closed")
	return errors.Join(errs...)
}
