package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JPKribs/snapcontrol/discovery"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/snapcast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func closeRegistry(t *testing.T, r *Registry) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		assert.NoError(t, r.Close(ctx))
	})
}

func waitConnected(t *testing.T, r *Registry, key string) *snapcast.Connection {
	t.Helper()
	conn, err := r.ResolveControl(key)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return conn.State() == snapcast.StateConnected }, waitFor, tick)
	return conn
}

func waitSynced(t *testing.T, r *Registry, key string) *snapcast.Connection {
	t.Helper()
	conn := waitConnected(t, r, key)
	require.Eventually(t, func() bool { return !conn.LastSyncedAt().IsZero() }, waitFor, tick)
	return conn
}

func TestControlLifecycle(t *testing.T) {
	t.Run("AddConnectsAndRemoveCloses", func(t *testing.T) {
		n := newNetwork()
		n.add("10.0.0.5", newSession())
		r := newTestRegistry(n, Options{}, nil)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
		conn := waitConnected(t, r, "LivingRoom")

		require.Eventually(t, func() bool { return len(conn.Snapshot().Clients) == 1 }, waitFor, tick)

		r.OnControlRemoved(controlAnnouncement("LivingRoom", "10.0.0.5"))

		_, err := r.ResolveControl("LivingRoom")
		assert.ErrorIs(t, err, internal.ErrNotFound)
		assert.Empty(t, r.Keys(discovery.ServiceControl))
		require.Eventually(t, func() bool { return conn.State() == snapcast.StateClosed }, waitFor, tick)
	})

	t.Run("DuplicateAddKeepsFirstEntry", func(t *testing.T) {
		n := newNetwork()
		n.add("10.0.0.5", newSession())
		r := newTestRegistry(n, Options{}, nil)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
		first := waitConnected(t, r, "LivingRoom")

		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.9"))

		second, err := r.ResolveControl("LivingRoom")
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, []string{"LivingRoom"}, r.Keys(discovery.ServiceControl))
		assert.Equal(t, int32(1), n.dials.Load())
	})

	t.Run("UnreachableServerIsDropped", func(t *testing.T) {
		n := newNetwork()
		r := newTestRegistry(n, Options{}, nil)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("Garage", "10.0.0.77"))

		require.Eventually(t, func() bool {
			_, err := r.ResolveControl("Garage")
			return err != nil
		}, waitFor, tick)
		assert.Empty(t, r.Keys(discovery.ServiceControl))
	})

	t.Run("RemoveBeforeConnectCompletes", func(t *testing.T) {
		n := newNetwork()
		n.block = make(chan struct{})
		n.add("10.0.0.5", newSession())
		r := newTestRegistry(n, Options{}, nil)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
		conn, err := r.ResolveControl("LivingRoom")
		require.NoError(t, err)

		r.OnControlRemoved(controlAnnouncement("LivingRoom", "10.0.0.5"))

		assert.Empty(t, r.Keys(discovery.ServiceControl))
		require.Eventually(t, func() bool { return conn.State() == snapcast.StateClosed }, waitFor, tick)
		select {
		case <-conn.Done():
		case <-time.After(waitFor):
			t.Fatal("connection not released")
		}
	})

	t.Run("RemoveUnknownIsNoop", func(t *testing.T) {
		r := newTestRegistry(newNetwork(), Options{}, nil)
		closeRegistry(t, r)

		r.OnControlRemoved(controlAnnouncement("Nowhere", "10.0.0.1"))
		assert.Empty(t, r.Keys(discovery.ServiceControl))
	})

	t.Run("ReaddAfterRemoveCreatesNewConnection", func(t *testing.T) {
		n := newNetwork()
		n.add("10.0.0.5", newSession())
		r := newTestRegistry(n, Options{}, nil)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
		first := waitConnected(t, r, "LivingRoom")
		r.OnControlRemoved(controlAnnouncement("LivingRoom", "10.0.0.5"))

		n.add("10.0.0.5", newSession())
		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
		second := waitConnected(t, r, "LivingRoom")

		assert.NotSame(t, first, second)
	})
}

func TestKeysAreSortedAndUnique(t *testing.T) {
	n := newNetwork()
	for _, address := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		n.add(address, newSession())
	}
	r := newTestRegistry(n, Options{}, nil)
	closeRegistry(t, r)

	r.OnControlAdded(controlAnnouncement("Office", "10.0.0.1"))
	r.OnControlAdded(controlAnnouncement("Attic", "10.0.0.2"))
	r.OnControlAdded(controlAnnouncement("Office", "10.0.0.1"))
	r.OnControlAdded(controlAnnouncement("Bedroom", "10.0.0.3"))

	assert.Equal(t, []string{"Attic", "Bedroom", "Office"}, r.Keys(discovery.ServiceControl))

	entries := r.ControlEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "Attic", entries[0].Key)
	assert.Equal(t, "10.0.0.2", entries[0].Announcement.Address)
}

func TestMediaServers(t *testing.T) {
	r := newTestRegistry(newNetwork(), Options{}, nil)
	closeRegistry(t, r)

	r.OnMediaAdded(mediaAnnouncement("Kitchen", "10.0.0.8"))
	r.OnMediaAdded(mediaAnnouncement("Kitchen", "10.0.0.9"))

	client, err := r.ResolveMedia("Kitchen")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.8", client.Host)
	assert.Equal(t, 6680, client.Port)
	assert.Equal(t, []string{"Kitchen"}, r.Keys(discovery.ServiceMediaPlayer))
	assert.Empty(t, r.Keys(discovery.ServiceControl))

	r.OnMediaRemoved(mediaAnnouncement("Kitchen", "10.0.0.8"))

	_, err = r.ResolveMedia("Kitchen")
	assert.ErrorIs(t, err, internal.ErrNotFound)
	assert.Empty(t, r.MediaEntries())
}

func TestMutate(t *testing.T) {
	n := newNetwork()
	n.add("10.0.0.5", newSession())
	r := newTestRegistry(n, Options{}, nil)
	closeRegistry(t, r)

	t.Run("UnknownServer", func(t *testing.T) {
		err := r.Mutate(context.Background(), "Missing", "c1", snapcast.ActionMute, snapcast.MutateParams{})
		assert.ErrorIs(t, err, internal.ErrNotFound)
	})

	t.Run("AppliesOnResolvedServer", func(t *testing.T) {
		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
		conn := waitSynced(t, r, "LivingRoom")

		require.NoError(t, r.Mutate(context.Background(), "LivingRoom", "c1", snapcast.ActionMute, snapcast.MutateParams{}))

		client, ok := conn.Snapshot().Client("c1")
		require.True(t, ok)
		assert.True(t, client.Muted)
	})
}

func TestSyncOnce(t *testing.T) {
	t.Run("RefreshesConnectedAndSkipsOthers", func(t *testing.T) {
		n := newNetwork()
		healthy := newSession()
		n.add("10.0.0.5", healthy)
		r := newTestRegistry(n, Options{SyncConcurrency: 2, RequestTimeout: time.Second}, nil)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
		waitSynced(t, r, "LivingRoom")
		before := healthy.statusHits.Load()

		report := r.SyncOnce(context.Background())

		assert.Equal(t, 1, report.Refreshed)
		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, before+1, healthy.statusHits.Load())

		stats := r.Stats()
		require.NotNil(t, stats.LastSync)
		assert.Equal(t, 1, stats.LastSync.Refreshed)
		assert.Equal(t, 1, stats.ControlServers)
		assert.Equal(t, 1, stats.States["connected"])
	})

	t.Run("FailureKeepsEntry", func(t *testing.T) {
		n := newNetwork()
		failing := newSession()
		n.add("10.0.0.5", failing)
		r := newTestRegistry(n, Options{RequestTimeout: time.Second}, nil)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
		waitSynced(t, r, "LivingRoom")
		failing.failStatus(errRefused)

		report := r.SyncOnce(context.Background())

		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, 0, report.Refreshed)
		_, err := r.ResolveControl("LivingRoom")
		assert.NoError(t, err)
	})

	t.Run("IsolatesFailures", func(t *testing.T) {
		n := newNetwork()
		sessions := map[string]*session{"A": newSession(), "B": newSession(), "C": newSession()}
		addresses := map[string]string{"A": "10.0.0.1", "B": "10.0.0.2", "C": "10.0.0.3"}
		for name, s := range sessions {
			n.add(addresses[name], s)
		}
		r := newTestRegistry(n, Options{SyncConcurrency: 3, RequestTimeout: time.Second}, nil)
		closeRegistry(t, r)

		synced := map[string]time.Time{}
		for _, name := range []string{"A", "B", "C"} {
			r.OnControlAdded(controlAnnouncement(name, addresses[name]))
			synced[name] = waitSynced(t, r, name).LastSyncedAt()
		}
		sessions["B"].failStatus(errRefused)
		time.Sleep(2 * time.Millisecond)

		report := r.SyncOnce(context.Background())

		assert.Equal(t, 2, report.Refreshed)
		assert.Equal(t, 1, report.Failed)
		for _, name := range []string{"A", "C"} {
			conn, err := r.ResolveControl(name)
			require.NoError(t, err)
			assert.True(t, conn.LastSyncedAt().After(synced[name]), name)
		}
		b, err := r.ResolveControl("B")
		require.NoError(t, err)
		assert.Equal(t, synced["B"], b.LastSyncedAt())
	})

	t.Run("BoundsConcurrency", func(t *testing.T) {
		n := newNetwork()
		var inFlight, peak atomic.Int32
		gate := make(chan struct{})
		sessions := []*session{}
		for _, address := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
			s := newSession()
			n.add(address, s)
			sessions = append(sessions, s)
		}
		r := newTestRegistry(n, Options{SyncConcurrency: 2, RequestTimeout: waitFor}, nil)
		closeRegistry(t, r)

		for i, name := range []string{"A", "B", "C", "D"} {
			r.OnControlAdded(controlAnnouncement(name, sessionsAddress(i)))
			waitSynced(t, r, name)
		}
		for _, s := range sessions {
			s.gate = gate
			s.inFlight = &inFlight
			s.maxFlight = &peak
		}

		var wg sync.WaitGroup
		var report SyncReport
		wg.Add(1)
		go func() {
			defer wg.Done()
			report = r.SyncOnce(context.Background())
		}()

		require.Eventually(t, func() bool { return inFlight.Load() == 2 }, waitFor, tick)
		close(gate)
		wg.Wait()

		assert.Equal(t, 4, report.Refreshed)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("PassesDoNotOverlap", func(t *testing.T) {
		n := newNetwork()
		slow, fast := newSession(), newSession()
		n.add("10.0.0.1", slow)
		n.add("10.0.0.2", fast)
		r := newTestRegistry(n, Options{SyncConcurrency: 2, RequestTimeout: waitFor}, nil)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("Slow", "10.0.0.1"))
		r.OnControlAdded(controlAnnouncement("Fast", "10.0.0.2"))
		waitSynced(t, r, "Slow")
		waitSynced(t, r, "Fast")

		var inFlight, peak atomic.Int32
		gate := make(chan struct{})
		slow.gate = gate
		slow.inFlight = &inFlight
		slow.maxFlight = &peak
		base := fast.statusHits.Load()

		var wg sync.WaitGroup
		var first, second SyncReport
		wg.Add(1)
		go func() {
			defer wg.Done()
			first = r.SyncOnce(context.Background())
		}()
		require.Eventually(t, func() bool {
			return inFlight.Load() == 1 && fast.statusHits.Load() == base+1
		}, waitFor, tick)

		wg.Add(1)
		go func() {
			defer wg.Done()
			second = r.SyncOnce(context.Background())
		}()
		assert.Never(t, func() bool { return fast.statusHits.Load() > base+1 }, 100*time.Millisecond, tick)

		close(gate)
		wg.Wait()

		assert.Equal(t, 2, first.Refreshed)
		assert.Equal(t, 2, second.Refreshed)
		assert.Equal(t, base+2, fast.statusHits.Load())
	})

	t.Run("CancelledPassCountsSkipped", func(t *testing.T) {
		n := newNetwork()
		slow := newSession()
		n.add("10.0.0.1", slow)
		metrics := NewMetrics(prometheus.NewRegistry())
		r := newTestRegistry(n, Options{RequestTimeout: waitFor}, metrics)
		closeRegistry(t, r)

		r.OnControlAdded(controlAnnouncement("Slow", "10.0.0.1"))
		waitSynced(t, r, "Slow")

		var inFlight, peak atomic.Int32
		slow.gate = make(chan struct{})
		slow.inFlight = &inFlight
		slow.maxFlight = &peak

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		var report SyncReport
		wg.Add(1)
		go func() {
			defer wg.Done()
			report = r.SyncOnce(ctx)
		}()
		require.Eventually(t, func() bool { return inFlight.Load() == 1 }, waitFor, tick)
		cancel()
		wg.Wait()

		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, float64(0), testutil.ToFloat64(metrics.refreshResults.WithLabelValues("failed")))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.refreshResults.WithLabelValues("cancelled")))
	})
}

func sessionsAddress(i int) string {
	return []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"}[i]
}

func TestResyncLoop(t *testing.T) {
	n := newNetwork()
	s := newSession()
	n.add("10.0.0.5", s)
	r := newTestRegistry(n, Options{RequestTimeout: time.Second}, nil)
	closeRegistry(t, r)

	assert.ErrorIs(t, r.StartResync(0), internal.ErrInvalidArgument)

	r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
	waitSynced(t, r, "LivingRoom")
	before := s.statusHits.Load()

	require.NoError(t, r.StartResync(10*time.Millisecond))
	assert.ErrorIs(t, r.StartResync(10*time.Millisecond), internal.ErrInvalidArgument)

	require.Eventually(t, func() bool { return s.statusHits.Load() >= before+2 }, waitFor, tick)

	r.StopResync()
	stopped := s.statusHits.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stopped, s.statusHits.Load())
}

func TestClose(t *testing.T) {
	n := newNetwork()
	n.add("10.0.0.5", newSession())
	n.add("10.0.0.6", newSession())
	r := newTestRegistry(n, Options{}, nil)

	r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
	r.OnControlAdded(controlAnnouncement("Office", "10.0.0.6"))
	r.OnMediaAdded(mediaAnnouncement("Kitchen", "10.0.0.8"))
	living := waitConnected(t, r, "LivingRoom")
	office := waitConnected(t, r, "Office")
	require.NoError(t, r.StartResync(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Close(ctx))

	assert.Equal(t, snapcast.StateClosed, living.State())
	assert.Equal(t, snapcast.StateClosed, office.State())
	assert.Empty(t, r.Keys(discovery.ServiceControl))
	assert.Empty(t, r.Keys(discovery.ServiceMediaPlayer))

	r.OnControlAdded(controlAnnouncement("Late", "10.0.0.5"))
	r.OnMediaAdded(mediaAnnouncement("Late", "10.0.0.8"))
	assert.Empty(t, r.Keys(discovery.ServiceControl))
	assert.Empty(t, r.Keys(discovery.ServiceMediaPlayer))
	assert.ErrorIs(t, r.StartResync(time.Second), internal.ErrConnectionClosed)
}

func TestMetrics(t *testing.T) {
	promRegistry := prometheus.NewRegistry()
	metrics := NewMetrics(promRegistry)

	n := newNetwork()
	n.add("10.0.0.5", newSession())
	r := newTestRegistry(n, Options{}, metrics)
	closeRegistry(t, r)

	r.OnControlAdded(controlAnnouncement("LivingRoom", "10.0.0.5"))
	r.OnMediaAdded(mediaAnnouncement("Kitchen", "10.0.0.8"))
	waitConnected(t, r, "LivingRoom")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.serversRegistered.WithLabelValues("control")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.serversRegistered.WithLabelValues("media_player")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.discoveryEvents.WithLabelValues("control", "added")))

	_ = r.Mutate(context.Background(), "Missing", "c1", snapcast.ActionMute, snapcast.MutateParams{})
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.mutationResults.WithLabelValues("mute", "error")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.SetRegistered("control", 1)
		nilMetrics.DiscoveryEvent("control", "added")
		nilMetrics.ObserveResync(time.Second)
		nilMetrics.RefreshResult("ok")
		nilMetrics.MutationResult("mute", "ok")
	})
}
