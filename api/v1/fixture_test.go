package v1

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/JPKribs/snapcontrol/config"
	"github.com/JPKribs/snapcontrol/discovery"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/mopidy"
	"github.com/JPKribs/snapcontrol/registry"
	"github.com/JPKribs/snapcontrol/snapcast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// controlSession is an in-memory control server with two clients in one group.
type controlSession struct {
	mu        sync.Mutex
	calls     []string
	done      chan struct{}
	closeOnce sync.Once
}

func newControlSession() *controlSession {
	return &controlSession{done: make(chan struct{})}
}

func (s *controlSession) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *controlSession) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *controlSession) Status(ctx context.Context) (*snapcast.Snapshot, error) {
	return snapcast.NewSnapshot(
		[]snapcast.Client{
			{ID: "c1", Name: "Kitchen", GroupID: "g1", Stream: "default", Connected: true, Volume: 70},
			{ID: "c2", Name: "Porch", GroupID: "g1", Stream: "default", Connected: true, Volume: 40},
		},
		[]snapcast.Stream{
			{ID: "default", Status: "playing", Meta: map[string]any{}},
			{ID: "radio", Status: "idle", Meta: map[string]any{}},
		},
	), nil
}

func (s *controlSession) SetMuted(ctx context.Context, clientID string, muted bool) (snapcast.Volume, error) {
	s.record("SetMuted:" + clientID)
	return snapcast.Volume{Percent: 70, Muted: muted}, nil
}

func (s *controlSession) SetLatency(ctx context.Context, clientID string, latency int) (int, error) {
	s.record("SetLatency:" + clientID + ":" + strconv.Itoa(latency))
	return latency, nil
}

func (s *controlSession) DeleteClient(ctx context.Context, clientID string) error {
	s.record("DeleteClient:" + clientID)
	return nil
}

func (s *controlSession) SetStream(ctx context.Context, groupID, streamID string) (string, error) {
	s.record("SetStream:" + groupID + ":" + streamID)
	return streamID, nil
}

func (s *controlSession) Done() <-chan struct{} {
	return s.done
}

func (s *controlSession) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// mediaServer answers media-player JSON-RPC calls and records their methods.
type mediaServer struct {
	mu      sync.Mutex
	methods []string
}

func (m *mediaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     int            `json:"id"`
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.methods = append(m.methods, req.Method)
	m.mu.Unlock()

	var result any
	switch req.Method {
	case "core.library.browse":
		result = []map[string]any{{"name": "Albums", "uri": "local:directory:albums", "type": "directory"}}
	case "core.tracklist.add":
		result = []map[string]any{{"tlid": 7}}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func (m *mediaServer) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.methods...)
}

type fixture struct {
	handler  http.Handler
	registry *registry.Registry
	session  *controlSession
	media    *mediaServer
	health   *internal.HealthChecker
	logger   *internal.Logger
}

func newFixture(t *testing.T, configure func(*config.Config)) *fixture {
	t.Helper()

	logger := internal.NewLoggerWithWriter("debug", io.Discard)
	session := newControlSession()
	dialer := func(ctx context.Context, address string, port int, notify snapcast.NotificationHandler) (snapcast.ControlClient, error) {
		return session, nil
	}

	media := &mediaServer{}
	mediaHTTP := httptest.NewServer(media)
	t.Cleanup(mediaHTTP.Close)
	host, portText, err := net.SplitHostPort(mediaHTTP.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	promRegistry := prometheus.NewRegistry()
	reg := registry.New(
		func(key string, ann discovery.ServiceAnnouncement) *snapcast.Connection {
			return snapcast.NewConnection(key, dialer, snapcast.Options{RequestTimeout: time.Second}, logger)
		},
		func(key string, ann discovery.ServiceAnnouncement) *mopidy.Client {
			return mopidy.NewClient(key, ann.Address, ann.Port, mopidy.NewHTTPClient(time.Second))
		},
		registry.Options{SyncConcurrency: 2, RequestTimeout: time.Second},
		registry.NewMetrics(promRegistry),
		logger,
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		reg.Close(ctx)
	})

	reg.OnControlAdded(discovery.ServiceAnnouncement{
		Name: "LivingRoom._snapcast-tcp._tcp.local.", Address: "10.0.0.5", Port: 1705, Kind: discovery.ServiceControl,
	})
	reg.OnMediaAdded(discovery.ServiceAnnouncement{
		Name: "Kitchen._mopidy-http._tcp.local.", Address: host, Port: port, Kind: discovery.ServiceMediaPlayer,
	})

	conn, err := reg.ResolveControl("LivingRoom")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !conn.LastSyncedAt().IsZero() }, 2*time.Second, 5*time.Millisecond)

	cfg := config.Default()
	cfg.Server.WebRoot = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.WebRoot, "index.html"), []byte("<html>snapcontrol</html>"), 0o644))
	if configure != nil {
		configure(cfg)
	}

	health := internal.NewHealthChecker("test")
	api := NewAPIServer(cfg, reg, health, promRegistry, "zeroconf", logger)

	return &fixture{
		handler:  api.Routes(),
		registry: reg,
		session:  session,
		media:    media,
		health:   health,
		logger:   logger,
	}
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doWithOrigin(t *testing.T, target, origin string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeAPI(t *testing.T, rec *httptest.ResponseRecorder, data any) APIResponse {
	t.Helper()
	var envelope struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	if data != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.APIResponse
}
