package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/mopidy"
	"github.com/JPKribs/snapcontrol/snapcast"
)

// MARK: handleSnapServers
// Every control server with its cached clients and streams, keyed by name.
func (a *APIServer) handleSnapServers(w http.ResponseWriter, r *http.Request) {
	servers := make(map[string]LegacyServer)
	for _, entry := range a.registry.ControlEntries() {
		snapshot := entry.Value.Snapshot()
		address, port := entry.Value.Address()
		servers[entry.Key] = LegacyServer{
			Host:    address,
			Port:    port,
			Clients: snapshot.Clients,
			Streams: snapshot.Streams,
		}
	}
	a.writeJSON(w, servers)
}

// MARK: handleMopidyServers
func (a *APIServer) handleMopidyServers(w http.ResponseWriter, r *http.Request) {
	entries := a.registry.MediaEntries()
	servers := make([]*mopidy.Client, 0, len(entries))
	for _, entry := range entries {
		servers = append(servers, entry.Value)
	}
	a.writeJSON(w, servers)
}

// MARK: handleClient
// Applies one client action from query parameters.
func (a *APIServer) handleClient(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	serverName := query.Get("server_name")
	clientID := query.Get("id")

	if serverName == "" || clientID == "" {
		a.writeFailure(w, fmt.Errorf("%w: server_name and id are required", internal.ErrInvalidArgument))
		return
	}

	action, err := snapcast.ParseAction(query.Get("action"))
	if err != nil {
		a.writeFailure(w, err)
		return
	}

	params, err := parseMutateParams(action, query.Get("latency"), query.Get("stream"))
	if err != nil {
		a.writeFailure(w, err)
		return
	}

	if err := a.registry.Mutate(r.Context(), serverName, clientID, action, params); err != nil {
		a.writeFailure(w, err)
		return
	}

	a.logger.Info("Client updated", "server", serverName, "client", clientID, "action", string(action))
	a.writeJSON(w, map[string]any{})
}

// MARK: parseMutateParams
func parseMutateParams(action snapcast.Action, latency, stream string) (snapcast.MutateParams, error) {
	var params snapcast.MutateParams

	switch action {
	case snapcast.ActionSetLatency:
		value, err := strconv.Atoi(latency)
		if err != nil {
			return params, fmt.Errorf("%w: invalid latency %q", internal.ErrInvalidArgument, latency)
		}
		params.Latency = &value
	case snapcast.ActionSetStream:
		if stream == "" {
			return params, fmt.Errorf("%w: stream is required", internal.ErrInvalidArgument)
		}
		params.Stream = stream
	}

	return params, nil
}

// MARK: mediaFromQuery
func (a *APIServer) mediaFromQuery(r *http.Request) (*mopidy.Client, error) {
	name := r.URL.Query().Get("name")
	if name == "" {
		return nil, fmt.Errorf("%w: missing name parameter", internal.ErrInvalidArgument)
	}
	return a.registry.ResolveMedia(name)
}

// MARK: handleBrowse
func (a *APIServer) handleBrowse(w http.ResponseWriter, r *http.Request) {
	client, err := a.mediaFromQuery(r)
	if err != nil {
		a.writeFailure(w, err)
		return
	}

	refs, err := client.Browse(r.Context(), r.URL.Query().Get("uri"))
	if err != nil {
		a.writeFailure(w, err)
		return
	}

	a.writeJSON(w, refs)
}

// MARK: handlePlay
// Replaces the tracklist with every uri parameter and starts the first track.
func (a *APIServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	client, err := a.mediaFromQuery(r)
	if err != nil {
		a.writeFailure(w, err)
		return
	}

	uris := r.URL.Query()["uri"]
	if err := client.Play(r.Context(), uris); err != nil {
		a.writeFailure(w, err)
		return
	}

	a.logger.Info("Playback started", "server", client.Name, "tracks", len(uris))
	a.writeJSON(w, map[string]any{})
}

// MARK: handleStop
func (a *APIServer) handleStop(w http.ResponseWriter, r *http.Request) {
	client, err := a.mediaFromQuery(r)
	if err != nil {
		a.writeFailure(w, err)
		return
	}

	if err := client.Stop(r.Context()); err != nil {
		a.writeFailure(w, err)
		return
	}

	a.logger.Info("Playback stopped", "server", client.Name)
	a.writeJSON(w, map[string]any{})
}
