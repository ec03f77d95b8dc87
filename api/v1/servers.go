package v1

import (
	"encoding/json"
	"net/http"

	"github.com/JPKribs/snapcontrol/registry"
	"github.com/JPKribs/snapcontrol/snapcast"
	"github.com/go-chi/chi/v5"
)

// MARK: handleServers
func (a *APIServer) handleServers(w http.ResponseWriter, r *http.Request) {
	entries := a.registry.ControlEntries()
	servers := make([]ServerView, 0, len(entries))
	for _, entry := range entries {
		servers = append(servers, serverView(entry))
	}
	a.respondWithSuccess(w, "Control servers retrieved", servers)
}

// MARK: handleServerByName
func (a *APIServer) handleServerByName(w http.ResponseWriter, r *http.Request) {
	entry, err := a.registry.ControlEntry(chi.URLParam(r, "name"))
	if err != nil {
		a.respondWithFailure(w, err)
		return
	}
	a.respondWithSuccess(w, "Control server retrieved", serverView(entry))
}

// MARK: serverView
func serverView(entry *registry.Entry[*snapcast.Connection]) ServerView {
	conn := entry.Value
	snapshot := conn.Snapshot()
	address, port := conn.Address()
	if address == "" {
		address, port = entry.Announcement.Address, entry.Announcement.Port
	}

	view := ServerView{
		Name:    entry.Key,
		Address: address,
		Port:    port,
		State:   conn.State().String(),
		AddedAt: entry.AddedAt,
		Clients: snapshot.Clients,
		Streams: snapshot.Streams,
	}
	if synced := conn.LastSyncedAt(); !synced.IsZero() {
		view.LastSyncedAt = &synced
	}
	return view
}

// MARK: handleMutate
func (a *APIServer) handleMutate(w http.ResponseWriter, r *http.Request) {
	var req MutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.ServerName == "" || req.EntityID == "" {
		a.respondWithError(w, http.StatusBadRequest, "server_name and entity_id are required")
		return
	}

	action, err := snapcast.ParseAction(req.Action)
	if err != nil {
		a.respondWithFailure(w, err)
		return
	}

	if err := a.registry.Mutate(r.Context(), req.ServerName, req.EntityID, action, req.Params); err != nil {
		a.respondWithFailure(w, err)
		return
	}

	a.logger.Info("Client updated", "server", req.ServerName, "client", req.EntityID, "action", string(action))
	a.respondWithSuccess(w, "Mutation applied", nil)
}

// MARK: handleMedia
func (a *APIServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	entries := a.registry.MediaEntries()
	media := make([]MediaView, 0, len(entries))
	for _, entry := range entries {
		media = append(media, MediaView{
			Name:     entry.Key,
			Address:  entry.Value.Host,
			Port:     entry.Value.Port,
			Endpoint: entry.Value.Endpoint(),
			AddedAt:  entry.AddedAt,
		})
	}
	a.respondWithSuccess(w, "Media servers retrieved", media)
}
