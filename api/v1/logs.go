package v1

import (
	"net/http"
	"strings"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/utilities"
)

// Context keys that name the server a log line is about.
var serverLogKeys = []string{"name", "server"}

// MARK: handleLogs
// Pages through the in-memory log ring, newest last. Optional filters: level, server.
func (a *APIServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := a.parsePaginationParams(r)
	query := r.URL.Query()
	server := strings.TrimSpace(query.Get("server"))

	matched := make([]LogEntry, 0)
	for _, entry := range a.logger.GetLogs(query.Get("level")) {
		view := logView(entry)
		if server != "" && !strings.EqualFold(view.Server, server) {
			continue
		}
		matched = append(matched, view)
	}

	total := len(matched)
	page := []LogEntry{}
	if offset < total {
		page = matched[offset:min(offset+limit, total)]
	}

	a.respondWithSuccess(w, "Logs retrieved", LogResponse{
		Logs:   page,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// MARK: logView
func logView(entry internal.LogEntry) LogEntry {
	view := LogEntry{
		Timestamp: utilities.ParseTimestamp(entry.Timestamp),
		Level:     entry.Level,
		Message:   entry.Message,
		Context:   entry.Context,
	}
	for _, key := range serverLogKeys {
		if name, ok := entry.Context[key].(string); ok && name != "" {
			view.Server = name
			break
		}
	}
	return view
}
