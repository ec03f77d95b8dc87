package snapcast

import (
	"encoding/json"
	"fmt"
)

// MARK: wire types

type statusResult struct {
	Server serverStatus `json:"server"`
}

type serverStatus struct {
	Groups  []groupStatus  `json:"groups"`
	Streams []streamStatus `json:"streams"`
}

type groupStatus struct {
	ID       string         `json:"id"`
	StreamID string         `json:"stream_id"`
	Clients  []clientStatus `json:"clients"`
}

type clientStatus struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
	Config    struct {
		Name    string `json:"name"`
		Latency int    `json:"latency"`
		Volume  Volume `json:"volume"`
	} `json:"config"`
	Host struct {
		Name string `json:"name"`
	} `json:"host"`
}

type streamStatus struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Meta       map[string]any `json:"meta"`
	Properties struct {
		Metadata map[string]any `json:"metadata"`
	} `json:"properties"`
}

// MARK: ParseStatus
// Decodes a Server.GetStatus result or a Server.OnUpdate payload into a snapshot.
func ParseStatus(raw json.RawMessage) (*Snapshot, error) {
	var result statusResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding server status: %w", err)
	}
	return result.Server.snapshot(), nil
}

// MARK: snapshot
func (s serverStatus) snapshot() *Snapshot {
	var clients []Client
	for _, group := range s.Groups {
		for _, c := range group.Clients {
			name := c.Config.Name
			if name == "" {
				name = c.Host.Name
			}
			clients = append(clients, Client{
				ID:        c.ID,
				Name:      name,
				Muted:     c.Config.Volume.Muted,
				Volume:    c.Config.Volume.Percent,
				Latency:   c.Config.Latency,
				Connected: c.Connected,
				Stream:    group.StreamID,
				GroupID:   group.ID,
			})
		}
	}

	streams := make([]Stream, 0, len(s.Streams))
	for _, st := range s.Streams {
		meta := st.Meta
		if meta == nil {
			meta = st.Properties.Metadata
		}
		if meta == nil {
			meta = map[string]any{}
		}
		streams = append(streams, Stream{ID: st.ID, Status: st.Status, Meta: meta})
	}

	return NewSnapshot(clients, streams)
}
