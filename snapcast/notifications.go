package snapcast

import (
	"encoding/json"
)

// MARK: handleNotification
// Folds server notifications into the cache.
func (c *Connection) handleNotification(method string, params json.RawMessage) {
	var err error

	switch method {
	case "Server.OnUpdate":
		var snapshot *Snapshot
		if snapshot, err = ParseStatus(params); err == nil {
			err = c.ApplySnapshot(snapshot)
		}

	case "Client.OnVolumeChanged":
		var p struct {
			ID     string `json:"id"`
			Volume Volume `json:"volume"`
		}
		if err = json.Unmarshal(params, &p); err == nil {
			err = c.patch(func(s *Snapshot) *Snapshot {
				return s.withClient(p.ID, func(cl *Client) {
					cl.Muted = p.Volume.Muted
					cl.Volume = p.Volume.Percent
				})
			})
		}

	case "Client.OnLatencyChanged":
		var p struct {
			ID      string `json:"id"`
			Latency int    `json:"latency"`
		}
		if err = json.Unmarshal(params, &p); err == nil {
			err = c.patch(func(s *Snapshot) *Snapshot {
				return s.withClient(p.ID, func(cl *Client) { cl.Latency = p.Latency })
			})
		}

	case "Group.OnStreamChanged":
		var p struct {
			ID       string `json:"id"`
			StreamID string `json:"stream_id"`
		}
		if err = json.Unmarshal(params, &p); err == nil {
			err = c.patch(func(s *Snapshot) *Snapshot { return s.withGroupStream(p.ID, p.StreamID) })
		}

	default:
		c.logger.Debug("Ignoring notification", "name", c.name, "method", method)
		return
	}

	if err != nil {
		c.logger.Debug("Notification not applied", "name", c.name, "method", method, "error", err)
	}
}
