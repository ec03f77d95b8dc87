package snapcast

import (
	"context"
	"encoding/json"
)

// MARK: Status
func (c *RPCClient) Status(ctx context.Context) (*Snapshot, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, "Server.GetStatus", nil, &raw); err != nil {
		return nil, err
	}
	return ParseStatus(raw)
}

// MARK: SetMuted
func (c *RPCClient) SetMuted(ctx context.Context, clientID string, muted bool) (Volume, error) {
	var result struct {
		Volume Volume `json:"volume"`
	}
	params := map[string]any{
		"id":     clientID,
		"volume": map[string]any{"muted": muted},
	}
	if err := c.Call(ctx, "Client.SetVolume", params, &result); err != nil {
		return Volume{}, err
	}
	return result.Volume, nil
}

// MARK: SetLatency
func (c *RPCClient) SetLatency(ctx context.Context, clientID string, latency int) (int, error) {
	var result struct {
		Latency int `json:"latency"`
	}
	params := map[string]any{"id": clientID, "latency": latency}
	if err := c.Call(ctx, "Client.SetLatency", params, &result); err != nil {
		return 0, err
	}
	return result.Latency, nil
}

// MARK: DeleteClient
func (c *RPCClient) DeleteClient(ctx context.Context, clientID string) error {
	return c.Call(ctx, "Server.DeleteClient", map[string]any{"id": clientID}, nil)
}

// MARK: SetStream
func (c *RPCClient) SetStream(ctx context.Context, groupID, streamID string) (string, error) {
	var result struct {
		StreamID string `json:"stream_id"`
	}
	params := map[string]any{"id": groupID, "stream_id": streamID}
	if err := c.Call(ctx, "Group.SetStream", params, &result); err != nil {
		return "", err
	}
	if result.StreamID == "" {
		result.StreamID = streamID
	}
	return result.StreamID, nil
}
