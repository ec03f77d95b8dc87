package mopidy

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/version"
	"github.com/go-resty/resty/v2"
)

const rpcPath = "/mopidy/rpc"

var requestID atomic.Int64

// MARK: NewHTTPClient
// Builds the resty client shared by every media-player Client.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())
}

// MARK: NewClient
func NewClient(name, host string, port int, http *resty.Client) *Client {
	if http == nil {
		http = NewHTTPClient(10 * time.Second)
	}
	return &Client{Name: name, Host: host, Port: port, http: http}
}

// MARK: Endpoint
func (c *Client) Endpoint() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + rpcPath
}

// MARK: Call
// Posts one JSON-RPC request. Transport failures, non-2xx replies and RPC errors wrap ErrBackend.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}

	request := rpcRequest{
		ID:      int(requestID.Add(1)),
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request).
		Post(c.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", internal.ErrBackend, method, c.Name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s on %s: HTTP %s", internal.ErrBackend, method, c.Name, resp.Status())
	}

	var reply rpcResponse
	if err := json.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, fmt.Errorf("%w: decoding %s reply from %s: %w", internal.ErrBackend, method, c.Name, err)
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", internal.ErrBackend, method, c.Name, reply.Error)
	}
	return reply.Result, nil
}

// MARK: Browse
// Lists the library under uri; an empty uri lists the root.
func (c *Client) Browse(ctx context.Context, uri string) ([]Ref, error) {
	params := map[string]any{"uri": nil}
	if uri != "" {
		params["uri"] = uri
	}

	result, err := c.Call(ctx, "core.library.browse", params)
	if err != nil {
		return nil, err
	}

	refs := []Ref{}
	if len(result) > 0 && string(result) != "null" {
		if err := json.Unmarshal(result, &refs); err != nil {
			return nil, fmt.Errorf("%w: decoding browse result: %w", internal.ErrBackend, err)
		}
	}
	return refs, nil
}

// MARK: Play
// Replaces the tracklist with uris and starts the first track.
func (c *Client) Play(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: at least one uri is required", internal.ErrInvalidArgument)
	}

	if _, err := c.Call(ctx, "core.tracklist.clear", nil); err != nil {
		return err
	}

	result, err := c.Call(ctx, "core.tracklist.add", map[string]any{"uris": uris})
	if err != nil {
		return err
	}

	var tracks []TlTrack
	if err := json.Unmarshal(result, &tracks); err != nil {
		return fmt.Errorf("%w: decoding tracklist: %w", internal.ErrBackend, err)
	}
	if len(tracks) == 0 {
		return nil
	}

	_, err = c.Call(ctx, "core.playback.play", map[string]any{"tlid": tracks[0].TLID})
	return err
}

// MARK: Stop
// Clears the tracklist and stops playback.
func (c *Client) Stop(ctx context.Context) error {
	if _, err := c.Call(ctx, "core.tracklist.clear", nil); err != nil {
		return err
	}
	_, err := c.Call(ctx, "core.playback.stop", nil)
	return err
}
