package mopidy

import (
	"encoding/json"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// MARK: Client
// JSON-RPC client for one discovered media-player server.
type Client struct {
	Name string `json:"name"`
	Host string `json:"-"`
	Port int    `json:"-"`

	http *resty.Client
}

// MARK: Ref
// A library entry returned by core.library.browse.
type Ref struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// MARK: TlTrack
type TlTrack struct {
	TLID int `json:"tlid"`
}

type rpcRequest struct {
	ID      int            `json:"id"`
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// MARK: RPCError
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return "mopidy error " + strconv.Itoa(e.Code) + ": " + e.Message
}
