package snapcast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/JPKribs/snapcontrol/internal"
)

var (
	errClientClosed = errors.New("control client closed")
	errNotConnected = errors.New("control session lost")
)

type rpcRequest struct {
	ID      uint64 `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcMessage struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type rpcResult struct {
	msg *rpcMessage
	err error
}

// MARK: NewDialer
// Returns a Dialer opening RPC clients over TCP.
func NewDialer(opts DialOptions, logger *internal.Logger) Dialer {
	return func(ctx context.Context, address string, port int, notify NotificationHandler) (ControlClient, error) {
		return Dial(ctx, address, port, opts, notify, logger)
	}
}

// MARK: Dial
func Dial(ctx context.Context, address string, port int, opts DialOptions, notify NotificationHandler, logger *internal.Logger) (*RPCClient, error) {
	dialer := net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: opts.KeepAlive,
	}

	target := net.JoinHostPort(address, strconv.Itoa(port))
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}

	return NewRPCClient(conn, notify, opts.WriteTimeout, logger), nil
}

// MARK: NewRPCClient
// Wraps an established connection and starts its receive loop.
func NewRPCClient(conn net.Conn, notify NotificationHandler, writeTimeout time.Duration, logger *internal.Logger) *RPCClient {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	c := &RPCClient{
		conn:         conn,
		notify:       notify,
		writeTimeout: writeTimeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
	go c.recvLoop()
	return c
}

// MARK: Call
// Sends one request and waits for its response. result may be nil.
func (c *RPCClient) Call(ctx context.Context, method string, params any, result any) error {
	select {
	case <-c.done:
		return c.doneErr()
	default:
	}

	id := c.seq.Add(1)
	data, err := json.Marshal(rpcRequest{ID: id, JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", method, err)
	}
	data = append(data, '\n')

	respChan := make(chan rpcResult, 1)
	c.pending.Store(id, respChan)
	defer c.pending.Delete(id)

	if err := c.write(data); err != nil {
		c.shutdown(err)
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case res := <-respChan:
		return decodeResult(method, res, result)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		select {
		case res := <-respChan:
			return decodeResult(method, res, result)
		default:
			return c.doneErr()
		}
	}
}

// MARK: write
func (c *RPCClient) write(data []byte) error {
	c.sending.Lock()
	defer c.sending.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(data)
	return err
}

// MARK: decodeResult
func decodeResult(method string, res rpcResult, result any) error {
	if res.err != nil {
		return res.err
	}
	if res.msg.Error != nil {
		return res.msg.Error
	}
	if result == nil || len(res.msg.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.msg.Result, result); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// MARK: recvLoop
// Reads messages until the connection fails, routing responses by id and passing notifications on.
func (c *RPCClient) recvLoop() {
	decoder := json.NewDecoder(c.conn)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			c.shutdown(err)
			return
		}
		c.dispatch(raw)
	}
}

// MARK: dispatch
func (c *RPCClient) dispatch(raw json.RawMessage) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			c.logger.Warn("Discarding malformed batch from control server", "error", err)
			return
		}
		for _, item := range batch {
			c.dispatch(item)
		}
		return
	}

	var msg rpcMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		c.logger.Warn("Discarding malformed message from control server", "error", err)
		return
	}

	if msg.ID == nil {
		if msg.Method != "" && c.notify != nil {
			c.notify(msg.Method, msg.Params)
		}
		return
	}

	if channel, ok := c.pending.LoadAndDelete(*msg.ID); ok {
		channel.(chan rpcResult) <- rpcResult{msg: &msg}
	}
}

// MARK: shutdown
// Marks the client dead exactly once and fails every pending call.
func (c *RPCClient) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.err = cause
		close(c.done)
		c.conn.Close()
		c.closeAllPending(cause)
	})
}

// MARK: closeAllPending
func (c *RPCClient) closeAllPending(cause error) {
	err := fmt.Errorf("%w: %v", errNotConnected, cause)
	c.pending.Range(func(key, value any) bool {
		if _, loaded := c.pending.LoadAndDelete(key); loaded {
			value.(chan rpcResult) <- rpcResult{err: err}
		}
		return true
	})
}

func (c *RPCClient) doneErr() error {
	if errors.Is(c.err, errClientClosed) {
		return errClientClosed
	}
	return fmt.Errorf("%w: %v", errNotConnected, c.err)
}

// MARK: Done
// Closed when the session ends for any reason.
func (c *RPCClient) Done() <-chan struct{} {
	return c.done
}

// MARK: Close
func (c *RPCClient) Close() error {
	c.shutdown(errClientClosed)
	return nil
}
