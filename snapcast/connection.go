package snapcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JPKribs/snapcontrol/internal"
)

// MARK: NewConnection
// Creates a DISCONNECTED connection for the server registered under name.
func NewConnection(name string, dialer Dialer, opts Options, logger *internal.Logger) *Connection {
	lifetime, cancel := context.WithCancel(context.Background())
	return &Connection{
		name:     name,
		dialer:   dialer,
		opts:     opts,
		logger:   logger,
		state:    StateDisconnected,
		lifetime: lifetime,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// MARK: Connect
// Dials the server and loads its initial state. When the dial fails and reconnection is
// enabled the connection moves to RECONNECTING, retries in the background and Connect
// returns ErrTransientUnavailable; otherwise the connection closes and ErrBackend is returned.
func (c *Connection) Connect(ctx context.Context, address string, port int) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected:
	case StateClosed:
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", internal.ErrConnectionClosed, c.name)
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: connect requires a disconnected connection, %s is %s", internal.ErrInvalidArgument, c.name, state)
	}
	c.state = StateConnecting
	c.address = address
	c.port = port
	c.mu.Unlock()

	c.logger.Info("Connecting to control server", "name", c.name, "address", address, "port", port)

	err := c.dial(ctx)
	if err == nil {
		if err := c.Refresh(ctx); err != nil {
			if errors.Is(err, internal.ErrConnectionClosed) {
				return err
			}
			c.logger.Warn("Initial status fetch failed", "name", c.name, "error", err)
		}
		return nil
	}

	if errors.Is(err, internal.ErrConnectionClosed) {
		return err
	}

	if c.opts.Reconnect && c.transition(StateConnecting, StateReconnecting) {
		c.logger.Warn("Control server unavailable, retrying in background", "name", c.name, "address", address, "port", port, "error", err)
		go c.reconnectLoop()
		return fmt.Errorf("%w: connecting to %s: %w", internal.ErrTransientUnavailable, c.name, err)
	}

	c.Close()
	if c.opts.Reconnect {
		return fmt.Errorf("%w: %s", internal.ErrConnectionClosed, c.name)
	}
	return fmt.Errorf("%w: connecting to %s: %w", internal.ErrBackend, c.name, err)
}

// MARK: dial
// Opens a control session and moves to CONNECTED.
func (c *Connection) dial(ctx context.Context) error {
	c.mu.RLock()
	address, port := c.address, c.port
	c.mu.RUnlock()

	dialCtx, cancel := c.opContext(ctx)
	defer cancel()

	client, err := c.dialer(dialCtx, address, port, c.handleNotification)
	if err != nil {
		if c.lifetime.Err() != nil {
			return fmt.Errorf("%w: %s", internal.ErrConnectionClosed, c.name)
		}
		return err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		client.Close()
		return fmt.Errorf("%w: %s", internal.ErrConnectionClosed, c.name)
	}
	c.client = client
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("Connected to control server", "name", c.name, "address", address, "port", port)
	go c.watch(client)
	return nil
}

// MARK: watch
// Waits for the session to drop and starts reconnecting, or closes when reconnection is off.
func (c *Connection) watch(client ControlClient) {
	select {
	case <-client.Done():
	case <-c.lifetime.Done():
		return
	}

	c.mu.Lock()
	if c.client != client || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.client = nil

	if !c.opts.Reconnect {
		c.mu.Unlock()
		c.logger.Warn("Lost connection to control server", "name", c.name)
		c.Close()
		return
	}

	c.state = StateReconnecting
	c.mu.Unlock()

	c.logger.Warn("Lost connection to control server, reconnecting", "name", c.name)
	client.Close()
	c.reconnectLoop()
}

// MARK: transition
func (c *Connection) transition(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// MARK: opContext
// Derives a context that also ends when the connection closes, bounded by the request timeout
// when the caller set no deadline.
func (c *Connection) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var opCtx context.Context
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok && c.opts.RequestTimeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
	} else {
		opCtx, cancel = context.WithCancel(ctx)
	}

	stop := context.AfterFunc(c.lifetime, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// MARK: connectedClient
func (c *Connection) connectedClient() (ControlClient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.state {
	case StateConnected:
		return c.client, nil
	case StateClosed:
		return nil, fmt.Errorf("%w: %s", internal.ErrConnectionClosed, c.name)
	default:
		return nil, fmt.Errorf("%w: %s is %s", internal.ErrTransientUnavailable, c.name, c.state)
	}
}

// MARK: classify
// Maps a failed control operation onto an error kind.
func (c *Connection) classify(op string, err error) error {
	if c.lifetime.Err() != nil || errors.Is(err, internal.ErrConnectionClosed) {
		return fmt.Errorf("%w: %s interrupted on %s", internal.ErrConnectionClosed, op, c.name)
	}
	return fmt.Errorf("%w: %s on %s: %w", internal.ErrBackend, op, c.name, err)
}

// MARK: Refresh
// Replaces the cached state with a full status fetch. Valid only while CONNECTED.
func (c *Connection) Refresh(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	client, err := c.connectedClient()
	if err != nil {
		return err
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	snapshot, err := client.Status(opCtx)
	if err != nil {
		return c.classify("refresh", err)
	}
	return c.ApplySnapshot(snapshot)
}

// MARK: ApplySnapshot
// Publishes snapshot as the cached state.
func (c *Connection) ApplySnapshot(snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", internal.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return fmt.Errorf("%w: %s", internal.ErrConnectionClosed, c.name)
	}
	c.snapshot = snapshot
	c.syncedAt = time.Now()
	return nil
}

// MARK: patch
// Swaps in a snapshot derived from the current one.
func (c *Connection) patch(fn func(*Snapshot) *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return fmt.Errorf("%w: %s", internal.ErrConnectionClosed, c.name)
	}
	if c.snapshot != nil {
		c.snapshot = fn(c.snapshot)
	}
	return nil
}

// MARK: Close
// Moves to CLOSED from any state, cancelling retries and in-flight operations. Idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		previous := c.state
		c.state = StateClosed
		client := c.client
		c.client = nil
		c.mu.Unlock()

		c.cancel()
		close(c.done)

		if client != nil {
			c.closeErr = client.Close()
		}
		c.logger.Info("Closed control connection", "name", c.name, "previous_state", previous.String())
	})
	return c.closeErr
}

// MARK: Accessors

func (c *Connection) Name() string {
	return c.name
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns the cached state; never nil.
func (c *Connection) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return NewSnapshot(nil, nil)
	}
	return c.snapshot
}

func (c *Connection) LastSyncedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syncedAt
}

func (c *Connection) Address() (string, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address, c.port
}

// Done is closed once the connection reaches CLOSED.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}
