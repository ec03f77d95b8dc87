package snapcast

import (
	"errors"
	"time"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/cenkalti/backoff"
)

// MARK: newReconnectPolicy
// Exponential backoff between InitialInterval and MaxInterval, bounded by the connection lifetime.
func (c *Connection) newReconnectPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	if c.opts.ReconnectInitial > 0 {
		policy.InitialInterval = c.opts.ReconnectInitial
	}
	if c.opts.ReconnectMax > 0 {
		policy.MaxInterval = c.opts.ReconnectMax
	}
	policy.MaxElapsedTime = c.opts.ReconnectMaxElapsed
	policy.Reset()

	return backoff.WithContext(policy, c.lifetime)
}

// MARK: reconnectLoop
// Redials while RECONNECTING. Exhausting the policy closes the connection for good.
func (c *Connection) reconnectLoop() {
	attempt := 0
	operation := func() error {
		attempt++
		if c.lifetime.Err() != nil {
			return backoff.Permanent(internal.ErrConnectionClosed)
		}

		err := c.dial(c.lifetime)
		if errors.Is(err, internal.ErrConnectionClosed) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		c.logger.Debug("Reconnect attempt failed", "name", c.name, "attempt", attempt, "retry_in", next.String(), "error", err)
	}

	if err := backoff.RetryNotify(operation, c.newReconnectPolicy(), notify); err != nil {
		if c.lifetime.Err() != nil {
			return
		}
		c.logger.Error("Giving up on control server", "name", c.name, "attempts", attempt, "error", err)
		c.Close()
		return
	}

	c.logger.Info("Reconnected to control server", "name", c.name, "attempts", attempt)
	if err := c.Refresh(c.lifetime); err != nil && !errors.Is(err, internal.ErrConnectionClosed) {
		c.logger.Warn("Status fetch after reconnect failed", "name", c.name, "error", err)
	}
}
