package snapcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/JPKribs/snapcontrol/internal"
)

// MARK: ParseAction
func ParseAction(name string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(name)))
	switch action {
	case ActionMute, ActionUnmute, ActionDelete, ActionSetLatency, ActionSetStream:
		return action, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", internal.ErrInvalidArgument, name)
	}
}

// MARK: Mutate
// Applies action to one client. The cache changes only after the server acknowledges,
// and reflects the values the server returned.
func (c *Connection) Mutate(ctx context.Context, entityID string, action Action, params MutateParams) error {
	if entityID == "" {
		return fmt.Errorf("%w: entity id is required", internal.ErrInvalidArgument)
	}
	action, err := ParseAction(string(action))
	if err != nil {
		return err
	}
	if action == ActionSetLatency && params.Latency == nil {
		return fmt.Errorf("%w: latency is required for %s", internal.ErrInvalidArgument, action)
	}
	if action == ActionSetStream && params.Stream == "" {
		return fmt.Errorf("%w: stream is required for %s", internal.ErrInvalidArgument, action)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	client, err := c.connectedClient()
	if err != nil {
		return err
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	switch action {
	case ActionMute, ActionUnmute:
		volume, err := client.SetMuted(opCtx, entityID, action == ActionMute)
		if err != nil {
			return c.classify(string(action), err)
		}
		return c.patch(func(s *Snapshot) *Snapshot {
			return s.withClient(entityID, func(cl *Client) {
				cl.Muted = volume.Muted
				cl.Volume = volume.Percent
			})
		})

	case ActionSetLatency:
		latency, err := client.SetLatency(opCtx, entityID, *params.Latency)
		if err != nil {
			return c.classify(string(action), err)
		}
		return c.patch(func(s *Snapshot) *Snapshot {
			return s.withClient(entityID, func(cl *Client) { cl.Latency = latency })
		})

	case ActionDelete:
		if err := client.DeleteClient(opCtx, entityID); err != nil {
			return c.classify(string(action), err)
		}
		return c.patch(func(s *Snapshot) *Snapshot { return s.withoutClient(entityID) })

	case ActionSetStream:
		groupID, err := c.groupOf(opCtx, client, entityID)
		if err != nil {
			return err
		}
		streamID, err := client.SetStream(opCtx, groupID, params.Stream)
		if err != nil {
			return c.classify(string(action), err)
		}
		return c.patch(func(s *Snapshot) *Snapshot { return s.withGroupStream(groupID, streamID) })
	}

	return nil
}

// MARK: groupOf
// Finds the group of a client, fetching status once when the cache does not know it.
func (c *Connection) groupOf(ctx context.Context, client ControlClient, clientID string) (string, error) {
	if groupID, ok := c.Snapshot().GroupOf(clientID); ok {
		return groupID, nil
	}

	snapshot, err := client.Status(ctx)
	if err != nil {
		return "", c.classify("refresh", err)
	}
	if err := c.ApplySnapshot(snapshot); err != nil {
		return "", err
	}

	groupID, ok := snapshot.GroupOf(clientID)
	if !ok {
		return "", fmt.Errorf("%w: no group for client %s on %s", internal.ErrNotFound, clientID, c.name)
	}
	return groupID, nil
}
