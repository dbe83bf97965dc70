package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// replay re-establishes server-side session state after a (re)connection:
// every previously joined channel and call is rejoined and the last known
// presence is re-asserted, all concurrently. Per-item failures are logged
// individually and never block the other items. Callers must hold cycleMu;
// a replay for a superseded connection generation is skipped so a stale
// replay can never land after a newer one.
func (c *Client) replay(ctx context.Context, gen uint64) {
	if gen != c.generation.Load() {
		slog.DebugContext(ctx, "skipping stale replay", "generation", gen)
		return
	}

	c.mu.Lock()
	channels := make([]uuid.UUID, 0, len(c.channels))
	for id := range c.channels {
		channels = append(channels, id)
	}
	calls := make(map[uuid.UUID]bool, len(c.calls))
	for id, withVideo := range c.calls {
		calls[id] = withVideo
	}
	presence := c.presence
	c.mu.Unlock()

	g := errgroup.Group{}

	for _, channelID := range channels {
		channelID := channelID
		g.Go(func() error {
			req := protocol.JoinChannelRequest{ChannelID: channelID}
			if err := c.invoke(ctx, protocol.ActionJoinChannel, req); err != nil {
				slog.ErrorContext(ctx, "failed to rejoin channel", "channel_id", channelID, "error", err)
			}

			return nil
		})
	}

	for callID, withVideo := range calls {
		callID, withVideo := callID, withVideo
		g.Go(func() error {
			req := protocol.JoinCallRequest{CallID: callID, WithVideo: withVideo}
			if err := c.invoke(ctx, protocol.ActionJoinCall, req); err != nil {
				slog.ErrorContext(ctx, "failed to rejoin call", "call_id", callID, "error", err)
			}

			return nil
		})
	}

	if presence != nil {
		g.Go(func() error {
			if err := c.invoke(ctx, protocol.ActionUpdatePresence, *presence); err != nil {
				slog.ErrorContext(ctx, "failed to re-assert presence", "error", err)
			}

			return nil
		})
	}

	_ = g.Wait()
}

// invoke is the throttled single-shot used during replay: no state mutation
// and no nested reconnect-and-retry.
func (c *Client) invoke(ctx context.Context, action protocol.Action, req any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("limiter.Wait: %w", err)
	}

	return c.invokeOnce(ctx, action, req)
}

type volatileSnapshot struct {
	channels map[uuid.UUID]struct{}
	calls    map[uuid.UUID]bool
	presence *protocol.UpdatePresenceRequest
}

// Cycle performs a deliberate disconnect/reconnect (e.g. a token refresh):
// it snapshots all volatile client state, drops the connection, runs fn,
// reconnects, restores the snapshot and replays it. The whole cycle holds
// the same guard as replay, so only one cycle may be in flight and no
// interleaved partial restore can occur. fn's error is returned after the
// session is re-established.
func (c *Client) Cycle(ctx context.Context, fn func(ctx context.Context) error) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	snapshot := c.snapshotVolatile()

	c.mu.Lock()
	c.suspended = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	fnErr := fn(ctx)

	gen, err := c.dialWithBackoff(ctx, c.newBackoff(ctx))

	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("dialWithBackoff: %w", err)
	}

	c.restoreVolatile(snapshot)
	c.replay(ctx, gen)

	if fnErr != nil {
		return fmt.Errorf("cycle: %w", fnErr)
	}

	return nil
}

func (c *Client) snapshotVolatile() volatileSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := volatileSnapshot{
		channels: make(map[uuid.UUID]struct{}, len(c.channels)),
		calls:    make(map[uuid.UUID]bool, len(c.calls)),
		presence: c.presence,
	}
	for id := range c.channels {
		snapshot.channels[id] = struct{}{}
	}
	for id, withVideo := range c.calls {
		snapshot.calls[id] = withVideo
	}

	return snapshot
}

func (c *Client) restoreVolatile(snapshot volatileSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.channels = snapshot.channels
	c.calls = snapshot.calls
	c.presence = snapshot.presence
}
