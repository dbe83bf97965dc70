package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	ErrDisconnected = errors.New("not connected")
	ErrClosed       = errors.New("client closed")
	ErrTimeout      = errors.New("invocation timed out")
)

// Options tunes the client. Zero values fall back to the defaults below.
type Options struct {
	URL   string
	Token string

	// Reconnection policy: delay = min(MaxBackoff, InitialBackoff*2^attempt)
	// ± Jitter. MaxAttempts of zero retries forever.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64
	MaxAttempts    uint64

	// RetryWindow bounds the single reconnect-and-retry an invocation is
	// allowed before its error propagates to the caller.
	RetryWindow   time.Duration
	InvokeTimeout time.Duration

	// Outgoing call throttle.
	CallRate  rate.Limit
	CallBurst int

	Dialer *websocket.Dialer
}

func (o *Options) withDefaults() {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 60 * time.Second
	}
	if o.Jitter <= 0 {
		o.Jitter = 0.2
	}
	if o.RetryWindow <= 0 {
		o.RetryWindow = 15 * time.Second
	}
	if o.InvokeTimeout <= 0 {
		o.InvokeTimeout = 10 * time.Second
	}
	if o.CallRate <= 0 {
		o.CallRate = rate.Limit(25)
	}
	if o.CallBurst <= 0 {
		o.CallBurst = 50
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Client maintains a persistent session to the gateway: it reconnects with
// capped, jittered exponential backoff, replays group memberships and
// presence after every reconnection, throttles outgoing calls, and routes
// inbound events to the registered handler sets.
type Client struct {
	opts     Options
	limiter  *rate.Limiter
	handlers []*Handlers

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[string]chan protocol.ServerFrame
	closed    bool
	suspended bool

	// Volatile session state replayed after reconnection.
	channels map[uuid.UUID]struct{}
	calls    map[uuid.UUID]bool
	presence *protocol.UpdatePresenceRequest

	// cycleMu is the single guard for replay and for the snapshot/restore
	// pair: only one such cycle may be in flight.
	cycleMu    sync.Mutex
	generation atomic.Uint64

	writeMu sync.Mutex
}

func New(opts Options, handlers ...*Handlers) *Client {
	opts.withDefaults()

	return &Client{
		opts:     opts,
		limiter:  rate.NewLimiter(opts.CallRate, opts.CallBurst),
		handlers: handlers,
		channels: make(map[uuid.UUID]struct{}),
		calls:    make(map[uuid.UUID]bool),
	}
}

// Connect dials until it succeeds (per the retry policy) and performs the
// initial replay. It returns once the session is established.
func (c *Client) Connect(ctx context.Context) error {
	gen, err := c.dialWithBackoff(ctx, c.newBackoff(ctx))
	if err != nil {
		return fmt.Errorf("dialWithBackoff: %w", err)
	}

	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()
	c.replay(ctx, gen)

	return nil
}

// Close tears the session down for good; no reconnection follows.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.failPending()
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

// SetToken swaps the credential used on the next dial. Pair it with Cycle
// for a live token refresh.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Token = token
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialBackoff
	bo.MaxInterval = c.opts.MaxBackoff
	bo.RandomizationFactor = c.opts.Jitter
	bo.MaxElapsedTime = 0

	var policy backoff.BackOff = bo
	if c.opts.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(bo, c.opts.MaxAttempts)
	}

	return backoff.WithContext(policy, ctx)
}

func (c *Client) dialWithBackoff(ctx context.Context, policy backoff.BackOff) (uint64, error) {
	var gen uint64

	operation := func() error {
		g, err := c.dial(ctx)
		if err != nil {
			slog.WarnContext(ctx, "connection attempt failed", "error", err)
			return err
		}

		gen = g

		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return 0, err
	}

	return gen, nil
}

func (c *Client) dial(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, backoff.Permanent(ErrClosed)
	}
	token := c.opts.Token
	c.mu.Unlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return 0, fmt.Errorf("dialer.DialContext: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return 0, backoff.Permanent(ErrClosed)
	}
	c.conn = conn
	c.pending = make(map[string]chan protocol.ServerFrame)
	gen := c.generation.Add(1)
	c.mu.Unlock()

	go c.readLoop(ctx, conn, gen)

	return gen, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		var frame protocol.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			c.handleDisconnect(ctx, conn, err)
			return
		}

		switch frame.Op {
		case protocol.OpReply, protocol.OpError:
			c.resolve(frame)
		case protocol.OpEvent:
			for _, h := range c.handlers {
				h.Handle(ctx, frame)
			}
		case protocol.OpClosing:
			slog.InfoContext(ctx, "server is closing", "generation", gen)
		}
	}
}

func (c *Client) resolve(frame protocol.ServerFrame) {
	c.mu.Lock()
	ch, ok := c.pending[frame.ReplyTo]
	if ok {
		delete(c.pending, frame.ReplyTo)
	}
	c.mu.Unlock()

	if ok {
		ch <- frame
	}
}

// handleDisconnect observes the Connected -> Disconnected transition and
// kicks off a background reconnect unless the drop was deliberate.
func (c *Client) handleDisconnect(ctx context.Context, conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.failPending()
	suspended, closed := c.suspended, c.closed
	c.mu.Unlock()

	if suspended || closed {
		return
	}

	slog.WarnContext(ctx, "connection lost, reconnecting", "error", err)

	go c.reconnect(ctx)
}

func (c *Client) reconnect(ctx context.Context) {
	gen, err := c.dialWithBackoff(ctx, c.newBackoff(ctx))
	if err != nil {
		slog.ErrorContext(ctx, "reconnection abandoned", "error", err)
		return
	}

	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()
	c.replay(ctx, gen)
}

// failPending aborts all in-flight invocations. Callers must hold c.mu.
func (c *Client) failPending() {
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call runs one throttled invocation. A transport-level failure triggers
// exactly one bounded reconnect-and-retry before the error propagates.
func (c *Client) call(ctx context.Context, action protocol.Action, req any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("limiter.Wait: %w", err)
	}

	err := c.invokeOnce(ctx, action, req)
	if err == nil || !errors.Is(err, ErrDisconnected) {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialBackoff
	bo.MaxInterval = c.opts.MaxBackoff
	bo.RandomizationFactor = c.opts.Jitter
	bo.MaxElapsedTime = c.opts.RetryWindow

	gen, derr := c.dialWithBackoff(ctx, backoff.WithContext(bo, ctx))
	if derr != nil {
		return fmt.Errorf("reconnect failed after %w", err)
	}

	c.cycleMu.Lock()
	c.replay(ctx, gen)
	c.cycleMu.Unlock()

	return c.invokeOnce(ctx, action, req)
}

// invokeOnce sends one frame and waits for its correlated reply.
func (c *Client) invokeOnce(ctx context.Context, action protocol.Action, req any) error {
	var data json.RawMessage
	if req != nil {
		encoded, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		data = encoded
	}

	id := uuid.NewString()
	ch := make(chan protocol.ServerFrame, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	frame := protocol.ClientFrame{ID: id, Action: action, Data: data}
	if err := c.write(conn, frame); err != nil {
		c.dropPending(id)
		return fmt.Errorf("%w: %s", ErrDisconnected, err)
	}

	timer := time.NewTimer(c.opts.InvokeTimeout)
	defer timer.Stop()

	select {
	case reply, ok := <-ch:
		if !ok {
			return ErrDisconnected
		}
		if reply.Op == protocol.OpError && reply.Error != nil {
			return reply.Error.DomainError()
		}

		return nil
	case <-timer.C:
		c.dropPending(id)
		return fmt.Errorf("%s: %w", action, ErrTimeout)
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	}
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Client) write(conn *websocket.Conn, frame protocol.ClientFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("conn.SetWriteDeadline: %w", err)
	}

	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("conn.WriteJSON: %w", err)
	}

	return nil
}

func (c *Client) JoinChannel(ctx context.Context, channelID uuid.UUID) error {
	if err := c.call(ctx, protocol.ActionJoinChannel, protocol.JoinChannelRequest{ChannelID: channelID}); err != nil {
		return err
	}

	c.mu.Lock()
	c.channels[channelID] = struct{}{}
	c.mu.Unlock()

	return nil
}

func (c *Client) LeaveChannel(ctx context.Context, channelID uuid.UUID) error {
	if err := c.call(ctx, protocol.ActionLeaveChannel, protocol.LeaveChannelRequest{ChannelID: channelID}); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.channels, channelID)
	c.mu.Unlock()

	return nil
}

func (c *Client) StartTyping(ctx context.Context, channelID uuid.UUID) error {
	return c.call(ctx, protocol.ActionStartTyping, protocol.StartTypingRequest{ChannelID: channelID})
}

func (c *Client) StopTyping(ctx context.Context, channelID uuid.UUID) error {
	return c.call(ctx, protocol.ActionStopTyping, protocol.StopTypingRequest{ChannelID: channelID})
}

func (c *Client) StartDirectTyping(ctx context.Context, peerID uuid.UUID) error {
	return c.call(ctx, protocol.ActionStartDirectTyping, protocol.StartDirectTypingRequest{PeerID: peerID})
}

func (c *Client) StopDirectTyping(ctx context.Context, peerID uuid.UUID) error {
	return c.call(ctx, protocol.ActionStopDirectTyping, protocol.StopDirectTypingRequest{PeerID: peerID})
}

func (c *Client) UpdatePresence(ctx context.Context, status, message string) error {
	req := protocol.UpdatePresenceRequest{Status: status, Message: message}
	if err := c.call(ctx, protocol.ActionUpdatePresence, req); err != nil {
		return err
	}

	c.mu.Lock()
	c.presence = &req
	c.mu.Unlock()

	return nil
}

func (c *Client) JoinCall(ctx context.Context, callID uuid.UUID, withVideo bool) error {
	if err := c.call(ctx, protocol.ActionJoinCall, protocol.JoinCallRequest{CallID: callID, WithVideo: withVideo}); err != nil {
		return err
	}

	c.mu.Lock()
	c.calls[callID] = withVideo
	c.mu.Unlock()

	return nil
}

func (c *Client) LeaveCall(ctx context.Context, callID uuid.UUID) error {
	if err := c.call(ctx, protocol.ActionLeaveCall, protocol.LeaveCallRequest{CallID: callID}); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.calls, callID)
	c.mu.Unlock()

	return nil
}

func (c *Client) Mute(ctx context.Context, callID uuid.UUID, muted bool) error {
	return c.call(ctx, protocol.ActionMute, protocol.MuteRequest{CallID: callID, Muted: muted})
}

func (c *Client) EnableVideo(ctx context.Context, callID uuid.UUID, enabled bool) error {
	return c.call(ctx, protocol.ActionEnableVideo, protocol.EnableVideoRequest{CallID: callID, Enabled: enabled})
}

func (c *Client) SendSignaling(ctx context.Context, callID, peerID uuid.UUID, signalType string, payload json.RawMessage) error {
	return c.call(ctx, protocol.ActionSendSignaling, protocol.SendSignalingRequest{
		CallID:     callID,
		PeerID:     peerID,
		SignalType: signalType,
		Payload:    payload,
	})
}
