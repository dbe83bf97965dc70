package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arthurdotwork/relay/internal/client"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeGateway is a minimal protocol endpoint: it records every inbound frame
// and acknowledges it, unless the action was configured to fail.
type fakeGateway struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  []*websocket.Conn
	tokens []string
	frames []protocol.ClientFrame
	errors map[protocol.Action]*protocol.Error
}

func newGateway(t *testing.T) *fakeGateway {
	t.Helper()

	g := &fakeGateway{errors: make(map[protocol.Action]*protocol.Error)}
	g.srv = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.srv.Close)

	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	g.mu.Lock()
	g.conns = append(g.conns, conn)
	g.tokens = append(g.tokens, r.Header.Get("Authorization"))
	g.mu.Unlock()

	for {
		var frame protocol.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		g.mu.Lock()
		g.frames = append(g.frames, frame)
		wireErr := g.errors[frame.Action]
		g.mu.Unlock()

		reply := protocol.ServerFrame{Op: protocol.OpReply, ReplyTo: frame.ID}
		if wireErr != nil {
			reply = protocol.ServerFrame{Op: protocol.OpError, ReplyTo: frame.ID, Error: wireErr}
		}

		_ = conn.WriteJSON(reply)
	}
}

func (g *fakeGateway) failWith(action protocol.Action, wireErr *protocol.Error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errors[action] = wireErr
}

func (g *fakeGateway) recorded(action protocol.Action) []protocol.ClientFrame {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []protocol.ClientFrame
	for _, frame := range g.frames {
		if frame.Action == action {
			out = append(out, frame)
		}
	}

	return out
}

func (g *fakeGateway) push(t *testing.T, event domain.Event) {
	t.Helper()

	frame, err := protocol.NewEventFrame(event)
	require.NoError(t, err)

	g.mu.Lock()
	conn := g.conns[len(g.conns)-1]
	g.mu.Unlock()

	require.NoError(t, conn.WriteJSON(frame))
}

func (g *fakeGateway) dropConnections() {
	g.mu.Lock()
	conns := g.conns
	g.conns = nil
	g.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (g *fakeGateway) connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.tokens)
}

func newClient(t *testing.T, g *fakeGateway, handlers ...*client.Handlers) *client.Client {
	t.Helper()

	c := client.New(client.Options{
		URL:            g.url(),
		Token:          "token",
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		RetryWindow:    2 * time.Second,
		InvokeTimeout:  2 * time.Second,
		CallRate:       1000,
		CallBurst:      1000,
	}, handlers...)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestClient_Invoke(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should invoke an action and resolve its reply", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		c := newClient(t, g)
		require.NoError(t, c.Connect(ctx))

		channelID := uuid.New()
		require.NoError(t, c.JoinChannel(ctx, channelID))

		joins := g.recorded(protocol.ActionJoinChannel)
		require.Len(t, joins, 1)
		require.NotEmpty(t, joins[0].ID)
	})

	t.Run("it should surface gateway rejections as typed domain errors", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		g.failWith(protocol.ActionJoinChannel, &protocol.Error{Code: protocol.CodeForbidden, Message: "forbidden"})

		c := newClient(t, g)
		require.NoError(t, c.Connect(ctx))

		require.ErrorIs(t, c.JoinChannel(ctx, uuid.New()), domain.ErrForbidden)
	})

	t.Run("it should fail fast once the client is closed", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		c := newClient(t, g)
		require.NoError(t, c.Connect(ctx))
		require.NoError(t, c.Close())

		require.Error(t, c.JoinChannel(ctx, uuid.New()))
	})
}

func TestClient_Events(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should dispatch pushed events to the registered handlers", func(t *testing.T) {
		t.Parallel()

		received := make(chan domain.TypingStarted, 1)
		handlers := &client.Handlers{
			TypingStarted: func(_ context.Context, ev domain.TypingStarted) {
				received <- ev
			},
		}

		g := newGateway(t)
		c := newClient(t, g, handlers)
		require.NoError(t, c.Connect(ctx))

		event := domain.TypingStarted{ChannelID: uuid.New(), UserID: uuid.New(), UserName: "arthur"}
		g.push(t, event)

		select {
		case ev := <-received:
			require.Equal(t, event, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("event was never dispatched")
		}
	})

	t.Run("it should drop events it does not understand", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		c := newClient(t, g, &client.Handlers{})
		require.NoError(t, c.Connect(ctx))

		g.mu.Lock()
		conn := g.conns[len(g.conns)-1]
		g.mu.Unlock()

		require.NoError(t, conn.WriteJSON(protocol.ServerFrame{Op: protocol.OpEvent, Event: "message.exploded"}))

		// The connection must survive the unknown event.
		require.NoError(t, c.StopTyping(ctx, uuid.New()))
	})
}

func TestClient_Reconnect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should reconnect and replay joined channels", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		c := newClient(t, g)
		require.NoError(t, c.Connect(ctx))

		channelID := uuid.New()
		require.NoError(t, c.JoinChannel(ctx, channelID))

		g.dropConnections()

		require.Eventually(t, func() bool {
			return len(g.recorded(protocol.ActionJoinChannel)) >= 2
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("it should re-assert presence after reconnection", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		c := newClient(t, g)
		require.NoError(t, c.Connect(ctx))

		require.NoError(t, c.UpdatePresence(ctx, "away", "stepped out"))

		g.dropConnections()

		require.Eventually(t, func() bool {
			return len(g.recorded(protocol.ActionUpdatePresence)) >= 2
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("it should not replay channels it has left", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		c := newClient(t, g)
		require.NoError(t, c.Connect(ctx))

		channelID := uuid.New()
		require.NoError(t, c.JoinChannel(ctx, channelID))
		require.NoError(t, c.LeaveChannel(ctx, channelID))

		g.dropConnections()

		require.Eventually(t, func() bool {
			return g.connections() >= 2
		}, 5*time.Second, 10*time.Millisecond)

		// Give a potential stray replay a chance to land before asserting.
		time.Sleep(100 * time.Millisecond)
		require.Len(t, g.recorded(protocol.ActionJoinChannel), 1)
	})
}

func TestClient_Cycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should swap the token and re-establish the session", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		c := newClient(t, g)
		require.NoError(t, c.Connect(ctx))

		channelID := uuid.New()
		require.NoError(t, c.JoinChannel(ctx, channelID))

		err := c.Cycle(ctx, func(ctx context.Context) error {
			c.SetToken("refreshed")
			return nil
		})
		require.NoError(t, err)

		g.mu.Lock()
		lastToken := g.tokens[len(g.tokens)-1]
		g.mu.Unlock()
		require.Equal(t, "Bearer refreshed", lastToken)

		require.Eventually(t, func() bool {
			return len(g.recorded(protocol.ActionJoinChannel)) >= 2
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("it should return the callback error after reconnecting", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t)
		c := newClient(t, g)
		require.NoError(t, c.Connect(ctx))

		err := c.Cycle(ctx, func(ctx context.Context) error {
			return domain.ErrUnauthorized
		})
		require.ErrorIs(t, err, domain.ErrUnauthorized)

		// The session must still be usable.
		require.NoError(t, c.StopTyping(ctx, uuid.New()))
	})
}
