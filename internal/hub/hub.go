package hub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arthurdotwork/relay/internal/bus"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/group"
	"github.com/arthurdotwork/relay/internal/presence"
	"github.com/arthurdotwork/relay/internal/registry"
	"github.com/arthurdotwork/relay/internal/typing"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// State is the per-connection lifecycle state. Disconnected is terminal.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Hub is the transport-facing session protocol endpoint: connection
// lifecycle, group join/leave and the client-invoked actions, each validated
// against authorization state before taking effect.
type Hub struct {
	registry   *registry.Registry
	groups     *group.Store
	typing     *typing.Tracker
	presence   *presence.Service
	bus        *bus.Bus
	authorizer domain.Authorizer
	states     *xsync.MapOf[uuid.UUID, State]
}

func NewHub(
	reg *registry.Registry,
	groups *group.Store,
	tracker *typing.Tracker,
	pres *presence.Service,
	b *bus.Bus,
	authorizer domain.Authorizer,
) *Hub {
	return &Hub{
		registry:   reg,
		groups:     groups,
		typing:     tracker,
		presence:   pres,
		bus:        b,
		authorizer: authorizer,
		states:     xsync.NewMapOf[uuid.UUID, State](),
	}
}

// Open marks a freshly accepted transport session as Connecting. The session
// cannot invoke actions until Connect promotes it.
func (h *Hub) Open(sessionID uuid.UUID) {
	h.states.Store(sessionID, StateConnecting)
}

// Abandon discards a session that never completed Connect (token rejected,
// transition refused). It only drops the state entry: nothing was registered
// yet, so there is no presence or group work to undo.
func (h *Hub) Abandon(sessionID uuid.UUID) {
	h.states.Delete(sessionID)
}

// Connect promotes the session to Connected, registers it and, only when it
// is the user's first concurrent connection, publishes the online
// transition.
func (h *Hub) Connect(ctx context.Context, session domain.Session) error {
	if !h.transition(session.ID, StateConnecting, StateConnected) {
		return fmt.Errorf("%w: session %s is not connecting", domain.ErrValidation, session.ID)
	}

	first := h.registry.Add(session)
	h.presence.UpdateLastSeen(session.UserID)

	slog.DebugContext(ctx, "session connected", "user_id", session.UserID, "session_id", session.ID, "first", first)

	if first {
		h.bus.Publish(ctx, domain.OnlineStateChanged{UserID: session.UserID, Online: true})
	}

	return nil
}

// Disconnect is terminal and idempotent. All group memberships for the
// session are dropped; the offline transition is published only when the
// user's last connection closed.
func (h *Hub) Disconnect(ctx context.Context, session domain.Session) {
	previous, _ := h.states.LoadAndStore(session.ID, StateDisconnected)
	if previous == StateDisconnected {
		return
	}
	h.states.Delete(session.ID)

	h.groups.LeaveAll(session.ID)

	last := h.registry.Remove(session.UserID, session.ID)
	h.presence.UpdateLastSeen(session.UserID)

	slog.DebugContext(ctx, "session disconnected", "user_id", session.UserID, "session_id", session.ID, "last", last)

	if last {
		h.typing.Forget(session.UserID)
		h.bus.Publish(ctx, domain.OnlineStateChanged{UserID: session.UserID, Online: false})
	}
}

// State reports the session's current lifecycle state.
func (h *Hub) State(sessionID uuid.UUID) State {
	state, ok := h.states.Load(sessionID)
	if !ok {
		return StateDisconnected
	}

	return state
}

func (h *Hub) transition(sessionID uuid.UUID, from, to State) bool {
	var moved bool

	h.states.Compute(sessionID, func(current State, loaded bool) (State, bool) {
		if !loaded || current != from {
			return current, !loaded
		}

		moved = true

		return to, false
	})

	return moved
}

// Shutdown notifies every live connection that the server is closing.
// Per-session failures are logged and do not block the others.
func (h *Hub) Shutdown(ctx context.Context) {
	h.registry.Each(func(session domain.Session) {
		if err := session.Messenger.SendServerClosing(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to send server closing",
				"user_id", session.UserID,
				"session_id", session.ID,
				"error", err,
			)
		}
	})
}

// run is the uniform execution wrapper for client-invoked actions: the
// session must be Connected, known domain errors pass through typed, and
// anything unexpected is logged with the action name and surfaced as a
// generic internal error.
func (h *Hub) run(ctx context.Context, session domain.Session, action string, fn func(ctx context.Context) error) error {
	if h.State(session.ID) != StateConnected {
		return fmt.Errorf("%w: session is not connected", domain.ErrUnauthorized)
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}

	if domain.IsKnown(err) {
		return err
	}

	slog.ErrorContext(ctx, "action failed",
		"action", action,
		"user_id", session.UserID,
		"session_id", session.ID,
		"error", err,
	)

	return domain.ErrInternal
}
