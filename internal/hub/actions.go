package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/group"
	"github.com/arthurdotwork/relay/internal/presence"
	"github.com/google/uuid"
)

// JoinChannel checks authorization and adds the session to the channel
// group. Authorization is checked at join time only; broadcasts never
// re-check it.
func (h *Hub) JoinChannel(ctx context.Context, session domain.Session, channelID uuid.UUID) error {
	return h.run(ctx, session, "join_channel", func(ctx context.Context) error {
		if channelID == uuid.Nil {
			return fmt.Errorf("%w: missing channel id", domain.ErrValidation)
		}

		allowed, err := h.authorizer.CanAccessChannel(ctx, session.UserID, channelID)
		if err != nil {
			return fmt.Errorf("authorizer.CanAccessChannel: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: channel %s", domain.ErrForbidden, channelID)
		}

		h.groups.Join(group.Channel(channelID), session)

		return nil
	})
}

func (h *Hub) LeaveChannel(ctx context.Context, session domain.Session, channelID uuid.UUID) error {
	return h.run(ctx, session, "leave_channel", func(ctx context.Context) error {
		if channelID == uuid.Nil {
			return fmt.Errorf("%w: missing channel id", domain.ErrValidation)
		}

		h.groups.Leave(group.Channel(channelID), session.ID)

		return nil
	})
}

// StartTyping is rejected with a rate-limit error when the user signals
// faster than the configured interval. The typing record self-expires, so a
// lost stop signal heals on its own.
func (h *Hub) StartTyping(ctx context.Context, session domain.Session, channelID uuid.UUID) error {
	return h.run(ctx, session, "start_typing", func(ctx context.Context) error {
		if channelID == uuid.Nil {
			return fmt.Errorf("%w: missing channel id", domain.ErrValidation)
		}

		key := group.Channel(channelID)
		if !h.groups.Contains(key, session.ID) {
			return fmt.Errorf("%w: not joined to channel %s", domain.ErrForbidden, channelID)
		}

		if !h.typing.Allow(session.UserID) {
			return fmt.Errorf("%w: typing", domain.ErrTooManyRequests)
		}

		h.typing.Track(string(key), session.UserID)
		h.bus.Publish(ctx, domain.TypingStarted{
			ChannelID: channelID,
			UserID:    session.UserID,
			UserName:  session.UserName,
		})

		return nil
	})
}

func (h *Hub) StopTyping(ctx context.Context, session domain.Session, channelID uuid.UUID) error {
	return h.run(ctx, session, "stop_typing", func(ctx context.Context) error {
		if channelID == uuid.Nil {
			return fmt.Errorf("%w: missing channel id", domain.ErrValidation)
		}

		h.typing.Clear(string(group.Channel(channelID)), session.UserID)
		h.bus.Publish(ctx, domain.TypingStopped{ChannelID: channelID, UserID: session.UserID})

		return nil
	})
}

func (h *Hub) StartDirectTyping(ctx context.Context, session domain.Session, peerID uuid.UUID) error {
	return h.run(ctx, session, "start_direct_typing", func(ctx context.Context) error {
		if peerID == uuid.Nil {
			return fmt.Errorf("%w: missing peer id", domain.ErrValidation)
		}

		if !h.typing.Allow(session.UserID) {
			return fmt.Errorf("%w: typing", domain.ErrTooManyRequests)
		}

		h.typing.Track(directScope(session.UserID, peerID), session.UserID)
		h.bus.Publish(ctx, domain.DirectTypingStarted{
			SenderID:    session.UserID,
			SenderName:  session.UserName,
			RecipientID: peerID,
		})

		return nil
	})
}

func (h *Hub) StopDirectTyping(ctx context.Context, session domain.Session, peerID uuid.UUID) error {
	return h.run(ctx, session, "stop_direct_typing", func(ctx context.Context) error {
		if peerID == uuid.Nil {
			return fmt.Errorf("%w: missing peer id", domain.ErrValidation)
		}

		h.typing.Clear(directScope(session.UserID, peerID), session.UserID)
		h.bus.Publish(ctx, domain.DirectTypingStopped{SenderID: session.UserID, RecipientID: peerID})

		return nil
	})
}

// UpdatePresence mutates presence state, then publishes the change. The two
// steps stay separate so each is testable on its own.
func (h *Hub) UpdatePresence(ctx context.Context, session domain.Session, status, message string) error {
	return h.run(ctx, session, "update_presence", func(ctx context.Context) error {
		st := presence.Status(status)
		if !st.Valid() {
			return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
		}

		record := h.presence.UpdateStatus(session.UserID, st, message)
		h.bus.Publish(ctx, domain.PresenceUpdated{
			UserID:        record.UserID,
			Status:        string(record.Status),
			StatusMessage: record.StatusMessage,
		})

		return nil
	})
}

func (h *Hub) JoinCall(ctx context.Context, session domain.Session, callID uuid.UUID, withVideo bool) error {
	return h.run(ctx, session, "join_call", func(ctx context.Context) error {
		if callID == uuid.Nil {
			return fmt.Errorf("%w: missing call id", domain.ErrValidation)
		}

		allowed, err := h.authorizer.CanJoinCall(ctx, session.UserID, callID)
		if err != nil {
			return fmt.Errorf("authorizer.CanJoinCall: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: call %s", domain.ErrForbidden, callID)
		}

		h.groups.Join(group.Call(callID), session)
		h.bus.Publish(ctx, domain.ParticipantJoined{
			CallID:    callID,
			UserID:    session.UserID,
			UserName:  session.UserName,
			WithVideo: withVideo,
		})

		return nil
	})
}

func (h *Hub) LeaveCall(ctx context.Context, session domain.Session, callID uuid.UUID) error {
	return h.run(ctx, session, "leave_call", func(ctx context.Context) error {
		key := group.Call(callID)
		if !h.groups.Contains(key, session.ID) {
			return fmt.Errorf("%w: call %s", domain.ErrNotFound, callID)
		}

		h.groups.Leave(key, session.ID)
		h.bus.Publish(ctx, domain.ParticipantLeft{CallID: callID, UserID: session.UserID})

		return nil
	})
}

func (h *Hub) Mute(ctx context.Context, session domain.Session, callID uuid.UUID, muted bool) error {
	return h.run(ctx, session, "mute", func(ctx context.Context) error {
		if !h.groups.Contains(group.Call(callID), session.ID) {
			return fmt.Errorf("%w: call %s", domain.ErrNotFound, callID)
		}

		h.bus.Publish(ctx, domain.ParticipantMuted{CallID: callID, UserID: session.UserID, Muted: muted})

		return nil
	})
}

func (h *Hub) EnableVideo(ctx context.Context, session domain.Session, callID uuid.UUID, enabled bool) error {
	return h.run(ctx, session, "enable_video", func(ctx context.Context) error {
		if !h.groups.Contains(group.Call(callID), session.ID) {
			return fmt.Errorf("%w: call %s", domain.ErrNotFound, callID)
		}

		h.bus.Publish(ctx, domain.ParticipantVideoChanged{CallID: callID, UserID: session.UserID, Enabled: enabled})

		return nil
	})
}

// SendSignaling relays an opaque signaling payload to one peer. The sender
// must currently be in the call group; the payload is never inspected.
func (h *Hub) SendSignaling(ctx context.Context, session domain.Session, callID, peerID uuid.UUID, signalType string, payload json.RawMessage) error {
	return h.run(ctx, session, "send_signaling", func(ctx context.Context) error {
		if callID == uuid.Nil || peerID == uuid.Nil || signalType == "" {
			return fmt.Errorf("%w: missing call, peer or signal type", domain.ErrValidation)
		}

		if !h.groups.Contains(group.Call(callID), session.ID) {
			return fmt.Errorf("%w: not in call %s", domain.ErrForbidden, callID)
		}

		h.bus.Publish(ctx, domain.SignalingRelayed{
			CallID:      callID,
			SenderID:    session.UserID,
			RecipientID: peerID,
			SignalType:  signalType,
			Payload:     payload,
		})

		return nil
	})
}

// directScope yields one typing scope per unordered user pair.
func directScope(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}

	return "direct:" + a.String() + ":" + b.String()
}
