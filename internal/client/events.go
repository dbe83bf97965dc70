package client

import (
	"context"
	"log/slog"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/protocol"
)

// Handlers is the explicit, enumerated mapping from inbound event to typed
// callback. Nil callbacks are skipped. Every invocation is fault-isolated:
// a panicking handler is recovered and logged and never affects the others
// or the read loop.
type Handlers struct {
	MessageReceived func(ctx context.Context, ev domain.MessageReceived)
	MessageUpdated  func(ctx context.Context, ev domain.MessageUpdated)
	MessageDeleted  func(ctx context.Context, ev domain.MessageDeleted)

	DirectMessageReceived func(ctx context.Context, ev domain.DirectMessageReceived)
	DirectMessageUpdated  func(ctx context.Context, ev domain.DirectMessageUpdated)
	DirectMessageDeleted  func(ctx context.Context, ev domain.DirectMessageDeleted)

	TypingStarted       func(ctx context.Context, ev domain.TypingStarted)
	TypingStopped       func(ctx context.Context, ev domain.TypingStopped)
	DirectTypingStarted func(ctx context.Context, ev domain.DirectTypingStarted)
	DirectTypingStopped func(ctx context.Context, ev domain.DirectTypingStopped)

	PresenceUpdated    func(ctx context.Context, ev domain.PresenceUpdated)
	OnlineStateChanged func(ctx context.Context, ev domain.OnlineStateChanged)

	CallStarted             func(ctx context.Context, ev domain.CallStarted)
	CallEnded               func(ctx context.Context, ev domain.CallEnded)
	ParticipantJoined       func(ctx context.Context, ev domain.ParticipantJoined)
	ParticipantLeft         func(ctx context.Context, ev domain.ParticipantLeft)
	ParticipantMuted        func(ctx context.Context, ev domain.ParticipantMuted)
	ParticipantVideoChanged func(ctx context.Context, ev domain.ParticipantVideoChanged)
	SignalingRelayed        func(ctx context.Context, ev domain.SignalingRelayed)

	ReactionAdded         func(ctx context.Context, ev domain.ReactionAdded)
	ReactionRemoved       func(ctx context.Context, ev domain.ReactionRemoved)
	DirectReactionAdded   func(ctx context.Context, ev domain.DirectReactionAdded)
	DirectReactionRemoved func(ctx context.Context, ev domain.DirectReactionRemoved)

	MessagePinned   func(ctx context.Context, ev domain.MessagePinned)
	MessageUnpinned func(ctx context.Context, ev domain.MessageUnpinned)
	ReplyAdded      func(ctx context.Context, ev domain.ReplyAdded)

	Notification func(ctx context.Context, ev domain.Notification)
}

// Handle decodes and routes one event frame. Unknown events are logged and
// dropped; a gateway newer than the client must not break it.
func (h *Handlers) Handle(ctx context.Context, frame protocol.ServerFrame) {
	event, err := protocol.DecodeEvent(frame.Event, frame.Data)
	if err != nil {
		slog.DebugContext(ctx, "dropping undecodable event", "event_type", frame.Event, "error", err)
		return
	}

	switch ev := event.(type) {
	case domain.MessageReceived:
		invoke(ctx, h.MessageReceived, ev)
	case domain.MessageUpdated:
		invoke(ctx, h.MessageUpdated, ev)
	case domain.MessageDeleted:
		invoke(ctx, h.MessageDeleted, ev)
	case domain.DirectMessageReceived:
		invoke(ctx, h.DirectMessageReceived, ev)
	case domain.DirectMessageUpdated:
		invoke(ctx, h.DirectMessageUpdated, ev)
	case domain.DirectMessageDeleted:
		invoke(ctx, h.DirectMessageDeleted, ev)
	case domain.TypingStarted:
		invoke(ctx, h.TypingStarted, ev)
	case domain.TypingStopped:
		invoke(ctx, h.TypingStopped, ev)
	case domain.DirectTypingStarted:
		invoke(ctx, h.DirectTypingStarted, ev)
	case domain.DirectTypingStopped:
		invoke(ctx, h.DirectTypingStopped, ev)
	case domain.PresenceUpdated:
		invoke(ctx, h.PresenceUpdated, ev)
	case domain.OnlineStateChanged:
		invoke(ctx, h.OnlineStateChanged, ev)
	case domain.CallStarted:
		invoke(ctx, h.CallStarted, ev)
	case domain.CallEnded:
		invoke(ctx, h.CallEnded, ev)
	case domain.ParticipantJoined:
		invoke(ctx, h.ParticipantJoined, ev)
	case domain.ParticipantLeft:
		invoke(ctx, h.ParticipantLeft, ev)
	case domain.ParticipantMuted:
		invoke(ctx, h.ParticipantMuted, ev)
	case domain.ParticipantVideoChanged:
		invoke(ctx, h.ParticipantVideoChanged, ev)
	case domain.SignalingRelayed:
		invoke(ctx, h.SignalingRelayed, ev)
	case domain.ReactionAdded:
		invoke(ctx, h.ReactionAdded, ev)
	case domain.ReactionRemoved:
		invoke(ctx, h.ReactionRemoved, ev)
	case domain.DirectReactionAdded:
		invoke(ctx, h.DirectReactionAdded, ev)
	case domain.DirectReactionRemoved:
		invoke(ctx, h.DirectReactionRemoved, ev)
	case domain.MessagePinned:
		invoke(ctx, h.MessagePinned, ev)
	case domain.MessageUnpinned:
		invoke(ctx, h.MessageUnpinned, ev)
	case domain.ReplyAdded:
		invoke(ctx, h.ReplyAdded, ev)
	case domain.Notification:
		invoke(ctx, h.Notification, ev)
	}
}

func invoke[T domain.Event](ctx context.Context, fn func(context.Context, T), ev T) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event handler panicked", "event_type", ev.Type(), "panic", r)
		}
	}()

	fn(ctx, ev)
}
