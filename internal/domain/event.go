package domain

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the concrete type of a domain event on the bus and on
// the wire. The set is closed: the dispatcher and the client codec both
// enumerate it explicitly.
type EventType string

const (
	EventMessageReceived EventType = "message.received"
	EventMessageUpdated  EventType = "message.updated"
	EventMessageDeleted  EventType = "message.deleted"

	EventDirectMessageReceived EventType = "direct_message.received"
	EventDirectMessageUpdated  EventType = "direct_message.updated"
	EventDirectMessageDeleted  EventType = "direct_message.deleted"

	EventTypingStarted       EventType = "typing.started"
	EventTypingStopped       EventType = "typing.stopped"
	EventDirectTypingStarted EventType = "direct_typing.started"
	EventDirectTypingStopped EventType = "direct_typing.stopped"

	EventPresenceUpdated    EventType = "presence.updated"
	EventOnlineStateChanged EventType = "presence.online_state_changed"

	EventCallStarted             EventType = "call.started"
	EventCallEnded               EventType = "call.ended"
	EventParticipantJoined       EventType = "call.participant_joined"
	EventParticipantLeft         EventType = "call.participant_left"
	EventParticipantMuted        EventType = "call.participant_muted"
	EventParticipantVideoChanged EventType = "call.participant_video_changed"
	EventSignalingRelayed        EventType = "call.signaling"

	EventReactionAdded         EventType = "reaction.added"
	EventReactionRemoved       EventType = "reaction.removed"
	EventDirectReactionAdded   EventType = "direct_reaction.added"
	EventDirectReactionRemoved EventType = "direct_reaction.removed"

	EventMessagePinned   EventType = "message.pinned"
	EventMessageUnpinned EventType = "message.unpinned"
	EventReplyAdded      EventType = "reply.added"

	EventNotification EventType = "notification"
)

// Event is an immutable, typed payload describing something that already
// happened. Events carry denormalized data (sender names, previews) so the
// dispatcher never re-queries for basic fan-out.
type Event interface {
	Type() EventType
}

// gatewayOriginated is the closed set of event types the gateway itself
// publishes (typing, presence, call participation, signaling). Everything
// else originates in external domain services and reaches the gateway over
// the redis ingress.
var gatewayOriginated = []EventType{
	EventTypingStarted,
	EventTypingStopped,
	EventDirectTypingStarted,
	EventDirectTypingStopped,
	EventPresenceUpdated,
	EventOnlineStateChanged,
	EventParticipantJoined,
	EventParticipantLeft,
	EventParticipantMuted,
	EventParticipantVideoChanged,
	EventSignalingRelayed,
}

// GatewayOriginated reports whether the event type is produced by the
// gateway itself. The egress bridge forwards exactly this set to redis and
// the redis ingress drops it, so a forwarded event can never loop back onto
// the bus.
func (t EventType) GatewayOriginated() bool {
	return slices.Contains(gatewayOriginated, t)
}

// GatewayOriginatedTypes returns the gateway-originated event types.
func GatewayOriginatedTypes() []EventType {
	return slices.Clone(gatewayOriginated)
}

// Message is a channel message as rendered for push delivery.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	ChannelID  uuid.UUID  `json:"channel_id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	SenderName string     `json:"sender_name"`
	Content    string     `json:"content"`
	SentAt     time.Time  `json:"sent_at"`
	ReplyTo    *uuid.UUID `json:"reply_to,omitempty"`
}

// DirectMessage is a user-to-user message as rendered for push delivery.
type DirectMessage struct {
	ID          uuid.UUID `json:"id"`
	SenderID    uuid.UUID `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Content     string    `json:"content"`
	SentAt      time.Time `json:"sent_at"`
}

type MessageReceived struct {
	Message Message `json:"message"`
}

func (MessageReceived) Type() EventType { return EventMessageReceived }

type MessageUpdated struct {
	Message Message `json:"message"`
}

func (MessageUpdated) Type() EventType { return EventMessageUpdated }

type MessageDeleted struct {
	ChannelID uuid.UUID `json:"channel_id"`
	MessageID uuid.UUID `json:"message_id"`
}

func (MessageDeleted) Type() EventType { return EventMessageDeleted }

type DirectMessageReceived struct {
	Message DirectMessage `json:"message"`
}

func (DirectMessageReceived) Type() EventType { return EventDirectMessageReceived }

type DirectMessageUpdated struct {
	Message DirectMessage `json:"message"`
}

func (DirectMessageUpdated) Type() EventType { return EventDirectMessageUpdated }

type DirectMessageDeleted struct {
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	MessageID   uuid.UUID `json:"message_id"`
}

func (DirectMessageDeleted) Type() EventType { return EventDirectMessageDeleted }

type TypingStarted struct {
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
}

func (TypingStarted) Type() EventType { return EventTypingStarted }

type TypingStopped struct {
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
}

func (TypingStopped) Type() EventType { return EventTypingStopped }

type DirectTypingStarted struct {
	SenderID    uuid.UUID `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	RecipientID uuid.UUID `json:"recipient_id"`
}

func (DirectTypingStarted) Type() EventType { return EventDirectTypingStarted }

type DirectTypingStopped struct {
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
}

func (DirectTypingStopped) Type() EventType { return EventDirectTypingStopped }

type PresenceUpdated struct {
	UserID        uuid.UUID `json:"user_id"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
}

func (PresenceUpdated) Type() EventType { return EventPresenceUpdated }

// OnlineStateChanged is published exactly once when a user's first connection
// opens and exactly once when their last connection closes.
type OnlineStateChanged struct {
	UserID uuid.UUID `json:"user_id"`
	Online bool      `json:"online"`
}

func (OnlineStateChanged) Type() EventType { return EventOnlineStateChanged }

type CallStarted struct {
	CallID    uuid.UUID `json:"call_id"`
	ChannelID uuid.UUID `json:"channel_id"`
	StartedBy uuid.UUID `json:"started_by"`
	WithVideo bool      `json:"with_video"`
}

func (CallStarted) Type() EventType { return EventCallStarted }

type CallEnded struct {
	CallID    uuid.UUID `json:"call_id"`
	ChannelID uuid.UUID `json:"channel_id"`
}

func (CallEnded) Type() EventType { return EventCallEnded }

type ParticipantJoined struct {
	CallID    uuid.UUID `json:"call_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	WithVideo bool      `json:"with_video"`
}

func (ParticipantJoined) Type() EventType { return EventParticipantJoined }

type ParticipantLeft struct {
	CallID uuid.UUID `json:"call_id"`
	UserID uuid.UUID `json:"user_id"`
}

func (ParticipantLeft) Type() EventType { return EventParticipantLeft }

type ParticipantMuted struct {
	CallID uuid.UUID `json:"call_id"`
	UserID uuid.UUID `json:"user_id"`
	Muted  bool      `json:"muted"`
}

func (ParticipantMuted) Type() EventType { return EventParticipantMuted }

type ParticipantVideoChanged struct {
	CallID  uuid.UUID `json:"call_id"`
	UserID  uuid.UUID `json:"user_id"`
	Enabled bool      `json:"enabled"`
}

func (ParticipantVideoChanged) Type() EventType { return EventParticipantVideoChanged }

// SignalingRelayed carries an opaque signaling payload between two call
// participants. The gateway relays it without inspecting the payload.
type SignalingRelayed struct {
	CallID      uuid.UUID       `json:"call_id"`
	SenderID    uuid.UUID       `json:"sender_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	SignalType  string          `json:"signal_type"`
	Payload     json.RawMessage `json:"payload"`
}

func (SignalingRelayed) Type() EventType { return EventSignalingRelayed }

type ReactionAdded struct {
	ChannelID uuid.UUID `json:"channel_id"`
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
}

func (ReactionAdded) Type() EventType { return EventReactionAdded }

type ReactionRemoved struct {
	ChannelID uuid.UUID `json:"channel_id"`
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
}

func (ReactionRemoved) Type() EventType { return EventReactionRemoved }

type DirectReactionAdded struct {
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	MessageID   uuid.UUID `json:"message_id"`
	Emoji       string    `json:"emoji"`
}

func (DirectReactionAdded) Type() EventType { return EventDirectReactionAdded }

type DirectReactionRemoved struct {
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	MessageID   uuid.UUID `json:"message_id"`
	Emoji       string    `json:"emoji"`
}

func (DirectReactionRemoved) Type() EventType { return EventDirectReactionRemoved }

type MessagePinned struct {
	ChannelID uuid.UUID `json:"channel_id"`
	MessageID uuid.UUID `json:"message_id"`
	PinnedBy  uuid.UUID `json:"pinned_by"`
}

func (MessagePinned) Type() EventType { return EventMessagePinned }

type MessageUnpinned struct {
	ChannelID uuid.UUID `json:"channel_id"`
	MessageID uuid.UUID `json:"message_id"`
}

func (MessageUnpinned) Type() EventType { return EventMessageUnpinned }

// ReplyAdded announces a reply in a thread. ParentID identifies the message
// whose reply counter moves.
type ReplyAdded struct {
	ParentID uuid.UUID `json:"parent_id"`
	Message  Message   `json:"message"`
}

func (ReplyAdded) Type() EventType { return EventReplyAdded }

// Notification is the generic "new activity" notice pushed by the
// dispatcher's secondary pass, independent of group membership.
type Notification struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	ChannelID   uuid.UUID `json:"channel_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
}

func (Notification) Type() EventType { return EventNotification }
