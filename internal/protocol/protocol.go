package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Op discriminates server-to-client frames.
type Op string

const (
	OpEvent   Op = "event"
	OpReply   Op = "reply"
	OpError   Op = "error"
	OpClosing Op = "closing"
)

// Action names a client-invoked operation.
type Action string

const (
	ActionJoinChannel       Action = "join_channel"
	ActionLeaveChannel      Action = "leave_channel"
	ActionStartTyping       Action = "start_typing"
	ActionStopTyping        Action = "stop_typing"
	ActionStartDirectTyping Action = "start_direct_typing"
	ActionStopDirectTyping  Action = "stop_direct_typing"
	ActionUpdatePresence    Action = "update_presence"
	ActionJoinCall          Action = "join_call"
	ActionLeaveCall         Action = "leave_call"
	ActionMute              Action = "mute"
	ActionEnableVideo       Action = "enable_video"
	ActionSendSignaling     Action = "send_signaling"
)

// ClientFrame is one client-to-server message. ID correlates the reply.
type ClientFrame struct {
	ID     string          `json:"id"`
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ServerFrame is one server-to-client message. Event frames carry a ULID so
// consumers get a lexically time-ordered identity per push.
type ServerFrame struct {
	Op      Op              `json:"op"`
	ID      string          `json:"id,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the structured (code, message) pair every rejected action yields.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	CodeNotFound        = "not_found"
	CodeForbidden       = "forbidden"
	CodeUnauthorized    = "unauthorized"
	CodeTooManyRequests = "too_many_requests"
	CodeValidation      = "validation"
	CodeInternal        = "internal"
)

// ErrorFrom maps a domain error onto the wire taxonomy. Anything outside the
// taxonomy surfaces as a generic internal error, never the raw detail.
func ErrorFrom(err error) *Error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: "not found"}
	case errors.Is(err, domain.ErrForbidden):
		return &Error{Code: CodeForbidden, Message: "forbidden"}
	case errors.Is(err, domain.ErrUnauthorized):
		return &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	case errors.Is(err, domain.ErrTooManyRequests):
		return &Error{Code: CodeTooManyRequests, Message: "too many requests"}
	case errors.Is(err, domain.ErrValidation):
		return &Error{Code: CodeValidation, Message: "invalid request"}
	default:
		return &Error{Code: CodeInternal, Message: "internal error"}
	}
}

// DomainError maps a wire error back onto the domain taxonomy (client side).
func (e *Error) DomainError() error {
	switch e.Code {
	case CodeNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, e.Message)
	case CodeForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, e.Message)
	case CodeUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, e.Message)
	case CodeTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrTooManyRequests, e.Message)
	case CodeValidation:
		return fmt.Errorf("%w: %s", domain.ErrValidation, e.Message)
	default:
		return fmt.Errorf("%w: %s", domain.ErrInternal, e.Message)
	}
}

type JoinChannelRequest struct {
	ChannelID uuid.UUID `json:"channel_id"`
}

type LeaveChannelRequest struct {
	ChannelID uuid.UUID `json:"channel_id"`
}

type StartTypingRequest struct {
	ChannelID uuid.UUID `json:"channel_id"`
}

type StopTypingRequest struct {
	ChannelID uuid.UUID `json:"channel_id"`
}

type StartDirectTypingRequest struct {
	PeerID uuid.UUID `json:"peer_id"`
}

type StopDirectTypingRequest struct {
	PeerID uuid.UUID `json:"peer_id"`
}

type UpdatePresenceRequest struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type JoinCallRequest struct {
	CallID    uuid.UUID `json:"call_id"`
	WithVideo bool      `json:"with_video"`
}

type LeaveCallRequest struct {
	CallID uuid.UUID `json:"call_id"`
}

type MuteRequest struct {
	CallID uuid.UUID `json:"call_id"`
	Muted  bool      `json:"muted"`
}

type EnableVideoRequest struct {
	CallID  uuid.UUID `json:"call_id"`
	Enabled bool      `json:"enabled"`
}

type SendSignalingRequest struct {
	CallID     uuid.UUID       `json:"call_id"`
	PeerID     uuid.UUID       `json:"peer_id"`
	SignalType string          `json:"signal_type"`
	Payload    json.RawMessage `json:"payload"`
}

// Envelope wraps a domain event for cross-service transport (redis). The
// same enumerated codec is used on both sides.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEnvelope(event domain.Event) (Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("json.Marshal: %w", err)
	}

	return Envelope{Type: string(event.Type()), Data: data}, nil
}

func (e Envelope) Event() (domain.Event, error) {
	return DecodeEvent(e.Type, e.Data)
}

// NewEventFrame renders a domain event as a push frame.
func NewEventFrame(event domain.Event) (ServerFrame, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return ServerFrame{}, fmt.Errorf("json.Marshal: %w", err)
	}

	return ServerFrame{
		Op:    OpEvent,
		ID:    ulid.Make().String(),
		Event: string(event.Type()),
		Data:  data,
	}, nil
}

var ErrUnknownEvent = errors.New("unknown event type")

// DecodeEvent maps an event name back to its concrete type. The mapping is
// an explicit enumeration rather than reflection so the full surface is
// testable and a bad name fails loudly. Decoded events are values, matching
// how locally originated events are published.
func DecodeEvent(eventType string, data []byte) (domain.Event, error) {
	switch domain.EventType(eventType) {
	case domain.EventMessageReceived:
		return decode[domain.MessageReceived](data)
	case domain.EventMessageUpdated:
		return decode[domain.MessageUpdated](data)
	case domain.EventMessageDeleted:
		return decode[domain.MessageDeleted](data)
	case domain.EventDirectMessageReceived:
		return decode[domain.DirectMessageReceived](data)
	case domain.EventDirectMessageUpdated:
		return decode[domain.DirectMessageUpdated](data)
	case domain.EventDirectMessageDeleted:
		return decode[domain.DirectMessageDeleted](data)
	case domain.EventTypingStarted:
		return decode[domain.TypingStarted](data)
	case domain.EventTypingStopped:
		return decode[domain.TypingStopped](data)
	case domain.EventDirectTypingStarted:
		return decode[domain.DirectTypingStarted](data)
	case domain.EventDirectTypingStopped:
		return decode[domain.DirectTypingStopped](data)
	case domain.EventPresenceUpdated:
		return decode[domain.PresenceUpdated](data)
	case domain.EventOnlineStateChanged:
		return decode[domain.OnlineStateChanged](data)
	case domain.EventCallStarted:
		return decode[domain.CallStarted](data)
	case domain.EventCallEnded:
		return decode[domain.CallEnded](data)
	case domain.EventParticipantJoined:
		return decode[domain.ParticipantJoined](data)
	case domain.EventParticipantLeft:
		return decode[domain.ParticipantLeft](data)
	case domain.EventParticipantMuted:
		return decode[domain.ParticipantMuted](data)
	case domain.EventParticipantVideoChanged:
		return decode[domain.ParticipantVideoChanged](data)
	case domain.EventSignalingRelayed:
		return decode[domain.SignalingRelayed](data)
	case domain.EventReactionAdded:
		return decode[domain.ReactionAdded](data)
	case domain.EventReactionRemoved:
		return decode[domain.ReactionRemoved](data)
	case domain.EventDirectReactionAdded:
		return decode[domain.DirectReactionAdded](data)
	case domain.EventDirectReactionRemoved:
		return decode[domain.DirectReactionRemoved](data)
	case domain.EventMessagePinned:
		return decode[domain.MessagePinned](data)
	case domain.EventMessageUnpinned:
		return decode[domain.MessageUnpinned](data)
	case domain.EventReplyAdded:
		return decode[domain.ReplyAdded](data)
	case domain.EventNotification:
		return decode[domain.Notification](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}
}

func decode[T domain.Event](data []byte) (domain.Event, error) {
	var event T
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return event, nil
}
