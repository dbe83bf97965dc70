package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arthurdotwork/relay/internal/adapters/secondary/messenger"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/hub"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket sessions and drives the hub's
// connection state machine: Connecting on upgrade, Connected once the token
// verifies, Disconnected when the read loop ends.
type Server struct {
	hub      *hub.Hub
	verifier domain.TokenVerifier
	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, verifier domain.TokenVerifier) *Server {
	return &Server{
		hub:      h,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handle)

	return mux
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New()
	s.hub.Open(sessionID)

	m := messenger.NewMessenger(conn)

	userID, userName, err := s.verifier.Verify(ctx, bearerToken(r))
	if err != nil {
		slog.DebugContext(ctx, "token verification failed", "session_id", sessionID, "error", err)
		_ = m.SendError(ctx, "", &protocol.Error{Code: protocol.CodeUnauthorized, Message: "invalid credentials"})
		s.hub.Abandon(sessionID)
		return
	}

	session := domain.Session{
		ID:        sessionID,
		UserID:    userID,
		UserName:  userName,
		Messenger: m,
	}

	if err := s.hub.Connect(ctx, session); err != nil {
		slog.ErrorContext(ctx, "error connecting session", "session_id", sessionID, "error", err)
		_ = m.SendError(ctx, "", protocol.ErrorFrom(err))
		s.hub.Abandon(sessionID)
		return
	}
	defer s.hub.Disconnect(context.WithoutCancel(ctx), session)

	for {
		var frame protocol.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			slog.DebugContext(ctx, "read loop ended", "session_id", sessionID, "error", err)
			return
		}

		if err := s.invoke(ctx, session, frame); err != nil {
			_ = m.SendError(ctx, frame.ID, protocol.ErrorFrom(err))
			continue
		}

		_ = m.SendReply(ctx, frame.ID)
	}
}

// invoke routes one client frame to the matching hub action. Malformed
// payloads and unknown actions surface as validation errors.
func (s *Server) invoke(ctx context.Context, session domain.Session, frame protocol.ClientFrame) error {
	switch frame.Action {
	case protocol.ActionJoinChannel:
		req, err := payload[protocol.JoinChannelRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.JoinChannel(ctx, session, req.ChannelID)
	case protocol.ActionLeaveChannel:
		req, err := payload[protocol.LeaveChannelRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.LeaveChannel(ctx, session, req.ChannelID)
	case protocol.ActionStartTyping:
		req, err := payload[protocol.StartTypingRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.StartTyping(ctx, session, req.ChannelID)
	case protocol.ActionStopTyping:
		req, err := payload[protocol.StopTypingRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.StopTyping(ctx, session, req.ChannelID)
	case protocol.ActionStartDirectTyping:
		req, err := payload[protocol.StartDirectTypingRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.StartDirectTyping(ctx, session, req.PeerID)
	case protocol.ActionStopDirectTyping:
		req, err := payload[protocol.StopDirectTypingRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.StopDirectTyping(ctx, session, req.PeerID)
	case protocol.ActionUpdatePresence:
		req, err := payload[protocol.UpdatePresenceRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.UpdatePresence(ctx, session, req.Status, req.Message)
	case protocol.ActionJoinCall:
		req, err := payload[protocol.JoinCallRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.JoinCall(ctx, session, req.CallID, req.WithVideo)
	case protocol.ActionLeaveCall:
		req, err := payload[protocol.LeaveCallRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.LeaveCall(ctx, session, req.CallID)
	case protocol.ActionMute:
		req, err := payload[protocol.MuteRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.Mute(ctx, session, req.CallID, req.Muted)
	case protocol.ActionEnableVideo:
		req, err := payload[protocol.EnableVideoRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.EnableVideo(ctx, session, req.CallID, req.Enabled)
	case protocol.ActionSendSignaling:
		req, err := payload[protocol.SendSignalingRequest](frame)
		if err != nil {
			return err
		}

		return s.hub.SendSignaling(ctx, session, req.CallID, req.PeerID, req.SignalType, req.Payload)
	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrValidation, frame.Action)
	}
}

func payload[T any](frame protocol.ClientFrame) (T, error) {
	var req T
	if len(frame.Data) == 0 {
		return req, fmt.Errorf("%w: missing payload", domain.ErrValidation)
	}

	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return req, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	return req, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
