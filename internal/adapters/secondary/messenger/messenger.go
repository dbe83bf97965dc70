package messenger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 5 * time.Second

// Messenger serializes all writes to one websocket connection. The gorilla
// connection allows a single concurrent writer, while the dispatcher pushes
// from many goroutines at once.
type Messenger struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewMessenger(conn *websocket.Conn) *Messenger {
	return &Messenger{conn: conn}
}

func (m *Messenger) Send(ctx context.Context, event domain.Event) error {
	frame, err := protocol.NewEventFrame(event)
	if err != nil {
		return fmt.Errorf("protocol.NewEventFrame: %w", err)
	}

	return m.write(ctx, frame)
}

func (m *Messenger) SendReply(ctx context.Context, replyTo string) error {
	return m.write(ctx, protocol.ServerFrame{Op: protocol.OpReply, ReplyTo: replyTo})
}

func (m *Messenger) SendError(ctx context.Context, replyTo string, perr *protocol.Error) error {
	return m.write(ctx, protocol.ServerFrame{Op: protocol.OpError, ReplyTo: replyTo, Error: perr})
}

func (m *Messenger) SendServerClosing(ctx context.Context) error {
	return m.write(ctx, protocol.ServerFrame{Op: protocol.OpClosing})
}

func (m *Messenger) write(ctx context.Context, frame protocol.ServerFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	if err := m.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("conn.SetWriteDeadline: %w", err)
	}

	if err := m.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("conn.WriteJSON: %w", err)
	}

	return nil
}
