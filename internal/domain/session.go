package domain

import (
	"context"

	"github.com/google/uuid"
)

// Session is one live transport session tied to exactly one user. A user owns
// zero or more sessions concurrently (multi-device). The ID never moves to
// another user for the session's lifetime.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	UserName  string
	Messenger Messenger
}

// Messenger pushes events down a single session's transport. Implementations
// must be safe for concurrent use: the dispatcher pushes from many handler
// goroutines at once.
type Messenger interface {
	Send(ctx context.Context, event Event) error
	SendServerClosing(ctx context.Context) error
}
