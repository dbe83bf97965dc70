package domain

import (
	"context"

	"github.com/google/uuid"
)

// Authorizer answers "may this user see this scope". It is an external
// collaborator: authorization rules live in the persistence/business
// services, the gateway only asks at join time.
type Authorizer interface {
	CanAccessChannel(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
	CanJoinCall(ctx context.Context, userID, callID uuid.UUID) (bool, error)
}

// Directory resolves channel membership for the dispatcher's secondary
// notification pass. External collaborator as well.
type Directory interface {
	ChannelMembers(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error)
}

// TokenVerifier validates a transport credential and yields the identity it
// belongs to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (userID uuid.UUID, userName string, err error)
}
