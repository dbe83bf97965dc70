package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arthurdotwork/relay/internal/infrastructure/redis"
	"github.com/google/uuid"
)

// RedisDirectory resolves channel membership and join authorization from
// redis sets maintained by the persistence service. The gateway only reads
// them.
//
// Keys:
//
//	relay:channel:<id>:members  set of user ids allowed in the channel
//	relay:call:<id>:allowed     set of user ids allowed in the call
type RedisDirectory struct {
	redisClient *redis.Client
}

func NewRedisDirectory(redisClient *redis.Client) *RedisDirectory {
	return &RedisDirectory{redisClient: redisClient}
}

func (d *RedisDirectory) ChannelMembers(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	raw, err := d.redisClient.SMembers(ctx, channelMembersKey(channelID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisClient.SMembers: %w", err)
	}

	members := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed member id", "channel_id", channelID, "value", value)
			continue
		}

		members = append(members, id)
	}

	return members, nil
}

func (d *RedisDirectory) CanAccessChannel(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	allowed, err := d.redisClient.SIsMember(ctx, channelMembersKey(channelID), userID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("redisClient.SIsMember: %w", err)
	}

	return allowed, nil
}

func (d *RedisDirectory) CanJoinCall(ctx context.Context, userID, callID uuid.UUID) (bool, error) {
	allowed, err := d.redisClient.SIsMember(ctx, callAllowedKey(callID), userID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("redisClient.SIsMember: %w", err)
	}

	return allowed, nil
}

// PermitAll authorizes every user for every channel and call and resolves
// no members. It exists for local development only.
type PermitAll struct{}

func (PermitAll) ChannelMembers(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (PermitAll) CanAccessChannel(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

func (PermitAll) CanJoinCall(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

func channelMembersKey(channelID uuid.UUID) string {
	return "relay:channel:" + channelID.String() + ":members"
}

func callAllowedKey(callID uuid.UUID) string {
	return "relay:call:" + callID.String() + ":allowed"
}
