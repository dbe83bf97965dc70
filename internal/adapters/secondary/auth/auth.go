package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/infrastructure/redis"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisVerifier resolves opaque session tokens minted by the auth service.
// Tokens are stored as hashes keyed by token value; a missing key means the
// token is unknown or expired.
//
// Key:
//
//	relay:token:<token>  hash{user_id, user_name}
type RedisVerifier struct {
	redisClient *redis.Client
}

func NewRedisVerifier(redisClient *redis.Client) *RedisVerifier {
	return &RedisVerifier{redisClient: redisClient}
}

func (v *RedisVerifier) Verify(ctx context.Context, token string) (uuid.UUID, string, error) {
	if token == "" {
		return uuid.Nil, "", domain.ErrUnauthorized
	}

	fields, err := v.redisClient.HGetAll(ctx, tokenKey(token)).Result()
	if err != nil && err != goredis.Nil {
		return uuid.Nil, "", fmt.Errorf("redisClient.HGetAll: %w", err)
	}

	if len(fields) == 0 {
		return uuid.Nil, "", domain.ErrUnauthorized
	}

	userID, err := uuid.Parse(fields["user_id"])
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("uuid.Parse: %w: %w", domain.ErrUnauthorized, err)
	}

	userName := fields["user_name"]
	if userName == "" {
		return uuid.Nil, "", domain.ErrUnauthorized
	}

	return userID, userName, nil
}

func tokenKey(token string) string {
	return "relay:token:" + token
}

// StaticVerifier accepts tokens of the form "<user-id>:<user-name>". It
// exists for local development only.
type StaticVerifier struct{}

func (StaticVerifier) Verify(_ context.Context, token string) (uuid.UUID, string, error) {
	id, name, ok := strings.Cut(token, ":")
	if !ok {
		return uuid.Nil, "", domain.ErrUnauthorized
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("uuid.Parse: %w: %w", domain.ErrUnauthorized, err)
	}

	if name == "" {
		return uuid.Nil, "", domain.ErrUnauthorized
	}

	return userID, name, nil
}
