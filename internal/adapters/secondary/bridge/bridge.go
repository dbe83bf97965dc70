package bridge

import (
	"context"
	"fmt"

	"github.com/arthurdotwork/relay/internal/bus"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/infrastructure/redis"
	"github.com/arthurdotwork/relay/internal/protocol"
)

// Bridge republishes gateway-originated events to redis so sibling services
// (notification digests, analytics, other business rules) can observe them.
// It forwards exactly domain.GatewayOriginatedTypes(); the ingress
// subscriber drops that same set, so a forwarded event can never come back
// onto the bus.
type Bridge struct {
	redisClient *redis.Client
	bus         *bus.Bus
	channel     string
	subs        []*bus.Subscription
}

func NewBridge(redisClient *redis.Client, b *bus.Bus, channel string) *Bridge {
	return &Bridge{
		redisClient: redisClient,
		bus:         b,
		channel:     channel,
	}
}

func (b *Bridge) Start() {
	for _, t := range domain.GatewayOriginatedTypes() {
		b.subs = append(b.subs, b.bus.Subscribe(t, b.forward))
	}
}

func (b *Bridge) Stop() {
	for _, sub := range b.subs {
		sub.Close()
	}
	b.subs = nil
}

func (b *Bridge) forward(ctx context.Context, event domain.Event) error {
	envelope, err := protocol.NewEnvelope(event)
	if err != nil {
		return fmt.Errorf("protocol.NewEnvelope: %w", err)
	}

	if err := b.redisClient.Publish(ctx, b.channel, envelope); err != nil {
		return fmt.Errorf("redisClient.Publish: %w", err)
	}

	return nil
}
