package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/arthurdotwork/relay/internal/bus"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/infrastructure/redis"
	"github.com/arthurdotwork/relay/internal/protocol"
)

// EventBus is the in-process bus the ingress feeds.
type EventBus interface {
	Publish(ctx context.Context, event domain.Event) []bus.Delivery
}

// Subscriber is the ingress for events produced by external domain services
// (persistence, business rules): it decodes each envelope from the redis
// channel and publishes the event onto the in-process bus. Malformed
// payloads are logged and skipped so one bad producer cannot stall the
// stream.
type Subscriber struct {
	redisClient *redis.Client
	bus         EventBus
}

func NewSubscriber(redisClient *redis.Client, eventBus EventBus) *Subscriber {
	return &Subscriber{
		redisClient: redisClient,
		bus:         eventBus,
	}
}

func (s *Subscriber) Subscribe(ctx context.Context, channel string) error {
	subscriber := s.redisClient.Subscribe(ctx, channel)

	if err := subscriber(func(msg redis.Message) error {
		s.ingest(ctx, []byte(msg.Payload))
		return nil
	}); err != nil {
		slog.ErrorContext(ctx, "error subscribing to redis", "error", err)
		return fmt.Errorf("subscriber: %w", err)
	}

	return nil
}

// ingest decodes one envelope and publishes the event onto the bus.
// Gateway-originated types are dropped: the egress bridge republishes that
// set to redis, and accepting one back would cycle it between the bus and
// redis indefinitely.
func (s *Subscriber) ingest(ctx context.Context, payload []byte) {
	var envelope protocol.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		slog.ErrorContext(ctx, "malformed event envelope", "error", err)
		return
	}

	if domain.EventType(envelope.Type).GatewayOriginated() {
		slog.DebugContext(ctx, "ignoring gateway-originated envelope", "event_type", envelope.Type)
		return
	}

	event, err := envelope.Event()
	if err != nil {
		slog.ErrorContext(ctx, "undecodable event", "event_type", envelope.Type, "error", err)
		return
	}

	s.bus.Publish(ctx, event)
}
