package bus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arthurdotwork/relay/internal/bus"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBus_Publish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should deliver the event to every handler of its type", func(t *testing.T) {
		t.Parallel()

		b := bus.New()

		var delivered atomic.Int64
		b.Subscribe(domain.EventTypingStarted, func(ctx context.Context, event domain.Event) error {
			delivered.Add(1)
			return nil
		})
		b.Subscribe(domain.EventTypingStarted, func(ctx context.Context, event domain.Event) error {
			delivered.Add(1)
			return nil
		})

		deliveries := b.Publish(ctx, domain.TypingStarted{ChannelID: uuid.New(), UserID: uuid.New()})
		require.Len(t, deliveries, 2)
		require.EqualValues(t, 2, delivered.Load())
	})

	t.Run("it should not deliver events of other types", func(t *testing.T) {
		t.Parallel()

		b := bus.New()

		b.Subscribe(domain.EventTypingStopped, func(ctx context.Context, event domain.Event) error {
			t.Error("handler should not have been invoked")
			return nil
		})

		deliveries := b.Publish(ctx, domain.TypingStarted{ChannelID: uuid.New(), UserID: uuid.New()})
		require.Empty(t, deliveries)
	})

	t.Run("it should isolate a failing handler from the others", func(t *testing.T) {
		t.Parallel()

		b := bus.New()

		var delivered atomic.Int64
		b.Subscribe(domain.EventPresenceUpdated, func(ctx context.Context, event domain.Event) error {
			return errors.New("error")
		})
		b.Subscribe(domain.EventPresenceUpdated, func(ctx context.Context, event domain.Event) error {
			delivered.Add(1)
			return nil
		})

		deliveries := b.Publish(ctx, domain.PresenceUpdated{UserID: uuid.New(), Status: "away"})
		require.Len(t, deliveries, 2)
		require.EqualValues(t, 1, delivered.Load())

		var failed int
		for _, d := range deliveries {
			if d.Err != nil {
				failed++
			}
		}
		require.Equal(t, 1, failed)
	})

	t.Run("it should isolate a panicking handler from the others", func(t *testing.T) {
		t.Parallel()

		b := bus.New()

		var delivered atomic.Int64
		b.Subscribe(domain.EventPresenceUpdated, func(ctx context.Context, event domain.Event) error {
			panic("boom")
		})
		b.Subscribe(domain.EventPresenceUpdated, func(ctx context.Context, event domain.Event) error {
			delivered.Add(1)
			return nil
		})

		deliveries := b.Publish(ctx, domain.PresenceUpdated{UserID: uuid.New(), Status: "busy"})
		require.Len(t, deliveries, 2)
		require.EqualValues(t, 1, delivered.Load())
	})

	t.Run("it should abandon a handler that outlives its timeout", func(t *testing.T) {
		t.Parallel()

		b := bus.New(bus.WithHandlerTimeout(10 * time.Millisecond))

		release := make(chan struct{})
		t.Cleanup(func() { close(release) })

		b.Subscribe(domain.EventPresenceUpdated, func(ctx context.Context, event domain.Event) error {
			<-release
			return nil
		})

		deliveries := b.Publish(ctx, domain.PresenceUpdated{UserID: uuid.New(), Status: "online"})
		require.Len(t, deliveries, 1)
		require.ErrorIs(t, deliveries[0].Err, context.DeadlineExceeded)
	})

	t.Run("it should not deliver events published before the subscription", func(t *testing.T) {
		t.Parallel()

		b := bus.New()

		deliveries := b.Publish(ctx, domain.TypingStarted{ChannelID: uuid.New(), UserID: uuid.New()})
		require.Empty(t, deliveries)

		var delivered atomic.Int64
		b.Subscribe(domain.EventTypingStarted, func(ctx context.Context, event domain.Event) error {
			delivered.Add(1)
			return nil
		})

		require.EqualValues(t, 0, delivered.Load())
	})
}

func TestSubscription_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should stop delivering after the subscription is closed", func(t *testing.T) {
		t.Parallel()

		b := bus.New()

		var delivered atomic.Int64
		sub := b.Subscribe(domain.EventTypingStarted, func(ctx context.Context, event domain.Event) error {
			delivered.Add(1)
			return nil
		})

		b.Publish(ctx, domain.TypingStarted{ChannelID: uuid.New(), UserID: uuid.New()})
		require.EqualValues(t, 1, delivered.Load())

		sub.Close()
		sub.Close()

		deliveries := b.Publish(ctx, domain.TypingStarted{ChannelID: uuid.New(), UserID: uuid.New()})
		require.Empty(t, deliveries)
		require.EqualValues(t, 1, delivered.Load())
	})

	t.Run("it should only remove the closed subscription", func(t *testing.T) {
		t.Parallel()

		b := bus.New()

		var delivered atomic.Int64
		sub := b.Subscribe(domain.EventTypingStarted, func(ctx context.Context, event domain.Event) error {
			t.Error("closed handler should not have been invoked")
			return nil
		})
		b.Subscribe(domain.EventTypingStarted, func(ctx context.Context, event domain.Event) error {
			delivered.Add(1)
			return nil
		})

		sub.Close()

		deliveries := b.Publish(ctx, domain.TypingStarted{ChannelID: uuid.New(), UserID: uuid.New()})
		require.Len(t, deliveries, 1)
		require.EqualValues(t, 1, delivered.Load())
	})
}
