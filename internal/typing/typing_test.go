package typing_test

import (
	"context"
	"testing"
	"time"

	"github.com/arthurdotwork/relay/internal/typing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTracker_Track(t *testing.T) {
	t.Parallel()

	t.Run("it should record and clear typing per scope and user", func(t *testing.T) {
		t.Parallel()

		tracker := typing.NewTracker(typing.DefaultTTL, typing.DefaultMinInterval)

		userID := uuid.New()
		other := uuid.New()

		tracker.Track("channel:a", userID)
		require.True(t, tracker.IsTyping("channel:a", userID))
		require.False(t, tracker.IsTyping("channel:b", userID))
		require.False(t, tracker.IsTyping("channel:a", other))

		tracker.Clear("channel:a", userID)
		require.False(t, tracker.IsTyping("channel:a", userID))
	})

	t.Run("it should expire a record whose stop signal never arrives", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		tracker := typing.NewTracker(20*time.Millisecond, typing.DefaultMinInterval)
		tracker.Start(ctx)

		userID := uuid.New()
		tracker.Track("channel:a", userID)
		require.True(t, tracker.IsTyping("channel:a", userID))

		require.Eventually(t, func() bool {
			return !tracker.IsTyping("channel:a", userID)
		}, time.Second, 10*time.Millisecond)
	})
}

func TestTracker_Allow(t *testing.T) {
	t.Parallel()

	t.Run("it should throttle one user's signals", func(t *testing.T) {
		t.Parallel()

		tracker := typing.NewTracker(typing.DefaultTTL, time.Hour)

		userID := uuid.New()
		require.True(t, tracker.Allow(userID))
		require.False(t, tracker.Allow(userID))
	})

	t.Run("it should throttle users independently", func(t *testing.T) {
		t.Parallel()

		tracker := typing.NewTracker(typing.DefaultTTL, time.Hour)

		require.True(t, tracker.Allow(uuid.New()))
		require.True(t, tracker.Allow(uuid.New()))
	})

	t.Run("it should allow immediately once the limiter is forgotten", func(t *testing.T) {
		t.Parallel()

		tracker := typing.NewTracker(typing.DefaultTTL, time.Hour)

		userID := uuid.New()
		require.True(t, tracker.Allow(userID))
		require.False(t, tracker.Allow(userID))

		tracker.Forget(userID)
		require.True(t, tracker.Allow(userID))
	})

	t.Run("it should allow again once the interval has elapsed", func(t *testing.T) {
		t.Parallel()

		tracker := typing.NewTracker(typing.DefaultTTL, 10*time.Millisecond)

		userID := uuid.New()
		require.True(t, tracker.Allow(userID))
		require.False(t, tracker.Allow(userID))

		require.Eventually(t, func() bool {
			return tracker.Allow(userID)
		}, time.Second, 5*time.Millisecond)
	})
}
