package registry_test

import (
	"sync"
	"testing"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func session(userID uuid.UUID) domain.Session {
	return domain.Session{ID: uuid.New(), UserID: userID, UserName: "arthur"}
}

func TestRegistry_Add(t *testing.T) {
	t.Parallel()

	t.Run("it should report the first connection exactly once", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		userID := uuid.New()

		require.True(t, r.Add(session(userID)))
		require.False(t, r.Add(session(userID)))
		require.False(t, r.Add(session(userID)))
	})

	t.Run("it should report the first connection exactly once under concurrency", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		userID := uuid.New()

		var wg sync.WaitGroup
		firsts := make(chan bool, 32)

		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				firsts <- r.Add(session(userID))
			}()
		}
		wg.Wait()
		close(firsts)

		var count int
		for first := range firsts {
			if first {
				count++
			}
		}
		require.Equal(t, 1, count)
	})

	t.Run("it should track users independently", func(t *testing.T) {
		t.Parallel()

		r := registry.New()

		require.True(t, r.Add(session(uuid.New())))
		require.True(t, r.Add(session(uuid.New())))
	})
}

func TestRegistry_Remove(t *testing.T) {
	t.Parallel()

	t.Run("it should report the last disconnection exactly once", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		userID := uuid.New()

		first := session(userID)
		second := session(userID)
		r.Add(first)
		r.Add(second)

		require.False(t, r.Remove(userID, first.ID))
		require.True(t, r.Remove(userID, second.ID))
	})

	t.Run("it should ignore an unknown session", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		userID := uuid.New()
		r.Add(session(userID))

		require.False(t, r.Remove(userID, uuid.New()))
		require.False(t, r.Remove(uuid.New(), uuid.New()))
		require.True(t, r.IsOnline(userID))
	})

	t.Run("it should be idempotent", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		userID := uuid.New()
		s := session(userID)
		r.Add(s)

		require.True(t, r.Remove(userID, s.ID))
		require.False(t, r.Remove(userID, s.ID))
	})
}

func TestRegistry_IsOnline(t *testing.T) {
	t.Parallel()

	t.Run("it should derive online state from the live connection set", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		userID := uuid.New()

		require.False(t, r.IsOnline(userID))

		s := session(userID)
		r.Add(s)
		require.True(t, r.IsOnline(userID))

		r.Remove(userID, s.ID)
		require.False(t, r.IsOnline(userID))
	})
}

func TestRegistry_Connections(t *testing.T) {
	t.Parallel()

	t.Run("it should return every live session for the user", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		userID := uuid.New()

		r.Add(session(userID))
		r.Add(session(userID))
		r.Add(session(uuid.New()))

		require.Len(t, r.Connections(userID), 2)
	})

	t.Run("it should return nothing for an unknown user", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		require.Empty(t, r.Connections(uuid.New()))
	})
}

func TestRegistry_Each(t *testing.T) {
	t.Parallel()

	t.Run("it should visit every live session across users", func(t *testing.T) {
		t.Parallel()

		r := registry.New()
		r.Add(session(uuid.New()))
		r.Add(session(uuid.New()))

		var visited int
		r.Each(func(session domain.Session) { visited++ })

		require.Equal(t, 2, visited)
	})
}
