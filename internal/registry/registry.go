package registry

import (
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps a logical user to the set of currently live transport
// sessions. It is mutated from many concurrent connect/disconnect calls;
// contention is per user key, never global, so one user's churn does not
// block another's.
type Registry struct {
	users *xsync.MapOf[uuid.UUID, connSet]
}

// connSet is immutable after publication; mutations replace it wholesale
// inside a Compute so readers never observe a half-applied change.
type connSet struct {
	sessions map[uuid.UUID]domain.Session
}

func New() *Registry {
	return &Registry{users: xsync.NewMapOf[uuid.UUID, connSet]()}
}

// Add registers a live session and reports whether it is the user's first
// concurrent connection. The answer is computed atomically with the mutation
// so the caller can publish the online transition exactly once.
func (r *Registry) Add(session domain.Session) (first bool) {
	r.users.Compute(session.UserID, func(set connSet, loaded bool) (connSet, bool) {
		next := make(map[uuid.UUID]domain.Session, len(set.sessions)+1)
		for id, s := range set.sessions {
			next[id] = s
		}
		next[session.ID] = session

		first = !loaded || len(set.sessions) == 0

		return connSet{sessions: next}, false
	})

	return first
}

// Remove drops a session and reports whether it was the user's last live
// connection. Removing an unknown session reports false.
func (r *Registry) Remove(userID, sessionID uuid.UUID) (last bool) {
	r.users.Compute(userID, func(set connSet, loaded bool) (connSet, bool) {
		if !loaded {
			return connSet{}, true
		}

		if _, ok := set.sessions[sessionID]; !ok {
			return set, false
		}

		next := make(map[uuid.UUID]domain.Session, len(set.sessions)-1)
		for id, s := range set.sessions {
			if id != sessionID {
				next[id] = s
			}
		}

		if len(next) == 0 {
			last = true
			return connSet{}, true
		}

		return connSet{sessions: next}, false
	})

	return last
}

// Connections returns the user's live sessions. The slice is a snapshot.
func (r *Registry) Connections(userID uuid.UUID) []domain.Session {
	set, ok := r.users.Load(userID)
	if !ok {
		return nil
	}

	sessions := make([]domain.Session, 0, len(set.sessions))
	for _, s := range set.sessions {
		sessions = append(sessions, s)
	}

	return sessions
}

// IsOnline is derived from the live connection set, never stored, so it
// cannot drift.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	set, ok := r.users.Load(userID)
	return ok && len(set.sessions) > 0
}

// Each visits every live session across all users.
func (r *Registry) Each(fn func(session domain.Session)) {
	r.users.Range(func(_ uuid.UUID, set connSet) bool {
		for _, s := range set.sessions {
			fn(s)
		}

		return true
	})
}
