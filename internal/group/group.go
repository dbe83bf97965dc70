package group

import (
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Key names a broadcast scope that sessions explicitly join and leave.
type Key string

func Channel(channelID uuid.UUID) Key { return Key("channel:" + channelID.String()) }
func Call(callID uuid.UUID) Key       { return Key("call:" + callID.String()) }

// Store holds (session, groupKey) memberships. A membership is created by an
// explicit join after an authorization check and removed on explicit leave
// or when the connection is destroyed (LeaveAll). Operations for a single
// session are serialized by that session's protocol handler; different
// sessions only contend on shared group keys.
type Store struct {
	groups    *xsync.MapOf[Key, members]
	bySession *xsync.MapOf[uuid.UUID, keySet]
}

// members and keySet are immutable after publication (copy-on-write inside
// Compute), so readers never need a lock.
type members struct {
	sessions map[uuid.UUID]domain.Session
}

type keySet struct {
	keys map[Key]struct{}
}

func NewStore() *Store {
	return &Store{
		groups:    xsync.NewMapOf[Key, members](),
		bySession: xsync.NewMapOf[uuid.UUID, keySet](),
	}
}

func (s *Store) Join(key Key, session domain.Session) {
	s.groups.Compute(key, func(m members, _ bool) (members, bool) {
		next := make(map[uuid.UUID]domain.Session, len(m.sessions)+1)
		for id, sess := range m.sessions {
			next[id] = sess
		}
		next[session.ID] = session

		return members{sessions: next}, false
	})

	s.bySession.Compute(session.ID, func(ks keySet, _ bool) (keySet, bool) {
		next := make(map[Key]struct{}, len(ks.keys)+1)
		for k := range ks.keys {
			next[k] = struct{}{}
		}
		next[key] = struct{}{}

		return keySet{keys: next}, false
	})
}

func (s *Store) Leave(key Key, sessionID uuid.UUID) {
	s.removeMember(key, sessionID)

	s.bySession.Compute(sessionID, func(ks keySet, loaded bool) (keySet, bool) {
		if !loaded {
			return keySet{}, true
		}

		next := make(map[Key]struct{}, len(ks.keys))
		for k := range ks.keys {
			if k != key {
				next[k] = struct{}{}
			}
		}

		if len(next) == 0 {
			return keySet{}, true
		}

		return keySet{keys: next}, false
	})
}

// LeaveAll drops every membership of the session. Called on connection
// destruction.
func (s *Store) LeaveAll(sessionID uuid.UUID) {
	ks, ok := s.bySession.LoadAndDelete(sessionID)
	if !ok {
		return
	}

	for key := range ks.keys {
		s.removeMember(key, sessionID)
	}
}

func (s *Store) removeMember(key Key, sessionID uuid.UUID) {
	s.groups.Compute(key, func(m members, loaded bool) (members, bool) {
		if !loaded {
			return members{}, true
		}

		next := make(map[uuid.UUID]domain.Session, len(m.sessions))
		for id, sess := range m.sessions {
			if id != sessionID {
				next[id] = sess
			}
		}

		// Drop empty groups entirely so abandoned scopes do not leak.
		if len(next) == 0 {
			return members{}, true
		}

		return members{sessions: next}, false
	})
}

// Members returns a snapshot of the group's sessions.
func (s *Store) Members(key Key) []domain.Session {
	m, ok := s.groups.Load(key)
	if !ok {
		return nil
	}

	sessions := make([]domain.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}

	return sessions
}

func (s *Store) Contains(key Key, sessionID uuid.UUID) bool {
	m, ok := s.groups.Load(key)
	if !ok {
		return false
	}

	_, ok = m.sessions[sessionID]

	return ok
}
