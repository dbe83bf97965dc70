package presence

import (
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the user-settable statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}

	return false
}

// Record is a user's presence. Online is derived from the connection
// registry at read time, never stored, so it cannot drift from the actual
// connection count. Status and StatusMessage are user-set and independent of
// how many connections the user has.
type Record struct {
	UserID        uuid.UUID
	Online        bool
	Status        Status
	StatusMessage string
	LastSeenAt    time.Time
}

// OnlineChecker is satisfied by the connection registry.
type OnlineChecker interface {
	IsOnline(userID uuid.UUID) bool
}

// Service is a pure state holder. It emits no events itself; callers publish
// the corresponding domain event after mutating state, keeping "state
// change" and "notify" separately testable.
type Service struct {
	online  OnlineChecker
	records *xsync.MapOf[uuid.UUID, Record]
	now     func() time.Time
}

func NewService(online OnlineChecker) *Service {
	return &Service{
		online:  online,
		records: xsync.NewMapOf[uuid.UUID, Record](),
		now:     time.Now,
	}
}

func (s *Service) UpdateStatus(userID uuid.UUID, status Status, message string) Record {
	record, _ := s.records.Compute(userID, func(r Record, _ bool) (Record, bool) {
		r.UserID = userID
		r.Status = status
		r.StatusMessage = message

		return r, false
	})

	record.Online = s.online.IsOnline(userID)

	return record
}

func (s *Service) UpdateLastSeen(userID uuid.UUID) {
	s.records.Compute(userID, func(r Record, _ bool) (Record, bool) {
		r.UserID = userID
		r.LastSeenAt = s.now()

		return r, false
	})
}

func (s *Service) Status(userID uuid.UUID) Record {
	record, ok := s.records.Load(userID)
	if !ok {
		record = Record{UserID: userID, Status: StatusOffline}
	}

	record.Online = s.online.IsOnline(userID)

	return record
}
