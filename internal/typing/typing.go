package typing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

const (
	// DefaultTTL self-heals a typing record whose stop signal never arrives
	// (client crash, dropped connection).
	DefaultTTL = 6 * time.Second

	// DefaultMinInterval is the minimum spacing between one user's typing
	// signals; it protects the bus from per-keystroke flooding.
	DefaultMinInterval = 2 * time.Second
)

// Tracker holds short-lived, auto-expiring "user X is typing in scope Y"
// records and a per-user rate limiter. Records are advisory and never
// persisted.
type Tracker struct {
	records  *ttlcache.Cache[string, uuid.UUID]
	limiters *xsync.MapOf[uuid.UUID, *rate.Limiter]
	interval time.Duration
}

func NewTracker(ttl, minInterval time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}

	return &Tracker{
		records: ttlcache.New[string, uuid.UUID](
			ttlcache.WithTTL[string, uuid.UUID](ttl),
			ttlcache.WithDisableTouchOnHit[string, uuid.UUID](),
		),
		limiters: xsync.NewMapOf[uuid.UUID, *rate.Limiter](),
		interval: minInterval,
	}
}

// Start runs the expiry loop in the background until the context is
// cancelled.
func (t *Tracker) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.records.Stop()
	}()

	go t.records.Start()
}

// Track creates or refreshes the typing record for (scope, user). The TTL
// timer restarts on every call.
func (t *Tracker) Track(scope string, userID uuid.UUID) {
	t.records.Set(key(scope, userID), userID, ttlcache.DefaultTTL)
}

// Clear removes the record explicitly (typing-stop signal).
func (t *Tracker) Clear(scope string, userID uuid.UUID) {
	t.records.Delete(key(scope, userID))
}

// IsTyping reports whether an unexpired record exists for (scope, user).
func (t *Tracker) IsTyping(scope string, userID uuid.UUID) bool {
	return t.records.Has(key(scope, userID))
}

// Allow reports whether the user may emit another typing signal now. One
// limiter per user, shared across scopes.
func (t *Tracker) Allow(userID uuid.UUID) bool {
	limiter, _ := t.limiters.LoadOrCompute(userID, func() *rate.Limiter {
		return rate.NewLimiter(rate.Every(t.interval), 1)
	})

	return limiter.Allow()
}

// Forget drops the user's limiter. Called when the user's last connection
// closes, so the limiter map does not accumulate an entry for every user
// ever seen.
func (t *Tracker) Forget(userID uuid.UUID) {
	t.limiters.Delete(userID)
}

func key(scope string, userID uuid.UUID) string {
	return scope + "/" + userID.String()
}
