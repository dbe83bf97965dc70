package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arthurdotwork/relay/internal/domain"
)

const defaultHandlerTimeout = 5 * time.Second

// Handler consumes one event. Handlers for the same event run concurrently
// and must not assume any ordering between each other.
type Handler func(ctx context.Context, event domain.Event) error

// Bus is the in-process publish/subscribe mechanism. Delivery is best-effort
// and isolated per handler: one handler failing, panicking or timing out
// never reaches the publisher and never prevents the other handlers from
// observing the event. There is no persistence and no replay; a handler
// registered after Publish returns never sees that event.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType]map[*Subscription]Handler
	timeout  time.Duration
}

type Option func(*Bus)

// WithHandlerTimeout bounds how long Publish waits for a single handler.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) { b.timeout = d }
}

func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[domain.EventType]map[*Subscription]Handler),
		timeout:  defaultHandlerTimeout,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscription is the disposable handle returned by Subscribe. Closing it
// atomically removes the handler; closing twice is a no-op.
type Subscription struct {
	bus       *Bus
	eventType domain.EventType
	once      sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		if handlers, ok := s.bus.handlers[s.eventType]; ok {
			delete(handlers, s)
			if len(handlers) == 0 {
				delete(s.bus.handlers, s.eventType)
			}
		}
	})
}

// Subscribe registers a handler for the exact event type. Multiple
// independent subscriptions for the same type coexist.
func (b *Bus) Subscribe(eventType domain.EventType, handler Handler) *Subscription {
	sub := &Subscription{bus: b, eventType: eventType}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[eventType]; !ok {
		b.handlers[eventType] = make(map[*Subscription]Handler)
	}
	b.handlers[eventType][sub] = handler

	return sub
}

// Delivery is the outcome of one handler invocation. Err is nil on success,
// the handler's error on failure, or a deadline error when the handler was
// abandoned after its timeout.
type Delivery struct {
	Err error
}

// Publish delivers the event to every handler currently registered for its
// type, concurrently, and waits for all of them to finish or time out. The
// returned slice holds one Delivery per handler so callers and tests can
// observe partial failure explicitly; failures are also logged here.
func (b *Bus) Publish(ctx context.Context, event domain.Event) []Delivery {
	b.mu.RLock()
	registered := b.handlers[event.Type()]
	handlers := make([]Handler, 0, len(registered))
	for _, h := range registered {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	deliveries := make([]Delivery, len(handlers))

	var wg sync.WaitGroup
	for i, handler := range handlers {
		wg.Add(1)

		go func(i int, handler Handler) {
			defer wg.Done()
			deliveries[i] = Delivery{Err: b.invoke(ctx, handler, event)}
		}(i, handler)
	}
	wg.Wait()

	for _, d := range deliveries {
		if d.Err != nil {
			slog.ErrorContext(ctx, "event handler failed", "event_type", event.Type(), "error", d.Err)
		}
	}

	return deliveries
}

// invoke runs one handler under its own timeout. A handler that outlives the
// timeout is abandoned: its eventual result is discarded, not retried.
func (b *Bus) invoke(ctx context.Context, handler Handler, event domain.Event) error {
	hctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panicked: %v", r)
			}
		}()

		done <- handler(hctx, event)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("handler: %w", err)
		}

		return nil
	case <-hctx.Done():
		return fmt.Errorf("handler abandoned: %w", hctx.Err())
	}
}
