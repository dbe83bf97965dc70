package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/arthurdotwork/relay/internal/bus"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/group"
	"github.com/arthurdotwork/relay/internal/registry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultPushTimeout = 3 * time.Second

// Dispatcher is the single place that knows how to turn each domain event
// into delivery actions: a group broadcast, a targeted per-user push, or a
// broadcast to every live connection. Pushes are best-effort; a failure is
// logged per recipient and never propagated.
type Dispatcher struct {
	bus         *bus.Bus
	registry    *registry.Registry
	groups      *group.Store
	directory   domain.Directory
	pushTimeout time.Duration
	subs        []*bus.Subscription
}

type Option func(*Dispatcher)

func WithPushTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.pushTimeout = d }
}

func NewDispatcher(b *bus.Bus, reg *registry.Registry, groups *group.Store, directory domain.Directory, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		bus:         b,
		registry:    reg,
		groups:      groups,
		directory:   directory,
		pushTimeout: defaultPushTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Start registers the routing handlers on the bus. Call once at startup.
func (d *Dispatcher) Start() {
	channelScoped := []domain.EventType{
		domain.EventMessageReceived,
		domain.EventMessageUpdated,
		domain.EventMessageDeleted,
		domain.EventTypingStarted,
		domain.EventTypingStopped,
		domain.EventReactionAdded,
		domain.EventReactionRemoved,
		domain.EventMessagePinned,
		domain.EventMessageUnpinned,
		domain.EventReplyAdded,
		domain.EventCallStarted,
		domain.EventCallEnded,
	}
	for _, t := range channelScoped {
		d.subs = append(d.subs, d.bus.Subscribe(t, d.routeChannel))
	}

	callScoped := []domain.EventType{
		domain.EventParticipantJoined,
		domain.EventParticipantLeft,
		domain.EventParticipantMuted,
		domain.EventParticipantVideoChanged,
	}
	for _, t := range callScoped {
		d.subs = append(d.subs, d.bus.Subscribe(t, d.routeCall))
	}

	userScoped := []domain.EventType{
		domain.EventDirectMessageReceived,
		domain.EventDirectMessageUpdated,
		domain.EventDirectMessageDeleted,
		domain.EventDirectTypingStarted,
		domain.EventDirectTypingStopped,
		domain.EventDirectReactionAdded,
		domain.EventDirectReactionRemoved,
		domain.EventSignalingRelayed,
		domain.EventNotification,
	}
	for _, t := range userScoped {
		d.subs = append(d.subs, d.bus.Subscribe(t, d.routeUser))
	}

	for _, t := range []domain.EventType{domain.EventPresenceUpdated, domain.EventOnlineStateChanged} {
		d.subs = append(d.subs, d.bus.Subscribe(t, d.routeEveryone))
	}

	// Independent second subscription on the same event type: the
	// best-effort "new activity" pass for channel messages.
	d.subs = append(d.subs, d.bus.Subscribe(domain.EventMessageReceived, d.notifyChannelMembers))
}

// Stop removes every routing handler from the bus.
func (d *Dispatcher) Stop() {
	for _, sub := range d.subs {
		sub.Close()
	}
	d.subs = nil
}

// routeChannel broadcasts to the channel's group. Membership was checked at
// join time; there is no per-event re-check.
func (d *Dispatcher) routeChannel(ctx context.Context, event domain.Event) error {
	channelID, ok := channelScope(event)
	if !ok {
		return fmt.Errorf("event %s has no channel scope", event.Type())
	}

	d.fanOut(ctx, d.groups.Members(group.Channel(channelID)), event)

	return nil
}

func (d *Dispatcher) routeCall(ctx context.Context, event domain.Event) error {
	callID, ok := callScope(event)
	if !ok {
		return fmt.Errorf("event %s has no call scope", event.Type())
	}

	d.fanOut(ctx, d.groups.Members(group.Call(callID)), event)

	return nil
}

// routeUser pushes to each recipient's live connections. A recipient with
// zero connections is silently dropped: the originating action is already
// durably persisted upstream, so the event is simply lost for that device
// set.
func (d *Dispatcher) routeUser(ctx context.Context, event domain.Event) error {
	recipients, ok := eventRecipients(event)
	if !ok {
		return fmt.Errorf("event %s has no recipients", event.Type())
	}

	var sessions []domain.Session
	for _, userID := range recipients {
		sessions = append(sessions, d.registry.Connections(userID)...)
	}

	if len(sessions) == 0 {
		slog.DebugContext(ctx, "no live connections for targeted push, dropping", "event_type", event.Type())
		return nil
	}

	d.fanOut(ctx, sessions, event)

	return nil
}

// routeEveryone broadcasts to every live connection. Known capacity limit:
// presence and online-state changes go to the whole instance regardless of
// shared membership.
func (d *Dispatcher) routeEveryone(ctx context.Context, event domain.Event) error {
	var sessions []domain.Session
	d.registry.Each(func(s domain.Session) {
		sessions = append(sessions, s)
	})

	d.fanOut(ctx, sessions, event)

	return nil
}

// notifyChannelMembers is the secondary best-effort pass on a channel
// message: every channel member gets a generic activity notice on all their
// connections, whether or not they joined the group. Failures are isolated
// per recipient.
func (d *Dispatcher) notifyChannelMembers(ctx context.Context, event domain.Event) error {
	received, ok := event.(domain.MessageReceived)
	if !ok {
		return fmt.Errorf("unexpected event %s", event.Type())
	}

	members, err := d.directory.ChannelMembers(ctx, received.Message.ChannelID)
	if err != nil {
		return fmt.Errorf("directory.ChannelMembers: %w", err)
	}

	g := errgroup.Group{}
	for _, member := range members {
		if member == received.Message.SenderID {
			continue
		}

		notice := domain.Notification{
			RecipientID: member,
			ChannelID:   received.Message.ChannelID,
			Title:       received.Message.SenderName,
			Body:        preview(received.Message.Content),
		}

		g.Go(func() error {
			for _, session := range d.registry.Connections(notice.RecipientID) {
				d.push(ctx, session, notice)
			}

			return nil
		})
	}

	return g.Wait()
}

// fanOut delivers one event to many sessions concurrently. Each push has its
// own timeout; failures are logged and swallowed so one slow or broken
// connection cannot stall the others.
func (d *Dispatcher) fanOut(ctx context.Context, sessions []domain.Session, event domain.Event) {
	g := errgroup.Group{}
	for _, session := range sessions {
		session := session
		g.Go(func() error {
			d.push(ctx, session, event)
			return nil
		})
	}

	_ = g.Wait()
}

func (d *Dispatcher) push(ctx context.Context, session domain.Session, event domain.Event) {
	pctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()

	if err := session.Messenger.Send(pctx, event); err != nil {
		slog.ErrorContext(ctx, "push failed",
			"event_type", event.Type(),
			"user_id", session.UserID,
			"session_id", session.ID,
			"error", err,
		)
	}
}

const previewLimit = 120

// preview truncates the notification body to previewLimit bytes, backing up
// to the nearest rune boundary so multi-byte content stays valid UTF-8.
func preview(content string) string {
	if len(content) <= previewLimit {
		return content
	}

	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}

	return content[:cut]
}

func channelScope(event domain.Event) (uuid.UUID, bool) {
	switch ev := event.(type) {
	case domain.MessageReceived:
		return ev.Message.ChannelID, true
	case domain.MessageUpdated:
		return ev.Message.ChannelID, true
	case domain.MessageDeleted:
		return ev.ChannelID, true
	case domain.TypingStarted:
		return ev.ChannelID, true
	case domain.TypingStopped:
		return ev.ChannelID, true
	case domain.ReactionAdded:
		return ev.ChannelID, true
	case domain.ReactionRemoved:
		return ev.ChannelID, true
	case domain.MessagePinned:
		return ev.ChannelID, true
	case domain.MessageUnpinned:
		return ev.ChannelID, true
	case domain.ReplyAdded:
		return ev.Message.ChannelID, true
	case domain.CallStarted:
		return ev.ChannelID, true
	case domain.CallEnded:
		return ev.ChannelID, true
	}

	return uuid.Nil, false
}

func callScope(event domain.Event) (uuid.UUID, bool) {
	switch ev := event.(type) {
	case domain.ParticipantJoined:
		return ev.CallID, true
	case domain.ParticipantLeft:
		return ev.CallID, true
	case domain.ParticipantMuted:
		return ev.CallID, true
	case domain.ParticipantVideoChanged:
		return ev.CallID, true
	}

	return uuid.Nil, false
}

// eventRecipients lists the users a user-scoped event targets. Direct
// message and reaction events go to both ends so the sender's other devices
// stay in sync.
func eventRecipients(event domain.Event) ([]uuid.UUID, bool) {
	switch ev := event.(type) {
	case domain.DirectMessageReceived:
		return dedupe(ev.Message.RecipientID, ev.Message.SenderID), true
	case domain.DirectMessageUpdated:
		return dedupe(ev.Message.RecipientID, ev.Message.SenderID), true
	case domain.DirectMessageDeleted:
		return dedupe(ev.RecipientID, ev.SenderID), true
	case domain.DirectTypingStarted:
		return []uuid.UUID{ev.RecipientID}, true
	case domain.DirectTypingStopped:
		return []uuid.UUID{ev.RecipientID}, true
	case domain.DirectReactionAdded:
		return dedupe(ev.RecipientID, ev.SenderID), true
	case domain.DirectReactionRemoved:
		return dedupe(ev.RecipientID, ev.SenderID), true
	case domain.SignalingRelayed:
		return []uuid.UUID{ev.RecipientID}, true
	case domain.Notification:
		return []uuid.UUID{ev.RecipientID}, true
	}

	return nil, false
}

func dedupe(ids ...uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}
