package client

import (
	"context"
	"sync"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/google/uuid"
)

// Reaction is one user's reaction to a message as mirrored in the cache.
type Reaction struct {
	UserID uuid.UUID
	Emoji  string
}

// PresenceEntry mirrors another user's presence.
type PresenceEntry struct {
	Online        bool
	Status        string
	StatusMessage string
}

// Cache is the local read model mirroring server state. It is mutated only
// by event-driven deltas (via the Synchronizer) and by direct service
// responses; every mutation is idempotent so re-delivered events cannot
// corrupt it.
type Cache struct {
	mu sync.RWMutex

	channelMessages map[uuid.UUID][]domain.Message
	conversations   map[uuid.UUID][]domain.DirectMessage
	reactions       map[uuid.UUID][]Reaction
	replyCounts     map[uuid.UUID]int
	pins            map[uuid.UUID]map[uuid.UUID]struct{}
	presence        map[uuid.UUID]PresenceEntry
	typing          map[uuid.UUID]map[uuid.UUID]struct{}
	unread          map[uuid.UUID]int
}

func NewCache() *Cache {
	return &Cache{
		channelMessages: make(map[uuid.UUID][]domain.Message),
		conversations:   make(map[uuid.UUID][]domain.DirectMessage),
		reactions:       make(map[uuid.UUID][]Reaction),
		replyCounts:     make(map[uuid.UUID]int),
		pins:            make(map[uuid.UUID]map[uuid.UUID]struct{}),
		presence:        make(map[uuid.UUID]PresenceEntry),
		typing:          make(map[uuid.UUID]map[uuid.UUID]struct{}),
		unread:          make(map[uuid.UUID]int),
	}
}

// ChannelMessages returns the channel's messages, newest first.
func (c *Cache) ChannelMessages(channelID uuid.UUID) []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]domain.Message(nil), c.channelMessages[channelID]...)
}

// Conversation returns the direct messages exchanged with a peer, newest
// first.
func (c *Cache) Conversation(peerID uuid.UUID) []domain.DirectMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]domain.DirectMessage(nil), c.conversations[peerID]...)
}

func (c *Cache) Reactions(messageID uuid.UUID) []Reaction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Reaction(nil), c.reactions[messageID]...)
}

func (c *Cache) ReplyCount(messageID uuid.UUID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.replyCounts[messageID]
}

func (c *Cache) IsPinned(channelID, messageID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.pins[channelID][messageID]

	return ok
}

func (c *Cache) Presence(userID uuid.UUID) PresenceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.presence[userID]
}

// TypingUsers lists users currently typing in the channel.
func (c *Cache) TypingUsers(channelID uuid.UUID) []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(c.typing[channelID]))
	for id := range c.typing[channelID] {
		users = append(users, id)
	}

	return users
}

func (c *Cache) Unread(channelID uuid.UUID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.unread[channelID]
}

func (c *Cache) ClearUnread(channelID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.unread, channelID)
}

// Synchronizer applies event-driven deltas to the cache: inserts prepend
// after de-duplicating by identity, updates replace by identity, deletes
// remove by identity, and counters move by fixed deltas floored at zero.
type Synchronizer struct {
	selfID uuid.UUID
	cache  *Cache
}

func NewSynchronizer(selfID uuid.UUID, cache *Cache) *Synchronizer {
	return &Synchronizer{selfID: selfID, cache: cache}
}

// Handlers wires every cache mutation into the enumerated event mapping.
func (s *Synchronizer) Handlers() *Handlers {
	return &Handlers{
		MessageReceived: func(_ context.Context, ev domain.MessageReceived) {
			s.insertChannelMessage(ev.Message)
		},
		MessageUpdated: func(_ context.Context, ev domain.MessageUpdated) {
			s.updateChannelMessage(ev.Message)
		},
		MessageDeleted: func(_ context.Context, ev domain.MessageDeleted) {
			s.deleteChannelMessage(ev.ChannelID, ev.MessageID)
		},
		DirectMessageReceived: func(_ context.Context, ev domain.DirectMessageReceived) {
			s.insertDirectMessage(ev.Message)
		},
		DirectMessageUpdated: func(_ context.Context, ev domain.DirectMessageUpdated) {
			s.updateDirectMessage(ev.Message)
		},
		DirectMessageDeleted: func(_ context.Context, ev domain.DirectMessageDeleted) {
			s.deleteDirectMessage(s.peer(ev.SenderID, ev.RecipientID), ev.MessageID)
		},
		TypingStarted: func(_ context.Context, ev domain.TypingStarted) {
			s.setTyping(ev.ChannelID, ev.UserID, true)
		},
		TypingStopped: func(_ context.Context, ev domain.TypingStopped) {
			s.setTyping(ev.ChannelID, ev.UserID, false)
		},
		PresenceUpdated: func(_ context.Context, ev domain.PresenceUpdated) {
			s.updatePresence(ev)
		},
		OnlineStateChanged: func(_ context.Context, ev domain.OnlineStateChanged) {
			s.setOnline(ev.UserID, ev.Online)
		},
		ReactionAdded: func(_ context.Context, ev domain.ReactionAdded) {
			s.addReaction(ev.MessageID, Reaction{UserID: ev.UserID, Emoji: ev.Emoji})
		},
		ReactionRemoved: func(_ context.Context, ev domain.ReactionRemoved) {
			s.removeReaction(ev.MessageID, Reaction{UserID: ev.UserID, Emoji: ev.Emoji})
		},
		DirectReactionAdded: func(_ context.Context, ev domain.DirectReactionAdded) {
			s.addReaction(ev.MessageID, Reaction{UserID: ev.SenderID, Emoji: ev.Emoji})
		},
		DirectReactionRemoved: func(_ context.Context, ev domain.DirectReactionRemoved) {
			s.removeReaction(ev.MessageID, Reaction{UserID: ev.SenderID, Emoji: ev.Emoji})
		},
		MessagePinned: func(_ context.Context, ev domain.MessagePinned) {
			s.setPinned(ev.ChannelID, ev.MessageID, true)
		},
		MessageUnpinned: func(_ context.Context, ev domain.MessageUnpinned) {
			s.setPinned(ev.ChannelID, ev.MessageID, false)
		},
		ReplyAdded: func(_ context.Context, ev domain.ReplyAdded) {
			s.addReply(ev.ParentID, ev.Message)
		},
		Notification: func(_ context.Context, ev domain.Notification) {
			s.bumpUnread(ev.ChannelID)
		},
	}
}

func (s *Synchronizer) peer(senderID, recipientID uuid.UUID) uuid.UUID {
	if senderID == s.selfID {
		return recipientID
	}

	return senderID
}

func (s *Synchronizer) insertChannelMessage(message domain.Message) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.channelMessages[message.ChannelID] {
		if existing.ID == message.ID {
			return
		}
	}

	c.channelMessages[message.ChannelID] = append([]domain.Message{message}, c.channelMessages[message.ChannelID]...)
}

func (s *Synchronizer) updateChannelMessage(message domain.Message) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := c.channelMessages[message.ChannelID]
	for i, existing := range messages {
		if existing.ID == message.ID {
			messages[i] = message
			return
		}
	}
}

func (s *Synchronizer) deleteChannelMessage(channelID, messageID uuid.UUID) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := c.channelMessages[channelID]
	for i, existing := range messages {
		if existing.ID != messageID {
			continue
		}

		c.channelMessages[channelID] = append(messages[:i:i], messages[i+1:]...)

		// A deleted reply moves its parent's counter back down, floored
		// at zero.
		if existing.ReplyTo != nil {
			if count := c.replyCounts[*existing.ReplyTo]; count > 0 {
				c.replyCounts[*existing.ReplyTo] = count - 1
			}
		}

		delete(c.reactions, messageID)
		delete(c.pins[channelID], messageID)

		return
	}
}

func (s *Synchronizer) insertDirectMessage(message domain.DirectMessage) {
	peer := s.peer(message.SenderID, message.RecipientID)

	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.conversations[peer] {
		if existing.ID == message.ID {
			return
		}
	}

	c.conversations[peer] = append([]domain.DirectMessage{message}, c.conversations[peer]...)
}

func (s *Synchronizer) updateDirectMessage(message domain.DirectMessage) {
	peer := s.peer(message.SenderID, message.RecipientID)

	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := c.conversations[peer]
	for i, existing := range messages {
		if existing.ID == message.ID {
			messages[i] = message
			return
		}
	}
}

func (s *Synchronizer) deleteDirectMessage(peerID, messageID uuid.UUID) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := c.conversations[peerID]
	for i, existing := range messages {
		if existing.ID == messageID {
			c.conversations[peerID] = append(messages[:i:i], messages[i+1:]...)
			delete(c.reactions, messageID)

			return
		}
	}
}

func (s *Synchronizer) addReaction(messageID uuid.UUID, reaction Reaction) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.reactions[messageID] {
		if existing == reaction {
			return
		}
	}

	c.reactions[messageID] = append(c.reactions[messageID], reaction)
}

func (s *Synchronizer) removeReaction(messageID uuid.UUID, reaction Reaction) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	reactions := c.reactions[messageID]
	for i, existing := range reactions {
		if existing == reaction {
			c.reactions[messageID] = append(reactions[:i:i], reactions[i+1:]...)
			return
		}
	}
}

func (s *Synchronizer) setPinned(channelID, messageID uuid.UUID, pinned bool) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if !pinned {
		delete(c.pins[channelID], messageID)
		return
	}

	if c.pins[channelID] == nil {
		c.pins[channelID] = make(map[uuid.UUID]struct{})
	}
	c.pins[channelID][messageID] = struct{}{}
}

// addReply inserts the reply message and bumps the parent counter by one.
// The counter only moves when the insert was not a duplicate, which keeps
// re-delivery idempotent.
func (s *Synchronizer) addReply(parentID uuid.UUID, message domain.Message) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.channelMessages[message.ChannelID] {
		if existing.ID == message.ID {
			return
		}
	}

	c.channelMessages[message.ChannelID] = append([]domain.Message{message}, c.channelMessages[message.ChannelID]...)
	c.replyCounts[parentID]++
}

func (s *Synchronizer) updatePresence(ev domain.PresenceUpdated) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.presence[ev.UserID]
	entry.Status = ev.Status
	entry.StatusMessage = ev.StatusMessage
	c.presence[ev.UserID] = entry
}

func (s *Synchronizer) setOnline(userID uuid.UUID, online bool) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.presence[userID]
	entry.Online = online
	c.presence[userID] = entry
}

func (s *Synchronizer) setTyping(channelID, userID uuid.UUID, typing bool) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if !typing {
		delete(c.typing[channelID], userID)
		return
	}

	if c.typing[channelID] == nil {
		c.typing[channelID] = make(map[uuid.UUID]struct{})
	}
	c.typing[channelID][userID] = struct{}{}
}

func (s *Synchronizer) bumpUnread(channelID uuid.UUID) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unread[channelID]++
}
