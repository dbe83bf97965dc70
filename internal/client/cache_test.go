package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/arthurdotwork/relay/internal/client"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func message(channelID uuid.UUID) domain.Message {
	return domain.Message{
		ID:         uuid.New(),
		ChannelID:  channelID,
		SenderID:   uuid.New(),
		SenderName: "arthur",
		Content:    "hello",
		SentAt:     time.Now(),
	}
}

func TestSynchronizer_ChannelMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should insert messages newest first", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		older := message(channelID)
		newer := message(channelID)

		handlers.MessageReceived(ctx, domain.MessageReceived{Message: older})
		handlers.MessageReceived(ctx, domain.MessageReceived{Message: newer})

		messages := cache.ChannelMessages(channelID)
		require.Len(t, messages, 2)
		require.Equal(t, newer.ID, messages[0].ID)
		require.Equal(t, older.ID, messages[1].ID)
	})

	t.Run("it should ignore a re-delivered message", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		msg := message(channelID)

		handlers.MessageReceived(ctx, domain.MessageReceived{Message: msg})
		handlers.MessageReceived(ctx, domain.MessageReceived{Message: msg})

		require.Len(t, cache.ChannelMessages(channelID), 1)
	})

	t.Run("it should replace a message on update", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		msg := message(channelID)
		handlers.MessageReceived(ctx, domain.MessageReceived{Message: msg})

		edited := msg
		edited.Content = "hello, edited"
		handlers.MessageUpdated(ctx, domain.MessageUpdated{Message: edited})

		messages := cache.ChannelMessages(channelID)
		require.Len(t, messages, 1)
		require.Equal(t, "hello, edited", messages[0].Content)
	})

	t.Run("it should drop the update of an unknown message", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		handlers.MessageUpdated(ctx, domain.MessageUpdated{Message: message(channelID)})

		require.Empty(t, cache.ChannelMessages(channelID))
	})

	t.Run("it should remove a deleted message and its reactions", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		msg := message(channelID)
		handlers.MessageReceived(ctx, domain.MessageReceived{Message: msg})
		handlers.ReactionAdded(ctx, domain.ReactionAdded{
			ChannelID: channelID,
			MessageID: msg.ID,
			UserID:    uuid.New(),
			Emoji:     "👍",
		})

		handlers.MessageDeleted(ctx, domain.MessageDeleted{ChannelID: channelID, MessageID: msg.ID})

		require.Empty(t, cache.ChannelMessages(channelID))
		require.Empty(t, cache.Reactions(msg.ID))
	})
}

func TestSynchronizer_Replies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should count replies once per unique message", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		parent := message(channelID)
		handlers.MessageReceived(ctx, domain.MessageReceived{Message: parent})

		reply := message(channelID)
		reply.ReplyTo = &parent.ID

		handlers.ReplyAdded(ctx, domain.ReplyAdded{ParentID: parent.ID, Message: reply})
		handlers.ReplyAdded(ctx, domain.ReplyAdded{ParentID: parent.ID, Message: reply})

		require.Equal(t, 1, cache.ReplyCount(parent.ID))
		require.Len(t, cache.ChannelMessages(channelID), 2)
	})

	t.Run("it should decrement the parent count when a reply is deleted", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		parent := message(channelID)
		handlers.MessageReceived(ctx, domain.MessageReceived{Message: parent})

		reply := message(channelID)
		reply.ReplyTo = &parent.ID
		handlers.ReplyAdded(ctx, domain.ReplyAdded{ParentID: parent.ID, Message: reply})

		handlers.MessageDeleted(ctx, domain.MessageDeleted{ChannelID: channelID, MessageID: reply.ID})
		require.Equal(t, 0, cache.ReplyCount(parent.ID))

		// A second delete of the same reply must not push the count below zero.
		handlers.MessageDeleted(ctx, domain.MessageDeleted{ChannelID: channelID, MessageID: reply.ID})
		require.Equal(t, 0, cache.ReplyCount(parent.ID))
	})
}

func TestSynchronizer_Conversations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should key the conversation by the peer on both directions", func(t *testing.T) {
		t.Parallel()

		selfID := uuid.New()
		peerID := uuid.New()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(selfID, cache).Handlers()

		inbound := domain.DirectMessage{
			ID:          uuid.New(),
			SenderID:    peerID,
			SenderName:  "guillaume",
			RecipientID: selfID,
			Content:     "hi",
			SentAt:      time.Now(),
		}
		outbound := domain.DirectMessage{
			ID:          uuid.New(),
			SenderID:    selfID,
			SenderName:  "arthur",
			RecipientID: peerID,
			Content:     "hello",
			SentAt:      time.Now(),
		}

		handlers.DirectMessageReceived(ctx, domain.DirectMessageReceived{Message: inbound})
		handlers.DirectMessageReceived(ctx, domain.DirectMessageReceived{Message: outbound})

		require.Len(t, cache.Conversation(peerID), 2)
		require.Empty(t, cache.Conversation(selfID))
	})

	t.Run("it should remove a deleted direct message", func(t *testing.T) {
		t.Parallel()

		selfID := uuid.New()
		peerID := uuid.New()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(selfID, cache).Handlers()

		msg := domain.DirectMessage{
			ID:          uuid.New(),
			SenderID:    peerID,
			RecipientID: selfID,
			Content:     "hi",
			SentAt:      time.Now(),
		}
		handlers.DirectMessageReceived(ctx, domain.DirectMessageReceived{Message: msg})

		handlers.DirectMessageDeleted(ctx, domain.DirectMessageDeleted{
			SenderID:    peerID,
			RecipientID: selfID,
			MessageID:   msg.ID,
		})

		require.Empty(t, cache.Conversation(peerID))
	})
}

func TestSynchronizer_Reactions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should add a reaction once and remove it by identity", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		messageID := uuid.New()
		userID := uuid.New()

		added := domain.ReactionAdded{ChannelID: uuid.New(), MessageID: messageID, UserID: userID, Emoji: "🎉"}
		handlers.ReactionAdded(ctx, added)
		handlers.ReactionAdded(ctx, added)
		require.Len(t, cache.Reactions(messageID), 1)

		handlers.ReactionRemoved(ctx, domain.ReactionRemoved{
			ChannelID: added.ChannelID,
			MessageID: messageID,
			UserID:    userID,
			Emoji:     "🎉",
		})
		require.Empty(t, cache.Reactions(messageID))
	})

	t.Run("it should keep reactions from different users distinct", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		messageID := uuid.New()
		channelID := uuid.New()

		handlers.ReactionAdded(ctx, domain.ReactionAdded{ChannelID: channelID, MessageID: messageID, UserID: uuid.New(), Emoji: "👍"})
		handlers.ReactionAdded(ctx, domain.ReactionAdded{ChannelID: channelID, MessageID: messageID, UserID: uuid.New(), Emoji: "👍"})

		require.Len(t, cache.Reactions(messageID), 2)
	})
}

func TestSynchronizer_Pins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should track pin and unpin per channel", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		messageID := uuid.New()

		handlers.MessagePinned(ctx, domain.MessagePinned{ChannelID: channelID, MessageID: messageID, PinnedBy: uuid.New()})
		require.True(t, cache.IsPinned(channelID, messageID))
		require.False(t, cache.IsPinned(uuid.New(), messageID))

		handlers.MessageUnpinned(ctx, domain.MessageUnpinned{ChannelID: channelID, MessageID: messageID})
		require.False(t, cache.IsPinned(channelID, messageID))
	})
}

func TestSynchronizer_PresenceAndTyping(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should merge status and online state independently", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		userID := uuid.New()

		handlers.PresenceUpdated(ctx, domain.PresenceUpdated{UserID: userID, Status: "away", StatusMessage: "brb"})
		handlers.OnlineStateChanged(ctx, domain.OnlineStateChanged{UserID: userID, Online: true})

		entry := cache.Presence(userID)
		require.Equal(t, "away", entry.Status)
		require.Equal(t, "brb", entry.StatusMessage)
		require.True(t, entry.Online)

		handlers.OnlineStateChanged(ctx, domain.OnlineStateChanged{UserID: userID, Online: false})
		entry = cache.Presence(userID)
		require.Equal(t, "away", entry.Status)
		require.False(t, entry.Online)
	})

	t.Run("it should track typing users per channel", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()
		userID := uuid.New()

		handlers.TypingStarted(ctx, domain.TypingStarted{ChannelID: channelID, UserID: userID, UserName: "arthur"})
		require.Equal(t, []uuid.UUID{userID}, cache.TypingUsers(channelID))

		handlers.TypingStopped(ctx, domain.TypingStopped{ChannelID: channelID, UserID: userID})
		require.Empty(t, cache.TypingUsers(channelID))
	})
}

func TestSynchronizer_Unread(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should count notifications per channel until cleared", func(t *testing.T) {
		t.Parallel()

		cache := client.NewCache()
		handlers := client.NewSynchronizer(uuid.New(), cache).Handlers()

		channelID := uuid.New()

		handlers.Notification(ctx, domain.Notification{RecipientID: uuid.New(), ChannelID: channelID, Title: "arthur", Body: "hello"})
		handlers.Notification(ctx, domain.Notification{RecipientID: uuid.New(), ChannelID: channelID, Title: "arthur", Body: "again"})
		require.Equal(t, 2, cache.Unread(channelID))

		cache.ClearUnread(channelID)
		require.Equal(t, 0, cache.Unread(channelID))
	})
}
