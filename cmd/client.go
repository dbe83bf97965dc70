package cmd

import (
	"context"
	"fmt"

	"github.com/arthurdotwork/relay/internal/client"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// Client runs an interactive gateway client against the development server.
func Client(ctx context.Context, c *cobra.Command) error {
	prompt := promptui.Prompt{Label: "Username"}
	username, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("prompt.Run: %w", err)
	}

	userID := uuid.New()

	gateway := client.New(client.Options{
		URL:   "ws://localhost:56001/ws",
		Token: fmt.Sprintf("%s:%s", userID, username),
	}, printHandlers())

	if err := gateway.Connect(ctx); err != nil {
		return fmt.Errorf("gateway.Connect: %w", err)
	}
	defer gateway.Close()

	fmt.Printf("Connected as %s (%s)\n", username, userID)

	channelID := uuid.New()
	if err := gateway.JoinChannel(ctx, channelID); err != nil {
		return fmt.Errorf("gateway.JoinChannel: %w", err)
	}

	fmt.Printf("Joined channel %s\n", channelID)

	for {
		action, err := selectAction(ctx)
		if err != nil {
			return fmt.Errorf("selectAction: %w", err)
		}

		switch action {
		case "start typing":
			err = gateway.StartTyping(ctx, channelID)
		case "stop typing":
			err = gateway.StopTyping(ctx, channelID)
		case "set presence: online":
			err = gateway.UpdatePresence(ctx, "online", "")
		case "set presence: away":
			err = gateway.UpdatePresence(ctx, "away", "stepped out")
		case "set presence: busy":
			err = gateway.UpdatePresence(ctx, "busy", "in a call")
		case "join call":
			err = gateway.JoinCall(ctx, channelID, false)
		case "leave call":
			err = gateway.LeaveCall(ctx, channelID)
		case "quit":
			return nil
		}

		if err != nil {
			fmt.Printf("error: %s\n", err)
		}
	}
}

func selectAction(ctx context.Context) (string, error) {
	sel := promptui.Select{
		Label: "Action",
		Items: []string{
			"start typing",
			"stop typing",
			"set presence: online",
			"set presence: away",
			"set presence: busy",
			"join call",
			"leave call",
			"quit",
		},
	}

	if ctx.Err() != nil {
		return "quit", nil
	}

	_, action, err := sel.Run()
	if err != nil {
		return "", fmt.Errorf("sel.Run: %w", err)
	}

	return action, nil
}

func printHandlers() *client.Handlers {
	return &client.Handlers{
		TypingStarted: func(_ context.Context, ev domain.TypingStarted) {
			fmt.Printf("%s is typing in %s\n", ev.UserName, ev.ChannelID)
		},
		TypingStopped: func(_ context.Context, ev domain.TypingStopped) {
			fmt.Printf("%s stopped typing in %s\n", ev.UserID, ev.ChannelID)
		},
		PresenceUpdated: func(_ context.Context, ev domain.PresenceUpdated) {
			fmt.Printf("%s is now %s %s\n", ev.UserID, ev.Status, ev.StatusMessage)
		},
		OnlineStateChanged: func(_ context.Context, ev domain.OnlineStateChanged) {
			state := "offline"
			if ev.Online {
				state = "online"
			}
			fmt.Printf("%s went %s\n", ev.UserID, state)
		},
		ParticipantJoined: func(_ context.Context, ev domain.ParticipantJoined) {
			fmt.Printf("%s joined call %s\n", ev.UserName, ev.CallID)
		},
		ParticipantLeft: func(_ context.Context, ev domain.ParticipantLeft) {
			fmt.Printf("%s left call %s\n", ev.UserID, ev.CallID)
		},
		MessageReceived: func(_ context.Context, ev domain.MessageReceived) {
			fmt.Printf("%s: %s\n", ev.Message.SenderName, ev.Message.Content)
		},
	}
}
