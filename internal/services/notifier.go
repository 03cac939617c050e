package services

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"
)

// Notifier pushes realtime messages to a user's channel.
type Notifier interface {
	Notify(ctx context.Context, userID string, message any) error
}

// UserChannel is the per-user realtime channel name.
func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

type PubNubNotifier struct {
	pn *pubnub.PubNub
}

// NewPubNubNotifier returns nil when no publish key is configured.
func NewPubNubNotifier(publishKey, subscribeKey, secretKey, userID string) *PubNubNotifier {
	if publishKey == "" {
		return nil
	}

	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	pnConfig.PublishKey = publishKey
	pnConfig.SubscribeKey = subscribeKey
	pnConfig.SecretKey = secretKey

	return &PubNubNotifier{pn: pubnub.NewPubNub(pnConfig)}
}

func (n *PubNubNotifier) Notify(ctx context.Context, userID string, message any) error {
	_, _, err := n.pn.Publish().
		Channel(UserChannel(userID)).
		Message(message).
		QueryParam(nil).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish to %s: %w", UserChannel(userID), err)
	}
	return nil
}

func (n *PubNubNotifier) Close() {
	n.pn.Destroy()
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, any) error { return nil }

// notifyAsync delivers best-effort; failures are only logged.
func notifyAsync(logger *slog.Logger, n Notifier, userID string, message any) {
	go func() {
		if err := n.Notify(context.Background(), userID, message); err != nil {
			logger.Warn("Failed to push realtime notification", "userID", userID, "error", err)
		}
	}()
}
