package repo

import "context"

// SubscriptionRepo is the notification subscription repository interface
type SubscriptionRepo interface {
	// Subscribe activates a subscription unless the chat's active count
	// has reached maxUsers. Reports whether the subscription is active
	// after the call. Subscribing while already active is a no-op accept.
	Subscribe(ctx context.Context, chatID, userID string, maxUsers int) (bool, error)

	// Unsubscribe deactivates a subscription. Unsubscribing a user who
	// was never subscribed is not an error.
	Unsubscribe(ctx context.Context, chatID, userID string) error

	// ActiveUsers returns the user IDs with an active subscription for
	// the chat, in subscription order.
	ActiveUsers(ctx context.Context, chatID string) ([]string, error)

	// ActiveCount counts active subscriptions for the chat.
	ActiveCount(ctx context.Context, chatID string) (int, error)

	// ChatsWithSubscribers returns the IDs of all chats that have at
	// least one active subscription.
	ChatsWithSubscribers(ctx context.Context) ([]string, error)
}
