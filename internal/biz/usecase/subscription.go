package usecase

import (
	"context"
	"fmt"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/repo"
)

// SubscriptionBook manages notification opt-ins, enforcing the
// per-chat subscriber cap at subscribe time.
type SubscriptionBook struct {
	subs     repo.SubscriptionRepo
	maxUsers int
}

// NewSubscriptionBook creates a new subscription book
func NewSubscriptionBook(subs repo.SubscriptionRepo, maxUsers int) *SubscriptionBook {
	return &SubscriptionBook{
		subs:     subs,
		maxUsers: maxUsers,
	}
}

// Subscribe opts the user in to leaderboard notifications for the chat.
// Returns domain.ErrSubscriptionCapExceeded when the chat is full;
// callers must not retry that outcome.
func (b *SubscriptionBook) Subscribe(ctx context.Context, chatID, userID string) (bool, error) {
	ok, err := b.subs.Subscribe(ctx, chatID, userID, b.maxUsers)
	if err != nil {
		return false, fmt.Errorf("failed to subscribe user %s: %w", userID, err)
	}
	if !ok {
		return false, domain.ErrSubscriptionCapExceeded
	}
	return true, nil
}

// Unsubscribe opts the user out
func (b *SubscriptionBook) Unsubscribe(ctx context.Context, chatID, userID string) error {
	if err := b.subs.Unsubscribe(ctx, chatID, userID); err != nil {
		return fmt.Errorf("failed to unsubscribe user %s: %w", userID, err)
	}
	return nil
}

// Recipients returns the chat's active subscribers
func (b *SubscriptionBook) Recipients(ctx context.Context, chatID string) ([]string, error) {
	return b.subs.ActiveUsers(ctx, chatID)
}

// ActiveChats returns all chats with at least one active subscriber
func (b *SubscriptionBook) ActiveChats(ctx context.Context) ([]string, error) {
	return b.subs.ChatsWithSubscribers(ctx)
}
