package repo

import (
	"context"
	"time"

	"github.com/anthropics/talkmeter/internal/biz/domain"
)

// EventRepo is the message event repository interface.
// It is the durable source of truth for all aggregation.
type EventRepo interface {
	// Append persists an accepted event and updates the per-user running
	// totals in the same transaction. Returns the user's new all-time
	// total for the chat.
	Append(ctx context.Context, ev *domain.MessageEvent) (int64, error)

	// ListSince returns all events for the chat from since onward,
	// oldest first. A zero since means all-time.
	ListSince(ctx context.Context, chatID string, since time.Time) ([]*domain.MessageEvent, error)

	// AggregateSince returns per-user counts within the window, ordered
	// by count descending, then earliest last message, then user ID.
	AggregateSince(ctx context.Context, chatID string, since time.Time) ([]domain.RankEntry, error)

	// CountSince counts one user's events in the window.
	CountSince(ctx context.Context, chatID, userID string, since time.Time) (int64, error)

	// UserTotal returns the running totals for a user, or nil if the
	// user has never been recorded in the chat.
	UserTotal(ctx context.Context, chatID, userID string) (*domain.UserTotal, error)

	// AllTimeRank returns the user's current 1-based all-time rank in
	// the chat, or 0 if the user has no recorded messages.
	AllTimeRank(ctx context.Context, chatID, userID string) (int, error)

	// UpdateHighestRank records rank as the user's best all-time rank if
	// it improves on the stored one.
	UpdateHighestRank(ctx context.Context, chatID, userID string, rank int) error

	// DeleteOlderThan removes events older than before. Running totals
	// are untouched; they are all-time by definition.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
