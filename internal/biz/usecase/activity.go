package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/repo"
)

// ActivityTracker runs the ingestion pipeline for admitted messages:
// durable append, milestone detection, rank cache invalidation, and
// best-rank bookkeeping. It also assembles per-user stats.
type ActivityTracker struct {
	events     repo.EventRepo
	milestones *MilestoneTracker
	ranks      *RankEngine
}

// NewActivityTracker creates a new activity tracker
func NewActivityTracker(events repo.EventRepo, milestones *MilestoneTracker, ranks *RankEngine) *ActivityTracker {
	return &ActivityTracker{
		events:     events,
		milestones: milestones,
		ranks:      ranks,
	}
}

// RecordMessage persists one admitted message and returns any milestones
// it crossed. The caller is expected to have passed the message through
// the spam guard and deduplicated transport retries; each call here
// counts as one real message.
func (t *ActivityTracker) RecordMessage(ctx context.Context, chatID, userID, displayName string, ts time.Time) ([]*domain.Milestone, error) {
	ev := &domain.MessageEvent{
		ChatID:      chatID,
		UserID:      userID,
		DisplayName: displayName,
		Timestamp:   ts,
	}

	total, err := t.events.Append(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("failed to append message event: %w", err)
	}

	t.ranks.Invalidate(chatID)

	crossed, err := t.milestones.Check(ctx, chatID, userID, total, ts)
	if err != nil {
		// The event itself is already durable; surface the fault so the
		// caller can log it, but don't undo the count.
		return crossed, err
	}

	// Track the best all-time rank ever achieved. Best effort: a failure
	// here must not fail ingestion.
	if rank, err := t.events.AllTimeRank(ctx, chatID, userID); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Str("user_id", userID).Msg("failed to compute all-time rank")
	} else if err := t.events.UpdateHighestRank(ctx, chatID, userID, rank); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Str("user_id", userID).Msg("failed to update highest rank")
	}

	return crossed, nil
}

// Milestones returns the user's achieved milestones, lowest first
func (t *ActivityTracker) Milestones(ctx context.Context, userID string) ([]*domain.Milestone, error) {
	return t.milestones.Achieved(ctx, userID)
}

// UserStats assembles the user's activity summary for the chat: all-time
// total, per-period window counts, current ranks, and best rank.
func (t *ActivityTracker) UserStats(ctx context.Context, chatID, userID string, now time.Time) (*domain.UserActivity, error) {
	activity := &domain.UserActivity{
		ChatID:       chatID,
		UserID:       userID,
		WindowCounts: make(map[domain.Period]int64),
		Ranks:        make(map[domain.Period]int),
	}

	total, err := t.events.UserTotal(ctx, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user totals: %w", err)
	}
	if total == nil {
		// Never spoke in this chat; zero stats, not an error.
		return activity, nil
	}

	activity.DisplayName = total.DisplayName
	activity.TotalCount = total.TotalCount
	activity.LastMessageAt = total.LastMessageAt
	activity.HighestRank = total.HighestRank

	loc := t.ranks.Location()
	for _, period := range domain.Periods() {
		if period == domain.PeriodAllTime {
			activity.WindowCounts[period] = total.TotalCount
		} else {
			count, err := t.events.CountSince(ctx, chatID, userID, period.Start(now, loc))
			if err != nil {
				return nil, fmt.Errorf("failed to count %s window: %w", period, err)
			}
			activity.WindowCounts[period] = count
		}

		rank, err := t.ranks.UserRank(ctx, chatID, userID, period, now)
		if err != nil {
			return nil, err
		}
		activity.Ranks[period] = rank
	}

	return activity, nil
}
