package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/repo"
)

// MilestoneTracker watches cumulative per-user totals and fires each
// configured threshold exactly once per user. Idempotency lives in the
// store: re-checking an already-recorded threshold emits nothing.
type MilestoneTracker struct {
	milestones repo.MilestoneRepo
	thresholds []int64
}

// NewMilestoneTracker creates a new milestone tracker. Thresholds are
// copied and sorted ascending.
func NewMilestoneTracker(milestones repo.MilestoneRepo, thresholds []int64) *MilestoneTracker {
	sorted := make([]int64, len(thresholds))
	copy(sorted, thresholds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return &MilestoneTracker{
		milestones: milestones,
		thresholds: sorted,
	}
}

// Check emits one milestone for every configured threshold the new total
// has reached that was not recorded before. Safe under duplicate or
// concurrent delivery of the same total.
func (t *MilestoneTracker) Check(ctx context.Context, chatID, userID string, newTotal int64, at time.Time) ([]*domain.Milestone, error) {
	var crossed []*domain.Milestone

	for _, threshold := range t.thresholds {
		if threshold > newTotal {
			break
		}

		m := &domain.Milestone{
			UserID:     userID,
			ChatID:     chatID,
			Threshold:  threshold,
			AchievedAt: at,
		}
		created, err := t.milestones.RecordOnce(ctx, m)
		if err != nil {
			return crossed, fmt.Errorf("failed to record milestone %d for user %s: %w", threshold, userID, err)
		}
		if created {
			log.Info().
				Str("user_id", userID).
				Str("chat_id", chatID).
				Int64("threshold", threshold).
				Msg("milestone reached")
			crossed = append(crossed, m)
		}
	}
	return crossed, nil
}

// Achieved returns the user's recorded milestones, lowest first
func (t *MilestoneTracker) Achieved(ctx context.Context, userID string) ([]*domain.Milestone, error) {
	return t.milestones.ListByUser(ctx, userID)
}
