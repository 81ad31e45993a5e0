package repo

import (
	"context"

	"github.com/anthropics/talkmeter/internal/biz/domain"
)

// MilestoneRepo is the milestone record repository interface
type MilestoneRepo interface {
	// RecordOnce persists the milestone unless one already exists for
	// the same (user, threshold). Reports whether this call created it.
	RecordOnce(ctx context.Context, m *domain.Milestone) (bool, error)

	// ListByUser returns all recorded milestones for a user, lowest
	// threshold first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Milestone, error)
}
