package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/usecase"
)

// TrackerService is the in-process API consumed by the transport and
// command collaborators. It owns no protocol of its own.
type TrackerService struct {
	spam     *usecase.SpamGuard
	activity *usecase.ActivityTracker
	ranks    *usecase.RankEngine
	subs     *usecase.SubscriptionBook
}

// NewTrackerService creates a new tracker service
func NewTrackerService(
	spam *usecase.SpamGuard,
	activity *usecase.ActivityTracker,
	ranks *usecase.RankEngine,
	subs *usecase.SubscriptionBook,
) *TrackerService {
	return &TrackerService{
		spam:     spam,
		activity: activity,
		ranks:    ranks,
		subs:     subs,
	}
}

// Admit classifies an inbound message before it is recorded. The
// ingestion collaborator calls this first and only records accepted
// messages.
func (s *TrackerService) Admit(chatID, userID string, ts time.Time) domain.AdmitResult {
	result := s.spam.Admit(chatID, userID, ts)
	if !result.Accepted() {
		log.Debug().
			Str("chat_id", chatID).
			Str("user_id", userID).
			Msg("message rejected by spam guard")
	}
	return result
}

// RecordMessage persists one admitted message and returns the milestones
// it crossed. Called once per admitted message.
func (s *TrackerService) RecordMessage(ctx context.Context, chatID, userID, displayName string, ts time.Time) ([]*domain.Milestone, error) {
	return s.activity.RecordMessage(ctx, chatID, userID, displayName, ts)
}

// GetLeaderboard returns the chat's current leaderboard for the period
func (s *TrackerService) GetLeaderboard(ctx context.Context, chatID string, period domain.Period) (*domain.RankSnapshot, error) {
	return s.ranks.Leaderboard(ctx, chatID, period, time.Now())
}

// GetUserStats returns the user's activity summary for the chat
func (s *TrackerService) GetUserStats(ctx context.Context, chatID, userID string) (*domain.UserActivity, error) {
	return s.activity.UserStats(ctx, chatID, userID, time.Now())
}

// GetUserMilestones returns the milestones the user has achieved
func (s *TrackerService) GetUserMilestones(ctx context.Context, userID string) ([]*domain.Milestone, error) {
	return s.activity.Milestones(ctx, userID)
}

// Subscribe opts the user in to leaderboard notifications. Returns
// domain.ErrSubscriptionCapExceeded when the chat's cap is reached.
func (s *TrackerService) Subscribe(ctx context.Context, chatID, userID string) (bool, error) {
	return s.subs.Subscribe(ctx, chatID, userID)
}

// Unsubscribe opts the user out of leaderboard notifications
func (s *TrackerService) Unsubscribe(ctx context.Context, chatID, userID string) error {
	return s.subs.Unsubscribe(ctx, chatID, userID)
}
