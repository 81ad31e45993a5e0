package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/repo"
)

// milestoneRepo implements the milestone record repository
type milestoneRepo struct {
	db *sql.DB
}

func newMilestoneRepo(db *sql.DB) (repo.MilestoneRepo, error) {
	// The primary key is the idempotency invariant: one row per
	// (user, threshold), ever.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS milestones (
			user_id TEXT NOT NULL,
			threshold INTEGER NOT NULL,
			chat_id TEXT NOT NULL DEFAULT '',
			achieved_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, threshold)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create milestones table: %w", err)
	}
	return &milestoneRepo{db: db}, nil
}

// RecordOnce inserts the milestone if absent and reports whether this
// call created it. Concurrent duplicate checks race on the insert; only
// one observes a created row.
func (r *milestoneRepo) RecordOnce(ctx context.Context, m *domain.Milestone) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO milestones (user_id, threshold, chat_id, achieved_at)
		VALUES (?, ?, ?, ?)
	`, m.UserID, m.Threshold, m.ChatID, m.AchievedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to record milestone: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check milestone insert: %w", err)
	}
	return affected > 0, nil
}

// ListByUser returns the user's recorded milestones, lowest threshold first
func (r *milestoneRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Milestone, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, threshold, chat_id, achieved_at
		FROM milestones
		WHERE user_id = ?
		ORDER BY threshold ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*domain.Milestone
	for rows.Next() {
		var m domain.Milestone
		var achieved int64
		if err := rows.Scan(&m.UserID, &m.Threshold, &m.ChatID, &achieved); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		m.AchievedAt = time.UnixMilli(achieved)
		milestones = append(milestones, &m)
	}
	return milestones, rows.Err()
}
