package domain

import "time"

// Milestone is a one-time celebration record created the first time a
// user's cumulative count reaches a configured threshold. Uniqueness is
// per (user, threshold); the chat that triggered the crossing is kept
// for audit only.
type Milestone struct {
	UserID     string
	ChatID     string
	Threshold  int64
	AchievedAt time.Time
}
