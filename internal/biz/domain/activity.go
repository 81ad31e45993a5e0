package domain

import "time"

// UserTotal is the persisted running total for one (chat, user) pair.
// It is maintained in the same transaction as every event append so
// all-time aggregation never needs a table scan.
type UserTotal struct {
	ChatID         string
	UserID         string
	DisplayName    string
	TotalCount     int64
	FirstMessageAt time.Time
	LastMessageAt  time.Time
	HighestRank    int
}

// UserActivity is a user's derived per-chat activity summary. It is
// recomputed from event history and totals, never stored canonically.
type UserActivity struct {
	ChatID        string
	UserID        string
	DisplayName   string
	TotalCount    int64
	WindowCounts  map[Period]int64
	Ranks         map[Period]int
	LastMessageAt time.Time
	HighestRank   int
}
