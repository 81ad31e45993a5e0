package domain

import "time"

// RankEntry is one row of a leaderboard.
type RankEntry struct {
	UserID        string
	DisplayName   string
	Count         int64
	LastMessageAt time.Time
}

// RankSnapshot is an ordered leaderboard: descending by count, ties
// broken by earliest last message (first-to-count), then by user ID so
// identical inputs always produce identical output. Snapshots are
// ephemeral and recomputed per query.
type RankSnapshot struct {
	ChatID     string
	Period     Period
	ComputedAt time.Time
	Entries    []RankEntry
}

// Empty checks if the snapshot has no entries
func (s *RankSnapshot) Empty() bool {
	return len(s.Entries) == 0
}

// RankOf returns the 1-based rank of the user, or 0 if absent.
func (s *RankSnapshot) RankOf(userID string) int {
	for i, e := range s.Entries {
		if e.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// SameOrder reports whether both snapshots rank the same users with the
// same counts in the same positions.
func (s *RankSnapshot) SameOrder(other *RankSnapshot) bool {
	if other == nil || len(s.Entries) != len(other.Entries) {
		return false
	}
	for i, e := range s.Entries {
		o := other.Entries[i]
		if e.UserID != o.UserID || e.Count != o.Count {
			return false
		}
	}
	return true
}
