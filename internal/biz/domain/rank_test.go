package domain

import (
	"testing"
	"time"
)

func snapshotWith(entries ...RankEntry) *RankSnapshot {
	return &RankSnapshot{
		ChatID:     "chat-1",
		Period:     PeriodAllTime,
		ComputedAt: time.Now(),
		Entries:    entries,
	}
}

func TestRankSnapshot_RankOf(t *testing.T) {
	snap := snapshotWith(
		RankEntry{UserID: "alice", Count: 50},
		RankEntry{UserID: "bob", Count: 50},
		RankEntry{UserID: "carol", Count: 10},
	)

	tests := []struct {
		userID string
		want   int
	}{
		{"alice", 1},
		{"bob", 2},
		{"carol", 3},
		{"dave", 0},
	}

	for _, tt := range tests {
		if got := snap.RankOf(tt.userID); got != tt.want {
			t.Errorf("RankOf(%q) = %d, want %d", tt.userID, got, tt.want)
		}
	}
}

func TestRankSnapshot_Empty(t *testing.T) {
	if !snapshotWith().Empty() {
		t.Error("expected empty snapshot")
	}
	if snapshotWith(RankEntry{UserID: "alice", Count: 1}).Empty() {
		t.Error("expected non-empty snapshot")
	}
}

func TestRankSnapshot_SameOrder(t *testing.T) {
	a := snapshotWith(
		RankEntry{UserID: "alice", Count: 5},
		RankEntry{UserID: "bob", Count: 3},
	)

	same := snapshotWith(
		RankEntry{UserID: "alice", Count: 5},
		RankEntry{UserID: "bob", Count: 3},
	)
	if !a.SameOrder(same) {
		t.Error("expected identical boards to compare equal")
	}

	reordered := snapshotWith(
		RankEntry{UserID: "bob", Count: 5},
		RankEntry{UserID: "alice", Count: 3},
	)
	if a.SameOrder(reordered) {
		t.Error("expected reordered board to differ")
	}

	countChanged := snapshotWith(
		RankEntry{UserID: "alice", Count: 6},
		RankEntry{UserID: "bob", Count: 3},
	)
	if a.SameOrder(countChanged) {
		t.Error("expected count change to differ")
	}

	if a.SameOrder(nil) {
		t.Error("expected nil board to differ")
	}
	if a.SameOrder(snapshotWith(RankEntry{UserID: "alice", Count: 5})) {
		t.Error("expected shorter board to differ")
	}
}
