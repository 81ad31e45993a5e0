package usecase

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/anthropics/talkmeter/internal/biz/domain"
)

// mockMilestoneRepo records milestones in memory with the same
// (user, threshold) uniqueness as the sqlite implementation.

type milestoneKey struct {
	userID    string
	threshold int64
}

type mockMilestoneRepo struct {
	records map[milestoneKey]*domain.Milestone
	err     error
}

func newMockMilestoneRepo() *mockMilestoneRepo {
	return &mockMilestoneRepo{records: make(map[milestoneKey]*domain.Milestone)}
}

func (m *mockMilestoneRepo) RecordOnce(ctx context.Context, ms *domain.Milestone) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := milestoneKey{userID: ms.UserID, threshold: ms.Threshold}
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = ms
	return true, nil
}

func (m *mockMilestoneRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Milestone, error) {
	var result []*domain.Milestone
	for _, ms := range m.records {
		if ms.UserID == userID {
			result = append(result, ms)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Threshold < result[j].Threshold })
	return result, nil
}

func TestMilestoneTracker_CrossingEmitsOnce(t *testing.T) {
	repo := newMockMilestoneRepo()
	tracker := NewMilestoneTracker(repo, []int64{1000, 5000})
	ctx := context.Background()
	now := time.Now()

	crossed, err := tracker.Check(ctx, "chat-1", "alice", 1000, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(crossed) != 1 || crossed[0].Threshold != 1000 {
		t.Fatalf("expected one milestone at 1000, got %v", crossed)
	}

	// Subsequent totals past the threshold never re-fire it.
	for _, total := range []int64{1000, 1001, 4999} {
		crossed, err = tracker.Check(ctx, "chat-1", "alice", total, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(crossed) != 0 {
			t.Errorf("total %d: expected no milestones, got %v", total, crossed)
		}
	}

	crossed, err = tracker.Check(ctx, "chat-1", "alice", 5000, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(crossed) != 1 || crossed[0].Threshold != 5000 {
		t.Fatalf("expected one milestone at 5000, got %v", crossed)
	}
}

func TestMilestoneTracker_JumpCrossesSeveral(t *testing.T) {
	repo := newMockMilestoneRepo()
	tracker := NewMilestoneTracker(repo, []int64{5000, 1000}) // unsorted on purpose
	ctx := context.Background()

	crossed, err := tracker.Check(ctx, "chat-1", "alice", 6000, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(crossed) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(crossed))
	}
	if crossed[0].Threshold != 1000 || crossed[1].Threshold != 5000 {
		t.Errorf("expected ascending thresholds, got %d then %d", crossed[0].Threshold, crossed[1].Threshold)
	}
}

func TestMilestoneTracker_BelowThreshold(t *testing.T) {
	repo := newMockMilestoneRepo()
	tracker := NewMilestoneTracker(repo, []int64{1000})

	crossed, err := tracker.Check(context.Background(), "chat-1", "alice", 999, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(crossed) != 0 {
		t.Errorf("expected no milestones below threshold, got %v", crossed)
	}
}

func TestMilestoneTracker_UsersAreIndependent(t *testing.T) {
	repo := newMockMilestoneRepo()
	tracker := NewMilestoneTracker(repo, []int64{100})
	ctx := context.Background()
	now := time.Now()

	if crossed, _ := tracker.Check(ctx, "chat-1", "alice", 100, now); len(crossed) != 1 {
		t.Fatal("expected alice to cross")
	}
	if crossed, _ := tracker.Check(ctx, "chat-1", "bob", 100, now); len(crossed) != 1 {
		t.Error("expected bob's crossing to be independent of alice's")
	}
}

func TestMilestoneTracker_Achieved(t *testing.T) {
	repo := newMockMilestoneRepo()
	tracker := NewMilestoneTracker(repo, []int64{10, 20})
	ctx := context.Background()

	tracker.Check(ctx, "chat-1", "alice", 25, time.Now())

	achieved, err := tracker.Achieved(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(achieved) != 2 {
		t.Fatalf("expected 2 achieved milestones, got %d", len(achieved))
	}
	if achieved[0].Threshold != 10 || achieved[1].Threshold != 20 {
		t.Error("expected milestones ordered by threshold")
	}
}
