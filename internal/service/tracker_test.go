package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/usecase"
	"github.com/anthropics/talkmeter/internal/data"
)

func newTrackerFixture(t *testing.T, maxSubscribers int, thresholds []int64) *TrackerService {
	t.Helper()
	repos, err := data.NewRepositories(filepath.Join(t.TempDir(), "talkmeter.db"))
	if err != nil {
		t.Fatalf("failed to create repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })

	spam := usecase.NewSpamGuard(usecase.SpamConfig{MaxMessages: 5, Window: 10 * time.Second})
	ranks := usecase.NewRankEngine(repos.Events, time.UTC)
	milestones := usecase.NewMilestoneTracker(repos.Milestones, thresholds)
	activity := usecase.NewActivityTracker(repos.Events, milestones, ranks)
	subs := usecase.NewSubscriptionBook(repos.Subscriptions, maxSubscribers)

	return NewTrackerService(spam, activity, ranks, subs)
}

// ingest runs the same admit-then-record path as the inbound transport.
func ingest(t *testing.T, svc *TrackerService, chatID, userID, name string, ts time.Time) bool {
	t.Helper()
	if !svc.Admit(chatID, userID, ts).Accepted() {
		return false
	}
	if _, err := svc.RecordMessage(context.Background(), chatID, userID, name, ts); err != nil {
		t.Fatalf("failed to record message: %v", err)
	}
	return true
}

func TestTrackerService_SpamBurstIsCapped(t *testing.T) {
	svc := newTrackerFixture(t, 10, nil)
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	recorded := 0
	for i := 0; i < 8; i++ {
		if ingest(t, svc, "chat-1", "alice", "Alice", base.Add(time.Duration(i)*time.Second)) {
			recorded++
		}
	}
	if recorded != 5 {
		t.Errorf("expected 5 of 8 burst messages recorded, got %d", recorded)
	}

	stats, err := svc.GetUserStats(context.Background(), "chat-1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalCount != 5 {
		t.Errorf("expected total 5, got %d", stats.TotalCount)
	}
}

func TestTrackerService_LeaderboardFirstToCount(t *testing.T) {
	svc := newTrackerFixture(t, 10, nil)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// Alice and bob tie at 2; alice reached the count first.
	ingest(t, svc, "chat-1", "alice", "Alice", base)
	ingest(t, svc, "chat-1", "bob", "Bob", base.Add(time.Second))
	ingest(t, svc, "chat-1", "alice", "Alice", base.Add(2*time.Second))
	ingest(t, svc, "chat-1", "bob", "Bob", base.Add(3*time.Second))

	snap, err := svc.GetLeaderboard(ctx, "chat-1", domain.PeriodAllTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap.Entries))
	}
	if snap.Entries[0].UserID != "alice" || snap.Entries[1].UserID != "bob" {
		t.Errorf("expected alice first on tie, got %s then %s",
			snap.Entries[0].UserID, snap.Entries[1].UserID)
	}
}

func TestTrackerService_MilestoneFiresOnce(t *testing.T) {
	svc := newTrackerFixture(t, 10, []int64{3})
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	var fired int
	for i := 0; i < 4; i++ {
		crossed, err := svc.RecordMessage(ctx, "chat-1", "alice", "Alice",
			base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fired += len(crossed)
	}
	if fired != 1 {
		t.Errorf("expected milestone to fire exactly once, fired %d times", fired)
	}

	achieved, err := svc.GetUserMilestones(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(achieved) != 1 || achieved[0].Threshold != 3 {
		t.Errorf("expected one achieved milestone at 3, got %+v", achieved)
	}
}

func TestTrackerService_SubscriptionCap(t *testing.T) {
	svc := newTrackerFixture(t, 1, nil)
	ctx := context.Background()

	accepted, err := svc.Subscribe(ctx, "chat-1", "alice")
	if err != nil || !accepted {
		t.Fatalf("expected first subscribe to succeed, got %v, %v", accepted, err)
	}

	accepted, err = svc.Subscribe(ctx, "chat-1", "bob")
	if accepted {
		t.Error("expected subscribe past cap to be refused")
	}
	if !errors.Is(err, domain.ErrSubscriptionCapExceeded) {
		t.Errorf("expected ErrSubscriptionCapExceeded, got %v", err)
	}

	if err := svc.Unsubscribe(ctx, "chat-1", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	accepted, err = svc.Subscribe(ctx, "chat-1", "bob")
	if err != nil || !accepted {
		t.Errorf("expected slot to be free after unsubscribe, got %v, %v", accepted, err)
	}
}

func TestTrackerService_UserStats(t *testing.T) {
	svc := newTrackerFixture(t, 10, nil)
	ctx := context.Background()
	now := time.Now()

	ingest(t, svc, "chat-1", "alice", "Alice", now.Add(-2*time.Millisecond))
	ingest(t, svc, "chat-1", "alice", "Alice", now.Add(-time.Millisecond))
	ingest(t, svc, "chat-1", "bob", "Bob", now)

	stats, err := svc.GetUserStats(ctx, "chat-1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalCount != 2 {
		t.Errorf("expected total 2, got %d", stats.TotalCount)
	}
	if stats.Ranks[domain.PeriodAllTime] != 1 {
		t.Errorf("expected all-time rank 1, got %d", stats.Ranks[domain.PeriodAllTime])
	}
	if stats.HighestRank != 1 {
		t.Errorf("expected highest rank 1, got %d", stats.HighestRank)
	}
	if stats.WindowCounts[domain.PeriodDaily] != 2 {
		t.Errorf("expected 2 messages today, got %d", stats.WindowCounts[domain.PeriodDaily])
	}
}
