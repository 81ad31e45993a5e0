package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/repo"
)

type rankKey struct {
	chatID string
	period domain.Period
	bucket int64 // bucket start, unix millis
}

// RankEngine computes ordered leaderboards over the four periods.
// Snapshots are cached per (chat, period, bucket) until invalidated by
// ingestion; the bucket in the key makes period rollover a natural cache
// miss. Reads run concurrently with ingestion and may observe a
// tick-stale view, never a shrinking one.
type RankEngine struct {
	events repo.EventRepo
	loc    *time.Location

	mu    sync.Mutex
	cache map[rankKey]*domain.RankSnapshot
	gens  map[string]uint64
	group singleflight.Group
}

// NewRankEngine creates a new rank engine. Period boundaries are
// evaluated in loc; nil means UTC.
func NewRankEngine(events repo.EventRepo, loc *time.Location) *RankEngine {
	if loc == nil {
		loc = time.UTC
	}
	return &RankEngine{
		events: events,
		loc:    loc,
		cache:  make(map[rankKey]*domain.RankSnapshot),
		gens:   make(map[string]uint64),
	}
}

// Location returns the period-boundary timezone
func (e *RankEngine) Location() *time.Location {
	return e.loc
}

// Leaderboard computes the chat's leaderboard for the period bucket
// containing now. An empty window yields an empty snapshot, not an
// error. Concurrent calls for the same bucket share one computation.
func (e *RankEngine) Leaderboard(ctx context.Context, chatID string, period domain.Period, now time.Time) (*domain.RankSnapshot, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("invalid period %q", period)
	}

	start := period.Start(now, e.loc)
	key := rankKey{chatID: chatID, period: period, bucket: start.UnixMilli()}

	e.mu.Lock()
	if snap, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return snap, nil
	}
	e.mu.Unlock()

	flightKey := fmt.Sprintf("%s|%s|%d", chatID, period, key.bucket)
	v, err, _ := e.group.Do(flightKey, func() (interface{}, error) {
		e.mu.Lock()
		gen := e.gens[chatID]
		e.mu.Unlock()

		entries, err := e.events.AggregateSince(ctx, chatID, start)
		if err != nil {
			return nil, fmt.Errorf("failed to compute leaderboard: %w", err)
		}
		snap := &domain.RankSnapshot{
			ChatID:     chatID,
			Period:     period,
			ComputedAt: now,
			Entries:    entries,
		}
		// A message that landed while the aggregation ran has already
		// invalidated this result; serve it but don't cache it, or the
		// stale board would stick until the chat's next message.
		e.mu.Lock()
		if e.gens[chatID] == gen {
			e.cache[key] = snap
		}
		e.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.RankSnapshot), nil
}

// UserRank returns the user's 1-based rank in the period's leaderboard,
// or 0 if the user has no events in the window.
func (e *RankEngine) UserRank(ctx context.Context, chatID, userID string, period domain.Period, now time.Time) (int, error) {
	snap, err := e.Leaderboard(ctx, chatID, period, now)
	if err != nil {
		return 0, err
	}
	return snap.RankOf(userID), nil
}

// Invalidate drops all cached snapshots for the chat and bumps its
// generation so an in-flight computation cannot re-populate the cache
// with a pre-invalidation result. Called after every admitted message so
// the next read recomputes.
func (e *RankEngine) Invalidate(chatID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gens[chatID]++
	for key := range e.cache {
		if key.chatID == chatID {
			delete(e.cache, key)
		}
	}
}
