package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/repo"
	"github.com/anthropics/talkmeter/internal/biz/usecase"
)

// leaderboardSource supplies fresh snapshots for dispatch
type leaderboardSource interface {
	Leaderboard(ctx context.Context, chatID string, period domain.Period, now time.Time) (*domain.RankSnapshot, error)
}

// subscriberBook supplies the chats and recipients to notify
type subscriberBook interface {
	ActiveChats(ctx context.Context) ([]string, error)
	Recipients(ctx context.Context, chatID string) ([]string, error)
}

// RankChange describes one leaderboard position that differs from the
// previous dispatch.
type RankChange struct {
	UserID      string
	DisplayName string
	Rank        int
	Count       int64
}

// NotificationReady is the delivery request handed to the transport
// layer. The core never sends anything itself.
type NotificationReady struct {
	DispatchID string
	ChatID     string
	Period     domain.Period
	Snapshot   *domain.RankSnapshot
	Changes    []RankChange
	Recipients []string
}

type chatPhase int

const (
	phaseIdle chatPhase = iota
	phaseComputing
	phaseDispatching
)

// SchedulerConfig controls the notification scheduler
type SchedulerConfig struct {
	Interval      time.Duration // Tick interval
	Period        domain.Period // Leaderboard period to dispatch
	RetentionDays int           // Event retention; 0 disables pruning
}

// NotificationScheduler periodically recomputes the configured
// leaderboard for every chat with active subscribers and emits a
// NotificationReady per changed board. Each chat moves through
// Idle -> Computing -> Dispatching -> Idle; a chat still busy when the
// next tick fires is skipped for that tick and picked up again once it
// returns to Idle. One slow chat never blocks the others.
type NotificationScheduler struct {
	ranks  leaderboardSource
	subs   subscriberBook
	spam   *usecase.SpamGuard
	events repo.EventRepo
	cfg    SchedulerConfig

	notifyCh chan *NotificationReady

	mu     sync.Mutex
	phases map[string]chatPhase
	prev   map[string]*domain.RankSnapshot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationScheduler creates a new notification scheduler
func NewNotificationScheduler(
	ranks leaderboardSource,
	subs subscriberBook,
	spam *usecase.SpamGuard,
	events repo.EventRepo,
	cfg SchedulerConfig,
) *NotificationScheduler {
	return &NotificationScheduler{
		ranks:    ranks,
		subs:     subs,
		spam:     spam,
		events:   events,
		cfg:      cfg,
		notifyCh: make(chan *NotificationReady, 16),
		phases:   make(map[string]chatPhase),
		prev:     make(map[string]*domain.RankSnapshot),
	}
}

// Notifications returns the channel of delivery requests consumed by the
// transport layer.
func (s *NotificationScheduler) Notifications() <-chan *NotificationReady {
	return s.notifyCh
}

// Start starts the scheduler loops
func (s *NotificationScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.tickLoop()
	go s.maintenanceLoop()

	log.Info().
		Dur("interval", s.cfg.Interval).
		Str("period", string(s.cfg.Period)).
		Msg("notification scheduler started")
}

// Stop cancels the loops and waits for in-flight dispatch to finish
func (s *NotificationScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Info().Msg("notification scheduler stopped")
}

func (s *NotificationScheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick fans out one dispatch goroutine per idle chat with subscribers.
// Failures are scoped to their chat; the tick itself never fails.
func (s *NotificationScheduler) tick() {
	chats, err := s.subs.ActiveChats(s.ctx)
	if err != nil {
		log.Warn().Err(err).Msg("scheduler tick: failed to list subscribed chats")
		return
	}

	for _, chatID := range chats {
		if !s.begin(chatID) {
			log.Debug().Str("chat_id", chatID).Msg("scheduler tick: chat still busy, skipping")
			continue
		}
		s.wg.Add(1)
		go s.dispatch(chatID)
	}
}

// begin moves the chat to Computing if it is Idle
func (s *NotificationScheduler) begin(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phases[chatID] != phaseIdle {
		return false
	}
	s.phases[chatID] = phaseComputing
	return true
}

func (s *NotificationScheduler) setPhase(chatID string, phase chatPhase) {
	s.mu.Lock()
	s.phases[chatID] = phase
	s.mu.Unlock()
}

func (s *NotificationScheduler) dispatch(chatID string) {
	defer s.wg.Done()
	defer s.setPhase(chatID, phaseIdle)

	snap, err := s.ranks.Leaderboard(s.ctx, chatID, s.cfg.Period, time.Now())
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("scheduler: leaderboard computation failed, retrying next tick")
		return
	}

	s.mu.Lock()
	prev, seen := s.prev[chatID]
	s.mu.Unlock()

	// The first observation of a chat establishes the baseline without
	// notifying.
	if !seen {
		s.remember(chatID, snap)
		return
	}
	changes := diffSnapshots(prev, snap)
	if len(changes) == 0 {
		s.remember(chatID, snap)
		return
	}

	// The baseline is advanced only after the notification is handed
	// off. A failure anywhere below leaves prev untouched so the change
	// is detected again next tick instead of being silently consumed.
	recipients, err := s.subs.Recipients(s.ctx, chatID)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("scheduler: failed to load recipients, retrying next tick")
		return
	}
	if len(recipients) == 0 {
		return
	}

	s.setPhase(chatID, phaseDispatching)

	n := &NotificationReady{
		DispatchID: uuid.NewString(),
		ChatID:     chatID,
		Period:     s.cfg.Period,
		Snapshot:   snap,
		Changes:    changes,
		Recipients: recipients,
	}

	select {
	case s.notifyCh <- n:
		s.remember(chatID, snap)
		log.Info().
			Str("dispatch_id", n.DispatchID).
			Str("chat_id", chatID).
			Int("recipients", len(recipients)).
			Int("changes", len(changes)).
			Msg("notification dispatched")
	case <-s.ctx.Done():
	}
}

func (s *NotificationScheduler) remember(chatID string, snap *domain.RankSnapshot) {
	s.mu.Lock()
	s.prev[chatID] = snap
	s.mu.Unlock()
}

// diffSnapshots returns the positions in next that differ from prev.
// Empty when the boards rank the same users with the same counts.
func diffSnapshots(prev, next *domain.RankSnapshot) []RankChange {
	if next.SameOrder(prev) {
		return nil
	}

	var changes []RankChange
	for i, e := range next.Entries {
		if i < len(prev.Entries) {
			old := prev.Entries[i]
			if old.UserID == e.UserID && old.Count == e.Count {
				continue
			}
		}
		changes = append(changes, RankChange{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Rank:        i + 1,
			Count:       e.Count,
		})
	}
	return changes
}

// maintenanceLoop sweeps idle spam windows and, when retention is
// configured, prunes old events. Runs every 6 hours.
func (s *NotificationScheduler) maintenanceLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.maintain()
		}
	}
}

func (s *NotificationScheduler) maintain() {
	now := time.Now()

	if s.spam != nil {
		if removed := s.spam.Sweep(now.Add(-24 * time.Hour)); removed > 0 {
			log.Info().Int("removed", removed).Msg("swept idle spam windows")
		}
	}

	if s.cfg.RetentionDays > 0 && s.events != nil {
		cutoff := now.AddDate(0, 0, -s.cfg.RetentionDays)
		deleted, err := s.events.DeleteOlderThan(s.ctx, cutoff)
		if err != nil {
			log.Warn().Err(err).Msg("event retention cleanup failed")
			return
		}
		if deleted > 0 {
			log.Info().Int64("deleted", deleted).Int("days", s.cfg.RetentionDays).Msg("pruned old message events")
		}
	}
}
