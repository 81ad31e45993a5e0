package usecase

import (
	"sync"
	"time"

	"github.com/anthropics/talkmeter/internal/biz/domain"
)

// SpamConfig controls the sliding-window spam classifier
type SpamConfig struct {
	MaxMessages int           // Messages allowed inside the window
	Window      time.Duration // Sliding window length
}

// DefaultSpamConfig returns the default spam configuration
func DefaultSpamConfig() SpamConfig {
	return SpamConfig{
		MaxMessages: 5,
		Window:      10 * time.Second,
	}
}

type spamKey struct {
	chatID string
	userID string
}

type spamEntry struct {
	mu     sync.Mutex
	window domain.SpamWindow
}

// SpamGuard is the stateful per-user sliding-window classifier consulted
// before a message is admitted to the event store. Windows are keyed by
// (chat, user) and owned exclusively by this component; checks for
// different keys proceed fully in parallel.
type SpamGuard struct {
	cfg SpamConfig

	mu      sync.RWMutex
	windows map[spamKey]*spamEntry
}

// NewSpamGuard creates a new spam guard
func NewSpamGuard(cfg SpamConfig) *SpamGuard {
	return &SpamGuard{
		cfg:     cfg,
		windows: make(map[spamKey]*spamEntry),
	}
}

// Admit classifies one message. The window is pruned to the configured
// length first; if the remaining count has reached the limit the message
// is rejected and NOT recorded, so a rejected burst cannot jam the
// window forever. Otherwise the timestamp is recorded and the message
// accepted.
func (g *SpamGuard) Admit(chatID, userID string, ts time.Time) domain.AdmitResult {
	e := g.entry(spamKey{chatID: chatID, userID: userID})

	e.mu.Lock()
	defer e.mu.Unlock()

	e.window.Prune(ts.Add(-g.cfg.Window))
	if e.window.Len() >= g.cfg.MaxMessages {
		return domain.AdmitRejected
	}
	e.window.Record(ts)
	return domain.AdmitAccepted
}

func (g *SpamGuard) entry(key spamKey) *spamEntry {
	g.mu.RLock()
	e, ok := g.windows[key]
	g.mu.RUnlock()
	if ok {
		return e
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok = g.windows[key]; !ok {
		e = &spamEntry{}
		g.windows[key] = e
	}
	return e
}

// Sweep drops windows whose newest timestamp is older than cutoff and
// returns how many were removed. Called from the maintenance loop to
// keep long-idle users from pinning memory.
func (g *SpamGuard) Sweep(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, e := range g.windows {
		e.mu.Lock()
		idle := e.window.LastActivity().Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(g.windows, key)
			removed++
		}
	}
	return removed
}
