package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/anthropics/talkmeter/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// Repositories contains all repositories
type Repositories struct {
	Events        repo.EventRepo
	Milestones    repo.MilestoneRepo
	Subscriptions repo.SubscriptionRepo

	db *sql.DB
}

// NewRepositories opens the tracker database and creates all
// repositories on top of it.
func NewRepositories(dbPath string) (*Repositories, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writers back off instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	eventRepo, err := newEventRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	milestoneRepo, err := newMilestoneRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	subscriptionRepo, err := newSubscriptionRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("tracker database initialized")

	return &Repositories{
		Events:        eventRepo,
		Milestones:    milestoneRepo,
		Subscriptions: subscriptionRepo,
		db:            db,
	}, nil
}

// Close closes the shared database connection
func (r *Repositories) Close() error {
	return r.db.Close()
}
