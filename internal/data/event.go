package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/repo"
)

// eventRepo implements the message event repository
type eventRepo struct {
	db *sql.DB
}

// newEventRepo creates the event store tables and indexes
func newEventRepo(db *sql.DB) (repo.EventRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS message_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create message_events table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user_totals (
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			total_count INTEGER NOT NULL DEFAULT 0,
			first_message_at INTEGER NOT NULL,
			last_message_at INTEGER NOT NULL,
			highest_rank INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (chat_id, user_id)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create user_totals table: %w", err)
	}

	// Window queries hit (chat_id, timestamp); per-user counts hit
	// (chat_id, user_id).
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_chat_ts ON message_events(chat_id, timestamp)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_chat_user ON message_events(chat_id, user_id)`)

	return &eventRepo{db: db}, nil
}

// sinceMillis converts a window start to the stored millisecond scale.
// The zero time means all-time.
func sinceMillis(since time.Time) int64 {
	if since.IsZero() {
		return 0
	}
	return since.UnixMilli()
}

// Append inserts the event and bumps the user's running totals in one
// transaction, returning the new all-time total.
func (r *eventRepo) Append(ctx context.Context, ev *domain.MessageEvent) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback()

	ts := ev.Timestamp.UnixMilli()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_events (chat_id, user_id, display_name, timestamp)
		VALUES (?, ?, ?, ?)
	`, ev.ChatID, ev.UserID, ev.DisplayName, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_totals (chat_id, user_id, display_name, total_count, first_message_at, last_message_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			total_count = total_count + 1,
			display_name = excluded.display_name,
			last_message_at = excluded.last_message_at
	`, ev.ChatID, ev.UserID, ev.DisplayName, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to update user totals: %w", err)
	}

	var total int64
	err = tx.QueryRowContext(ctx, `
		SELECT total_count FROM user_totals WHERE chat_id = ? AND user_id = ?
	`, ev.ChatID, ev.UserID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to read new total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit append: %w", err)
	}
	return total, nil
}

// ListSince returns the chat's events from since onward, oldest first
func (r *eventRepo) ListSince(ctx context.Context, chatID string, since time.Time) ([]*domain.MessageEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, user_id, display_name, timestamp
		FROM message_events
		WHERE chat_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC, id ASC
	`, chatID, sinceMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query message events: %w", err)
	}
	defer rows.Close()

	var events []*domain.MessageEvent
	for rows.Next() {
		var ev domain.MessageEvent
		var ts int64
		if err := rows.Scan(&ev.ChatID, &ev.UserID, &ev.DisplayName, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message event: %w", err)
		}
		ev.Timestamp = time.UnixMilli(ts)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// AggregateSince returns the per-user window aggregation in leaderboard
// order: count descending, then earliest last message (first-to-count),
// then user ID. The all-time window reads the running totals instead of
// scanning events.
func (r *eventRepo) AggregateSince(ctx context.Context, chatID string, since time.Time) ([]domain.RankEntry, error) {
	var rows *sql.Rows
	var err error

	if since.IsZero() {
		rows, err = r.db.QueryContext(ctx, `
			SELECT user_id, display_name, total_count, last_message_at
			FROM user_totals
			WHERE chat_id = ?
			ORDER BY total_count DESC, last_message_at ASC, user_id ASC
		`, chatID)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT e.user_id,
			       COALESCE(t.display_name, e.user_id) AS display_name,
			       COUNT(*) AS cnt,
			       MAX(e.timestamp) AS last_ts
			FROM message_events e
			LEFT JOIN user_totals t ON t.chat_id = e.chat_id AND t.user_id = e.user_id
			WHERE e.chat_id = ? AND e.timestamp >= ?
			GROUP BY e.user_id
			ORDER BY cnt DESC, last_ts ASC, e.user_id ASC
		`, chatID, since.UnixMilli())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate message events: %w", err)
	}
	defer rows.Close()

	var entries []domain.RankEntry
	for rows.Next() {
		var e domain.RankEntry
		var last int64
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Count, &last); err != nil {
			return nil, fmt.Errorf("failed to scan rank entry: %w", err)
		}
		e.LastMessageAt = time.UnixMilli(last)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountSince counts one user's events in the window
func (r *eventRepo) CountSince(ctx context.Context, chatID, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM message_events
		WHERE chat_id = ? AND user_id = ? AND timestamp >= ?
	`, chatID, userID, sinceMillis(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count message events: %w", err)
	}
	return count, nil
}

// UserTotal returns the user's running totals, or nil if never recorded
func (r *eventRepo) UserTotal(ctx context.Context, chatID, userID string) (*domain.UserTotal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, user_id, display_name, total_count, first_message_at, last_message_at, highest_rank
		FROM user_totals
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)

	var t domain.UserTotal
	var first, last int64
	err := row.Scan(&t.ChatID, &t.UserID, &t.DisplayName, &t.TotalCount, &first, &last, &t.HighestRank)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user totals: %w", err)
	}
	t.FirstMessageAt = time.UnixMilli(first)
	t.LastMessageAt = time.UnixMilli(last)
	return &t, nil
}

// AllTimeRank computes the user's current all-time rank from the running
// totals. Equal totals rank by earliest last message, then user ID,
// matching AggregateSince ordering.
func (r *eventRepo) AllTimeRank(ctx context.Context, chatID, userID string) (int, error) {
	t, err := r.UserTotal(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	if t == nil {
		return 0, nil
	}

	last := t.LastMessageAt.UnixMilli()
	var ahead int
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_totals
		WHERE chat_id = ? AND (
			total_count > ?
			OR (total_count = ? AND last_message_at < ?)
			OR (total_count = ? AND last_message_at = ? AND user_id < ?)
		)
	`, chatID, t.TotalCount, t.TotalCount, last, t.TotalCount, last, userID).Scan(&ahead)
	if err != nil {
		return 0, fmt.Errorf("failed to compute all-time rank: %w", err)
	}
	return ahead + 1, nil
}

// UpdateHighestRank stores rank if it beats the recorded best. Rank 1 is
// the best possible; 0 means never ranked.
func (r *eventRepo) UpdateHighestRank(ctx context.Context, chatID, userID string, rank int) error {
	if rank <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_totals SET highest_rank = ?
		WHERE chat_id = ? AND user_id = ? AND (highest_rank = 0 OR highest_rank > ?)
	`, rank, chatID, userID, rank)
	if err != nil {
		return fmt.Errorf("failed to update highest rank: %w", err)
	}
	return nil
}

// DeleteOlderThan removes events older than before
func (r *eventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM message_events WHERE timestamp < ?
	`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return result.RowsAffected()
}
