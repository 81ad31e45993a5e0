package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anthropics/talkmeter/internal/biz/repo"
)

// subscriptionRepo implements the notification subscription repository
type subscriptionRepo struct {
	db *sql.DB
}

func newSubscriptionRepo(db *sql.DB) (repo.SubscriptionRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_subscriptions (
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1 CHECK(active IN (0, 1)),
			subscribed_at INTEGER NOT NULL,
			PRIMARY KEY (chat_id, user_id)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification_subscriptions table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_subs_chat_active ON notification_subscriptions(chat_id, active)`)

	return &subscriptionRepo{db: db}, nil
}

// Subscribe activates the subscription unless the chat is at the cap.
// The count check and the upsert run in one transaction so the active
// count can never exceed maxUsers.
func (r *subscriptionRepo) Subscribe(ctx context.Context, chatID, userID string, maxUsers int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin subscribe transaction: %w", err)
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx, `
		SELECT active FROM notification_subscriptions WHERE chat_id = ? AND user_id = ?
	`, chatID, userID).Scan(&active)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to query subscription: %w", err)
	}
	if active == 1 {
		// Already subscribed; nothing to do.
		return true, tx.Commit()
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notification_subscriptions WHERE chat_id = ? AND active = 1
	`, chatID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count active subscriptions: %w", err)
	}
	if count >= maxUsers {
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notification_subscriptions (chat_id, user_id, active, subscribed_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			active = 1,
			subscribed_at = excluded.subscribed_at
	`, chatID, userID, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to save subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit subscribe: %w", err)
	}
	return true, nil
}

// Unsubscribe deactivates the subscription
func (r *subscriptionRepo) Unsubscribe(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_subscriptions SET active = 0 WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// ActiveUsers returns active subscriber IDs in subscription order
func (r *subscriptionRepo) ActiveUsers(ctx context.Context, chatID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM notification_subscriptions
		WHERE chat_id = ? AND active = 1
		ORDER BY subscribed_at ASC, user_id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active subscribers: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

// ActiveCount counts active subscriptions for the chat
func (r *subscriptionRepo) ActiveCount(ctx context.Context, chatID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notification_subscriptions WHERE chat_id = ? AND active = 1
	`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active subscriptions: %w", err)
	}
	return count, nil
}

// ChatsWithSubscribers returns chats that have at least one active subscription
func (r *subscriptionRepo) ChatsWithSubscribers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT chat_id FROM notification_subscriptions
		WHERE active = 1
		ORDER BY chat_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribed chats: %w", err)
	}
	defer rows.Close()

	var chats []string
	for rows.Next() {
		var chatID string
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("failed to scan chat id: %w", err)
		}
		chats = append(chats, chatID)
	}
	return chats, rows.Err()
}
