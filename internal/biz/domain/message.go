package domain

import "time"

// MessageEvent represents one accepted message. Events are append-only:
// once recorded they are never mutated.
type MessageEvent struct {
	ChatID      string
	UserID      string
	DisplayName string
	Timestamp   time.Time
}
