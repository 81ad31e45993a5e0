package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/talkmeter/internal/biz/domain"
	"github.com/anthropics/talkmeter/internal/biz/usecase"
)

// Config represents application configuration. The core consumes this
// surface; it does not own where the values come from.
type Config struct {
	// Tracker database path
	DBPath string

	// Spam guard settings
	SpamMaxMessages   int
	SpamWindowSeconds int

	// Milestone thresholds, ascending
	Milestones []int64

	// Notification settings
	MaxNotificationUsers        int
	NotificationIntervalSeconds int
	NotificationPeriod          string

	// Timezone for daily/weekly/monthly boundaries (IANA name)
	Timezone string

	// Event retention in days; 0 disables pruning
	RetentionDays int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("TALKMETER_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".talkmeter", "talkmeter.db")
	}

	cfg := &Config{
		DBPath:                      dbPath,
		SpamMaxMessages:             5,
		SpamWindowSeconds:           10,
		Milestones:                  []int64{1000, 5000, 10000},
		MaxNotificationUsers:        1000,
		NotificationIntervalSeconds: 3600,
		NotificationPeriod:          string(domain.PeriodDaily),
		Timezone:                    "UTC",
		RetentionDays:               0,
	}

	if val := os.Getenv("SPAM_MAX_MESSAGES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.SpamMaxMessages = parsed
		}
	}
	if val := os.Getenv("SPAM_WINDOW_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.SpamWindowSeconds = parsed
		}
	}
	if val := os.Getenv("MILESTONES"); val != "" {
		if parsed, err := parseMilestones(val); err == nil {
			cfg.Milestones = parsed
		}
	}
	if val := os.Getenv("MAX_NOTIFICATION_USERS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.MaxNotificationUsers = parsed
		}
	}
	if val := os.Getenv("NOTIFICATION_INTERVAL_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.NotificationIntervalSeconds = parsed
		}
	}
	if val := os.Getenv("NOTIFICATION_PERIOD"); val != "" {
		cfg.NotificationPeriod = val
	}
	if val := os.Getenv("LEADERBOARD_TIMEZONE"); val != "" {
		cfg.Timezone = val
	}
	if val := os.Getenv("RETENTION_DAYS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.RetentionDays = parsed
		}
	}

	return cfg
}

// parseMilestones parses a comma-separated threshold list
func parseMilestones(val string) ([]int64, error) {
	parts := strings.Split(val, ",")
	thresholds := make([]int64, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid milestone %q: %w", part, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("milestone must be positive, got %d", n)
		}
		thresholds = append(thresholds, n)
	}
	return thresholds, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.SpamMaxMessages <= 0 {
		return fmt.Errorf("spam max messages must be positive, got %d", c.SpamMaxMessages)
	}
	if c.SpamWindowSeconds <= 0 {
		return fmt.Errorf("spam window must be positive, got %d", c.SpamWindowSeconds)
	}
	if c.MaxNotificationUsers <= 0 {
		return fmt.Errorf("max notification users must be positive, got %d", c.MaxNotificationUsers)
	}
	if c.NotificationIntervalSeconds <= 0 {
		return fmt.Errorf("notification interval must be positive, got %d", c.NotificationIntervalSeconds)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative, got %d", c.RetentionDays)
	}
	if _, err := domain.ParsePeriod(c.NotificationPeriod); err != nil {
		return fmt.Errorf("invalid notification period: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured period-boundary timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ToSpamConfig converts the spam settings
func (c *Config) ToSpamConfig() usecase.SpamConfig {
	return usecase.SpamConfig{
		MaxMessages: c.SpamMaxMessages,
		Window:      time.Duration(c.SpamWindowSeconds) * time.Second,
	}
}

// NotificationInterval returns the scheduler tick interval
func (c *Config) NotificationInterval() time.Duration {
	return time.Duration(c.NotificationIntervalSeconds) * time.Second
}

// Period returns the parsed notification period
func (c *Config) Period() domain.Period {
	p, err := domain.ParsePeriod(c.NotificationPeriod)
	if err != nil {
		return domain.PeriodDaily
	}
	return p
}
