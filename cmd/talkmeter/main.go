package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anthropics/talkmeter/internal/biz/usecase"
	"github.com/anthropics/talkmeter/internal/conf"
	"github.com/anthropics/talkmeter/internal/data"
	"github.com/anthropics/talkmeter/internal/service"
)

// inboundEvent is one message event fed on stdin, one JSON object per
// line. This feed stands in for the chat-platform transport, which in a
// real deployment calls the tracker service directly.
type inboundEvent struct {
	ChatID      string `json:"chat_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Timestamp   int64  `json:"timestamp"` // unix millis; 0 means now
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repositories")
	}
	defer repos.Close()

	// Initialize usecase layer
	spamGuard := usecase.NewSpamGuard(cfg.ToSpamConfig())
	rankEngine := usecase.NewRankEngine(repos.Events, cfg.Location())
	milestoneTracker := usecase.NewMilestoneTracker(repos.Milestones, cfg.Milestones)
	activityTracker := usecase.NewActivityTracker(repos.Events, milestoneTracker, rankEngine)
	subscriptionBook := usecase.NewSubscriptionBook(repos.Subscriptions, cfg.MaxNotificationUsers)

	// Initialize service layer
	tracker := service.NewTrackerService(spamGuard, activityTracker, rankEngine, subscriptionBook)

	scheduler := service.NewNotificationScheduler(rankEngine, subscriptionBook, spamGuard, repos.Events, service.SchedulerConfig{
		Interval:      cfg.NotificationInterval(),
		Period:        cfg.Period(),
		RetentionDays: cfg.RetentionDays,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)

	// Drain delivery requests. A real deployment replaces this loop with
	// the chat-platform transport.
	go func() {
		for n := range scheduler.Notifications() {
			log.Info().
				Str("dispatch_id", n.DispatchID).
				Str("chat_id", n.ChatID).
				Str("period", string(n.Period)).
				Int("recipients", len(n.Recipients)).
				Msg("notification ready for delivery")
		}
	}()

	go feedFromStdin(ctx, tracker)

	log.Info().Str("db", cfg.DBPath).Msg("talkmeter core started")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	scheduler.Stop()
}

// feedFromStdin pushes JSON-line events through the full ingestion path:
// spam guard first, then durable recording with milestone detection.
func feedFromStdin(ctx context.Context, tracker *service.TrackerService) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev inboundEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Warn().Err(err).Msg("skipping malformed event line")
			continue
		}

		ts := time.Now()
		if ev.Timestamp > 0 {
			ts = time.UnixMilli(ev.Timestamp)
		}

		if !tracker.Admit(ev.ChatID, ev.UserID, ts).Accepted() {
			continue
		}

		milestones, err := tracker.RecordMessage(ctx, ev.ChatID, ev.UserID, ev.DisplayName, ts)
		if err != nil {
			log.Warn().Err(err).Str("chat_id", ev.ChatID).Str("user_id", ev.UserID).Msg("failed to record message")
			continue
		}
		for _, m := range milestones {
			log.Info().
				Str("user_id", m.UserID).
				Int64("threshold", m.Threshold).
				Msg("milestone celebration due")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("stdin feed stopped")
	}
}
