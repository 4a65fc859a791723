package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/escrow-platform/backend/internal/config"
	"github.com/escrow-platform/backend/internal/db"
	"github.com/escrow-platform/backend/internal/events"
	"github.com/escrow-platform/backend/internal/services"
	"go.uber.org/zap"
)

// Notify bridge: small service that subscribes to escrow events on Redis and
// forwards them to an external webhook for user-facing notifications.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.NotifyWebhookURL == "" {
		log.Fatal("NOTIFY_WEBHOOK_URL is required")
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	notifier := services.NewNotifyClient(cfg.NotifyWebhookURL, log)

	log.Info("notify-bridge started", zap.String("webhook", cfg.NotifyWebhookURL))

	_ = subscriber.Subscribe(ctx, events.StreamEscrow, func(event events.Event) {
		log.Info("forwarding event", zap.String("type", event.Type))
		if err := notifier.Notify(ctx, event); err != nil {
			log.Warn("failed to forward notification", zap.Error(err))
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
