package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escrow-platform/backend/internal/config"
	"github.com/escrow-platform/backend/internal/db"
	"github.com/escrow-platform/backend/internal/events"
	"github.com/escrow-platform/backend/internal/ledger"
	"github.com/escrow-platform/backend/internal/repositories"
	"go.uber.org/zap"
)

// Payout worker: drains the transfer queue and settles each row on-chain
// from the escrow hot wallet. Transfers are sent one at a time; a failure
// leaves the row pending for the next cycle until the attempt cap parks it.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.HotWalletSeed == "" {
		log.Fatal("ESCROW_HOT_WALLET_SEED is required")
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	transferRepo := repositories.NewTransferRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	api, err := ledger.ConnectTON(ctx, cfg.TONNetwork, cfg.LiteServerHost, cfg.LiteServerPort, cfg.LiteServerKey, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	sender, err := ledger.NewTONSender(api, cfg.HotWalletSeed, log)
	if err != nil {
		log.Fatal("failed to open hot wallet", zap.Error(err))
	}

	log.Info("payout worker started",
		zap.Duration("interval", cfg.PayoutInterval),
		zap.Int("batch_size", cfg.PayoutBatchSize),
	)

	ticker := time.NewTicker(cfg.PayoutInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runPayoutCycle(ctx, transferRepo, sender, publisher, cfg, log)
		case <-sigCh:
			log.Info("shutting down payout worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runPayoutCycle(
	ctx context.Context,
	transferRepo *repositories.TransferRepo,
	sender *ledger.TONSender,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) {
	claimed, err := transferRepo.ClaimPending(ctx, cfg.PayoutBatchSize)
	if err != nil {
		log.Error("failed to claim pending transfers", zap.Error(err))
		return
	}
	if len(claimed) == 0 {
		return
	}

	log.Info("processing claimed transfers", zap.Int("count", len(claimed)))

	for _, t := range claimed {
		txHash, err := sender.Send(ctx, t.ToAddress, t.AmountNano, t.Memo)
		if err != nil {
			log.Error("transfer failed",
				zap.String("transfer_id", t.ID.String()),
				zap.String("contract_id", t.ContractID.String()),
				zap.String("kind", t.Kind),
				zap.Error(err),
			)
			if err := transferRepo.MarkFailed(ctx, t.ID, err.Error(), cfg.PayoutMaxAttempts); err != nil {
				log.Error("failed to record transfer failure", zap.Error(err))
			}
			continue
		}

		if err := transferRepo.MarkSent(ctx, t.ID, txHash); err != nil {
			// The money moved. Log loudly and keep going; the row stays in
			// 'sending' and goes to manual review.
			log.Error("transfer sent but not marked",
				zap.String("transfer_id", t.ID.String()),
				zap.String("tx_hash", txHash),
				zap.Error(err),
			)
			continue
		}

		_ = publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventTransferSettled,
			Payload: map[string]any{
				"transfer_id": t.ID.String(),
				"contract_id": t.ContractID.String(),
				"kind":        t.Kind,
				"to":          t.ToAddress,
				"amount_nano": t.AmountNano,
				"tx_hash":     txHash,
			},
		})

		log.Info("transfer settled",
			zap.String("transfer_id", t.ID.String()),
			zap.String("contract_id", t.ContractID.String()),
			zap.String("kind", t.Kind),
			zap.String("tx_hash", txHash),
		)
	}
}
