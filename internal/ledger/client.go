// Package ledger implements the transfer collaborator the contract engine
// depends on. Transfers are not executed inline: the production client
// enqueues a durable payout row and the payout worker settles it on-chain,
// so a nil return means "durably accepted", never "confirmed on-chain".
package ledger

import (
	"context"

	"github.com/escrow-platform/backend/internal/escrow"
	"github.com/escrow-platform/backend/internal/models"
	"github.com/escrow-platform/backend/internal/repositories"
	"go.uber.org/zap"
)

// QueueClient persists each requested transfer as a pending row in the
// transfer queue.
type QueueClient struct {
	transfers *repositories.TransferRepo
	log       *zap.Logger
}

func NewQueueClient(transfers *repositories.TransferRepo, log *zap.Logger) *QueueClient {
	return &QueueClient{transfers: transfers, log: log}
}

func (c *QueueClient) Transfer(ctx context.Context, t escrow.Transfer) error {
	if t.AmountNano <= 0 {
		// Zero fees happen with 0% rates; nothing to move.
		return nil
	}
	row := &models.Transfer{
		ContractID: t.ContractID,
		Kind:       t.Kind,
		ToAddress:  t.To,
		AmountNano: t.AmountNano,
		Memo:       t.Memo,
		Status:     models.TransferStatusPending,
	}
	if err := c.transfers.Enqueue(ctx, row); err != nil {
		c.log.Error("failed to enqueue transfer",
			zap.String("contract_id", t.ContractID.String()),
			zap.String("kind", t.Kind),
			zap.Error(err),
		)
		return err
	}
	c.log.Info("transfer enqueued",
		zap.String("contract_id", t.ContractID.String()),
		zap.String("kind", t.Kind),
		zap.String("to", t.To),
		zap.Int64("amount_nano", t.AmountNano),
	)
	return nil
}
