package repositories

import (
	"context"

	"github.com/escrow-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransferRepo is the durable outbound transfer queue. The contract engine
// enqueues rows; the payout worker drains them.
type TransferRepo struct {
	pool *pgxpool.Pool
}

func NewTransferRepo(pool *pgxpool.Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

func (r *TransferRepo) Enqueue(ctx context.Context, t *models.Transfer) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO transfers (contract_id, kind, to_address, amount_nano, memo, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, t.ContractID, t.Kind, t.ToAddress, t.AmountNano, t.Memo, t.Status).Scan(&t.ID, &t.CreatedAt)
}

// ClaimPending atomically moves the oldest pending transfers to 'sending'
// and returns them. Concurrent workers never claim the same row; a row stuck
// in 'sending' after a worker crash goes to manual review.
func (r *TransferRepo) ClaimPending(ctx context.Context, limit int) ([]models.Transfer, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		UPDATE transfers SET status = 'sending'
		WHERE id IN (
			SELECT id FROM transfers WHERE status = 'pending'
			ORDER BY created_at ASC LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, contract_id, kind, to_address, amount_nano, memo, status,
		          tx_hash, last_error, attempts, created_at, sent_at
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var t models.Transfer
		if err := rows.Scan(&t.ID, &t.ContractID, &t.Kind, &t.ToAddress, &t.AmountNano, &t.Memo, &t.Status,
			&t.TxHash, &t.LastError, &t.Attempts, &t.CreatedAt, &t.SentAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (r *TransferRepo) MarkSent(ctx context.Context, id uuid.UUID, txHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transfers SET status = 'sent', tx_hash = $1, sent_at = now(), attempts = attempts + 1
		WHERE id = $2 AND status = 'sending'
	`, txHash, id)
	return err
}

// MarkFailed records the error and releases the claim. Rows stay retryable
// until attempts reaches maxAttempts, after which they are parked as failed
// for manual review.
func (r *TransferRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxAttempts int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transfers SET
			attempts = attempts + 1,
			last_error = $1,
			status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
		WHERE id = $3 AND status = 'sending'
	`, reason, maxAttempts, id)
	return err
}

func (r *TransferRepo) ListByContract(ctx context.Context, contractID uuid.UUID, limit, offset int) ([]models.Transfer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, contract_id, kind, to_address, amount_nano, memo, status,
		       tx_hash, last_error, attempts, created_at, sent_at
		FROM transfers WHERE contract_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, contractID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var t models.Transfer
		if err := rows.Scan(&t.ID, &t.ContractID, &t.Kind, &t.ToAddress, &t.AmountNano, &t.Memo, &t.Status,
			&t.TxHash, &t.LastError, &t.Attempts, &t.CreatedAt, &t.SentAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
