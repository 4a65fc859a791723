package repositories

import (
	"context"

	"github.com/escrow-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepo is the append-only audit log of contract events.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Append(ctx context.Context, e *models.EscrowEvent) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO escrow_events (contract_id, kind, buyer, seller, escrow_account,
		                           amount_nano, payee, review_text, is_buyer_review)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, e.ContractID, e.Kind, e.Buyer, e.Seller, e.EscrowAccount,
		e.AmountNano, e.Payee, e.ReviewText, e.IsBuyerReview,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *EventRepo) ListByContract(ctx context.Context, contractID uuid.UUID, limit, offset int) ([]models.EscrowEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, contract_id, kind, buyer, seller, escrow_account,
		       amount_nano, payee, review_text, is_buyer_review, created_at
		FROM escrow_events WHERE contract_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, contractID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.EscrowEvent
	for rows.Next() {
		var e models.EscrowEvent
		if err := rows.Scan(&e.ID, &e.ContractID, &e.Kind, &e.Buyer, &e.Seller, &e.EscrowAccount,
			&e.AmountNano, &e.Payee, &e.ReviewText, &e.IsBuyerReview, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
