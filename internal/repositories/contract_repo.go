package repositories

import (
	"context"
	"fmt"

	"github.com/escrow-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContractRepo struct {
	pool *pgxpool.Pool
}

func NewContractRepo(pool *pgxpool.Pool) *ContractRepo {
	return &ContractRepo{pool: pool}
}

func (r *ContractRepo) Create(ctx context.Context, c *models.Contract) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO contracts (buyer, seller, escrow_account, transaction_amount_nano, held_balance_nano,
		                       expires_at, dev_fee_percent, escrow_fee_percent, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, c.Buyer, c.Seller, c.EscrowAccount, c.TransactionAmount, c.HeldBalance,
		c.ExpiresAt, c.DevFeePercent, c.EscrowFeePercent, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *ContractRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var c models.Contract
	err := r.pool.QueryRow(ctx, `
		SELECT id, buyer, seller, escrow_account, transaction_amount_nano, held_balance_nano,
		       expires_at, dev_fee_percent, escrow_fee_percent, buyer_review, seller_review,
		       status, created_at, updated_at
		FROM contracts WHERE id = $1
	`, id).Scan(&c.ID, &c.Buyer, &c.Seller, &c.EscrowAccount, &c.TransactionAmount, &c.HeldBalance,
		&c.ExpiresAt, &c.DevFeePercent, &c.EscrowFeePercent, &c.BuyerReview, &c.SellerReview,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes back the full mutable snapshot after an operation.
func (r *ContractRepo) Save(ctx context.Context, c *models.Contract) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contracts SET
			escrow_account = $1,
			transaction_amount_nano = $2,
			held_balance_nano = $3,
			buyer_review = $4,
			seller_review = $5,
			status = $6,
			updated_at = now()
		WHERE id = $7
	`, c.EscrowAccount, c.TransactionAmount, c.HeldBalance,
		c.BuyerReview, c.SellerReview, c.Status, c.ID)
	return err
}

type ContractFilter struct {
	Party  *string // matches buyer, seller or escrow account
	Status *string
	Limit  int
	Offset int
}

func (r *ContractRepo) List(ctx context.Context, f ContractFilter) ([]models.Contract, error) {
	query := `
		SELECT id, buyer, seller, escrow_account, transaction_amount_nano, held_balance_nano,
		       expires_at, dev_fee_percent, escrow_fee_percent, buyer_review, seller_review,
		       status, created_at, updated_at
		FROM contracts
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Party != nil {
		where = append(where, fmt.Sprintf("(buyer = $%d OR seller = $%d OR escrow_account = $%d)", argIdx, argIdx, argIdx))
		args = append(args, *f.Party)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		var c models.Contract
		if err := rows.Scan(&c.ID, &c.Buyer, &c.Seller, &c.EscrowAccount, &c.TransactionAmount, &c.HeldBalance,
			&c.ExpiresAt, &c.DevFeePercent, &c.EscrowFeePercent, &c.BuyerReview, &c.SellerReview,
			&c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
