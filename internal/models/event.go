package models

import (
	"time"

	"github.com/google/uuid"
)

// EscrowEvent is one append-only audit record of a contract state change.
// Every successful operation produces exactly one; failed operations produce
// none.
type EscrowEvent struct {
	ID            uuid.UUID `json:"id"`
	ContractID    uuid.UUID `json:"contract_id"`
	Kind          string    `json:"kind"`
	Buyer         string    `json:"buyer"`
	Seller        string    `json:"seller"`
	EscrowAccount string    `json:"escrow_account,omitempty"`
	AmountNano    *int64    `json:"amount_nano,omitempty"`
	Payee         *string   `json:"payee,omitempty"`
	ReviewText    *string   `json:"review_text,omitempty"`
	IsBuyerReview *bool     `json:"is_buyer_review,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
