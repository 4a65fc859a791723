package models

import (
	"time"

	"github.com/google/uuid"
)

// Contract statuses. Informational only: operations are gated by caller
// role, escrow-address presence, balance and the expiration deadline, never
// by a strict status ordering.
const (
	ContractStatusCreated         = "created"
	ContractStatusEscrowAgreed    = "escrow_agreed"
	ContractStatusFunded          = "funded"
	ContractStatusReleased        = "released"
	ContractStatusReleasedToBuyer = "released_to_buyer"
	ContractStatusRefunded        = "refunded"
	ContractStatusPaidOut         = "paid_out"
)

// Contract is the persisted snapshot of one escrow agreement. Buyer, seller
// and (once agreed) the escrow account are TON wallet addresses; amounts are
// in nanoton.
type Contract struct {
	ID                uuid.UUID `json:"id"`
	Buyer             string    `json:"buyer"`
	Seller            string    `json:"seller"`
	EscrowAccount     string    `json:"escrow_account,omitempty"` // empty until agreed
	TransactionAmount int64     `json:"transaction_amount_nano"`
	HeldBalance       int64     `json:"held_balance_nano"`
	ExpiresAt         time.Time `json:"expires_at"`
	DevFeePercent     int64     `json:"dev_fee_percent"`
	EscrowFeePercent  int64     `json:"escrow_fee_percent"`
	BuyerReview       string    `json:"buyer_review,omitempty"`
	SellerReview      string    `json:"seller_review,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EscrowSet reports whether the three parties have agreed on an escrow
// account yet.
func (c *Contract) EscrowSet() bool {
	return c.EscrowAccount != ""
}

// RoleOf maps a wallet address to its role within the contract, or "" if the
// address is not a party. The design does not forbid one address holding two
// roles; buyer wins ties, then seller, then escrow.
func (c *Contract) RoleOf(addr string) string {
	switch {
	case addr == c.Buyer:
		return PartyBuyer
	case addr == c.Seller:
		return PartySeller
	case c.EscrowSet() && addr == c.EscrowAccount:
		return PartyEscrow
	default:
		return ""
	}
}

// Party roles.
const (
	PartyBuyer  = "buyer"
	PartySeller = "seller"
	PartyEscrow = "escrow"
)
