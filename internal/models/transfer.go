package models

import (
	"time"

	"github.com/google/uuid"
)

// Transfer statuses.
const (
	TransferStatusPending = "pending"
	TransferStatusSending = "sending"
	TransferStatusSent    = "sent"
	TransferStatusFailed  = "failed"
)

// Transfer kinds.
const (
	TransferKindDevFee    = "dev_fee"
	TransferKindEscrowFee = "escrow_fee"
	TransferKindRelease   = "release"
	TransferKindRefund    = "refund"
	TransferKindPayout    = "payout"
)

// Transfer is one durable entry in the outbound transfer queue. The contract
// engine enqueues, the payout worker executes on-chain and records the tx
// hash.
type Transfer struct {
	ID         uuid.UUID  `json:"id"`
	ContractID uuid.UUID  `json:"contract_id"`
	Kind       string     `json:"kind"`
	ToAddress  string     `json:"to_address"`
	AmountNano int64      `json:"amount_nano"`
	Memo       string     `json:"memo,omitempty"`
	Status     string     `json:"status"`
	TxHash     *string    `json:"tx_hash,omitempty"`
	LastError  *string    `json:"last_error,omitempty"`
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}
