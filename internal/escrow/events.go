package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event kinds, one per state-changing operation plus the pure notification
// kinds.
const (
	EventAddressAgreed        = "escrow.address_agreed"
	EventFundsSent            = "escrow.funds_sent"
	EventPaymentRequested     = "escrow.payment_requested"
	EventFundsReleased        = "escrow.funds_released"
	EventFundsReleasedToBuyer = "escrow.funds_released_to_buyer"
	EventFundsAdded           = "escrow.funds_added"
	EventFundsRefunded        = "escrow.funds_refunded"
	EventFundsPaid            = "escrow.funds_paid"
	EventReview               = "escrow.review"
)

// Event is the record handed to the sink after every successful operation.
// The three party identities are always present; the remaining fields are
// kind-specific.
type Event struct {
	Kind          string
	ContractID    uuid.UUID
	Buyer         string
	Seller        string
	EscrowAccount string
	AmountNano    int64
	Payee         string
	ReviewText    string
	IsBuyerReview bool
	At            time.Time
}

// Sink durably records emitted events. The contract only hands the record
// off; persistence and fan-out live behind the interface.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// NoopSink discards events. Used as the default so a contract without a
// configured sink still operates.
type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) {}
