package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Transfer is one funds movement the contract wants executed. The ledger
// implementation decides how: the production client enqueues a durable
// payout row, the fake records in memory.
type Transfer struct {
	ContractID uuid.UUID
	Kind       string // models.TransferKind*
	To         string
	AmountNano int64
	Memo       string
}

// Ledger executes funds movements on behalf of a contract. A transfer is
// only considered done when the call returns nil; an error aborts the whole
// operation before any state mutation.
type Ledger interface {
	Transfer(ctx context.Context, t Transfer) error
}

// Clock supplies the current time for deadline checks. Tests substitute a
// fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
