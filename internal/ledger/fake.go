package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/escrow-platform/backend/internal/escrow"
)

// FakeClient records transfers in memory for tests. FailNext makes the next
// call report failure so callers can assert nothing mutated.
type FakeClient struct {
	mu        sync.Mutex
	Transfers []escrow.Transfer
	FailNext  bool
}

var errFakeTransfer = errors.New("ledger: transfer rejected")

func (c *FakeClient) Transfer(_ context.Context, t escrow.Transfer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailNext {
		c.FailNext = false
		return errFakeTransfer
	}
	if t.AmountNano <= 0 {
		return nil
	}
	c.Transfers = append(c.Transfers, t)
	return nil
}

// Recorded returns a copy of the transfers seen so far.
func (c *FakeClient) Recorded() []escrow.Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]escrow.Transfer, len(c.Transfers))
	copy(out, c.Transfers)
	return out
}
