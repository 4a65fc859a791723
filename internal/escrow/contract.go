package escrow

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/escrow-platform/backend/internal/models"
)

// Options carries the collaborators and platform knobs a contract needs
// beyond its persisted state.
type Options struct {
	Ledger Ledger
	Sink   Sink
	Clock  Clock

	// DevFeeRecipient overrides the developer-fee destination. Empty keeps
	// the reference behavior: the dev fee is returned to the paying buyer.
	DevFeeRecipient string

	// ReviewMaxLen bounds stored review text. Zero falls back to
	// DefaultReviewMaxLen.
	ReviewMaxLen int
}

// DefaultReviewMaxLen bounds review text when no limit is configured.
const DefaultReviewMaxLen = 2000

// Contract is the escrow state machine for a single agreement. Every
// operation runs in one critical section: validate, execute transfers,
// mutate, emit. Concurrent callers never observe intermediate state.
type Contract struct {
	mu    sync.Mutex
	state models.Contract

	ledger Ledger
	sink   Sink
	clock  Clock

	devFeeRecipient string
	reviewMaxLen    int
}

// New wraps persisted contract state in an operating state machine.
func New(state models.Contract, opts Options) *Contract {
	c := &Contract{
		state:           state,
		ledger:          opts.Ledger,
		sink:            opts.Sink,
		clock:           opts.Clock,
		devFeeRecipient: opts.DevFeeRecipient,
		reviewMaxLen:    opts.ReviewMaxLen,
	}
	if c.sink == nil {
		c.sink = NoopSink{}
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.reviewMaxLen <= 0 {
		c.reviewMaxLen = DefaultReviewMaxLen
	}
	if c.state.Status == "" {
		c.state.Status = models.ContractStatusCreated
	}
	return c
}

// ID returns the contract identifier.
func (c *Contract) ID() string {
	return c.state.ID.String()
}

// Snapshot returns a copy of the current state, safe to persist or serve.
func (c *Contract) Snapshot() models.Contract {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AgreeOnEscrowAddress fixes the escrow account for the contract. Buyer or
// seller may call it, exactly once, strictly before the deadline.
func (c *Contract) AgreeOnEscrowAddress(ctx context.Context, caller, candidate string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.state.Buyer && caller != c.state.Seller {
		return ErrUnauthorized
	}
	if c.state.EscrowSet() {
		return ErrAlreadyAgreed
	}
	if !c.clock.Now().Before(c.state.ExpiresAt) {
		return ErrExpired
	}

	c.state.EscrowAccount = candidate
	c.state.Status = models.ContractStatusEscrowAgreed
	c.emit(ctx, Event{Kind: EventAddressAgreed})
	return nil
}

// SendFunds accepts the buyer's initial payment. The amount must equal the
// outstanding transaction amount exactly; the fee split is applied to it and
// the remainder stays held by the contract.
func (c *Contract) SendFunds(ctx context.Context, caller string, amount int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.state.Buyer {
		return ErrUnauthorized
	}
	if !c.state.EscrowSet() {
		return ErrEscrowNotSet
	}
	if !c.clock.Now().Before(c.state.ExpiresAt) {
		return ErrExpired
	}
	if amount != c.state.TransactionAmount {
		return ErrAmountMismatch
	}

	devFee, escrowFee := c.feeSplit(amount)
	if err := c.payFees(ctx, devFee, escrowFee); err != nil {
		return err
	}

	c.state.HeldBalance += amount - devFee - escrowFee
	c.state.Status = models.ContractStatusFunded
	c.emit(ctx, Event{Kind: EventFundsSent, AmountNano: amount})
	return nil
}

// RequestPayment lets the seller nudge the other parties. Pure notification,
// no state change, no funds movement.
func (c *Contract) RequestPayment(ctx context.Context, caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.state.Seller {
		return ErrUnauthorized
	}
	if !c.state.EscrowSet() {
		return ErrEscrowNotSet
	}

	c.emit(ctx, Event{Kind: EventPaymentRequested})
	return nil
}

// ReleaseFunds pays the full outstanding transaction amount to the seller.
// Only the escrow holder may call it. The outstanding amount is deliberately
// not zeroed afterwards; a second call transfers again.
func (c *Contract) ReleaseFunds(ctx context.Context, caller string) error {
	return c.release(ctx, caller, false)
}

// ReleaseFundsToBuyer is symmetric to ReleaseFunds but pays the buyer.
func (c *Contract) ReleaseFundsToBuyer(ctx context.Context, caller string) error {
	return c.release(ctx, caller, true)
}

func (c *Contract) release(ctx context.Context, caller string, toBuyer bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.EscrowSet() {
		return ErrEscrowNotSet
	}
	if caller != c.state.EscrowAccount {
		return ErrUnauthorized
	}

	recipient := c.state.Seller
	kind := EventFundsReleased
	status := models.ContractStatusReleased
	if toBuyer {
		recipient = c.state.Buyer
		kind = EventFundsReleasedToBuyer
		status = models.ContractStatusReleasedToBuyer
	}

	if err := c.transfer(ctx, models.TransferKindRelease, recipient, c.state.TransactionAmount); err != nil {
		return err
	}

	c.state.HeldBalance -= c.state.TransactionAmount
	c.state.Status = status
	c.emit(ctx, Event{Kind: kind, AmountNano: c.state.TransactionAmount})
	return nil
}

// AddMoreFunds tops up the contract. Buyer only, escrow account required.
// There is no deadline check here: top-ups after expiration are permitted,
// unlike the initial funding.
func (c *Contract) AddMoreFunds(ctx context.Context, caller string, amount int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.state.Buyer {
		return ErrUnauthorized
	}
	if !c.state.EscrowSet() {
		return ErrEscrowNotSet
	}

	devFee, escrowFee := c.feeSplit(amount)
	if err := c.payFees(ctx, devFee, escrowFee); err != nil {
		return err
	}

	c.state.HeldBalance += amount - devFee - escrowFee
	c.state.TransactionAmount += amount
	c.emit(ctx, Event{Kind: EventFundsAdded, AmountNano: c.state.TransactionAmount})
	return nil
}

// Refund returns part of the outstanding amount to the buyer. Seller only.
// Note there is no escrow-account precondition here; only role and balance
// gate the call.
func (c *Contract) Refund(ctx context.Context, caller string, amount int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.state.Seller {
		return ErrUnauthorized
	}
	if amount > c.state.TransactionAmount {
		return ErrInsufficientBalance
	}

	if err := c.transfer(ctx, models.TransferKindRefund, c.state.Buyer, amount); err != nil {
		return err
	}

	c.state.TransactionAmount -= amount
	c.state.HeldBalance -= amount
	if c.state.TransactionAmount == 0 {
		c.state.Status = models.ContractStatusRefunded
	}
	c.emit(ctx, Event{Kind: EventFundsRefunded, AmountNano: c.state.TransactionAmount})
	return nil
}

// Pay moves part of the outstanding amount to an arbitrary payee. Escrow
// holder only; the payee is not restricted to buyer or seller.
func (c *Contract) Pay(ctx context.Context, caller string, amount int64, payee string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.EscrowSet() || caller != c.state.EscrowAccount {
		return ErrUnauthorized
	}
	if amount > c.state.TransactionAmount {
		return ErrInsufficientBalance
	}

	if err := c.transfer(ctx, models.TransferKindPayout, payee, amount); err != nil {
		return err
	}

	c.state.TransactionAmount -= amount
	c.state.HeldBalance -= amount
	if c.state.TransactionAmount == 0 {
		c.state.Status = models.ContractStatusPaidOut
	}
	c.emit(ctx, Event{Kind: EventFundsPaid, AmountNano: c.state.TransactionAmount, Payee: payee})
	return nil
}

// Review stores review text. The caller's role fixes the target for buyer
// and seller (each reviews the other side); only the escrow holder routes by
// the isBuyerReview flag. The flag is still echoed in the event as supplied.
func (c *Contract) Review(ctx context.Context, caller, text string, isBuyerReview bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(text) > c.reviewMaxLen {
		cut := c.reviewMaxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	switch caller {
	case c.state.Buyer:
		c.state.SellerReview = text
	case c.state.Seller:
		c.state.BuyerReview = text
	default:
		if !c.state.EscrowSet() || caller != c.state.EscrowAccount {
			return ErrUnauthorized
		}
		if isBuyerReview {
			c.state.BuyerReview = text
		} else {
			c.state.SellerReview = text
		}
	}

	c.emit(ctx, Event{Kind: EventReview, ReviewText: text, IsBuyerReview: isBuyerReview})
	return nil
}

// feeSplit computes the truncating integer fee split on newly incoming
// funds. Fees are never recomputed against the running balance.
func (c *Contract) feeSplit(amount int64) (devFee, escrowFee int64) {
	devFee = amount * c.state.DevFeePercent / 100
	escrowFee = amount * c.state.EscrowFeePercent / 100
	return devFee, escrowFee
}

// payFees executes the two fee transfers for an inbound payment. The dev fee
// goes back to the buyer unless a platform recipient is configured.
func (c *Contract) payFees(ctx context.Context, devFee, escrowFee int64) error {
	devRecipient := c.state.Buyer
	if c.devFeeRecipient != "" {
		devRecipient = c.devFeeRecipient
	}
	if err := c.transfer(ctx, models.TransferKindDevFee, devRecipient, devFee); err != nil {
		return err
	}
	return c.transfer(ctx, models.TransferKindEscrowFee, c.state.EscrowAccount, escrowFee)
}

func (c *Contract) transfer(ctx context.Context, kind, to string, amount int64) error {
	if c.ledger == nil {
		return fmt.Errorf("escrow: no ledger configured")
	}
	if err := c.ledger.Transfer(ctx, Transfer{
		ContractID: c.state.ID,
		Kind:       kind,
		To:         to,
		AmountNano: amount,
		Memo:       fmt.Sprintf("escrow:%s:%s", c.state.ID, kind),
	}); err != nil {
		return fmt.Errorf("escrow: %s transfer: %w", kind, err)
	}
	return nil
}

// emit fills the party identities and timestamp, then hands off. Callers
// hold the contract lock.
func (c *Contract) emit(ctx context.Context, e Event) {
	e.ContractID = c.state.ID
	e.Buyer = c.state.Buyer
	e.Seller = c.state.Seller
	e.EscrowAccount = c.state.EscrowAccount
	e.At = c.clock.Now()
	c.state.UpdatedAt = e.At
	c.sink.Emit(ctx, e)
}
