package escrow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/escrow-platform/backend/internal/escrow"
	"github.com/escrow-platform/backend/internal/ledger"
	"github.com/escrow-platform/backend/internal/models"
	"github.com/google/uuid"
)

const (
	buyer  = "0:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	seller = "0:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	holder = "0:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
	payee  = "0:dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd"
)

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type recordSink struct {
	events []escrow.Event
}

func (s *recordSink) Emit(_ context.Context, e escrow.Event) {
	s.events = append(s.events, e)
}

type fixture struct {
	contract *escrow.Contract
	fake     *ledger.FakeClient
	sink     *recordSink
	clock    *fixedClock
	deadline time.Time
}

func newFixture(t *testing.T, mutate func(*models.Contract), opt func(*escrow.Options)) *fixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(24 * time.Hour)

	state := models.Contract{
		ID:                uuid.New(),
		Buyer:             buyer,
		Seller:            seller,
		TransactionAmount: 1000,
		ExpiresAt:         deadline,
		DevFeePercent:     5,
		EscrowFeePercent:  3,
	}
	if mutate != nil {
		mutate(&state)
	}

	fake := &ledger.FakeClient{}
	sink := &recordSink{}
	clock := &fixedClock{t: now}

	opts := escrow.Options{Ledger: fake, Sink: sink, Clock: clock}
	if opt != nil {
		opt(&opts)
	}

	return &fixture{
		contract: escrow.New(state, opts),
		fake:     fake,
		sink:     sink,
		clock:    clock,
		deadline: deadline,
	}
}

// newAgreed returns a fixture with the escrow account already fixed.
func newAgreed(t *testing.T, mutate func(*models.Contract), opt func(*escrow.Options)) *fixture {
	t.Helper()
	return newFixture(t, func(c *models.Contract) {
		c.EscrowAccount = holder
		c.Status = models.ContractStatusEscrowAgreed
		if mutate != nil {
			mutate(c)
		}
	}, opt)
}

func lastEvent(t *testing.T, f *fixture) escrow.Event {
	t.Helper()
	if len(f.sink.events) == 0 {
		t.Fatal("no events emitted")
	}
	return f.sink.events[len(f.sink.events)-1]
}

func TestAgreeOnEscrowAddress(t *testing.T) {
	ctx := context.Background()

	t.Run("buyer agrees", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.AgreeOnEscrowAddress(ctx, buyer, holder); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := f.contract.Snapshot()
		if snap.EscrowAccount != holder {
			t.Errorf("escrow account = %q, want %q", snap.EscrowAccount, holder)
		}
		if snap.Status != models.ContractStatusEscrowAgreed {
			t.Errorf("status = %q, want %q", snap.Status, models.ContractStatusEscrowAgreed)
		}
		if e := lastEvent(t, f); e.Kind != escrow.EventAddressAgreed {
			t.Errorf("event kind = %q, want %q", e.Kind, escrow.EventAddressAgreed)
		}
	})

	t.Run("seller agrees", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.AgreeOnEscrowAddress(ctx, seller, holder); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("stranger rejected", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.AgreeOnEscrowAddress(ctx, payee, holder); !errors.Is(err, escrow.ErrUnauthorized) {
			t.Fatalf("error = %v, want ErrUnauthorized", err)
		}
		if f.contract.Snapshot().EscrowAccount != "" {
			t.Error("escrow account set despite rejection")
		}
		if len(f.sink.events) != 0 {
			t.Error("event emitted for rejected operation")
		}
	})

	t.Run("second call rejected", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.AgreeOnEscrowAddress(ctx, buyer, holder); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := f.contract.AgreeOnEscrowAddress(ctx, seller, payee); !errors.Is(err, escrow.ErrAlreadyAgreed) {
			t.Fatalf("error = %v, want ErrAlreadyAgreed", err)
		}
		if got := f.contract.Snapshot().EscrowAccount; got != holder {
			t.Errorf("escrow account = %q, want the first agreement %q", got, holder)
		}
	})

	t.Run("after deadline rejected", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		f.clock.t = f.deadline.Add(time.Second)
		if err := f.contract.AgreeOnEscrowAddress(ctx, buyer, holder); !errors.Is(err, escrow.ErrExpired) {
			t.Fatalf("error = %v, want ErrExpired", err)
		}
	})

	t.Run("exactly at deadline rejected", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		f.clock.t = f.deadline
		if err := f.contract.AgreeOnEscrowAddress(ctx, buyer, holder); !errors.Is(err, escrow.ErrExpired) {
			t.Fatalf("error = %v, want ErrExpired", err)
		}
	})
}

func TestSendFunds(t *testing.T) {
	ctx := context.Background()

	t.Run("fee split on funding", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.SendFunds(ctx, buyer, 1000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := f.contract.Snapshot()
		// 5% dev + 3% escrow of 1000
		if snap.HeldBalance != 920 {
			t.Errorf("held balance = %d, want 920", snap.HeldBalance)
		}
		if snap.Status != models.ContractStatusFunded {
			t.Errorf("status = %q, want %q", snap.Status, models.ContractStatusFunded)
		}

		transfers := f.fake.Recorded()
		if len(transfers) != 2 {
			t.Fatalf("recorded %d transfers, want 2", len(transfers))
		}
		if transfers[0].Kind != models.TransferKindDevFee || transfers[0].To != buyer || transfers[0].AmountNano != 50 {
			t.Errorf("dev fee transfer = %+v, want 50 to buyer", transfers[0])
		}
		if transfers[1].Kind != models.TransferKindEscrowFee || transfers[1].To != holder || transfers[1].AmountNano != 30 {
			t.Errorf("escrow fee transfer = %+v, want 30 to holder", transfers[1])
		}

		e := lastEvent(t, f)
		if e.Kind != escrow.EventFundsSent || e.AmountNano != 1000 {
			t.Errorf("event = %+v, want funds_sent amount 1000", e)
		}
	})

	t.Run("dev fee recipient override", func(t *testing.T) {
		f := newAgreed(t, nil, func(o *escrow.Options) {
			o.DevFeeRecipient = payee
		})
		if err := f.contract.SendFunds(ctx, buyer, 1000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		transfers := f.fake.Recorded()
		if transfers[0].To != payee {
			t.Errorf("dev fee went to %q, want configured recipient %q", transfers[0].To, payee)
		}
	})

	t.Run("truncating fee arithmetic", func(t *testing.T) {
		f := newAgreed(t, func(c *models.Contract) {
			c.TransactionAmount = 999
		}, nil)
		if err := f.contract.SendFunds(ctx, buyer, 999); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		transfers := f.fake.Recorded()
		// 999*5/100 = 49, 999*3/100 = 29, both truncated
		if transfers[0].AmountNano != 49 || transfers[1].AmountNano != 29 {
			t.Errorf("fees = %d, %d, want 49, 29", transfers[0].AmountNano, transfers[1].AmountNano)
		}
		if got := f.contract.Snapshot().HeldBalance; got != 921 {
			t.Errorf("held balance = %d, want 921", got)
		}
	})

	t.Run("zero fee rates move nothing", func(t *testing.T) {
		f := newAgreed(t, func(c *models.Contract) {
			c.DevFeePercent = 0
			c.EscrowFeePercent = 0
		}, nil)
		if err := f.contract.SendFunds(ctx, buyer, 1000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(f.fake.Recorded()); n != 0 {
			t.Errorf("recorded %d transfers, want 0", n)
		}
		if got := f.contract.Snapshot().HeldBalance; got != 1000 {
			t.Errorf("held balance = %d, want 1000", got)
		}
	})

	t.Run("preconditions", func(t *testing.T) {
		tests := []struct {
			name    string
			fixture func(t *testing.T) *fixture
			caller  string
			amount  int64
			wantErr error
		}{
			{
				name:    "seller cannot fund",
				fixture: func(t *testing.T) *fixture { return newAgreed(t, nil, nil) },
				caller:  seller,
				amount:  1000,
				wantErr: escrow.ErrUnauthorized,
			},
			{
				name:    "escrow account required",
				fixture: func(t *testing.T) *fixture { return newFixture(t, nil, nil) },
				caller:  buyer,
				amount:  1000,
				wantErr: escrow.ErrEscrowNotSet,
			},
			{
				name: "expired",
				fixture: func(t *testing.T) *fixture {
					f := newAgreed(t, nil, nil)
					f.clock.t = f.deadline
					return f
				},
				caller:  buyer,
				amount:  1000,
				wantErr: escrow.ErrExpired,
			},
			{
				name:    "amount below outstanding",
				fixture: func(t *testing.T) *fixture { return newAgreed(t, nil, nil) },
				caller:  buyer,
				amount:  999,
				wantErr: escrow.ErrAmountMismatch,
			},
			{
				name:    "amount above outstanding",
				fixture: func(t *testing.T) *fixture { return newAgreed(t, nil, nil) },
				caller:  buyer,
				amount:  1001,
				wantErr: escrow.ErrAmountMismatch,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := tt.fixture(t)
				if err := f.contract.SendFunds(ctx, tt.caller, tt.amount); !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if got := f.contract.Snapshot().HeldBalance; got != 0 {
					t.Errorf("held balance = %d after rejected funding", got)
				}
				if len(f.sink.events) != 0 {
					t.Error("event emitted for rejected operation")
				}
			})
		}
	})

	t.Run("ledger failure leaves state untouched", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		f.fake.FailNext = true
		if err := f.contract.SendFunds(ctx, buyer, 1000); err == nil {
			t.Fatal("expected error from ledger")
		}
		snap := f.contract.Snapshot()
		if snap.HeldBalance != 0 || snap.Status != models.ContractStatusEscrowAgreed {
			t.Errorf("state mutated after failed transfer: %+v", snap)
		}
		if len(f.sink.events) != 0 {
			t.Error("event emitted for failed operation")
		}
	})
}

func TestRequestPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("seller requests", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		before := f.contract.Snapshot()
		if err := f.contract.RequestPayment(ctx, seller); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		after := f.contract.Snapshot()
		if after.HeldBalance != before.HeldBalance || after.TransactionAmount != before.TransactionAmount || after.Status != before.Status {
			t.Error("notification mutated contract state")
		}
		if len(f.fake.Recorded()) != 0 {
			t.Error("notification moved funds")
		}
		if e := lastEvent(t, f); e.Kind != escrow.EventPaymentRequested {
			t.Errorf("event kind = %q, want %q", e.Kind, escrow.EventPaymentRequested)
		}
	})

	t.Run("buyer rejected", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.RequestPayment(ctx, buyer); !errors.Is(err, escrow.ErrUnauthorized) {
			t.Fatalf("error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("escrow account required", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.RequestPayment(ctx, seller); !errors.Is(err, escrow.ErrEscrowNotSet) {
			t.Fatalf("error = %v, want ErrEscrowNotSet", err)
		}
	})
}

func TestReleaseFunds(t *testing.T) {
	ctx := context.Background()

	funded := func(t *testing.T) *fixture {
		f := newAgreed(t, nil, nil)
		if err := f.contract.SendFunds(ctx, buyer, 1000); err != nil {
			t.Fatalf("funding failed: %v", err)
		}
		return f
	}

	t.Run("full amount to seller", func(t *testing.T) {
		f := funded(t)
		if err := f.contract.ReleaseFunds(ctx, holder); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		transfers := f.fake.Recorded()
		last := transfers[len(transfers)-1]
		if last.Kind != models.TransferKindRelease || last.To != seller || last.AmountNano != 1000 {
			t.Errorf("release transfer = %+v, want 1000 to seller", last)
		}

		snap := f.contract.Snapshot()
		// Fees already left the held balance, so paying the full outstanding
		// amount drives it negative. The outstanding amount itself stays.
		if snap.TransactionAmount != 1000 {
			t.Errorf("transaction amount = %d, want 1000 (not zeroed)", snap.TransactionAmount)
		}
		if snap.HeldBalance != -80 {
			t.Errorf("held balance = %d, want -80", snap.HeldBalance)
		}
		if snap.Status != models.ContractStatusReleased {
			t.Errorf("status = %q, want %q", snap.Status, models.ContractStatusReleased)
		}
		if e := lastEvent(t, f); e.Kind != escrow.EventFundsReleased || e.AmountNano != 1000 {
			t.Errorf("event = %+v, want funds_released amount 1000", e)
		}
	})

	t.Run("release to buyer", func(t *testing.T) {
		f := funded(t)
		if err := f.contract.ReleaseFundsToBuyer(ctx, holder); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		transfers := f.fake.Recorded()
		last := transfers[len(transfers)-1]
		if last.To != buyer || last.AmountNano != 1000 {
			t.Errorf("release transfer = %+v, want 1000 to buyer", last)
		}
		if got := f.contract.Snapshot().Status; got != models.ContractStatusReleasedToBuyer {
			t.Errorf("status = %q, want %q", got, models.ContractStatusReleasedToBuyer)
		}
	})

	t.Run("second release transfers again", func(t *testing.T) {
		f := funded(t)
		if err := f.contract.ReleaseFunds(ctx, holder); err != nil {
			t.Fatalf("first release: %v", err)
		}
		if err := f.contract.ReleaseFunds(ctx, holder); err != nil {
			t.Fatalf("second release: %v", err)
		}

		var releases int64
		for _, tr := range f.fake.Recorded() {
			if tr.Kind == models.TransferKindRelease {
				releases += tr.AmountNano
			}
		}
		if releases != 2000 {
			t.Errorf("total released = %d, want 2000 across two calls", releases)
		}
	})

	t.Run("only escrow holder", func(t *testing.T) {
		for _, caller := range []string{buyer, seller, payee} {
			f := funded(t)
			if err := f.contract.ReleaseFunds(ctx, caller); !errors.Is(err, escrow.ErrUnauthorized) {
				t.Errorf("caller %q: error = %v, want ErrUnauthorized", caller, err)
			}
		}
	})

	t.Run("escrow account required", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.ReleaseFunds(ctx, holder); !errors.Is(err, escrow.ErrEscrowNotSet) {
			t.Fatalf("error = %v, want ErrEscrowNotSet", err)
		}
	})

	t.Run("works after deadline", func(t *testing.T) {
		f := funded(t)
		f.clock.t = f.deadline.Add(48 * time.Hour)
		if err := f.contract.ReleaseFunds(ctx, holder); err != nil {
			t.Fatalf("release after deadline: %v", err)
		}
	})
}

func TestAddMoreFunds(t *testing.T) {
	ctx := context.Background()

	t.Run("top-up grows outstanding amount", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.AddMoreFunds(ctx, buyer, 500); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := f.contract.Snapshot()
		if snap.TransactionAmount != 1500 {
			t.Errorf("transaction amount = %d, want 1500", snap.TransactionAmount)
		}
		// 500 - 25 dev - 15 escrow
		if snap.HeldBalance != 460 {
			t.Errorf("held balance = %d, want 460", snap.HeldBalance)
		}
		// The event reports the new total, not the increment.
		if e := lastEvent(t, f); e.Kind != escrow.EventFundsAdded || e.AmountNano != 1500 {
			t.Errorf("event = %+v, want funds_added amount 1500", e)
		}
	})

	t.Run("no deadline check", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		f.clock.t = f.deadline.Add(time.Hour)
		if err := f.contract.AddMoreFunds(ctx, buyer, 500); err != nil {
			t.Fatalf("top-up after deadline: %v", err)
		}
	})

	t.Run("buyer only", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.AddMoreFunds(ctx, seller, 500); !errors.Is(err, escrow.ErrUnauthorized) {
			t.Fatalf("error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("escrow account required", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.AddMoreFunds(ctx, buyer, 500); !errors.Is(err, escrow.ErrEscrowNotSet) {
			t.Fatalf("error = %v, want ErrEscrowNotSet", err)
		}
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("partial refund", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.SendFunds(ctx, buyer, 1000); err != nil {
			t.Fatalf("funding failed: %v", err)
		}

		if err := f.contract.Refund(ctx, seller, 400); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := f.contract.Snapshot()
		if snap.TransactionAmount != 600 {
			t.Errorf("transaction amount = %d, want 600", snap.TransactionAmount)
		}
		if snap.HeldBalance != 520 {
			t.Errorf("held balance = %d, want 520", snap.HeldBalance)
		}
		if snap.Status == models.ContractStatusRefunded {
			t.Error("partial refund must not mark the contract refunded")
		}

		transfers := f.fake.Recorded()
		last := transfers[len(transfers)-1]
		if last.Kind != models.TransferKindRefund || last.To != buyer || last.AmountNano != 400 {
			t.Errorf("refund transfer = %+v, want 400 to buyer", last)
		}
		// The event reports the remaining amount, not the refunded one.
		if e := lastEvent(t, f); e.Kind != escrow.EventFundsRefunded || e.AmountNano != 600 {
			t.Errorf("event = %+v, want funds_refunded amount 600", e)
		}
	})

	t.Run("full refund marks refunded", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Refund(ctx, seller, 1000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := f.contract.Snapshot()
		if snap.Status != models.ContractStatusRefunded {
			t.Errorf("status = %q, want %q", snap.Status, models.ContractStatusRefunded)
		}
		if snap.TransactionAmount != 0 {
			t.Errorf("transaction amount = %d, want 0", snap.TransactionAmount)
		}
	})

	t.Run("works without escrow account", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.Refund(ctx, seller, 100); err != nil {
			t.Fatalf("refund before agreement: %v", err)
		}
	})

	t.Run("over outstanding amount rejected", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Refund(ctx, seller, 1001); !errors.Is(err, escrow.ErrInsufficientBalance) {
			t.Fatalf("error = %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("seller only", func(t *testing.T) {
		for _, caller := range []string{buyer, holder, payee} {
			f := newAgreed(t, nil, nil)
			if err := f.contract.Refund(ctx, caller, 100); !errors.Is(err, escrow.ErrUnauthorized) {
				t.Errorf("caller %q: error = %v, want ErrUnauthorized", caller, err)
			}
		}
	})
}

func TestPay(t *testing.T) {
	ctx := context.Background()

	t.Run("arbitrary payee", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Pay(ctx, holder, 300, payee); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := f.contract.Snapshot()
		if snap.TransactionAmount != 700 {
			t.Errorf("transaction amount = %d, want 700", snap.TransactionAmount)
		}
		if snap.HeldBalance != -300 {
			t.Errorf("held balance = %d, want -300", snap.HeldBalance)
		}

		transfers := f.fake.Recorded()
		last := transfers[len(transfers)-1]
		if last.Kind != models.TransferKindPayout || last.To != payee || last.AmountNano != 300 {
			t.Errorf("payout transfer = %+v, want 300 to payee", last)
		}
		e := lastEvent(t, f)
		if e.Kind != escrow.EventFundsPaid || e.Payee != payee || e.AmountNano != 700 {
			t.Errorf("event = %+v, want funds_paid payee %q amount 700", e, payee)
		}
	})

	t.Run("drains to paid out", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Pay(ctx, holder, 1000, payee); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.contract.Snapshot().Status; got != models.ContractStatusPaidOut {
			t.Errorf("status = %q, want %q", got, models.ContractStatusPaidOut)
		}
	})

	t.Run("over outstanding amount rejected", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Pay(ctx, holder, 1001, payee); !errors.Is(err, escrow.ErrInsufficientBalance) {
			t.Fatalf("error = %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("escrow holder only", func(t *testing.T) {
		for _, caller := range []string{buyer, seller, payee} {
			f := newAgreed(t, nil, nil)
			if err := f.contract.Pay(ctx, caller, 100, payee); !errors.Is(err, escrow.ErrUnauthorized) {
				t.Errorf("caller %q: error = %v, want ErrUnauthorized", caller, err)
			}
		}
	})

	t.Run("unauthorized while escrow unset", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		if err := f.contract.Pay(ctx, holder, 100, payee); !errors.Is(err, escrow.ErrUnauthorized) {
			t.Fatalf("error = %v, want ErrUnauthorized", err)
		}
	})
}

func TestReview(t *testing.T) {
	ctx := context.Background()

	t.Run("buyer reviews seller", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Review(ctx, buyer, "great seller", false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := f.contract.Snapshot()
		if snap.SellerReview != "great seller" {
			t.Errorf("seller review = %q, want the buyer's text", snap.SellerReview)
		}
		if snap.BuyerReview != "" {
			t.Error("buyer review written by the buyer's own call")
		}
	})

	t.Run("seller reviews buyer", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Review(ctx, seller, "paid on time", true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.contract.Snapshot().BuyerReview; got != "paid on time" {
			t.Errorf("buyer review = %q, want the seller's text", got)
		}
	})

	t.Run("flag ignored for buyer and seller", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		// The flag claims buyer review; the caller role wins.
		if err := f.contract.Review(ctx, buyer, "still about the seller", true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := f.contract.Snapshot()
		if snap.SellerReview != "still about the seller" || snap.BuyerReview != "" {
			t.Errorf("reviews = %+v, role routing must override the flag", snap)
		}
	})

	t.Run("escrow holder routes by flag", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Review(ctx, holder, "buyer was fine", true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := f.contract.Review(ctx, holder, "seller was fine", false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := f.contract.Snapshot()
		if snap.BuyerReview != "buyer was fine" || snap.SellerReview != "seller was fine" {
			t.Errorf("reviews = %+v, want both routed by flag", snap)
		}
	})

	t.Run("stranger rejected", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Review(ctx, payee, "drive-by", false); !errors.Is(err, escrow.ErrUnauthorized) {
			t.Fatalf("error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("overwrite replaces", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		_ = f.contract.Review(ctx, buyer, "first impression", false)
		_ = f.contract.Review(ctx, buyer, "revised opinion", false)
		if got := f.contract.Snapshot().SellerReview; got != "revised opinion" {
			t.Errorf("seller review = %q, want the overwrite", got)
		}
	})

	t.Run("long text truncated", func(t *testing.T) {
		f := newAgreed(t, nil, func(o *escrow.Options) {
			o.ReviewMaxLen = 10
		})
		if err := f.contract.Review(ctx, buyer, strings.Repeat("x", 50), false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.contract.Snapshot().SellerReview; len(got) != 10 {
			t.Errorf("stored review length = %d, want 10", len(got))
		}
	})

	t.Run("truncation keeps valid utf-8", func(t *testing.T) {
		f := newAgreed(t, nil, func(o *escrow.Options) {
			o.ReviewMaxLen = 10
		})
		// "日" is 3 bytes; a 10-byte cut would land mid-rune.
		if err := f.contract.Review(ctx, buyer, strings.Repeat("日", 5), false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := f.contract.Snapshot().SellerReview
		if !utf8.ValidString(got) {
			t.Errorf("stored review %q is not valid utf-8", got)
		}
		if got != strings.Repeat("日", 3) {
			t.Errorf("stored review = %q, want %q", got, strings.Repeat("日", 3))
		}
	})

	t.Run("event echoes flag", func(t *testing.T) {
		f := newAgreed(t, nil, nil)
		if err := f.contract.Review(ctx, buyer, "text", true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		e := lastEvent(t, f)
		if e.Kind != escrow.EventReview || !e.IsBuyerReview || e.ReviewText != "text" {
			t.Errorf("event = %+v, want review event echoing the supplied flag", e)
		}
	})
}

func TestEventStamping(t *testing.T) {
	ctx := context.Background()

	f := newAgreed(t, nil, nil)
	if err := f.contract.SendFunds(ctx, buyer, 1000); err != nil {
		t.Fatalf("funding failed: %v", err)
	}

	e := lastEvent(t, f)
	if e.Buyer != buyer || e.Seller != seller || e.EscrowAccount != holder {
		t.Errorf("event parties = %q/%q/%q, want contract parties", e.Buyer, e.Seller, e.EscrowAccount)
	}
	if !e.At.Equal(f.clock.t) {
		t.Errorf("event time = %v, want clock time %v", e.At, f.clock.t)
	}
	if got := f.contract.Snapshot().UpdatedAt; !got.Equal(f.clock.t) {
		t.Errorf("updated_at = %v, want clock time %v", got, f.clock.t)
	}
}
