package services

import (
	"context"
	"fmt"
	"time"

	"github.com/escrow-platform/backend/internal/config"
	"github.com/escrow-platform/backend/internal/escrow"
	"github.com/escrow-platform/backend/internal/events"
	"github.com/escrow-platform/backend/internal/models"
	"github.com/escrow-platform/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EscrowService owns the arena of live contract state machines and wires
// them to persistence, the transfer queue and event fan-out. One instance
// per process; the arena guarantees one state machine per contract.
type EscrowService struct {
	arena        *escrow.Arena
	contractRepo *repositories.ContractRepo
	eventRepo    *repositories.EventRepo
	transferRepo *repositories.TransferRepo
	ledger       escrow.Ledger
	publisher    events.Publisher
	cfg          *config.Config
	log          *zap.Logger
	clock        escrow.Clock
}

func NewEscrowService(
	contractRepo *repositories.ContractRepo,
	eventRepo *repositories.EventRepo,
	transferRepo *repositories.TransferRepo,
	ledger escrow.Ledger,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *EscrowService {
	return &EscrowService{
		arena:        escrow.NewArena(),
		contractRepo: contractRepo,
		eventRepo:    eventRepo,
		transferRepo: transferRepo,
		ledger:       ledger,
		publisher:    publisher,
		cfg:          cfg,
		log:          log,
		clock:        escrow.SystemClock{},
	}
}

// SetClock overrides the time source. Test hook.
func (s *EscrowService) SetClock(clock escrow.Clock) {
	s.clock = clock
}

type CreateContractInput struct {
	Seller           string
	AmountNano       int64
	ExpiresAt        time.Time
	DevFeePercent    int64
	EscrowFeePercent int64
}

// CreateContract registers a new escrow agreement. The authenticated caller
// becomes the buyer.
func (s *EscrowService) CreateContract(ctx context.Context, buyer string, in CreateContractInput) (*models.Contract, error) {
	if in.Seller == "" {
		return nil, fmt.Errorf("seller address is required")
	}
	if in.Seller == buyer {
		return nil, fmt.Errorf("buyer and seller must be distinct addresses")
	}
	if in.AmountNano <= 0 {
		return nil, fmt.Errorf("transaction amount must be positive")
	}
	if in.DevFeePercent < 0 || in.DevFeePercent > 100 || in.EscrowFeePercent < 0 || in.EscrowFeePercent > 100 {
		return nil, fmt.Errorf("fee percentages must be within 0-100")
	}
	if !in.ExpiresAt.After(s.clock.Now()) {
		return nil, fmt.Errorf("expiration must be in the future")
	}

	c := &models.Contract{
		Buyer:             buyer,
		Seller:            in.Seller,
		TransactionAmount: in.AmountNano,
		ExpiresAt:         in.ExpiresAt,
		DevFeePercent:     in.DevFeePercent,
		EscrowFeePercent:  in.EscrowFeePercent,
		Status:            models.ContractStatusCreated,
	}
	if err := s.contractRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info("contract created",
		zap.String("contract_id", c.ID.String()),
		zap.String("buyer", buyer),
		zap.String("seller", in.Seller),
		zap.Int64("amount_nano", in.AmountNano),
	)
	return c, nil
}

// load returns the live state machine for id, instantiating it from the
// persisted snapshot on first access.
func (s *EscrowService) load(ctx context.Context, id uuid.UUID) (*escrow.Contract, error) {
	if c, ok := s.arena.Get(id); ok {
		return c, nil
	}
	state, err := s.contractRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("contract not found: %w", err)
	}
	c := escrow.New(*state, escrow.Options{
		Ledger:          s.ledger,
		Sink:            &serviceSink{svc: s},
		Clock:           s.clock,
		DevFeeRecipient: s.cfg.DevFeeRecipient,
		ReviewMaxLen:    s.cfg.ReviewMaxLen,
	})
	return s.arena.GetOrPut(id, c), nil
}

// run executes op against the live contract and persists the snapshot on
// success.
func (s *EscrowService) run(ctx context.Context, id uuid.UUID, op func(*escrow.Contract) error) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := op(c); err != nil {
		return err
	}
	snapshot := c.Snapshot()
	if err := s.contractRepo.Save(ctx, &snapshot); err != nil {
		s.log.Error("failed to persist contract snapshot",
			zap.String("contract_id", id.String()), zap.Error(err))
		return err
	}
	return nil
}

func (s *EscrowService) AgreeOnEscrowAddress(ctx context.Context, id uuid.UUID, caller, candidate string) error {
	if candidate == "" {
		return fmt.Errorf("escrow address is required")
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	snapshot := c.Snapshot()
	if candidate == snapshot.Buyer || candidate == snapshot.Seller {
		// Not forbidden, but almost always a caller mistake.
		s.log.Warn("escrow address equals a contract party",
			zap.String("contract_id", id.String()),
			zap.String("candidate", candidate),
		)
	}
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.AgreeOnEscrowAddress(ctx, caller, candidate)
	})
}

func (s *EscrowService) SendFunds(ctx context.Context, id uuid.UUID, caller string, amount int64) error {
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.SendFunds(ctx, caller, amount)
	})
}

func (s *EscrowService) RequestPayment(ctx context.Context, id uuid.UUID, caller string) error {
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.RequestPayment(ctx, caller)
	})
}

func (s *EscrowService) ReleaseFunds(ctx context.Context, id uuid.UUID, caller string) error {
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.ReleaseFunds(ctx, caller)
	})
}

func (s *EscrowService) ReleaseFundsToBuyer(ctx context.Context, id uuid.UUID, caller string) error {
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.ReleaseFundsToBuyer(ctx, caller)
	})
}

func (s *EscrowService) AddMoreFunds(ctx context.Context, id uuid.UUID, caller string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("top-up amount must be positive")
	}
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.AddMoreFunds(ctx, caller, amount)
	})
}

func (s *EscrowService) Refund(ctx context.Context, id uuid.UUID, caller string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("refund amount must be positive")
	}
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.Refund(ctx, caller, amount)
	})
}

func (s *EscrowService) Pay(ctx context.Context, id uuid.UUID, caller string, amount int64, payee string) error {
	if amount <= 0 {
		return fmt.Errorf("pay amount must be positive")
	}
	if payee == "" {
		return fmt.Errorf("payee address is required")
	}
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.Pay(ctx, caller, amount, payee)
	})
}

func (s *EscrowService) Review(ctx context.Context, id uuid.UUID, caller, text string, isBuyerReview bool) error {
	if text == "" {
		return fmt.Errorf("review text is required")
	}
	if len(text) > s.cfg.ReviewMaxLen {
		return fmt.Errorf("review text exceeds %d bytes", s.cfg.ReviewMaxLen)
	}
	return s.run(ctx, id, func(c *escrow.Contract) error {
		return c.Review(ctx, caller, text, isBuyerReview)
	})
}

// ConfirmDeposit is the funding path driven by the deposit indexer: an
// observed inbound payment for the contract is applied as the initial
// funding or, once funded, as a top-up. The payer address is the caller, so
// deposits from anyone but the buyer are rejected by the contract.
func (s *EscrowService) ConfirmDeposit(ctx context.Context, id uuid.UUID, payer string, amount int64) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	snapshot := c.Snapshot()

	var opErr error
	if snapshot.Status == models.ContractStatusCreated || snapshot.Status == models.ContractStatusEscrowAgreed {
		opErr = s.SendFunds(ctx, id, payer, amount)
	} else {
		opErr = s.AddMoreFunds(ctx, id, payer, amount)
	}
	if opErr != nil {
		return opErr
	}

	if err := s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventDepositSeen,
		Payload: map[string]any{
			"contract_id": id.String(),
			"payer":       payer,
			"amount_nano": amount,
		},
	}); err != nil {
		s.log.Warn("failed to publish deposit event", zap.Error(err))
	}
	return nil
}

func (s *EscrowService) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	// Prefer the live instance so callers see uncommitted review text etc.
	// only after persistence; both paths read committed state.
	if c, ok := s.arena.Get(id); ok {
		snapshot := c.Snapshot()
		return &snapshot, nil
	}
	return s.contractRepo.GetByID(ctx, id)
}

func (s *EscrowService) ListContracts(ctx context.Context, f repositories.ContractFilter) ([]models.Contract, error) {
	return s.contractRepo.List(ctx, f)
}

func (s *EscrowService) GetContractEvents(ctx context.Context, id uuid.UUID, limit, offset int) ([]models.EscrowEvent, error) {
	return s.eventRepo.ListByContract(ctx, id, limit, offset)
}

func (s *EscrowService) GetContractTransfers(ctx context.Context, id uuid.UUID, limit, offset int) ([]models.Transfer, error) {
	return s.transferRepo.ListByContract(ctx, id, limit, offset)
}

// serviceSink receives events from inside the contract critical section and
// fans them out: append to the audit log, publish to Redis.
type serviceSink struct {
	svc *EscrowService
}

func (sk *serviceSink) Emit(ctx context.Context, e escrow.Event) {
	s := sk.svc

	row := &models.EscrowEvent{
		ContractID:    e.ContractID,
		Kind:          e.Kind,
		Buyer:         e.Buyer,
		Seller:        e.Seller,
		EscrowAccount: e.EscrowAccount,
	}
	switch e.Kind {
	case escrow.EventFundsSent, escrow.EventFundsReleased, escrow.EventFundsReleasedToBuyer,
		escrow.EventFundsAdded, escrow.EventFundsRefunded, escrow.EventFundsPaid:
		amount := e.AmountNano
		row.AmountNano = &amount
	}
	if e.Kind == escrow.EventFundsPaid {
		payee := e.Payee
		row.Payee = &payee
	}
	if e.Kind == escrow.EventReview {
		text := e.ReviewText
		isBuyer := e.IsBuyerReview
		row.ReviewText = &text
		row.IsBuyerReview = &isBuyer
	}

	if err := s.eventRepo.Append(ctx, row); err != nil {
		s.log.Error("failed to append escrow event",
			zap.String("contract_id", e.ContractID.String()),
			zap.String("kind", e.Kind),
			zap.Error(err),
		)
	}

	if err := s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventEscrowChanged,
		Payload: map[string]any{
			"contract_id":    e.ContractID.String(),
			"kind":           e.Kind,
			"buyer":          e.Buyer,
			"seller":         e.Seller,
			"escrow_account": e.EscrowAccount,
			"amount_nano":    e.AmountNano,
		},
	}); err != nil {
		s.log.Warn("failed to publish escrow event",
			zap.String("kind", e.Kind), zap.Error(err))
	}
}
