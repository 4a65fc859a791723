package services

import (
	"context"
	"fmt"
	"time"

	"github.com/escrow-platform/backend/internal/config"
	"github.com/escrow-platform/backend/internal/models"
	"github.com/escrow-platform/backend/internal/repositories"
	"github.com/escrow-platform/backend/internal/ton"
	"github.com/google/uuid"
	tonaddr "github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

const proofPayloadTTL = 10 * time.Minute

// WalletService handles TON Connect wallet binding. A verified active wallet
// is what authorizes a user to act as a contract party.
type WalletService struct {
	walletRepo *repositories.WalletRepo
	userRepo   *repositories.UserRepo
	cfg        *config.Config
	log        *zap.Logger
}

func NewWalletService(
	walletRepo *repositories.WalletRepo,
	userRepo *repositories.UserRepo,
	cfg *config.Config,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
		userRepo:   userRepo,
		cfg:        cfg,
		log:        log,
	}
}

// GeneratePayload issues a single-use nonce for the wallet to sign.
func (s *WalletService) GeneratePayload(ctx context.Context) (*models.TonProofPayload, error) {
	return s.walletRepo.CreateProofPayload(ctx, nil, proofPayloadTTL)
}

// ConnectWallet verifies a TON Proof and binds the wallet to a user account,
// creating the account on first connect. Returns the user the wallet now
// belongs to.
func (s *WalletService) ConnectWallet(ctx context.Context, proof ton.ProofData) (*models.User, error) {
	if _, err := s.walletRepo.ConsumeProofPayload(ctx, proof.Proof.Payload); err != nil {
		return nil, fmt.Errorf("unknown or expired proof payload")
	}

	workchain, addrHash, err := ton.ParseRawAddress(proof.Address)
	if err != nil {
		return nil, err
	}

	if err := ton.VerifyProof(proof.PublicKey, addrHash, workchain, proof.Proof, s.cfg.TONProofAllowedDomains); err != nil {
		s.log.Warn("ton proof verification failed",
			zap.String("address", proof.Address), zap.Error(err))
		return nil, fmt.Errorf("proof verification failed: %w", err)
	}

	network := "mainnet"
	if proof.Network == "-3" {
		network = "testnet"
	}
	friendly := tonaddr.NewAddress(0, byte(workchain), addrHash).String()

	user, err := s.userRepo.UpsertByWalletAddress(ctx, proof.Address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	if err := s.walletRepo.DeactivateAllWallets(ctx, user.ID); err != nil {
		return nil, err
	}
	w := &models.UserWallet{
		UserID:          user.ID,
		Address:         proof.Address,
		AddressFriendly: friendly,
		Network:         network,
		PublicKey:       proof.PublicKey,
		ProofPayload:    proof.Proof.Payload,
		ProofSignature:  proof.Proof.Signature,
		ProofTimestamp:  proof.Proof.Timestamp,
		ProofDomain:     proof.Proof.Domain.Value,
		Verified:        true,
	}
	if err := s.walletRepo.ConnectWallet(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to store wallet: %w", err)
	}
	if err := s.walletRepo.UpdateUserWalletAddress(ctx, user.ID, proof.Address); err != nil {
		return nil, err
	}
	addr := proof.Address
	user.WalletAddress = &addr

	s.log.Info("wallet connected",
		zap.String("user_id", user.ID.String()),
		zap.String("address", proof.Address),
		zap.String("network", network),
	)
	return user, nil
}

// DisconnectWallet deactivates the user's wallets and clears the party
// identity. Existing contracts keep referencing the old address.
func (s *WalletService) DisconnectWallet(ctx context.Context, userID uuid.UUID) error {
	if err := s.walletRepo.DeactivateAllWallets(ctx, userID); err != nil {
		return err
	}
	return s.walletRepo.ClearUserWalletAddress(ctx, userID)
}

func (s *WalletService) GetActiveWallet(ctx context.Context, userID uuid.UUID) (*models.UserWallet, error) {
	return s.walletRepo.GetActiveWallet(ctx, userID)
}
