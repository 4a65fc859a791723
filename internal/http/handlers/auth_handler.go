package handlers

import (
	"github.com/escrow-platform/backend/internal/auth"
	"github.com/escrow-platform/backend/internal/config"
	"github.com/escrow-platform/backend/internal/http/dto"
	"github.com/escrow-platform/backend/internal/services"
	"github.com/escrow-platform/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler issues sessions. Authentication is wallet-based: the client
// requests a proof payload, signs it with TON Connect and exchanges the
// proof for a JWT carrying the wallet address as party identity.
type AuthHandler struct {
	walletService *services.WalletService
	cfg           *config.Config
	log           *zap.Logger
}

func NewAuthHandler(walletService *services.WalletService, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{walletService: walletService, cfg: cfg, log: log}
}

// GenerateProofPayload issues the single-use nonce the wallet must sign.
// POST /auth/proof-payload
func (h *AuthHandler) GenerateProofPayload(c *fiber.Ctx) error {
	payload, err := h.walletService.GeneratePayload(c.Context())
	if err != nil {
		h.log.Error("failed to generate proof payload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.ProofPayloadResponse{Payload: payload.Payload})
}

// WalletAuth verifies a TON Proof and returns a JWT for the wallet's user.
// POST /auth/wallet
func (h *AuthHandler) WalletAuth(c *fiber.Ctx) error {
	var req dto.ConnectWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Address == "" || req.PublicKey == "" || req.Proof.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address, public_key and proof.signature are required"})
	}

	user, err := h.walletService.ConnectWallet(c.Context(), ton.ProofData{
		Address:   req.Address,
		Network:   req.Network,
		PublicKey: req.PublicKey,
		Proof: ton.Proof{
			Timestamp: req.Proof.Timestamp,
			Domain: ton.ProofDomain{
				LengthBytes: req.Proof.Domain.LengthBytes,
				Value:       req.Proof.Domain.Value,
			},
			Payload:   req.Proof.Payload,
			Signature: req.Proof.Signature,
		},
	})
	if err != nil {
		h.log.Debug("wallet auth failed", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	wallet := ""
	if user.WalletAddress != nil {
		wallet = *user.WalletAddress
	}
	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, wallet, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{
		Token: token,
		User:  user,
	})
}
