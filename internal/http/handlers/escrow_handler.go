package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/escrow-platform/backend/internal/escrow"
	"github.com/escrow-platform/backend/internal/http/dto"
	"github.com/escrow-platform/backend/internal/middleware"
	"github.com/escrow-platform/backend/internal/repositories"
	"github.com/escrow-platform/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	hotWallet     string
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, hotWallet string, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, hotWallet: hotWallet, log: log}
}

// statusForError maps contract rule violations to HTTP statuses. Anything
// unrecognized is a plain validation failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, escrow.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, escrow.ErrAlreadyAgreed):
		return fiber.StatusConflict
	case errors.Is(err, escrow.ErrExpired):
		return fiber.StatusGone
	case errors.Is(err, escrow.ErrEscrowNotSet),
		errors.Is(err, escrow.ErrAmountMismatch),
		errors.Is(err, escrow.ErrInsufficientBalance):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusBadRequest
	}
}

// caller resolves the authenticated user's party identity. Users without a
// connected wallet cannot act on contracts.
func caller(c *fiber.Ctx) (string, error) {
	addr := middleware.GetWalletAddress(c)
	if addr == "" {
		return "", fmt.Errorf("no wallet connected")
	}
	return addr, nil
}

func (h *EscrowHandler) CreateContract(c *fiber.Ctx) error {
	var req dto.CreateContractRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	buyer, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	contract, err := h.escrowService.CreateContract(c.Context(), buyer, services.CreateContractInput{
		Seller:           req.Seller,
		AmountNano:       req.AmountNano,
		ExpiresAt:        req.ExpiresAt,
		DevFeePercent:    req.DevFeePercent,
		EscrowFeePercent: req.EscrowFeePercent,
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: contract})
}

func (h *EscrowHandler) GetContract(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	contract, err := h.escrowService.GetContract(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "contract not found"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: contract})
}

func (h *EscrowHandler) ListContracts(c *fiber.Ctx) error {
	addr := middleware.GetWalletAddress(c)
	filter := repositories.ContractFilter{
		Limit:  20,
		Offset: 0,
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if addr != "" {
		filter.Party = &addr
	}

	contracts, err := h.escrowService.ListContracts(c.Context(), filter)
	if err != nil {
		h.log.Error("list contracts failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: contracts})
}

func (h *EscrowHandler) AgreeOnEscrowAddress(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	var req dto.AgreeEscrowRequest
	if err := c.BodyParser(&req); err != nil || req.EscrowAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "escrow_address is required"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.AgreeOnEscrowAddress(c.Context(), id, addr, req.EscrowAddress); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) SendFunds(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	var req dto.SendFundsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.SendFunds(c.Context(), id, addr, req.AmountNano); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) RequestPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.RequestPayment(c.Context(), id, addr); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) ReleaseFunds(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.ReleaseFunds(c.Context(), id, addr); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) ReleaseFundsToBuyer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.ReleaseFundsToBuyer(c.Context(), id, addr); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) AddMoreFunds(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	var req dto.AddFundsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.AddMoreFunds(c.Context(), id, addr, req.AmountNano); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) Refund(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	var req dto.RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.Refund(c.Context(), id, addr, req.AmountNano); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) Pay(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	var req dto.PayRequest
	if err := c.BodyParser(&req); err != nil || req.Payee == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "payee is required"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.Pay(c.Context(), id, addr, req.AmountNano, req.Payee); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) Review(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "text is required"})
	}

	addr, err := caller(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.escrowService.Review(c.Context(), id, addr, req.Text, req.IsBuyerReview); err != nil {
		return c.Status(statusForError(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) GetReviews(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	contract, err := h.escrowService.GetContract(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "contract not found"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ReviewsResponse{
		BuyerReview:  contract.BuyerReview,
		SellerReview: contract.SellerReview,
	}})
}

func (h *EscrowHandler) GetContractEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	evts, err := h.escrowService.GetContractEvents(c.Context(), id, limit, offset)
	if err != nil {
		h.log.Error("get contract events failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: evts})
}

func (h *EscrowHandler) GetContractTransfers(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	transfers, err := h.escrowService.GetContractTransfers(c.Context(), id, limit, offset)
	if err != nil {
		h.log.Error("get contract transfers failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: transfers})
}

// GetDepositInfo returns the hot wallet address and attribution memo the
// buyer's wallet must use so the deposit indexer can match the payment.
func (h *EscrowHandler) GetDepositInfo(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid contract id"})
	}

	contract, err := h.escrowService.GetContract(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "contract not found"})
	}

	return c.JSON(dto.DepositInfoResponse{
		ContractID:    id.String(),
		WalletAddress: h.hotWallet,
		Memo:          fmt.Sprintf("escrow:%s", id),
		AmountNano:    contract.TransactionAmount,
		Status:        contract.Status,
	})
}
