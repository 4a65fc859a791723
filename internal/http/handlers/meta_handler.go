package handlers

import (
	"github.com/escrow-platform/backend/internal/http/dto"
	"github.com/escrow-platform/backend/internal/models"
	"github.com/escrow-platform/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
)

// MetaHandler serves static reference data for clients: role permissions and
// the contract status vocabulary.
type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaStatus struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var contractStatuses = []MetaStatus{
	{ID: models.ContractStatusCreated, Label: "Created"},
	{ID: models.ContractStatusEscrowAgreed, Label: "Escrow agreed"},
	{ID: models.ContractStatusFunded, Label: "Funded"},
	{ID: models.ContractStatusReleased, Label: "Released to seller"},
	{ID: models.ContractStatusReleasedToBuyer, Label: "Released to buyer"},
	{ID: models.ContractStatusRefunded, Label: "Refunded"},
	{ID: models.ContractStatusPaidOut, Label: "Paid out"},
}

func (h *MetaHandler) GetRoles(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: rbac.RolePermissions})
}

func (h *MetaHandler) GetStatuses(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: contractStatuses})
}
