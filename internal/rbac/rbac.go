package rbac

import "github.com/escrow-platform/backend/internal/models"

// Permission constants, one per contract operation.
const (
	PermAgreeAddress   = "agree_escrow_address"
	PermSendFunds      = "send_funds"
	PermAddFunds       = "add_funds"
	PermRequestPayment = "request_payment"
	PermRelease        = "release_funds"
	PermRefund         = "refund"
	PermPay            = "pay"
	PermReview         = "review"
)

// RolePermissions mirrors the contract engine's authorization rules for
// introspection (the engine itself enforces them).
var RolePermissions = map[string][]string{
	models.PartyBuyer: {
		PermAgreeAddress, PermSendFunds, PermAddFunds, PermReview,
	},
	models.PartySeller: {
		PermAgreeAddress, PermRequestPayment, PermRefund, PermReview,
	},
	models.PartyEscrow: {
		PermRelease, PermPay, PermReview,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation reports whether the permission moves funds.
func IsFinancialOperation(permission string) bool {
	switch permission {
	case PermSendFunds, PermAddFunds, PermRelease, PermRefund, PermPay:
		return true
	default:
		return false
	}
}
