package rbac

import (
	"testing"

	"github.com/escrow-platform/backend/internal/models"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role string
		perm string
		want bool
	}{
		{models.PartyBuyer, PermSendFunds, true},
		{models.PartyBuyer, PermRelease, false},
		{models.PartySeller, PermRefund, true},
		{models.PartySeller, PermSendFunds, false},
		{models.PartyEscrow, PermRelease, true},
		{models.PartyEscrow, PermRefund, false},
		{"", PermReview, false},
		{"unknown", PermPay, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestEveryRoleMayReview(t *testing.T) {
	for role := range RolePermissions {
		if !HasPermission(role, PermReview) {
			t.Errorf("role %q cannot review", role)
		}
	}
}

func TestIsFinancialOperation(t *testing.T) {
	financial := []string{PermSendFunds, PermAddFunds, PermRelease, PermRefund, PermPay}
	for _, p := range financial {
		if !IsFinancialOperation(p) {
			t.Errorf("%q not flagged financial", p)
		}
	}
	for _, p := range []string{PermAgreeAddress, PermRequestPayment, PermReview} {
		if IsFinancialOperation(p) {
			t.Errorf("%q flagged financial", p)
		}
	}
}
