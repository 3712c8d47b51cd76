package models

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role   Role
		perm   Permission
		expect bool
	}{
		{RoleAdmin, PermManageUsers, true},
		{RoleTreasurer, PermApproveLoan, true},
		{RoleTreasurer, PermReviewReconciliation, false},
		{RoleSecretary, PermReviewReconciliation, true},
		{RoleSecretary, PermDisburseLoan, false},
		{RoleOfficer, PermCreateReconciliation, true},
		{RoleOfficer, PermClosePeriod, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.expect {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.expect)
		}
	}
}

func TestCanManage(t *testing.T) {
	tests := []struct {
		actor  Role
		target Role
		expect bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleOfficer, true},
		{RoleTreasurer, RoleOfficer, true},
		{RoleTreasurer, RoleTreasurer, false},
		{RoleSecretary, RoleTreasurer, false},
		{RoleOfficer, RoleOfficer, false},
	}

	for _, tt := range tests {
		if got := CanManage(tt.actor, tt.target); got != tt.expect {
			t.Errorf("CanManage(%s, %s) = %v, want %v", tt.actor, tt.target, got, tt.expect)
		}
	}
}

func TestLoanStatusTransitions(t *testing.T) {
	tests := []struct {
		from   LoanStatus
		to     LoanStatus
		expect bool
	}{
		{LoanStatusPending, LoanStatusActive, true},
		{LoanStatusPending, LoanStatusRejected, true},
		{LoanStatusPending, LoanStatusCompleted, false},
		{LoanStatusActive, LoanStatusCompleted, true},
		{LoanStatusActive, LoanStatusDefaulted, true},
		{LoanStatusDefaulted, LoanStatusActive, false},
		{LoanStatusDefaulted, LoanStatusCompleted, true},
		{LoanStatusCompleted, LoanStatusActive, false},
		{LoanStatusWrittenOff, LoanStatusActive, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.expect {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.expect)
		}
	}
}
