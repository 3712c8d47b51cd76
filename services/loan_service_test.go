package services

import (
	"testing"
	"time"

	"coopledger/apperrors"
	"coopledger/models"

	"github.com/shopspring/decimal"
)

func TestMonthlyInstallment(t *testing.T) {
	tests := []struct {
		name       string
		principal  float64
		annualRate float64
		termMonths int
		want       string
	}{
		{"one year at 12 percent", 10000, 12, 12, "888.49"},
		{"five years at 12 percent", 10000, 12, 60, "222.44"},
		{"zero rate", 10000, 0, 12, "0.00"},
		{"zero term", 10000, 12, 0, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlyInstallment(
				decimal.NewFromFloat(tt.principal),
				decimal.NewFromFloat(tt.annualRate),
				tt.termMonths,
			)
			decimalEquals(t, tt.want, got, "installment")
		})
	}
}

func TestAccruedInterest(t *testing.T) {
	outstanding := decimal.NewFromFloat(10000)
	rate := decimal.NewFromFloat(12)
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("thirty days", func(t *testing.T) {
		asOf := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
		got := AccruedInterest(outstanding, rate, from, asOf)
		// 10000 * 0.12 * 30/365
		decimalEquals(t, "98.63", got, "accrued interest")
	})

	t.Run("full year", func(t *testing.T) {
		asOf := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
		got := AccruedInterest(outstanding, rate, from, asOf)
		decimalEquals(t, "1200.00", got, "accrued interest")
	})

	t.Run("same day", func(t *testing.T) {
		got := AccruedInterest(outstanding, rate, from, from)
		decimalEquals(t, "0.00", got, "accrued interest")
	})

	t.Run("asOf before from", func(t *testing.T) {
		asOf := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
		got := AccruedInterest(outstanding, rate, from, asOf)
		decimalEquals(t, "0.00", got, "accrued interest")
	})
}

func TestPenalty(t *testing.T) {
	maturity := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	loan := &models.Loan{
		Status:             models.LoanStatusActive,
		OutstandingBalance: decimal.NewFromFloat(10000),
		MaturityDate:       &maturity,
	}

	t.Run("fifteen days overdue", func(t *testing.T) {
		today := maturity.AddDate(0, 0, 15)
		// 10000 * 0.01/30 * 15
		decimalEquals(t, "50.00", Penalty(loan, today), "penalty")
	})

	t.Run("not yet due", func(t *testing.T) {
		today := maturity.AddDate(0, 0, -10)
		decimalEquals(t, "0.00", Penalty(loan, today), "penalty")
	})

	t.Run("zero balance", func(t *testing.T) {
		settled := &models.Loan{
			Status:             models.LoanStatusActive,
			OutstandingBalance: decimal.Zero,
			MaturityDate:       &maturity,
		}
		today := maturity.AddDate(0, 0, 15)
		decimalEquals(t, "0.00", Penalty(settled, today), "penalty")
	})
}

func TestIsOverdue(t *testing.T) {
	maturity := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	after := maturity.AddDate(0, 0, 1)

	tests := []struct {
		name   string
		loan   models.Loan
		today  time.Time
		expect bool
	}{
		{"past maturity with balance", models.Loan{Status: models.LoanStatusActive, OutstandingBalance: decimal.NewFromInt(100), MaturityDate: &maturity}, after, true},
		{"before maturity", models.Loan{Status: models.LoanStatusActive, OutstandingBalance: decimal.NewFromInt(100), MaturityDate: &maturity}, maturity, false},
		{"no maturity date", models.Loan{Status: models.LoanStatusActive, OutstandingBalance: decimal.NewFromInt(100)}, after, false},
		{"completed loan", models.Loan{Status: models.LoanStatusCompleted, OutstandingBalance: decimal.NewFromInt(100), MaturityDate: &maturity}, after, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOverdue(&tt.loan, tt.today); got != tt.expect {
				t.Errorf("IsOverdue = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestCalculatePayoff(t *testing.T) {
	db := newTestDB(t)
	validate := newTestValidator()
	email := newTestEmailService()
	audit := NewAuditService(db)
	savings := NewSavingsService(db, validate)
	svc := NewLoanService(db, validate, savings, audit, email)

	member := createTestMember(t, db, "payoff@coop.test", "ID-PAYOFF-1", 0)
	start := dateOnly(time.Now()).AddDate(0, 0, -30)
	loan := createActiveLoan(t, db, member.ID, 10000, 12, start, 12)

	payoff, err := svc.CalculatePayoff(loan.ID, time.Now())
	if err != nil {
		t.Fatalf("CalculatePayoff failed: %v", err)
	}

	decimalEquals(t, "10000.00", payoff.Principal, "principal")
	decimalEquals(t, "98.63", payoff.Interest, "interest")
	decimalEquals(t, "0.00", payoff.Penalty, "penalty")
	decimalEquals(t, "10098.63", payoff.Total, "total")
}

func TestApplyGuarantorRules(t *testing.T) {
	db := newTestDB(t)
	validate := newTestValidator()
	svc := NewLoanService(db, validate, NewSavingsService(db, validate), NewAuditService(db), newTestEmailService())

	borrower := createTestMember(t, db, "borrower@coop.test", "ID-B-1", 1000)

	t.Run("self guarantee rejected", func(t *testing.T) {
		_, err := svc.Apply(&LoanApplicationDTO{
			MemberID:     borrower.ID,
			Principal:    5000,
			InterestRate: 10,
			TermMonths:   12,
			Guarantors:   []GuarantorDTO{{MemberID: borrower.ID, Amount: 5000}},
		})
		if !apperrors.IsKind(err, apperrors.KindBusiness) {
			t.Fatalf("expected business error, got %v", err)
		}
	})

	t.Run("inactive guarantor rejected", func(t *testing.T) {
		inactive := createTestMember(t, db, "inactive@coop.test", "ID-I-1", 0)
		if err := db.Model(inactive).Update("status", models.MemberStatusInactive).Error; err != nil {
			t.Fatalf("failed to deactivate member: %v", err)
		}

		_, err := svc.Apply(&LoanApplicationDTO{
			MemberID:     borrower.ID,
			Principal:    5000,
			InterestRate: 10,
			TermMonths:   12,
			Guarantors:   []GuarantorDTO{{MemberID: inactive.ID, Amount: 5000}},
		})
		if !apperrors.IsKind(err, apperrors.KindBusiness) {
			t.Fatalf("expected business error, got %v", err)
		}
	})

	t.Run("valid application stays pending", func(t *testing.T) {
		guarantor := createTestMember(t, db, "guarantor@coop.test", "ID-G-1", 500)

		loan, err := svc.Apply(&LoanApplicationDTO{
			MemberID:     borrower.ID,
			Principal:    5000,
			InterestRate: 10,
			TermMonths:   12,
			Purpose:      "equipment",
			Guarantors:   []GuarantorDTO{{MemberID: guarantor.ID, Amount: 5000}},
		})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if loan.Status != models.LoanStatusPending {
			t.Errorf("status = %s, want PENDING", loan.Status)
		}
		if loan.StartDate != nil {
			t.Error("start date must not be set before disbursement")
		}
	})
}

func TestDisburseCreditsAndActivates(t *testing.T) {
	db := newTestDB(t)
	validate := newTestValidator()
	savings := NewSavingsService(db, validate)
	svc := NewLoanService(db, validate, savings, NewAuditService(db), newTestEmailService())

	member := createTestMember(t, db, "disburse@coop.test", "ID-D-1", 1000)
	loan, err := svc.Apply(&LoanApplicationDTO{
		MemberID:     member.ID,
		Principal:    5000,
		InterestRate: 10,
		TermMonths:   12,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	treasurer := models.Actor{ID: 7, Username: "treasurer", Role: models.RoleTreasurer}

	// Disbursement before approval must fail
	if _, err := svc.Disburse(loan.ID, treasurer); !apperrors.IsKind(err, apperrors.KindBusiness) {
		t.Fatalf("expected business error before approval, got %v", err)
	}

	if _, err := svc.Approve(loan.ID, treasurer); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	disbursed, err := svc.Disburse(loan.ID, treasurer)
	if err != nil {
		t.Fatalf("Disburse failed: %v", err)
	}

	if disbursed.Status != models.LoanStatusActive {
		t.Errorf("status = %s, want ACTIVE", disbursed.Status)
	}
	decimalEquals(t, "5000.00", disbursed.OutstandingBalance, "outstanding")
	if disbursed.MaturityDate == nil || !disbursed.MaturityDate.Equal(disbursed.StartDate.AddDate(0, 12, 0)) {
		t.Error("maturity must be start date plus the term")
	}

	var updated models.Member
	if err := db.First(&updated, member.ID).Error; err != nil {
		t.Fatalf("failed to reload member: %v", err)
	}
	decimalEquals(t, "5000.00", updated.SavingsBalance, "savings after disbursement")

	// Second disbursement must conflict
	if _, err := svc.Disburse(loan.ID, treasurer); !apperrors.IsKind(err, apperrors.KindConflict) {
		t.Fatalf("expected conflict on second disbursement, got %v", err)
	}
}

func TestWriteOffRequiresPermission(t *testing.T) {
	db := newTestDB(t)
	validate := newTestValidator()
	svc := NewLoanService(db, validate, NewSavingsService(db, validate), NewAuditService(db), newTestEmailService())

	member := createTestMember(t, db, "writeoff@coop.test", "ID-W-1", 0)
	loan := createActiveLoan(t, db, member.ID, 3000, 10, dateOnly(time.Now()).AddDate(0, -6, 0), 12)

	officer := models.Actor{ID: 3, Username: "officer", Role: models.RoleOfficer}
	if _, err := svc.WriteOff(loan.ID, officer, "uncollectable"); !apperrors.IsKind(err, apperrors.KindUnauthorized) {
		t.Fatalf("expected unauthorized for officer, got %v", err)
	}

	admin := models.Actor{ID: 1, Username: "admin", Role: models.RoleAdmin}
	written, err := svc.WriteOff(loan.ID, admin, "uncollectable")
	if err != nil {
		t.Fatalf("WriteOff failed: %v", err)
	}
	if written.Status != models.LoanStatusWrittenOff {
		t.Errorf("status = %s, want WRITTEN_OFF", written.Status)
	}
}
