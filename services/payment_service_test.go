package services

import (
	"testing"
	"time"

	"coopledger/apperrors"
	"coopledger/models"

	"github.com/shopspring/decimal"
)

func newPaymentFixture(t *testing.T) (*PaymentService, *models.Member, *models.Loan) {
	t.Helper()

	db := newTestDB(t)
	validate := newTestValidator()
	savings := NewSavingsService(db, validate)
	svc := NewPaymentService(db, validate, savings, newTestEmailService())

	member := createTestMember(t, db, "payer@coop.test", "ID-P-1", 1000)
	start := dateOnly(time.Now()).AddDate(0, 0, -30)
	loan := createActiveLoan(t, db, member.ID, 10000, 12, start, 12)
	return svc, member, loan
}

func TestAllocatePaymentWaterfall(t *testing.T) {
	svc, _, loan := newPaymentFixture(t)

	// 30 days of accrued interest on 10000 at 12% is 98.63
	result, err := svc.AllocatePayment(&PaymentDTO{LoanID: loan.ID, Amount: 1098.63})
	if err != nil {
		t.Fatalf("AllocatePayment failed: %v", err)
	}

	decimalEquals(t, "0.00", result.Penalty, "penalty")
	decimalEquals(t, "98.63", result.Interest, "interest")
	decimalEquals(t, "1000.00", result.Principal, "principal")

	sum := result.Principal.Add(result.Interest).Add(result.Penalty)
	decimalEquals(t, "1098.63", sum, "component sum")

	var reloaded models.Loan
	if err := svc.db.First(&reloaded, loan.ID).Error; err != nil {
		t.Fatalf("failed to reload loan: %v", err)
	}
	decimalEquals(t, "9000.00", reloaded.OutstandingBalance, "outstanding")
	decimalEquals(t, "1000.00", reloaded.PaidPrincipal, "paid principal")
	decimalEquals(t, "98.63", reloaded.PaidInterest, "paid interest")
	if reloaded.LastPaymentDate == nil {
		t.Fatal("last payment date must be set")
	}
	if reloaded.Status != models.LoanStatusActive {
		t.Errorf("status = %s, want ACTIVE", reloaded.Status)
	}
}

func TestAllocatePaymentInterestCap(t *testing.T) {
	svc, _, loan := newPaymentFixture(t)

	// Smaller than the interest due: everything goes to interest, nothing
	// to principal
	result, err := svc.AllocatePayment(&PaymentDTO{LoanID: loan.ID, Amount: 50})
	if err != nil {
		t.Fatalf("AllocatePayment failed: %v", err)
	}
	decimalEquals(t, "50.00", result.Interest, "interest")
	decimalEquals(t, "0.00", result.Principal, "principal")

	if result.Interest.GreaterThan(decimal.NewFromFloat(98.63)) {
		t.Error("interest component must never exceed what accrued")
	}
}

func TestAllocatePaymentCompletesLoan(t *testing.T) {
	svc, _, loan := newPaymentFixture(t)

	result, err := svc.AllocatePayment(&PaymentDTO{LoanID: loan.ID, Amount: 10098.63})
	if err != nil {
		t.Fatalf("AllocatePayment failed: %v", err)
	}
	if !result.Completed {
		t.Fatal("payoff payment must complete the loan")
	}
	decimalEquals(t, "10000.00", result.Principal, "principal")

	var reloaded models.Loan
	if err := svc.db.First(&reloaded, loan.ID).Error; err != nil {
		t.Fatalf("failed to reload loan: %v", err)
	}
	if reloaded.Status != models.LoanStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", reloaded.Status)
	}
	if !reloaded.OutstandingBalance.IsZero() {
		t.Errorf("outstanding = %s, want 0", reloaded.OutstandingBalance)
	}

	// A completed loan accepts no further payments
	_, err = svc.AllocatePayment(&PaymentDTO{LoanID: loan.ID, Amount: 100})
	if !apperrors.IsKind(err, apperrors.KindConflict) {
		t.Fatalf("expected conflict on completed loan, got %v", err)
	}
}

func TestAllocatePaymentRejections(t *testing.T) {
	svc, _, loan := newPaymentFixture(t)

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := svc.AllocatePayment(&PaymentDTO{LoanID: loan.ID, Amount: 0})
		if !apperrors.IsKind(err, apperrors.KindValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("unknown loan", func(t *testing.T) {
		_, err := svc.AllocatePayment(&PaymentDTO{LoanID: 99999, Amount: 100})
		if !apperrors.IsKind(err, apperrors.KindNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("overpayment beyond payoff", func(t *testing.T) {
		_, err := svc.AllocatePayment(&PaymentDTO{LoanID: loan.ID, Amount: 20000})
		if !apperrors.IsKind(err, apperrors.KindBusiness) {
			t.Fatalf("expected business error, got %v", err)
		}
	})
}

func TestAllocatePaymentWithPenalty(t *testing.T) {
	db := newTestDB(t)
	validate := newTestValidator()
	svc := NewPaymentService(db, validate, NewSavingsService(db, validate), newTestEmailService())

	member := createTestMember(t, db, "overdue@coop.test", "ID-O-1", 0)
	// Matured 15 days ago: term of 1 month on a loan started 45 days ago
	start := dateOnly(time.Now()).AddDate(0, 0, -45)
	maturity := dateOnly(time.Now()).AddDate(0, 0, -15)
	now := time.Now()
	loan := &models.Loan{
		MemberID:           member.ID,
		Principal:          decimal.NewFromFloat(10000),
		InterestRate:       decimal.NewFromFloat(12),
		TermMonths:         1,
		Status:             models.LoanStatusActive,
		OutstandingBalance: decimal.NewFromFloat(10000),
		StartDate:          &start,
		MaturityDate:       &maturity,
		DisbursedAt:        &now,
	}
	if err := db.Create(loan).Error; err != nil {
		t.Fatalf("failed to create loan: %v", err)
	}

	// 15 days overdue: penalty 10000*0.01/30*15 = 50.00
	// 45 days of interest: 10000*0.12*45/365 = 147.95
	result, err := svc.AllocatePayment(&PaymentDTO{LoanID: loan.ID, Amount: 697.95})
	if err != nil {
		t.Fatalf("AllocatePayment failed: %v", err)
	}
	decimalEquals(t, "50.00", result.Penalty, "penalty")
	decimalEquals(t, "147.95", result.Interest, "interest")
	decimalEquals(t, "500.00", result.Principal, "principal")
}

func TestPayWithShareDepositIsAtomic(t *testing.T) {
	db := newTestDB(t)
	validate := newTestValidator()
	savings := NewSavingsService(db, validate)
	svc := NewPaymentService(db, validate, savings, newTestEmailService())

	member := createTestMember(t, db, "composite@coop.test", "ID-C-1", 1000)
	start := dateOnly(time.Now()).AddDate(0, 0, -30)
	loan := createActiveLoan(t, db, member.ID, 10000, 12, start, 12)

	t.Run("both legs commit", func(t *testing.T) {
		result, err := svc.PayWithShareDeposit(&CompositePaymentDTO{
			LoanID:             loan.ID,
			MemberID:           member.ID,
			PaymentAmount:      598.63,
			ShareDepositAmount: 200,
		})
		if err != nil {
			t.Fatalf("PayWithShareDeposit failed: %v", err)
		}
		decimalEquals(t, "98.63", result.Interest, "interest")

		var reloaded models.Member
		if err := db.First(&reloaded, member.ID).Error; err != nil {
			t.Fatalf("failed to reload member: %v", err)
		}
		decimalEquals(t, "1200.00", reloaded.ShareCapital, "share capital")
	})

	t.Run("failed payment leg rolls back the share deposit", func(t *testing.T) {
		var before models.Member
		if err := db.First(&before, member.ID).Error; err != nil {
			t.Fatalf("failed to load member: %v", err)
		}

		_, err := svc.PayWithShareDeposit(&CompositePaymentDTO{
			LoanID:             loan.ID,
			MemberID:           member.ID,
			PaymentAmount:      50000, // beyond payoff
			ShareDepositAmount: 300,
		})
		if !apperrors.IsKind(err, apperrors.KindBusiness) {
			t.Fatalf("expected business error, got %v", err)
		}

		var after models.Member
		if err := db.First(&after, member.ID).Error; err != nil {
			t.Fatalf("failed to reload member: %v", err)
		}
		if !after.ShareCapital.Equal(before.ShareCapital) {
			t.Errorf("share capital changed from %s to %s on a failed composite",
				before.ShareCapital.StringFixed(2), after.ShareCapital.StringFixed(2))
		}
	})
}
