package services

import (
	"testing"
	"time"

	"coopledger/apperrors"
	"coopledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newDividendFixture(t *testing.T) *DividendService {
	t.Helper()

	db := newTestDB(t)
	validate := newTestValidator()
	savings := NewSavingsService(db, validate)
	return NewDividendService(db, validate, savings, NewAuditService(db), newTestEmailService())
}

func seedInterestPayment(t *testing.T, svc *DividendService, memberID uint, year int, interest float64) {
	t.Helper()

	payment := &models.Payment{
		ReceiptNumber:  uuid.NewString(),
		LoanID:         1,
		MemberID:       memberID,
		Amount:         decimal.NewFromFloat(interest),
		InterestAmount: decimal.NewFromFloat(interest),
		PaymentDate:    time.Date(year, time.June, 15, 0, 0, 0, 0, time.UTC),
		Status:         models.PaymentStatusCompleted,
	}
	if err := svc.db.Create(payment).Error; err != nil {
		t.Fatalf("failed to seed payment: %v", err)
	}
}

func TestCalculateDividendAmounts(t *testing.T) {
	svc := newDividendFixture(t)

	member := createTestMember(t, svc.db, "dividend@coop.test", "ID-DV-1", 5000)
	seedInterestPayment(t, svc, member.ID, 2024, 100)

	treasurer := models.Actor{ID: 2, Username: "treasurer", Role: models.RoleTreasurer}
	distribution, err := svc.Calculate(&DividendCalculationDTO{
		FiscalYear:        2024,
		DividendRate:      1,
		AverageReturnRate: 10,
	}, treasurer)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if len(distribution.Recipients) != 1 {
		t.Fatalf("recipients = %d, want 1", len(distribution.Recipients))
	}
	r := distribution.Recipients[0]
	// 1% of 5000 share capital plus 10% of 100 interest paid
	decimalEquals(t, "50.00", r.DividendAmount, "dividend")
	decimalEquals(t, "10.00", r.AverageReturnAmount, "average return")
	decimalEquals(t, "60.00", r.TotalAmount, "total")

	decimalEquals(t, "5000.00", distribution.TotalShareCapital, "total share capital")
	decimalEquals(t, "50.00", distribution.TotalDividendAmount, "total dividend")
	decimalEquals(t, "10.00", distribution.TotalAverageReturnAmount, "total average return")
	if distribution.Status != models.DividendStatusPending {
		t.Errorf("status = %s, want PENDING", distribution.Status)
	}
}

func TestCalculateDividendConservation(t *testing.T) {
	svc := newDividendFixture(t)

	// Share capitals chosen to produce rounding at 2 decimals
	capitals := []float64{3333.33, 1234.56, 7777.77, 910.11}
	for i, c := range capitals {
		m := createTestMember(t, svc.db, uuid.NewString()+"@coop.test", uuid.NewString()[:12], c)
		seedInterestPayment(t, svc, m.ID, 2024, float64(i)*33.33)
	}

	distribution, err := svc.Calculate(&DividendCalculationDTO{
		FiscalYear:        2024,
		DividendRate:      3.33,
		AverageReturnRate: 7.77,
	}, models.Actor{ID: 2, Username: "t", Role: models.RoleTreasurer})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	sum := decimal.Zero
	for _, r := range distribution.Recipients {
		sum = sum.Add(r.TotalAmount)
	}
	want := distribution.TotalDividendAmount.Add(distribution.TotalAverageReturnAmount)
	if !sum.Equal(want) {
		t.Errorf("recipient sum %s != distribution totals %s", sum.StringFixed(2), want.StringFixed(2))
	}
}

func TestCalculateDividendDuplicateYear(t *testing.T) {
	svc := newDividendFixture(t)
	createTestMember(t, svc.db, "dup@coop.test", "ID-DP-1", 5000)

	actor := models.Actor{ID: 2, Username: "treasurer", Role: models.RoleTreasurer}
	dto := &DividendCalculationDTO{FiscalYear: 2024, DividendRate: 1, AverageReturnRate: 10}

	if _, err := svc.Calculate(dto, actor); err != nil {
		t.Fatalf("first Calculate failed: %v", err)
	}
	_, err := svc.Calculate(dto, actor)
	if !apperrors.IsKind(err, apperrors.KindBusiness) {
		t.Fatalf("expected business error on duplicate year, got %v", err)
	}
}

func TestDistributeDividends(t *testing.T) {
	svc := newDividendFixture(t)

	member := createTestMember(t, svc.db, "payout@coop.test", "ID-PO-1", 5000)
	seedInterestPayment(t, svc, member.ID, 2024, 100)

	treasurer := models.Actor{ID: 2, Username: "treasurer", Role: models.RoleTreasurer}
	if _, err := svc.Calculate(&DividendCalculationDTO{
		FiscalYear:        2024,
		DividendRate:      1,
		AverageReturnRate: 10,
	}, treasurer); err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	distribution, err := svc.Distribute(2024, treasurer)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if distribution.Status != models.DividendStatusApproved {
		t.Errorf("status = %s, want APPROVED", distribution.Status)
	}
	if distribution.DistributedAt == nil || distribution.DistributedBy == nil {
		t.Error("distribution stamp missing")
	}

	var reloaded models.Member
	if err := svc.db.First(&reloaded, member.ID).Error; err != nil {
		t.Fatalf("failed to reload member: %v", err)
	}
	decimalEquals(t, "60.00", reloaded.SavingsBalance, "savings after payout")

	var tx models.SavingsTransaction
	if err := svc.db.Where("member_id = ? AND type = ?", member.ID, models.SavingsTxDividend).
		First(&tx).Error; err != nil {
		t.Fatalf("dividend savings transaction missing: %v", err)
	}

	// A distribution pays out once
	if _, err := svc.Distribute(2024, treasurer); !apperrors.IsKind(err, apperrors.KindConflict) {
		t.Fatalf("expected conflict on second distribution, got %v", err)
	}
}

func TestDistributeUnknownYear(t *testing.T) {
	svc := newDividendFixture(t)

	_, err := svc.Distribute(1999, models.Actor{ID: 2, Username: "t", Role: models.RoleTreasurer})
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDividendPermissions(t *testing.T) {
	svc := newDividendFixture(t)

	officer := models.Actor{ID: 9, Username: "officer", Role: models.RoleOfficer}
	_, err := svc.Calculate(&DividendCalculationDTO{FiscalYear: 2024, DividendRate: 1}, officer)
	if !apperrors.IsKind(err, apperrors.KindUnauthorized) {
		t.Fatalf("expected unauthorized for officer, got %v", err)
	}
	if _, err := svc.Distribute(2024, officer); !apperrors.IsKind(err, apperrors.KindUnauthorized) {
		t.Fatalf("expected unauthorized for officer, got %v", err)
	}
}
