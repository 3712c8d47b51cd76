package services

import (
	"testing"
	"time"

	"coopledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// lastClosedMonth returns the previous calendar month, which is always
// closeable
func lastClosedMonth() (time.Month, int, time.Time) {
	now := time.Now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := firstOfMonth.AddDate(0, 0, -1)
	return end.Month(), end.Year(), end
}

func seedPeriodPayment(t *testing.T, svc *PeriodService, loan *models.Loan, date time.Time, principal, interest, penalty float64) {
	t.Helper()

	payment := &models.Payment{
		ReceiptNumber:   uuid.NewString(),
		LoanID:          loan.ID,
		MemberID:        loan.MemberID,
		Amount:          decimal.NewFromFloat(principal + interest + penalty),
		PrincipalAmount: decimal.NewFromFloat(principal),
		InterestAmount:  decimal.NewFromFloat(interest),
		PenaltyAmount:   decimal.NewFromFloat(penalty),
		PaymentDate:     date,
		Status:          models.PaymentStatusCompleted,
	}
	if err := svc.db.Create(payment).Error; err != nil {
		t.Fatalf("failed to seed payment: %v", err)
	}
}

func TestCloseMonthIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewPeriodService(db, NewAuditService(db))

	member := createTestMember(t, db, "close@coop.test", "ID-CL-1", 0)
	month, year, periodEnd := lastClosedMonth()
	loan := createActiveLoan(t, db, member.ID, 9000, 12, periodEnd.AddDate(0, -3, 0), 12)
	seedPeriodPayment(t, svc, loan, periodEnd, 1000, 90, 0)

	actor := models.Actor{ID: 1, Username: "treasurer", Role: models.RoleTreasurer}

	first, err := svc.CloseMonth(month, year, actor)
	if err != nil {
		t.Fatalf("first CloseMonth failed: %v", err)
	}
	if first.Closed != 1 || first.Skipped != 0 {
		t.Fatalf("first close: closed=%d skipped=%d, want 1/0", first.Closed, first.Skipped)
	}

	second, err := svc.CloseMonth(month, year, actor)
	if err != nil {
		t.Fatalf("second CloseMonth failed: %v", err)
	}
	if second.Closed != 0 || second.Skipped != 1 {
		t.Fatalf("second close: closed=%d skipped=%d, want 0/1", second.Closed, second.Skipped)
	}

	var count int64
	if err := db.Model(&models.LoanBalance{}).
		Where("loan_id = ?", loan.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count snapshots: %v", err)
	}
	if count != 1 {
		t.Fatalf("snapshot count = %d, want exactly 1", count)
	}
}

func TestCloseMonthSnapshotValues(t *testing.T) {
	db := newTestDB(t)
	svc := NewPeriodService(db, NewAuditService(db))

	member := createTestMember(t, db, "snapshot@coop.test", "ID-SN-1", 0)
	month, year, periodEnd := lastClosedMonth()

	// Outstanding 9000 now, with 1000 principal repaid during the closed
	// month, reconstructs an opening balance of 10000
	loan := createActiveLoan(t, db, member.ID, 9000, 12, periodEnd.AddDate(0, -3, 0), 12)
	seedPeriodPayment(t, svc, loan, periodEnd.AddDate(0, 0, -5), 1000, 90, 10)

	if _, err := svc.CloseMonth(month, year, models.Actor{ID: 1, Username: "t", Role: models.RoleTreasurer}); err != nil {
		t.Fatalf("CloseMonth failed: %v", err)
	}

	var snapshot models.LoanBalance
	if err := db.Where("loan_id = ?", loan.ID).First(&snapshot).Error; err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}

	decimalEquals(t, "10000.00", snapshot.OpeningPrincipal, "opening principal")
	decimalEquals(t, "9000.00", snapshot.ClosingPrincipal, "closing principal")
	decimalEquals(t, "1000.00", snapshot.PrincipalPaid, "principal paid")
	decimalEquals(t, "90.00", snapshot.InterestPaid, "interest paid")
	decimalEquals(t, "10.00", snapshot.PenaltyPaid, "penalty paid")
	if !snapshot.BalanceDate.Equal(periodEnd) {
		t.Errorf("balance date = %s, want %s", snapshot.BalanceDate, periodEnd)
	}
}

func TestCloseMonthSkipsFuturePeriod(t *testing.T) {
	db := newTestDB(t)
	svc := NewPeriodService(db, NewAuditService(db))

	next := time.Now().AddDate(0, 2, 0)
	_, err := svc.CloseMonth(next.Month(), next.Year(), models.Actor{ID: 1, Role: models.RoleTreasurer})
	if err == nil {
		t.Fatal("closing a future period must fail")
	}
}

func TestCheckAndFlagOverdueLoans(t *testing.T) {
	db := newTestDB(t)
	svc := NewPeriodService(db, NewAuditService(db))

	member := createTestMember(t, db, "default@coop.test", "ID-DF-1", 0)

	// Matured two months ago with balance outstanding
	overdue := createActiveLoan(t, db, member.ID, 5000, 12, dateOnly(time.Now()).AddDate(0, -14, 0), 12)
	// Still inside its term
	current := createActiveLoan(t, db, member.ID, 5000, 12, dateOnly(time.Now()).AddDate(0, -2, 0), 12)
	// Past maturity but fully repaid
	settled := createActiveLoan(t, db, member.ID, 5000, 12, dateOnly(time.Now()).AddDate(0, -14, 0), 12)
	if err := db.Model(settled).Update("outstanding_balance", decimal.Zero).Error; err != nil {
		t.Fatalf("failed to settle loan: %v", err)
	}

	flagged, err := svc.CheckAndFlagOverdueLoans()
	if err != nil {
		t.Fatalf("CheckAndFlagOverdueLoans failed: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("flagged = %d, want 1", flagged)
	}

	assertStatus := func(id uint, want models.LoanStatus) {
		t.Helper()
		var loan models.Loan
		if err := db.First(&loan, id).Error; err != nil {
			t.Fatalf("failed to reload loan %d: %v", id, err)
		}
		if loan.Status != want {
			t.Errorf("loan %d status = %s, want %s", id, loan.Status, want)
		}
	}
	assertStatus(overdue.ID, models.LoanStatusDefaulted)
	assertStatus(current.ID, models.LoanStatusActive)
	assertStatus(settled.ID, models.LoanStatusActive)

	// The sweep never reverts a defaulted loan
	again, err := svc.CheckAndFlagOverdueLoans()
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("second sweep flagged = %d, want 0", again)
	}
	assertStatus(overdue.ID, models.LoanStatusDefaulted)
}
