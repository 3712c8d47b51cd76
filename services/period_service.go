package services

import (
	"errors"
	"fmt"
	"time"

	"coopledger/apperrors"
	"coopledger/models"
	"coopledger/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PeriodService closes monthly accounting periods and flags overdue loans.
type PeriodService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(db *gorm.DB, audit *AuditService) *PeriodService {
	return &PeriodService{db: db, audit: audit}
}

// CloseMonthResult summarizes one month-close run
type CloseMonthResult struct {
	PeriodEnd time.Time `json:"periodEnd"`
	Closed    int       `json:"closed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// CloseMonth writes one LoanBalance snapshot per open loan for the given
// month. Loans that already have a snapshot for the period are skipped, so
// the call is idempotent. Each loan closes in its own transaction; one
// loan's failure does not abort the rest of the batch.
func (s *PeriodService) CloseMonth(month time.Month, year int, actor models.Actor) (*CloseMonthResult, error) {
	start := time.Now()
	if year < 2000 || year > 2100 {
		return nil, apperrors.Validation("year out of range")
	}

	periodStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC) // day 0 of next month = last day of this month
	if periodEnd.After(time.Now()) {
		return nil, apperrors.Business("cannot close a period that has not ended yet")
	}

	var loans []models.Loan
	err := s.db.Where("status IN ?", []models.LoanStatus{models.LoanStatusActive, models.LoanStatusDefaulted}).
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open loans: %w", err)
	}

	result := &CloseMonthResult{PeriodEnd: periodEnd}
	for i := range loans {
		closed, err := s.closeLoanPeriod(&loans[i], periodStart, periodEnd)
		switch {
		case err != nil:
			result.Failed++
			utils.LogError("failed to close period %s for loan %d: %v",
				periodEnd.Format("2006-01"), loans[i].ID, err)
		case closed:
			result.Closed++
		default:
			result.Skipped++
		}
	}

	s.audit.Record(actor, "PERIOD_CLOSE", "LoanBalance", 0,
		map[string]interface{}{"month": int(month), "year": year}, result)
	utils.ObserveOperation("close_month", start, nil)
	utils.LogInfo("period %s closed: %d snapshots, %d skipped, %d failed",
		periodEnd.Format("2006-01"), result.Closed, result.Skipped, result.Failed)
	return result, nil
}

// closeLoanPeriod writes the snapshot for one loan in its own transaction.
// Returns false without error when the snapshot already exists.
func (s *PeriodService) closeLoanPeriod(loan *models.Loan, periodStart, periodEnd time.Time) (bool, error) {
	created := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.LoanBalance
		err := tx.Where("loan_id = ? AND balance_date = ?", loan.ID, periodEnd).
			First(&existing).Error
		if err == nil {
			return nil // already closed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing snapshot: %w", err)
		}

		sums, err := sumPeriodPayments(tx, loan.ID, periodStart, periodEnd)
		if err != nil {
			return err
		}

		opening, err := s.openingPrincipal(tx, loan, periodEnd, sums.Principal)
		if err != nil {
			return err
		}

		accrualFrom := periodStart
		if loan.StartDate != nil && loan.StartDate.After(periodStart) {
			accrualFrom = *loan.StartDate
		}
		accrued := AccruedInterest(opening, loan.InterestRate, accrualFrom, periodEnd)

		snapshot := &models.LoanBalance{
			LoanID:           loan.ID,
			BalanceDate:      periodEnd,
			OpeningPrincipal: opening,
			ClosingPrincipal: opening.Sub(sums.Principal),
			InterestAccrued:  accrued,
			PrincipalPaid:    sums.Principal,
			InterestPaid:     sums.Interest,
			PenaltyPaid:      sums.Penalty,
		}
		if err := tx.Create(snapshot).Error; err != nil {
			// A concurrent close for the same period won the insert race;
			// treat it as already closed.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		utils.PeriodSnapshotsCreated.Inc()
	}
	return created, nil
}

// periodPaymentSums holds the per-component totals of a loan's completed
// payments in one period
type periodPaymentSums struct {
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Penalty   decimal.Decimal
}

func sumPeriodPayments(tx *gorm.DB, loanID uint, from, to time.Time) (*periodPaymentSums, error) {
	var payments []models.Payment
	err := tx.Where("loan_id = ? AND status = ? AND payment_date >= ? AND payment_date <= ?",
		loanID, models.PaymentStatusCompleted, from, to).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load period payments: %w", err)
	}

	sums := &periodPaymentSums{
		Principal: decimal.Zero,
		Interest:  decimal.Zero,
		Penalty:   decimal.Zero,
	}
	for _, p := range payments {
		sums.Principal = sums.Principal.Add(p.PrincipalAmount)
		sums.Interest = sums.Interest.Add(p.InterestAmount)
		sums.Penalty = sums.Penalty.Add(p.PenaltyAmount)
	}
	return sums, nil
}

// openingPrincipal chains from the prior month's closing balance when a
// snapshot exists; otherwise it reconstructs the opening figure from the
// stored outstanding balance plus what was repaid during the period.
func (s *PeriodService) openingPrincipal(tx *gorm.DB, loan *models.Loan, periodEnd time.Time, principalPaid decimal.Decimal) (decimal.Decimal, error) {
	priorEnd := time.Date(periodEnd.Year(), periodEnd.Month(), 0, 0, 0, 0, 0, time.UTC)

	var prior models.LoanBalance
	err := tx.Where("loan_id = ? AND balance_date = ?", loan.ID, priorEnd).
		First(&prior).Error
	if err == nil {
		return prior.ClosingPrincipal, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("failed to load prior snapshot: %w", err)
	}

	return loan.OutstandingBalance.Add(principalPaid), nil
}

// CheckAndFlagOverdueLoans transitions past-maturity ACTIVE loans with
// outstanding balance to DEFAULTED. The change is one-way; nothing here
// ever flips a loan back to ACTIVE. Each loan is flagged in its own
// transaction.
func (s *PeriodService) CheckAndFlagOverdueLoans() (int, error) {
	start := time.Now()
	today := time.Now()

	var loans []models.Loan
	err := s.db.Where("status = ? AND maturity_date IS NOT NULL AND maturity_date < ? AND outstanding_balance > 0",
		models.LoanStatusActive, today).
		Find(&loans).Error
	if err != nil {
		utils.ObserveOperation("overdue_sweep", start, err)
		return 0, fmt.Errorf("failed to list overdue loans: %w", err)
	}

	flagged := 0
	for i := range loans {
		loan := &loans[i]
		if !IsOverdue(loan, today) {
			continue
		}
		err := s.db.Model(loan).
			Where("status = ?", models.LoanStatusActive).
			Update("status", models.LoanStatusDefaulted).Error
		if err != nil {
			utils.LogError("failed to flag loan %d as defaulted: %v", loan.ID, err)
			continue
		}
		flagged++
		utils.LoansDefaulted.Inc()
		utils.LogInfo("loan %d flagged DEFAULTED, overdue since %s",
			loan.ID, loan.MaturityDate.Format("2006-01-02"))
	}

	utils.ObserveOperation("overdue_sweep", start, nil)
	return flagged, nil
}

// GetLoanBalances lists the monthly snapshots for a period, ordered by loan
func (s *PeriodService) GetLoanBalances(month time.Month, year int) ([]models.LoanBalance, error) {
	periodEnd := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)

	var balances []models.LoanBalance
	err := s.db.Where("balance_date = ?", periodEnd).
		Order("loan_id").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load loan balances: %w", err)
	}
	return balances, nil
}
