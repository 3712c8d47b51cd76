package services

import (
	"errors"
	"fmt"
	"time"

	"coopledger/apperrors"
	"coopledger/models"
	"coopledger/utils"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxActiveGuarantees limits how many open loans one member may guarantee
// at a time.
const maxActiveGuarantees = 3

var (
	hundred     = decimal.NewFromInt(100)
	daysInYear  = decimal.NewFromInt(365)
	penaltyRate = decimal.NewFromFloat(0.01) // 1% per month, pro-rated daily
)

// MonthlyInstallment computes the reducing-balance installment
// P*r / (1 - (1+r)^-n) with r = annualRatePct/1200, rounded to two
// decimals. Zero rate or zero term yields zero rather than an error.
func MonthlyInstallment(principal, annualRatePct decimal.Decimal, termMonths int) decimal.Decimal {
	if annualRatePct.IsZero() || termMonths <= 0 {
		return decimal.Zero
	}

	r := annualRatePct.Div(decimal.NewFromInt(1200))
	factor := decimal.NewFromInt(1).Add(r).Pow(decimal.NewFromInt(int64(termMonths)))
	return principal.Mul(r).Mul(factor).
		Div(factor.Sub(decimal.NewFromInt(1))).
		Round(2)
}

// AccruedInterest computes simple daily interest
// outstanding * (rate/100) * (days/365) over the calendar-day difference
// between the two dates. Non-positive day counts yield zero.
func AccruedInterest(outstanding, annualRatePct decimal.Decimal, from, asOf time.Time) decimal.Decimal {
	days := daysBetween(from, asOf)
	if days <= 0 {
		return decimal.Zero
	}

	return outstanding.Mul(annualRatePct).Div(hundred).
		Mul(decimal.NewFromInt(int64(days))).Div(daysInYear).
		Round(2)
}

// IsOverdue reports whether a loan has passed maturity with balance still
// outstanding.
func IsOverdue(loan *models.Loan, today time.Time) bool {
	return loan.Status == models.LoanStatusActive &&
		loan.MaturityDate != nil &&
		today.After(*loan.MaturityDate) &&
		loan.OutstandingBalance.GreaterThan(decimal.Zero)
}

// Penalty computes the overdue penalty: 1% of outstanding per month,
// pro-rated per calendar day past maturity. Zero when the loan is not
// overdue.
func Penalty(loan *models.Loan, today time.Time) decimal.Decimal {
	if !IsOverdue(loan, today) {
		return decimal.Zero
	}

	daysOverdue := daysBetween(*loan.MaturityDate, today)
	if daysOverdue <= 0 {
		return decimal.Zero
	}

	return loan.OutstandingBalance.Mul(penaltyRate).
		Div(decimal.NewFromInt(30)).
		Mul(decimal.NewFromInt(int64(daysOverdue))).
		Round(2)
}

// daysBetween returns the calendar-day difference between two dates,
// ignoring the time-of-day components.
func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}

// LoanService manages the loan lifecycle from application through
// disbursement to write-off.
type LoanService struct {
	db           *gorm.DB
	validate     *validator.Validate
	savings      *SavingsService
	audit        *AuditService
	emailService *EmailService
}

// NewLoanService creates a new LoanService
func NewLoanService(db *gorm.DB, validate *validator.Validate, savings *SavingsService, audit *AuditService, emailService *EmailService) *LoanService {
	return &LoanService{
		db:           db,
		validate:     validate,
		savings:      savings,
		audit:        audit,
		emailService: emailService,
	}
}

// GuarantorDTO names one guarantor on a loan application
type GuarantorDTO struct {
	MemberID uint    `json:"memberId" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
}

// LoanApplicationDTO carries a new loan application
type LoanApplicationDTO struct {
	MemberID     uint           `json:"memberId" validate:"required"`
	Principal    float64        `json:"principal" validate:"required,gt=0"`
	InterestRate float64        `json:"interestRate" validate:"gte=0,lte=100"`
	TermMonths   int            `json:"termMonths" validate:"required,gte=1,lte=360"`
	Purpose      string         `json:"purpose" validate:"max=255"`
	Guarantors   []GuarantorDTO `json:"guarantors" validate:"dive"`
}

// PayoffResult breaks down the amount needed to settle a loan in full as of
// a given date
type PayoffResult struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Penalty   decimal.Decimal `json:"penalty"`
	Total     decimal.Decimal `json:"total"`
}

// Apply registers a PENDING loan application with its guarantors
func (s *LoanService) Apply(dto *LoanApplicationDTO) (*models.Loan, error) {
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	var loan *models.Loan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var borrower models.Member
		if err := tx.First(&borrower, dto.MemberID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound(fmt.Sprintf("member %d not found", dto.MemberID))
			}
			return fmt.Errorf("failed to load member: %w", err)
		}
		if borrower.Status != models.MemberStatusActive {
			return apperrors.Business("only active members can apply for a loan")
		}

		loan = &models.Loan{
			MemberID:     dto.MemberID,
			Principal:    decimal.NewFromFloat(dto.Principal).Round(2),
			InterestRate: decimal.NewFromFloat(dto.InterestRate).Round(2),
			TermMonths:   dto.TermMonths,
			Purpose:      dto.Purpose,
			Status:       models.LoanStatusPending,
		}
		if err := tx.Create(loan).Error; err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}

		for _, g := range dto.Guarantors {
			if err := s.checkGuarantor(tx, g.MemberID, dto.MemberID); err != nil {
				return err
			}
			guarantor := &models.Guarantor{
				LoanID:   loan.ID,
				MemberID: g.MemberID,
				Amount:   decimal.NewFromFloat(g.Amount).Round(2),
			}
			if err := tx.Create(guarantor).Error; err != nil {
				return fmt.Errorf("failed to create guarantor: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("loan application %d created for member %d", loan.ID, loan.MemberID)
	return loan, nil
}

// checkGuarantor enforces the guarantor eligibility rules
func (s *LoanService) checkGuarantor(tx *gorm.DB, guarantorID, borrowerID uint) error {
	if guarantorID == borrowerID {
		return apperrors.Business("a member cannot guarantee their own loan")
	}

	var guarantor models.Member
	if err := tx.First(&guarantor, guarantorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(fmt.Sprintf("guarantor member %d not found", guarantorID))
		}
		return fmt.Errorf("failed to load guarantor: %w", err)
	}
	if guarantor.Status != models.MemberStatusActive {
		return apperrors.Business(fmt.Sprintf("member %d is not active and cannot stand as guarantor", guarantorID))
	}

	var count int64
	err := tx.Model(&models.Guarantor{}).
		Joins("JOIN loans ON loans.id = guarantors.loan_id").
		Where("guarantors.member_id = ? AND loans.status IN ?", guarantorID,
			[]models.LoanStatus{models.LoanStatusPending, models.LoanStatusActive, models.LoanStatusDefaulted}).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to count guarantees: %w", err)
	}
	if count >= maxActiveGuarantees {
		return apperrors.Business(fmt.Sprintf("member %d already guarantees %d open loans", guarantorID, count))
	}
	return nil
}

// Approve stamps a pending loan with the approver. The loan stays PENDING
// until the funds are actually disbursed.
func (s *LoanService) Approve(loanID uint, actor models.Actor) (*models.Loan, error) {
	if !models.HasPermission(actor.Role, models.PermApproveLoan) {
		return nil, apperrors.Unauthorized("missing permission to approve loans")
	}

	result, err := s.audit.WithAudit(actor, "LOAN_APPROVE", "Loan", nil, func() (interface{}, uint, error) {
		var loan models.Loan
		if err := s.db.First(&loan, loanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, loanID, apperrors.NotFound(fmt.Sprintf("loan %d not found", loanID))
			}
			return nil, loanID, fmt.Errorf("failed to load loan: %w", err)
		}
		if loan.Status != models.LoanStatusPending {
			return nil, loanID, apperrors.Conflict(fmt.Sprintf("loan %d is %s, only pending loans can be approved", loanID, loan.Status))
		}

		now := time.Now()
		loan.ApprovedBy = &actor.ID
		loan.ApprovedAt = &now
		if err := s.db.Model(&loan).Updates(map[string]interface{}{
			"approved_by": actor.ID,
			"approved_at": now,
		}).Error; err != nil {
			return nil, loanID, fmt.Errorf("failed to approve loan: %w", err)
		}
		return &loan, loanID, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*models.Loan), nil
}

// Disburse pays an approved loan out to the member's savings account and
// activates it
func (s *LoanService) Disburse(loanID uint, actor models.Actor) (*models.Loan, error) {
	if !models.HasPermission(actor.Role, models.PermDisburseLoan) {
		return nil, apperrors.Unauthorized("missing permission to disburse loans")
	}

	result, err := s.audit.WithAudit(actor, "LOAN_DISBURSE", "Loan", nil, func() (interface{}, uint, error) {
		var loan models.Loan
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := lockForUpdate(tx).
				Preload("Member").First(&loan, loanID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NotFound(fmt.Sprintf("loan %d not found", loanID))
				}
				return fmt.Errorf("failed to load loan: %w", err)
			}
			if loan.Status != models.LoanStatusPending {
				return apperrors.Conflict(fmt.Sprintf("loan %d is %s and cannot be disbursed", loanID, loan.Status))
			}
			if loan.ApprovedBy == nil {
				return apperrors.Business("loan must be approved before disbursement")
			}

			now := time.Now()
			start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			maturity := start.AddDate(0, loan.TermMonths, 0)

			loan.Status = models.LoanStatusActive
			loan.OutstandingBalance = loan.Principal
			loan.StartDate = &start
			loan.MaturityDate = &maturity
			loan.DisbursedAt = &now
			if err := tx.Model(&loan).Updates(map[string]interface{}{
				"status":              loan.Status,
				"outstanding_balance": loan.OutstandingBalance,
				"start_date":          start,
				"maturity_date":       maturity,
				"disbursed_at":        now,
			}).Error; err != nil {
				return fmt.Errorf("failed to activate loan: %w", err)
			}

			_, err := s.savings.CreditInTx(tx, loan.MemberID, loan.Principal,
				models.SavingsTxDisbursement, fmt.Sprintf("Disbursement of loan #%d", loan.ID))
			return err
		})
		if err != nil {
			return nil, loanID, err
		}
		return &loan, loanID, nil
	})
	if err != nil {
		return nil, err
	}

	loan := result.(*models.Loan)
	if loan.Member.Email != "" {
		installment := MonthlyInstallment(loan.Principal, loan.InterestRate, loan.TermMonths)
		if err := s.emailService.SendLoanApprovedNotification(loan.Member.Email, loan.ID, loan.Principal, installment); err != nil {
			utils.LogError("failed to send disbursement notification for loan %d: %v", loan.ID, err)
		}
	}

	utils.LogInfo("loan %d disbursed, principal %s", loan.ID, loan.Principal.StringFixed(2))
	return loan, nil
}

// Reject declines a pending loan application
func (s *LoanService) Reject(loanID uint, actor models.Actor, reason string) (*models.Loan, error) {
	if !models.HasPermission(actor.Role, models.PermApproveLoan) {
		return nil, apperrors.Unauthorized("missing permission to reject loans")
	}

	result, err := s.audit.WithAudit(actor, "LOAN_REJECT", "Loan", map[string]string{"reason": reason}, func() (interface{}, uint, error) {
		loan, err := s.transitionLoan(loanID, models.LoanStatusRejected)
		return loan, loanID, err
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Loan), nil
}

// WriteOff removes an uncollectable loan from the active book. The
// outstanding balance stays on the record for reporting.
func (s *LoanService) WriteOff(loanID uint, actor models.Actor, reason string) (*models.Loan, error) {
	if !models.HasPermission(actor.Role, models.PermWriteOffLoan) {
		return nil, apperrors.Unauthorized("missing permission to write off loans")
	}
	if reason == "" {
		return nil, apperrors.Validation("a write-off reason is required")
	}

	result, err := s.audit.WithAudit(actor, "LOAN_WRITE_OFF", "Loan", map[string]string{"reason": reason}, func() (interface{}, uint, error) {
		loan, err := s.transitionLoan(loanID, models.LoanStatusWrittenOff)
		return loan, loanID, err
	})
	if err != nil {
		return nil, err
	}

	loan := result.(*models.Loan)
	utils.LogInfo("loan %d written off with balance %s", loan.ID, loan.OutstandingBalance.StringFixed(2))
	return loan, nil
}

// transitionLoan moves a loan to a new status, enforcing the state machine
func (s *LoanService) transitionLoan(loanID uint, to models.LoanStatus) (*models.Loan, error) {
	var loan models.Loan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&loan, loanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound(fmt.Sprintf("loan %d not found", loanID))
			}
			return fmt.Errorf("failed to load loan: %w", err)
		}
		if !loan.Status.CanTransition(to) {
			return apperrors.Conflict(fmt.Sprintf("loan %d cannot move from %s to %s", loanID, loan.Status, to))
		}

		loan.Status = to
		if err := tx.Model(&loan).Update("status", to).Error; err != nil {
			return fmt.Errorf("failed to update loan status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// CalculatePayoff returns what it takes to settle the loan in full as of
// the given date
func (s *LoanService) CalculatePayoff(loanID uint, asOf time.Time) (*PayoffResult, error) {
	loan, err := s.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if !loan.IsPayable() {
		return nil, apperrors.Conflict(fmt.Sprintf("loan %d is %s and has no payoff amount", loanID, loan.Status))
	}

	interest := decimal.Zero
	if start := loan.InterestAccrualStart(); start != nil {
		interest = AccruedInterest(loan.OutstandingBalance, loan.InterestRate, *start, asOf)
	}
	penalty := Penalty(loan, asOf)

	return &PayoffResult{
		Principal: loan.OutstandingBalance,
		Interest:  interest,
		Penalty:   penalty,
		Total:     loan.OutstandingBalance.Add(interest).Add(penalty),
	}, nil
}

// GetLoan loads one loan by id
func (s *LoanService) GetLoan(loanID uint) (*models.Loan, error) {
	var loan models.Loan
	if err := s.db.First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("loan %d not found", loanID))
		}
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	return &loan, nil
}

// GetMemberLoans lists a member's loans, newest first
func (s *LoanService) GetMemberLoans(memberID uint) ([]models.Loan, error) {
	var loans []models.Loan
	err := s.db.Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}
	return loans, nil
}
