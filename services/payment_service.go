package services

import (
	"errors"
	"fmt"
	"time"

	"coopledger/apperrors"
	"coopledger/models"
	"coopledger/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentService allocates incoming loan payments across penalty, interest
// and principal in strict waterfall order.
type PaymentService struct {
	db           *gorm.DB
	validate     *validator.Validate
	savings      *SavingsService
	emailService *EmailService
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(db *gorm.DB, validate *validator.Validate, savings *SavingsService, emailService *EmailService) *PaymentService {
	return &PaymentService{
		db:           db,
		validate:     validate,
		savings:      savings,
		emailService: emailService,
	}
}

// PaymentDTO carries a loan payment request
type PaymentDTO struct {
	LoanID      uint    `json:"loanId" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	PaymentDate string  `json:"paymentDate" validate:"omitempty,datetime=2006-01-02"`
}

// CompositePaymentDTO bundles a share deposit with a loan payment. Both
// legs commit or neither does.
type CompositePaymentDTO struct {
	LoanID             uint    `json:"loanId" validate:"required"`
	MemberID           uint    `json:"memberId" validate:"required"`
	PaymentAmount      float64 `json:"paymentAmount" validate:"required,gt=0"`
	ShareDepositAmount float64 `json:"shareDepositAmount" validate:"required,gt=0"`
	PaymentDate        string  `json:"paymentDate" validate:"omitempty,datetime=2006-01-02"`
}

// PaymentResult reports how an accepted payment was split
type PaymentResult struct {
	Payment   *models.Payment `json:"payment"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Penalty   decimal.Decimal `json:"penalty"`
	Completed bool            `json:"loanCompleted"`
}

// AllocatePayment applies a payment to a loan: penalty first, then accrued
// interest, then principal. The payment row and the loan balance update
// commit in one transaction.
func (s *PaymentService) AllocatePayment(dto *PaymentDTO) (*PaymentResult, error) {
	start := time.Now()
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	paymentDate, err := parsePaymentDate(dto.PaymentDate)
	if err != nil {
		return nil, err
	}
	amount := decimal.NewFromFloat(dto.Amount).Round(2)

	var result *PaymentResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.allocateInTx(tx, dto.LoanID, amount, paymentDate)
		return txErr
	})
	utils.ObserveOperation("allocate_payment", start, err)
	if err != nil {
		return nil, err
	}

	s.notifyCompletion(result)
	utils.LogInfo("payment %s allocated to loan %d: principal %s, interest %s, penalty %s",
		amount.StringFixed(2), dto.LoanID,
		result.Principal.StringFixed(2), result.Interest.StringFixed(2), result.Penalty.StringFixed(2))
	return result, nil
}

// PayWithShareDeposit performs a share deposit and a loan payment as one
// atomic operation
func (s *PaymentService) PayWithShareDeposit(dto *CompositePaymentDTO) (*PaymentResult, error) {
	start := time.Now()
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	paymentDate, err := parsePaymentDate(dto.PaymentDate)
	if err != nil {
		return nil, err
	}
	paymentAmount := decimal.NewFromFloat(dto.PaymentAmount).Round(2)
	shareAmount := decimal.NewFromFloat(dto.ShareDepositAmount).Round(2)

	var result *PaymentResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		member, err := lockMember(tx, dto.MemberID)
		if err != nil {
			return err
		}

		member.ShareCapital = member.ShareCapital.Add(shareAmount)
		if err := tx.Model(member).Update("share_capital", member.ShareCapital).Error; err != nil {
			return fmt.Errorf("failed to update share capital: %w", err)
		}
		record := &models.SavingsTransaction{
			MemberID:     member.ID,
			Amount:       shareAmount,
			Type:         models.SavingsTxShareDeposit,
			Description:  fmt.Sprintf("Share deposit with payment on loan #%d", dto.LoanID),
			BalanceAfter: member.ShareCapital,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to record share deposit: %w", err)
		}

		var txErr error
		result, txErr = s.allocateInTx(tx, dto.LoanID, paymentAmount, paymentDate)
		return txErr
	})
	utils.ObserveOperation("composite_payment", start, err)
	if err != nil {
		return nil, err
	}

	s.notifyCompletion(result)
	return result, nil
}

// allocateInTx runs the waterfall inside an existing transaction. The loan
// row is locked FOR UPDATE so two concurrent payments cannot both read the
// same outstanding balance.
func (s *PaymentService) allocateInTx(tx *gorm.DB, loanID uint, amount decimal.Decimal, paymentDate time.Time) (*PaymentResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("payment amount must be positive")
	}

	var loan models.Loan
	err := lockForUpdate(tx).First(&loan, loanID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("loan %d not found", loanID))
		}
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	if !loan.IsPayable() {
		return nil, apperrors.Conflict(fmt.Sprintf("loan %d is %s and cannot accept payments", loanID, loan.Status))
	}

	penaltyDue := Penalty(&loan, paymentDate)
	interestDue := decimal.Zero
	if start := loan.InterestAccrualStart(); start != nil {
		interestDue = AccruedInterest(loan.OutstandingBalance, loan.InterestRate, *start, paymentDate)
	}

	payoff := loan.OutstandingBalance.Add(interestDue).Add(penaltyDue)
	if amount.GreaterThan(payoff) {
		return nil, apperrors.Business(fmt.Sprintf(
			"payment %s exceeds the payoff amount %s",
			amount.StringFixed(2), payoff.StringFixed(2)))
	}

	// Waterfall: penalty, then interest, then principal. The three parts
	// always sum back to the original amount.
	remaining := amount
	penaltyPaid := decimal.Min(remaining, penaltyDue)
	remaining = remaining.Sub(penaltyPaid)
	interestPaid := decimal.Min(remaining, interestDue)
	remaining = remaining.Sub(interestPaid)
	principalPaid := remaining

	loan.OutstandingBalance = loan.OutstandingBalance.Sub(principalPaid)
	loan.PaidPrincipal = loan.PaidPrincipal.Add(principalPaid)
	loan.PaidInterest = loan.PaidInterest.Add(interestPaid)
	loan.PaidPenalty = loan.PaidPenalty.Add(penaltyPaid)
	loan.LastPaymentDate = &paymentDate

	completed := false
	if loan.OutstandingBalance.IsZero() && loan.Status.CanTransition(models.LoanStatusCompleted) {
		loan.Status = models.LoanStatusCompleted
		completed = true
	}

	if err := tx.Model(&loan).Updates(map[string]interface{}{
		"outstanding_balance": loan.OutstandingBalance,
		"paid_principal":      loan.PaidPrincipal,
		"paid_interest":       loan.PaidInterest,
		"paid_penalty":        loan.PaidPenalty,
		"last_payment_date":   paymentDate,
		"status":              loan.Status,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update loan balance: %w", err)
	}

	payment := &models.Payment{
		ReceiptNumber:   uuid.NewString(),
		LoanID:          loan.ID,
		MemberID:        loan.MemberID,
		Amount:          amount,
		PrincipalAmount: principalPaid,
		InterestAmount:  interestPaid,
		PenaltyAmount:   penaltyPaid,
		PaymentDate:     paymentDate,
		Status:          models.PaymentStatusCompleted,
	}
	if err := tx.Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	utils.PaymentsAllocated.Inc()
	return &PaymentResult{
		Payment:   payment,
		Principal: principalPaid,
		Interest:  interestPaid,
		Penalty:   penaltyPaid,
		Completed: completed,
	}, nil
}

// notifyCompletion sends a best-effort congratulation email when the
// payment closed the loan out
func (s *PaymentService) notifyCompletion(result *PaymentResult) {
	if result == nil || !result.Completed {
		return
	}

	var member models.Member
	if err := s.db.First(&member, result.Payment.MemberID).Error; err != nil {
		utils.LogError("failed to load member %d for completion notice: %v", result.Payment.MemberID, err)
		return
	}
	if member.Email == "" {
		return
	}
	if err := s.emailService.SendLoanCompletedNotification(member.Email, result.Payment.LoanID); err != nil {
		utils.LogError("failed to send completion notice for loan %d: %v", result.Payment.LoanID, err)
	}
}

// GetLoanPayments lists a loan's payments, newest first
func (s *PaymentService) GetLoanPayments(loanID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.Where("loan_id = ?", loanID).
		Order("payment_date DESC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return payments, nil
}

// parsePaymentDate parses an optional YYYY-MM-DD date, defaulting to today
func parsePaymentDate(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.Validation("paymentDate must be in YYYY-MM-DD format")
	}
	return parsed, nil
}
