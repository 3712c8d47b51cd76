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

// ReconciliationService runs the end-of-day cash reconciliation workflow:
// an officer submits a physical count, a different secretary approves or
// rejects it.
type ReconciliationService struct {
	db           *gorm.DB
	validate     *validator.Validate
	audit        *AuditService
	emailService *EmailService
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(db *gorm.DB, validate *validator.Validate, audit *AuditService, emailService *EmailService) *ReconciliationService {
	return &ReconciliationService{
		db:           db,
		validate:     validate,
		audit:        audit,
		emailService: emailService,
	}
}

// ReconciliationDTO carries an officer's end-of-day cash count
type ReconciliationDTO struct {
	PhysicalCount float64 `json:"physicalCount" validate:"gte=0"`
	Notes         string  `json:"notes" validate:"max=500"`
}

// ReviewDTO carries a secretary's approve or reject decision
type ReviewDTO struct {
	Notes string `json:"notes" validate:"max=500"`
}

// Create submits today's reconciliation. The database balance is derived
// from the day's savings movements and completed loan payments; the
// variance is physical minus database.
func (s *ReconciliationService) Create(dto *ReconciliationDTO, officer models.Actor) (*models.CashReconciliation, error) {
	start := time.Now()
	if !models.HasPermission(officer.Role, models.PermCreateReconciliation) {
		return nil, apperrors.Unauthorized("missing permission to create reconciliations")
	}
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	result, err := s.audit.WithAudit(officer, "RECONCILIATION_CREATE", "CashReconciliation", dto, func() (interface{}, uint, error) {
		today := startOfDay(time.Now())

		var existing models.CashReconciliation
		err := s.db.Where("reconciliation_date = ? AND status IN ?", today,
			[]models.ReconciliationStatus{models.ReconciliationStatusPending, models.ReconciliationStatusApproved}).
			First(&existing).Error
		if err == nil {
			return nil, existing.ID, apperrors.Conflict(fmt.Sprintf(
				"a reconciliation for %s already exists with status %s",
				today.Format("2006-01-02"), existing.Status))
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("failed to check existing reconciliation: %w", err)
		}

		databaseBalance, err := s.computeDatabaseBalance(today)
		if err != nil {
			return nil, 0, err
		}

		physical := decimal.NewFromFloat(dto.PhysicalCount).Round(2)
		reconciliation := &models.CashReconciliation{
			ReconciliationDate: today,
			OfficerID:          officer.ID,
			PhysicalCount:      physical,
			DatabaseBalance:    databaseBalance,
			Variance:           physical.Sub(databaseBalance),
			Status:             models.ReconciliationStatusPending,
			Notes:              dto.Notes,
		}
		if err := s.db.Create(reconciliation).Error; err != nil {
			return nil, 0, fmt.Errorf("failed to create reconciliation: %w", err)
		}
		return reconciliation, reconciliation.ID, nil
	})
	utils.ObserveOperation("create_reconciliation", start, err)
	if err != nil {
		return nil, err
	}

	reconciliation := result.(*models.CashReconciliation)
	if reconciliation.HasVariance() {
		utils.LogError("cash variance of %s on %s submitted by officer %d",
			reconciliation.Variance.StringFixed(2),
			reconciliation.ReconciliationDate.Format("2006-01-02"), officer.ID)
	}
	return reconciliation, nil
}

// computeDatabaseBalance derives the expected cash position for one day:
// cash taken in through savings deposits, share deposits and loan payments,
// minus cash paid out through withdrawals. Non-cash movements
// (disbursements and dividends credited to savings) do not touch the till.
func (s *ReconciliationService) computeDatabaseBalance(day time.Time) (decimal.Decimal, error) {
	nextDay := day.AddDate(0, 0, 1)

	var savingsTxs []models.SavingsTransaction
	err := s.db.Where("created_at >= ? AND created_at < ? AND type IN ?", day, nextDay,
		[]models.SavingsTransactionType{
			models.SavingsTxDeposit, models.SavingsTxWithdrawal, models.SavingsTxShareDeposit,
		}).
		Find(&savingsTxs).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load savings transactions: %w", err)
	}

	balance := decimal.Zero
	for _, t := range savingsTxs {
		balance = balance.Add(t.Amount) // withdrawals carry negative amounts
	}

	var payments []models.Payment
	err = s.db.Where("status = ? AND payment_date >= ? AND payment_date < ?",
		models.PaymentStatusCompleted, day, nextDay).
		Find(&payments).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load payments: %w", err)
	}
	for _, p := range payments {
		balance = balance.Add(p.Amount)
	}
	return balance, nil
}

// Approve accepts a pending reconciliation. The reviewing secretary must
// differ from the submitting officer.
func (s *ReconciliationService) Approve(id uint, secretary models.Actor, dto *ReviewDTO) (*models.CashReconciliation, error) {
	return s.review(id, secretary, dto, models.ReconciliationStatusApproved, "RECONCILIATION_APPROVE")
}

// Reject declines a pending reconciliation. Review notes are mandatory so
// the officer knows what to correct.
func (s *ReconciliationService) Reject(id uint, secretary models.Actor, dto *ReviewDTO) (*models.CashReconciliation, error) {
	if dto == nil || dto.Notes == "" {
		return nil, apperrors.Validation("review notes are required when rejecting")
	}

	reconciliation, err := s.review(id, secretary, dto, models.ReconciliationStatusRejected, "RECONCILIATION_REJECT")
	if err != nil {
		return nil, err
	}

	var officer models.User
	if err := s.db.First(&officer, reconciliation.OfficerID).Error; err == nil && officer.Email != "" {
		if err := s.emailService.SendReconciliationRejectedNotification(
			officer.Email, reconciliation.ReconciliationDate, dto.Notes); err != nil {
			utils.LogError("failed to send rejection notice for reconciliation %d: %v", id, err)
		}
	}
	return reconciliation, nil
}

func (s *ReconciliationService) review(id uint, secretary models.Actor, dto *ReviewDTO, to models.ReconciliationStatus, action string) (*models.CashReconciliation, error) {
	start := time.Now()
	if !models.HasPermission(secretary.Role, models.PermReviewReconciliation) {
		return nil, apperrors.Unauthorized("missing permission to review reconciliations")
	}
	if dto == nil {
		dto = &ReviewDTO{}
	}
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	result, err := s.audit.WithAudit(secretary, action, "CashReconciliation", dto, func() (interface{}, uint, error) {
		var reconciliation models.CashReconciliation
		err := s.db.Transaction(func(tx *gorm.DB) error {
			err := lockForUpdate(tx).First(&reconciliation, id).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NotFound(fmt.Sprintf("reconciliation %d not found", id))
				}
				return fmt.Errorf("failed to load reconciliation: %w", err)
			}
			if reconciliation.Status != models.ReconciliationStatusPending {
				return apperrors.Conflict(fmt.Sprintf("reconciliation %d is already %s", id, reconciliation.Status))
			}
			if reconciliation.OfficerID == secretary.ID {
				return apperrors.Unauthorized("the reviewing secretary must differ from the submitting officer")
			}

			now := time.Now()
			reconciliation.Status = to
			reconciliation.SecretaryID = &secretary.ID
			reconciliation.ReviewNotes = dto.Notes
			reconciliation.ReviewedAt = &now
			if err := tx.Model(&reconciliation).Updates(map[string]interface{}{
				"status":       to,
				"secretary_id": secretary.ID,
				"review_notes": dto.Notes,
				"reviewed_at":  now,
			}).Error; err != nil {
				return fmt.Errorf("failed to update reconciliation: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, id, err
		}
		return &reconciliation, id, nil
	})
	utils.ObserveOperation("review_reconciliation", start, err)
	if err != nil {
		return nil, err
	}
	return result.(*models.CashReconciliation), nil
}

// ListPendingWithVariance returns reconciliations awaiting review, oldest
// first. Zero-variance submissions stay auditable but need no escalation,
// so only rows where the count disagrees with the system balance are listed.
func (s *ReconciliationService) ListPendingWithVariance() ([]models.CashReconciliation, error) {
	var reconciliations []models.CashReconciliation
	err := s.db.Preload("Officer").
		Where("status = ? AND variance <> 0", models.ReconciliationStatusPending).
		Order("reconciliation_date").
		Find(&reconciliations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending reconciliations: %w", err)
	}
	return reconciliations, nil
}

// CanCloseDay reports whether end-of-day operations may proceed for the
// given day: true iff no PENDING reconciliation for that day carries a
// non-zero variance.
func (s *ReconciliationService) CanCloseDay(day time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&models.CashReconciliation{}).
		Where("reconciliation_date = ? AND status = ? AND variance <> 0",
			startOfDay(day), models.ReconciliationStatusPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check reconciliation status: %w", err)
	}
	return count == 0, nil
}

// startOfDay truncates a timestamp to midnight UTC
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
