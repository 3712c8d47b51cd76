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

// DividendService computes and pays out the yearly dividend: a share of
// each member's share capital plus an average-return share of the interest
// they paid during the fiscal year.
type DividendService struct {
	db           *gorm.DB
	validate     *validator.Validate
	savings      *SavingsService
	audit        *AuditService
	emailService *EmailService
}

// NewDividendService creates a new DividendService
func NewDividendService(db *gorm.DB, validate *validator.Validate, savings *SavingsService, audit *AuditService, emailService *EmailService) *DividendService {
	return &DividendService{
		db:           db,
		validate:     validate,
		savings:      savings,
		audit:        audit,
		emailService: emailService,
	}
}

// DividendCalculationDTO carries the rates for one fiscal year's calculation
type DividendCalculationDTO struct {
	FiscalYear        int     `json:"fiscalYear" validate:"required,gte=2000,lte=2100"`
	DividendRate      float64 `json:"dividendRate" validate:"required,gt=0,lte=100"`
	AverageReturnRate float64 `json:"averageReturnRate" validate:"gte=0,lte=100"`
}

// Calculate computes the distribution and its per-member recipient
// snapshots for one fiscal year. At most one distribution may exist per
// year; a second calculation for the same year fails.
func (s *DividendService) Calculate(dto *DividendCalculationDTO, actor models.Actor) (*models.DividendDistribution, error) {
	start := time.Now()
	if !models.HasPermission(actor.Role, models.PermCalculateDividends) {
		return nil, apperrors.Unauthorized("missing permission to calculate dividends")
	}
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	result, err := s.audit.WithAudit(actor, "DIVIDEND_CALCULATE", "DividendDistribution", dto, func() (interface{}, uint, error) {
		distribution, err := s.calculate(dto, actor)
		if err != nil {
			return nil, 0, err
		}
		return distribution, distribution.ID, nil
	})
	utils.ObserveOperation("calculate_dividends", start, err)
	if err != nil {
		return nil, err
	}
	return result.(*models.DividendDistribution), nil
}

func (s *DividendService) calculate(dto *DividendCalculationDTO, actor models.Actor) (*models.DividendDistribution, error) {
	dividendRate := decimal.NewFromFloat(dto.DividendRate).Round(2)
	averageReturnRate := decimal.NewFromFloat(dto.AverageReturnRate).Round(2)

	var distribution *models.DividendDistribution
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.DividendDistribution
		err := tx.Where("fiscal_year = ?", dto.FiscalYear).First(&existing).Error
		if err == nil {
			return apperrors.Business(fmt.Sprintf("a dividend distribution for %d already exists", dto.FiscalYear))
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing distribution: %w", err)
		}

		var members []models.Member
		if err := tx.Where("status = ?", models.MemberStatusActive).Find(&members).Error; err != nil {
			return fmt.Errorf("failed to list active members: %w", err)
		}
		if len(members) == 0 {
			return apperrors.Business("no active members to distribute to")
		}

		interestByMember, err := sumInterestPaidByMember(tx, dto.FiscalYear)
		if err != nil {
			return err
		}

		distribution = &models.DividendDistribution{
			FiscalYear:        dto.FiscalYear,
			DividendRate:      dividendRate,
			AverageReturnRate: averageReturnRate,
			Status:            models.DividendStatusPending,
			CalculatedBy:      actor.ID,
		}

		totalShareCapital := decimal.Zero
		totalDividend := decimal.Zero
		totalAverageReturn := decimal.Zero
		recipients := make([]models.DividendRecipient, 0, len(members))
		for _, m := range members {
			interestPaid := interestByMember[m.ID]
			dividendAmount := m.ShareCapital.Mul(dividendRate).Div(hundred).Round(2)
			averageReturnAmount := interestPaid.Mul(averageReturnRate).Div(hundred).Round(2)
			total := dividendAmount.Add(averageReturnAmount)
			if total.IsZero() {
				continue
			}

			recipients = append(recipients, models.DividendRecipient{
				MemberID:            m.ID,
				ShareCapital:        m.ShareCapital,
				InterestPaid:        interestPaid,
				DividendAmount:      dividendAmount,
				AverageReturnAmount: averageReturnAmount,
				TotalAmount:         total,
			})
			totalShareCapital = totalShareCapital.Add(m.ShareCapital)
			totalDividend = totalDividend.Add(dividendAmount)
			totalAverageReturn = totalAverageReturn.Add(averageReturnAmount)
		}
		if len(recipients) == 0 {
			return apperrors.Business("calculated dividend is zero for every member")
		}

		distribution.TotalShareCapital = totalShareCapital
		distribution.TotalDividendAmount = totalDividend
		distribution.TotalAverageReturnAmount = totalAverageReturn
		if err := tx.Create(distribution).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Business(fmt.Sprintf("a dividend distribution for %d already exists", dto.FiscalYear))
			}
			return fmt.Errorf("failed to create distribution: %w", err)
		}

		for i := range recipients {
			recipients[i].DistributionID = distribution.ID
		}
		if err := tx.Create(&recipients).Error; err != nil {
			return fmt.Errorf("failed to create recipients: %w", err)
		}
		distribution.Recipients = recipients
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("dividend calculation for %d: %d recipients, dividends %s, average return %s",
		dto.FiscalYear, len(distribution.Recipients),
		distribution.TotalDividendAmount.StringFixed(2),
		distribution.TotalAverageReturnAmount.StringFixed(2))
	return distribution, nil
}

// sumInterestPaidByMember totals the interest component of completed
// payments per member over one fiscal year
func sumInterestPaidByMember(tx *gorm.DB, year int) (map[uint]decimal.Decimal, error) {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	var payments []models.Payment
	err := tx.Where("status = ? AND payment_date >= ? AND payment_date < ?",
		models.PaymentStatusCompleted, yearStart, yearEnd).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load fiscal year payments: %w", err)
	}

	totals := make(map[uint]decimal.Decimal)
	for _, p := range payments {
		totals[p.MemberID] = totals[p.MemberID].Add(p.InterestAmount)
	}
	return totals, nil
}

// Distribute pays a calculated distribution out: every recipient's total is
// credited to their savings account and the distribution moves to APPROVED.
// All credits and the status change commit in one transaction.
func (s *DividendService) Distribute(fiscalYear int, actor models.Actor) (*models.DividendDistribution, error) {
	start := time.Now()
	if !models.HasPermission(actor.Role, models.PermDistributeDividends) {
		return nil, apperrors.Unauthorized("missing permission to distribute dividends")
	}

	result, err := s.audit.WithAudit(actor, "DIVIDEND_DISTRIBUTE", "DividendDistribution",
		map[string]int{"fiscalYear": fiscalYear}, func() (interface{}, uint, error) {
			distribution, err := s.distribute(fiscalYear, actor)
			if err != nil {
				return nil, 0, err
			}
			return distribution, distribution.ID, nil
		})
	utils.ObserveOperation("distribute_dividends", start, err)
	if err != nil {
		return nil, err
	}

	distribution := result.(*models.DividendDistribution)
	s.notifyRecipients(distribution)
	return distribution, nil
}

func (s *DividendService) distribute(fiscalYear int, actor models.Actor) (*models.DividendDistribution, error) {
	var distribution models.DividendDistribution
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Recipients").
			Where("fiscal_year = ?", fiscalYear).
			First(&distribution).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound(fmt.Sprintf("no dividend distribution exists for %d", fiscalYear))
			}
			return fmt.Errorf("failed to load distribution: %w", err)
		}
		if distribution.Status != models.DividendStatusPending {
			return apperrors.Conflict(fmt.Sprintf("distribution for %d is already %s", fiscalYear, distribution.Status))
		}

		for _, r := range distribution.Recipients {
			_, err := s.savings.CreditInTx(tx, r.MemberID, r.TotalAmount,
				models.SavingsTxDividend, fmt.Sprintf("Dividend for fiscal year %d", fiscalYear))
			if err != nil {
				return fmt.Errorf("failed to credit member %d: %w", r.MemberID, err)
			}
		}

		now := time.Now()
		distribution.Status = models.DividendStatusApproved
		distribution.DistributedBy = &actor.ID
		distribution.DistributedAt = &now
		if err := tx.Model(&distribution).Updates(map[string]interface{}{
			"status":         distribution.Status,
			"distributed_by": actor.ID,
			"distributed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark distribution approved: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("dividends for %d distributed to %d members", fiscalYear, len(distribution.Recipients))
	return &distribution, nil
}

// notifyRecipients sends best-effort dividend emails after the payout
// committed
func (s *DividendService) notifyRecipients(distribution *models.DividendDistribution) {
	for _, r := range distribution.Recipients {
		var member models.Member
		if err := s.db.First(&member, r.MemberID).Error; err != nil {
			utils.LogError("failed to load member %d for dividend notice: %v", r.MemberID, err)
			continue
		}
		if member.Email == "" {
			continue
		}
		if err := s.emailService.SendDividendNotification(member.Email, distribution.FiscalYear, r.TotalAmount); err != nil {
			utils.LogError("failed to send dividend notice to member %d: %v", r.MemberID, err)
		}
	}
}

// GetDistribution loads one fiscal year's distribution with its recipients
func (s *DividendService) GetDistribution(fiscalYear int) (*models.DividendDistribution, error) {
	var distribution models.DividendDistribution
	err := s.db.Preload("Recipients").
		Where("fiscal_year = ?", fiscalYear).
		First(&distribution).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("no dividend distribution exists for %d", fiscalYear))
		}
		return nil, fmt.Errorf("failed to load distribution: %w", err)
	}
	return &distribution, nil
}
