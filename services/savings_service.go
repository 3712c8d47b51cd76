package services

import (
	"errors"
	"fmt"

	"coopledger/apperrors"
	"coopledger/models"
	"coopledger/utils"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SavingsService maintains member savings and share capital accounts. Every
// balance change writes a SavingsTransaction row alongside the updated
// member balance, inside one transaction.
type SavingsService struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewSavingsService creates a new SavingsService
func NewSavingsService(db *gorm.DB, validate *validator.Validate) *SavingsService {
	return &SavingsService{db: db, validate: validate}
}

// SavingsOperationDTO carries a deposit or withdrawal request
type SavingsOperationDTO struct {
	MemberID    uint    `json:"memberId" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"max=255"`
}

// Deposit credits a member's savings account
func (s *SavingsService) Deposit(dto *SavingsOperationDTO) (*models.SavingsTransaction, error) {
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	amount := decimal.NewFromFloat(dto.Amount).Round(2)

	var result *models.SavingsTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.CreditInTx(tx, dto.MemberID, amount, models.SavingsTxDeposit, dto.Description)
		return err
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("savings deposit of %s for member %d", amount.StringFixed(2), dto.MemberID)
	return result, nil
}

// Withdraw debits a member's savings account. The balance may not go
// negative.
func (s *SavingsService) Withdraw(dto *SavingsOperationDTO) (*models.SavingsTransaction, error) {
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	amount := decimal.NewFromFloat(dto.Amount).Round(2)

	var result *models.SavingsTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		member, err := lockMember(tx, dto.MemberID)
		if err != nil {
			return err
		}

		if member.SavingsBalance.LessThan(amount) {
			return apperrors.Business(fmt.Sprintf(
				"insufficient savings balance: have %s, requested %s",
				member.SavingsBalance.StringFixed(2), amount.StringFixed(2)))
		}

		member.SavingsBalance = member.SavingsBalance.Sub(amount)
		if err := tx.Model(member).Update("savings_balance", member.SavingsBalance).Error; err != nil {
			return fmt.Errorf("failed to update savings balance: %w", err)
		}

		result = &models.SavingsTransaction{
			MemberID:     member.ID,
			Amount:       amount.Neg(),
			Type:         models.SavingsTxWithdrawal,
			Description:  dto.Description,
			BalanceAfter: member.SavingsBalance,
		}
		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("failed to record savings transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("savings withdrawal of %s for member %d", amount.StringFixed(2), dto.MemberID)
	return result, nil
}

// ShareDeposit increases a member's share capital. Share capital is held
// separately from savings and only grows; it is returned on membership
// termination, which is out of scope here.
func (s *SavingsService) ShareDeposit(dto *SavingsOperationDTO) (*models.SavingsTransaction, error) {
	if err := validateStruct(s.validate, dto); err != nil {
		return nil, err
	}

	amount := decimal.NewFromFloat(dto.Amount).Round(2)

	var result *models.SavingsTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		member, err := lockMember(tx, dto.MemberID)
		if err != nil {
			return err
		}

		member.ShareCapital = member.ShareCapital.Add(amount)
		if err := tx.Model(member).Update("share_capital", member.ShareCapital).Error; err != nil {
			return fmt.Errorf("failed to update share capital: %w", err)
		}

		result = &models.SavingsTransaction{
			MemberID:     member.ID,
			Amount:       amount,
			Type:         models.SavingsTxShareDeposit,
			Description:  dto.Description,
			BalanceAfter: member.ShareCapital,
		}
		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("failed to record savings transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("share deposit of %s for member %d", amount.StringFixed(2), dto.MemberID)
	return result, nil
}

// CreditInTx credits a member's savings inside an existing transaction.
// Used by loan disbursement and dividend distribution so their payouts land
// in the same transaction as the records that justify them.
func (s *SavingsService) CreditInTx(tx *gorm.DB, memberID uint, amount decimal.Decimal, txType models.SavingsTransactionType, description string) (*models.SavingsTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("credit amount must be positive")
	}

	member, err := lockMember(tx, memberID)
	if err != nil {
		return nil, err
	}

	member.SavingsBalance = member.SavingsBalance.Add(amount)
	if err := tx.Model(member).Update("savings_balance", member.SavingsBalance).Error; err != nil {
		return nil, fmt.Errorf("failed to update savings balance: %w", err)
	}

	record := &models.SavingsTransaction{
		MemberID:     member.ID,
		Amount:       amount,
		Type:         txType,
		Description:  description,
		BalanceAfter: member.SavingsBalance,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to record savings transaction: %w", err)
	}
	return record, nil
}

// GetTransactions returns a member's savings history, newest first
func (s *SavingsService) GetTransactions(memberID uint) ([]models.SavingsTransaction, error) {
	var transactions []models.SavingsTransaction
	err := s.db.Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load savings transactions: %w", err)
	}
	return transactions, nil
}

// lockMember loads a member row FOR UPDATE
func lockMember(tx *gorm.DB, memberID uint) (*models.Member, error) {
	var member models.Member
	err := lockForUpdate(tx).First(&member, memberID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("member %d not found", memberID))
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	return &member, nil
}
