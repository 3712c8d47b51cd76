package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsTransactionType classifies a savings ledger movement
type SavingsTransactionType string

const (
	SavingsTxDeposit      SavingsTransactionType = "DEPOSIT"
	SavingsTxWithdrawal   SavingsTransactionType = "WITHDRAWAL"
	SavingsTxShareDeposit SavingsTransactionType = "SHARE_DEPOSIT"
	SavingsTxDisbursement SavingsTransactionType = "LOAN_DISBURSEMENT"
	SavingsTxDividend     SavingsTransactionType = "DIVIDEND"
)

// SavingsTransaction records one movement on a member's savings or share
// capital account. Amount is positive for credits, negative for debits.
type SavingsTransaction struct {
	ID           uint                   `gorm:"primaryKey;autoIncrement"`
	MemberID     uint                   `gorm:"column:member_id;not null;index"`
	Amount       decimal.Decimal        `gorm:"column:amount;type:decimal(20,2);not null"`
	Type         SavingsTransactionType `gorm:"column:type;not null;size:30"`
	Description  string                 `gorm:"column:description;size:255"`
	BalanceAfter decimal.Decimal        `gorm:"column:balance_after;type:decimal(20,2);not null"`
	CreatedAt    time.Time              `gorm:"column:created_at;default:CURRENT_TIMESTAMP;index"`
}

func (SavingsTransaction) TableName() string {
	return "savings_transactions"
}
