package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a loan payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusVoid      PaymentStatus = "VOID"
)

// Payment represents a loan repayment split into its waterfall components.
// Invariant: PrincipalAmount + InterestAmount + PenaltyAmount == Amount at
// two-decimal scale.
type Payment struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"`
	ReceiptNumber   string          `gorm:"column:receipt_number;unique;not null;size:40"`
	LoanID          uint            `gorm:"column:loan_id;not null;index"`
	Loan            Loan            `gorm:"foreignKey:LoanID"`
	MemberID        uint            `gorm:"column:member_id;not null;index"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	PrincipalAmount decimal.Decimal `gorm:"column:principal_amount;type:decimal(20,2);not null;default:0"`
	InterestAmount  decimal.Decimal `gorm:"column:interest_amount;type:decimal(20,2);not null;default:0"`
	PenaltyAmount   decimal.Decimal `gorm:"column:penalty_amount;type:decimal(20,2);not null;default:0"`
	PaymentDate     time.Time       `gorm:"column:payment_date;not null;index"`
	Status          PaymentStatus   `gorm:"column:status;type:varchar(20);not null;default:'COMPLETED'"`
	CreatedAt       time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string {
	return "payments"
}
