package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanBalance is the monthly closing snapshot for one loan. One row exists
// per (loan, balance date); rows are append-only and never updated after the
// period is closed.
type LoanBalance struct {
	ID               uint            `gorm:"primaryKey;autoIncrement"`
	LoanID           uint            `gorm:"column:loan_id;not null;uniqueIndex:idx_loan_balance_period"`
	BalanceDate      time.Time       `gorm:"column:balance_date;not null;uniqueIndex:idx_loan_balance_period"` // last day of the month
	OpeningPrincipal decimal.Decimal `gorm:"column:opening_principal;type:decimal(20,2);not null;default:0"`
	ClosingPrincipal decimal.Decimal `gorm:"column:closing_principal;type:decimal(20,2);not null;default:0"`
	InterestAccrued  decimal.Decimal `gorm:"column:interest_accrued;type:decimal(20,2);not null;default:0"`
	PrincipalPaid    decimal.Decimal `gorm:"column:principal_paid;type:decimal(20,2);not null;default:0"`
	InterestPaid     decimal.Decimal `gorm:"column:interest_paid;type:decimal(20,2);not null;default:0"`
	PenaltyPaid      decimal.Decimal `gorm:"column:penalty_paid;type:decimal(20,2);not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

func (LoanBalance) TableName() string {
	return "loan_balances"
}
