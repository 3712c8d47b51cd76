package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus represents the lifecycle status of a loan
type LoanStatus string

const (
	LoanStatusPending    LoanStatus = "PENDING"
	LoanStatusActive     LoanStatus = "ACTIVE"
	LoanStatusCompleted  LoanStatus = "COMPLETED"
	LoanStatusDefaulted  LoanStatus = "DEFAULTED"
	LoanStatusWrittenOff LoanStatus = "WRITTEN_OFF"
	LoanStatusRejected   LoanStatus = "REJECTED"
)

// loanTransitions lists the allowed status changes. COMPLETED, REJECTED and
// WRITTEN_OFF are terminal.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:   {LoanStatusActive, LoanStatusRejected},
	LoanStatusActive:    {LoanStatusCompleted, LoanStatusDefaulted, LoanStatusWrittenOff},
	LoanStatusDefaulted: {LoanStatusCompleted, LoanStatusWrittenOff},
}

// CanTransition reports whether a loan may move from one status to another.
func (s LoanStatus) CanTransition(to LoanStatus) bool {
	for _, t := range loanTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Loan represents a member loan
type Loan struct {
	ID                 uint            `gorm:"primaryKey;autoIncrement"`
	MemberID           uint            `gorm:"column:member_id;not null;index"`
	Member             Member          `gorm:"foreignKey:MemberID"`
	Principal          decimal.Decimal `gorm:"column:principal;type:decimal(20,2);not null"`
	InterestRate       decimal.Decimal `gorm:"column:interest_rate;type:decimal(7,2);not null"` // annual, percent
	TermMonths         int             `gorm:"column:term_months;not null"`
	Purpose            string          `gorm:"column:purpose;size:255"`
	Status             LoanStatus      `gorm:"column:status;type:varchar(20);not null;default:'PENDING';index"`
	OutstandingBalance decimal.Decimal `gorm:"column:outstanding_balance;type:decimal(20,2);not null;default:0"`
	PaidPrincipal      decimal.Decimal `gorm:"column:paid_principal;type:decimal(20,2);not null;default:0"`
	PaidInterest       decimal.Decimal `gorm:"column:paid_interest;type:decimal(20,2);not null;default:0"`
	PaidPenalty        decimal.Decimal `gorm:"column:paid_penalty;type:decimal(20,2);not null;default:0"`
	StartDate          *time.Time      `gorm:"column:start_date"`
	MaturityDate       *time.Time      `gorm:"column:maturity_date"`
	LastPaymentDate    *time.Time      `gorm:"column:last_payment_date"`
	ApprovedBy         *uint           `gorm:"column:approved_by"`
	ApprovedAt         *time.Time      `gorm:"column:approved_at"`
	DisbursedAt        *time.Time      `gorm:"column:disbursed_at"`
	Payments           []Payment       `gorm:"foreignKey:LoanID"`
	CreatedAt          time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Loan) TableName() string {
	return "loans"
}

// IsPayable reports whether the loan can still receive payments.
func (l *Loan) IsPayable() bool {
	return l.Status == LoanStatusActive || l.Status == LoanStatusDefaulted
}

// InterestAccrualStart returns the date interest accrues from: the last
// payment date when one is recorded, otherwise the disbursement start date.
func (l *Loan) InterestAccrualStart() *time.Time {
	if l.LastPaymentDate != nil {
		return l.LastPaymentDate
	}
	return l.StartDate
}

// Guarantor represents a member standing as guarantor for a loan
type Guarantor struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	LoanID    uint            `gorm:"column:loan_id;not null;index"`
	MemberID  uint            `gorm:"column:member_id;not null;index"`
	Member    Member          `gorm:"foreignKey:MemberID"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

func (Guarantor) TableName() string {
	return "guarantors"
}
