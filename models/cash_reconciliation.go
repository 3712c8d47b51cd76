package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus represents the review state of a cash reconciliation
type ReconciliationStatus string

const (
	ReconciliationStatusPending  ReconciliationStatus = "PENDING"
	ReconciliationStatusApproved ReconciliationStatus = "APPROVED"
	ReconciliationStatusRejected ReconciliationStatus = "REJECTED"
)

// CashReconciliation records an officer's end-of-day cash count against the
// system-derived balance. The reviewing secretary must differ from the
// creating officer.
type CashReconciliation struct {
	ID                 uint                 `gorm:"primaryKey;autoIncrement"`
	ReconciliationDate time.Time            `gorm:"column:reconciliation_date;not null;index"`
	OfficerID          uint                 `gorm:"column:officer_id;not null"`
	Officer            User                 `gorm:"foreignKey:OfficerID"`
	PhysicalCount      decimal.Decimal      `gorm:"column:physical_count;type:decimal(20,2);not null"`
	DatabaseBalance    decimal.Decimal      `gorm:"column:database_balance;type:decimal(20,2);not null"`
	Variance           decimal.Decimal      `gorm:"column:variance;type:decimal(20,2);not null"` // physical − database
	Status             ReconciliationStatus `gorm:"column:status;type:varchar(20);not null;default:'PENDING';index"`
	Notes              string               `gorm:"column:notes;size:500"`
	SecretaryID        *uint                `gorm:"column:secretary_id"`
	ReviewNotes        string               `gorm:"column:review_notes;size:500"`
	ReviewedAt         *time.Time           `gorm:"column:reviewed_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (CashReconciliation) TableName() string {
	return "cash_reconciliations"
}

// HasVariance reports whether the physical count differs from the
// system-computed balance.
func (c *CashReconciliation) HasVariance() bool {
	return !c.Variance.IsZero()
}
