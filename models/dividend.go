package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DividendStatus represents the status of a yearly distribution
type DividendStatus string

const (
	DividendStatusPending  DividendStatus = "PENDING"
	DividendStatusApproved DividendStatus = "APPROVED"
)

// DividendDistribution represents one fiscal year's dividend run. At most
// one row exists per fiscal year.
type DividendDistribution struct {
	ID                       uint                `gorm:"primaryKey;autoIncrement"`
	FiscalYear               int                 `gorm:"column:fiscal_year;not null;uniqueIndex"`
	DividendRate             decimal.Decimal     `gorm:"column:dividend_rate;type:decimal(7,2);not null"`       // percent of share capital
	AverageReturnRate        decimal.Decimal     `gorm:"column:average_return_rate;type:decimal(7,2);not null"` // percent of interest paid
	TotalShareCapital        decimal.Decimal     `gorm:"column:total_share_capital;type:decimal(20,2);not null;default:0"`
	TotalDividendAmount      decimal.Decimal     `gorm:"column:total_dividend_amount;type:decimal(20,2);not null;default:0"`
	TotalAverageReturnAmount decimal.Decimal     `gorm:"column:total_average_return_amount;type:decimal(20,2);not null;default:0"`
	Status                   DividendStatus      `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	CalculatedBy             uint                `gorm:"column:calculated_by;not null"`
	DistributedBy            *uint               `gorm:"column:distributed_by"`
	DistributedAt            *time.Time          `gorm:"column:distributed_at"`
	Recipients               []DividendRecipient `gorm:"foreignKey:DistributionID"`
	CreatedAt                time.Time           `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt                time.Time           `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (DividendDistribution) TableName() string {
	return "dividend_distributions"
}

// DividendRecipient is the frozen per-member snapshot of one year's
// dividend calculation inputs and outputs.
type DividendRecipient struct {
	ID                  uint            `gorm:"primaryKey;autoIncrement"`
	DistributionID      uint            `gorm:"column:distribution_id;not null;index"`
	MemberID            uint            `gorm:"column:member_id;not null;index"`
	Member              Member          `gorm:"foreignKey:MemberID"`
	ShareCapital        decimal.Decimal `gorm:"column:share_capital;type:decimal(20,2);not null"`
	InterestPaid        decimal.Decimal `gorm:"column:interest_paid;type:decimal(20,2);not null"`
	DividendAmount      decimal.Decimal `gorm:"column:dividend_amount;type:decimal(20,2);not null"`
	AverageReturnAmount decimal.Decimal `gorm:"column:average_return_amount;type:decimal(20,2);not null"`
	TotalAmount         decimal.Decimal `gorm:"column:total_amount;type:decimal(20,2);not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

func (DividendRecipient) TableName() string {
	return "dividend_recipients"
}
