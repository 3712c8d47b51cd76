package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MemberStatus represents the membership status
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "ACTIVE"
	MemberStatusInactive MemberStatus = "INACTIVE"
)

// Member represents a cooperative member
type Member struct {
	ID             uint            `gorm:"primaryKey;autoIncrement"`
	FirstName      string          `gorm:"column:first_name;not null;size:50"`
	LastName       string          `gorm:"column:last_name;not null;size:50"`
	Email          string          `gorm:"column:email;unique;not null;size:100;index"`
	Phone          string          `gorm:"column:phone;size:20"`
	IDCardNumber   string          `gorm:"column:id_card_number;unique;not null;size:30"`
	BirthDate      time.Time       `gorm:"column:birth_date;not null"`
	ShareCapital   decimal.Decimal `gorm:"column:share_capital;type:decimal(20,2);not null;default:0"`
	SavingsBalance decimal.Decimal `gorm:"column:savings_balance;type:decimal(20,2);not null;default:0"`
	Status         MemberStatus    `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE'"`
	CreatedAt      time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Member) TableName() string {
	return "members"
}

// BeforeCreate validates the member before insertion
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if len(m.FirstName) < 2 || len(m.FirstName) > 50 {
		return errors.New("first name must be between 2 and 50 characters")
	}
	if len(m.LastName) < 2 || len(m.LastName) > 50 {
		return errors.New("last name must be between 2 and 50 characters")
	}
	if m.IDCardNumber == "" {
		return errors.New("id card number is required")
	}
	return nil
}

// Age returns the member's age in full years at the given date.
func (m *Member) Age(at time.Time) int {
	years := at.Year() - m.BirthDate.Year()
	anniversary := m.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}
