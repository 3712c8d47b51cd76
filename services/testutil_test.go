package services

import (
	"testing"
	"time"

	"coopledger/config"
	"coopledger/database"
	"coopledger/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get connection pool: %v", err)
	}
	// One connection so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

// newTestEmailService builds an email service pointed at nothing; sends
// fail and are logged, which is the production behavior for notification
// errors
func newTestEmailService() *EmailService {
	return NewEmailService(&config.Config{})
}

func newTestValidator() *validator.Validate {
	return validator.New()
}

func createTestMember(t *testing.T, db *gorm.DB, email, idCard string, shareCapital float64) *models.Member {
	t.Helper()

	member := &models.Member{
		FirstName:    "Anna",
		LastName:     "Kovacs",
		Email:        email,
		IDCardNumber: idCard,
		BirthDate:    time.Date(1985, time.May, 10, 0, 0, 0, 0, time.UTC),
		ShareCapital: decimal.NewFromFloat(shareCapital),
		Status:       models.MemberStatusActive,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to create test member: %v", err)
	}
	return member
}

// createActiveLoan seeds a disbursed loan with the given outstanding
// balance, annual rate and start date
func createActiveLoan(t *testing.T, db *gorm.DB, memberID uint, outstanding float64, annualRate float64, startDate time.Time, termMonths int) *models.Loan {
	t.Helper()

	maturity := startDate.AddDate(0, termMonths, 0)
	now := time.Now()
	loan := &models.Loan{
		MemberID:           memberID,
		Principal:          decimal.NewFromFloat(outstanding),
		InterestRate:       decimal.NewFromFloat(annualRate),
		TermMonths:         termMonths,
		Status:             models.LoanStatusActive,
		OutstandingBalance: decimal.NewFromFloat(outstanding),
		StartDate:          &startDate,
		MaturityDate:       &maturity,
		DisbursedAt:        &now,
	}
	if err := db.Create(loan).Error; err != nil {
		t.Fatalf("failed to create test loan: %v", err)
	}
	return loan
}

func decimalEquals(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	if got.StringFixed(2) != want {
		t.Errorf("%s = %s, want %s", label, got.StringFixed(2), want)
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
