package services

import (
	"fmt"
	"time"

	"coopledger/config"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
)

// EmailService sends member and staff notifications
type EmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService creates a new EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
	}
}

// SendEmail sends a single HTML email
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// SendLoanApprovedNotification notifies a member that their loan was
// approved and disbursed
func (s *EmailService) SendLoanApprovedNotification(to string, loanID uint, amount, installment decimal.Decimal) error {
	subject := "Your loan has been disbursed"
	body := fmt.Sprintf(`
		<h2>Loan disbursed</h2>
		<p>Loan #%d</p>
		<p>Amount: %s</p>
		<p>Monthly installment: %s</p>
		<p>Date: %s</p>
	`, loanID, amount.StringFixed(2), installment.StringFixed(2), time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

// SendLoanCompletedNotification congratulates a member on fully repaying
// their loan
func (s *EmailService) SendLoanCompletedNotification(to string, loanID uint) error {
	subject := "Congratulations! Your loan is fully repaid"
	body := fmt.Sprintf(`
		<h2>Congratulations!</h2>
		<p>Loan #%d has been fully repaid.</p>
		<p>Thank you for being a member of the cooperative.</p>
	`, loanID)

	return s.SendEmail(to, subject, body)
}

// SendDividendNotification notifies a member of a dividend credited to
// their savings
func (s *EmailService) SendDividendNotification(to string, year int, amount decimal.Decimal) error {
	subject := fmt.Sprintf("Dividend for %d credited", year)
	body := fmt.Sprintf(`
		<h2>Dividend credited</h2>
		<p>Fiscal year: %d</p>
		<p>Amount: %s</p>
		<p>The amount has been credited to your savings account.</p>
	`, year, amount.StringFixed(2))

	return s.SendEmail(to, subject, body)
}

// SendReconciliationRejectedNotification notifies the creating officer that
// their cash reconciliation was rejected
func (s *EmailService) SendReconciliationRejectedNotification(to string, date time.Time, reason string) error {
	subject := "Cash reconciliation rejected"
	body := fmt.Sprintf(`
		<h2>Cash reconciliation rejected</h2>
		<p>Date: %s</p>
		<p>Reason: %s</p>
		<p>Please review the cash count and resubmit.</p>
	`, date.Format("02.01.2006"), reason)

	return s.SendEmail(to, subject, body)
}
