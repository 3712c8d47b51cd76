package services

import (
	"fmt"
	"time"

	"coopledger/apperrors"
	"coopledger/models"
	"coopledger/utils"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportService exports ledger data as XLSX workbooks for the board and
// the auditors.
type ReportService struct {
	db       *gorm.DB
	period   *PeriodService
	dividend *DividendService
}

// NewReportService creates a new ReportService
func NewReportService(db *gorm.DB, period *PeriodService, dividend *DividendService) *ReportService {
	return &ReportService{db: db, period: period, dividend: dividend}
}

// balanceColumn maps one spreadsheet column to a LoanBalance field
type balanceColumn struct {
	Header string
	Value  func(b models.LoanBalance) any
}

var balanceColumns = []balanceColumn{
	{Header: "Loan ID", Value: func(b models.LoanBalance) any { return b.LoanID }},
	{Header: "Period", Value: func(b models.LoanBalance) any { return b.BalanceDate.Format("2006-01") }},
	{Header: "Opening principal", Value: func(b models.LoanBalance) any { return b.OpeningPrincipal.StringFixed(2) }},
	{Header: "Closing principal", Value: func(b models.LoanBalance) any { return b.ClosingPrincipal.StringFixed(2) }},
	{Header: "Interest accrued", Value: func(b models.LoanBalance) any { return b.InterestAccrued.StringFixed(2) }},
	{Header: "Principal paid", Value: func(b models.LoanBalance) any { return b.PrincipalPaid.StringFixed(2) }},
	{Header: "Interest paid", Value: func(b models.LoanBalance) any { return b.InterestPaid.StringFixed(2) }},
	{Header: "Penalty paid", Value: func(b models.LoanBalance) any { return b.PenaltyPaid.StringFixed(2) }},
}

// recipientColumn maps one spreadsheet column to a DividendRecipient field
type recipientColumn struct {
	Header string
	Value  func(r models.DividendRecipient) any
}

var recipientColumns = []recipientColumn{
	{Header: "Member ID", Value: func(r models.DividendRecipient) any { return r.MemberID }},
	{Header: "Member", Value: func(r models.DividendRecipient) any {
		return fmt.Sprintf("%s %s", r.Member.FirstName, r.Member.LastName)
	}},
	{Header: "Share capital", Value: func(r models.DividendRecipient) any { return r.ShareCapital.StringFixed(2) }},
	{Header: "Interest paid", Value: func(r models.DividendRecipient) any { return r.InterestPaid.StringFixed(2) }},
	{Header: "Dividend", Value: func(r models.DividendRecipient) any { return r.DividendAmount.StringFixed(2) }},
	{Header: "Average return", Value: func(r models.DividendRecipient) any { return r.AverageReturnAmount.StringFixed(2) }},
	{Header: "Total", Value: func(r models.DividendRecipient) any { return r.TotalAmount.StringFixed(2) }},
}

// ExportLoanBalances renders one month's closing snapshots as an XLSX
// workbook
func (s *ReportService) ExportLoanBalances(month time.Month, year int) ([]byte, string, error) {
	balances, err := s.period.GetLoanBalances(month, year)
	if err != nil {
		return nil, "", err
	}
	if len(balances) == 0 {
		return nil, "", apperrors.NotFound(fmt.Sprintf("no closed period found for %04d-%02d", year, month))
	}

	f := excelize.NewFile()
	sheet := "Loan balances"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for i, col := range balanceColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}
	for rowIdx, b := range balances {
		for colIdx, col := range balanceColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			_ = f.SetCellValue(sheet, cell, col.Value(b))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	fileName := fmt.Sprintf("loan_balances_%04d_%02d.xlsx", year, month)
	utils.LogInfo("exported %d loan balances for %04d-%02d", len(balances), year, month)
	return buf.Bytes(), fileName, nil
}

// ExportDividendRecipients renders one fiscal year's recipient snapshots as
// an XLSX workbook
func (s *ReportService) ExportDividendRecipients(fiscalYear int) ([]byte, string, error) {
	distribution, err := s.dividend.GetDistribution(fiscalYear)
	if err != nil {
		return nil, "", err
	}

	var recipients []models.DividendRecipient
	err = s.db.Preload("Member").
		Where("distribution_id = ?", distribution.ID).
		Order("member_id").
		Find(&recipients).Error
	if err != nil {
		return nil, "", fmt.Errorf("failed to load recipients: %w", err)
	}

	f := excelize.NewFile()
	sheet := fmt.Sprintf("Dividends %d", fiscalYear)
	f.SetSheetName(f.GetSheetName(0), sheet)

	for i, col := range recipientColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}
	for rowIdx, r := range recipients {
		for colIdx, col := range recipientColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			_ = f.SetCellValue(sheet, cell, col.Value(r))
		}
	}

	// Totals row under the data
	totalRow := len(recipients) + 3
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	_ = f.SetCellValue(sheet, cell, "Totals")
	cell, _ = excelize.CoordinatesToCellName(5, totalRow)
	_ = f.SetCellValue(sheet, cell, distribution.TotalDividendAmount.StringFixed(2))
	cell, _ = excelize.CoordinatesToCellName(6, totalRow)
	_ = f.SetCellValue(sheet, cell, distribution.TotalAverageReturnAmount.StringFixed(2))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	fileName := fmt.Sprintf("dividend_recipients_%d.xlsx", fiscalYear)
	return buf.Bytes(), fileName, nil
}
