package controllers

import (
	"net/http"

	"coopledger/apperrors"
	"coopledger/middleware"
	"coopledger/models"
	"coopledger/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportController serves XLSX exports
type ReportController struct {
	reportService *services.ReportService
}

// NewReportController creates a new ReportController
func NewReportController(reportService *services.ReportService) *ReportController {
	return &ReportController{reportService: reportService}
}

// ExportLoanBalances downloads one month's closing snapshots
func (c *ReportController) ExportLoanBalances(w http.ResponseWriter, r *http.Request) {
	if !models.HasPermission(middleware.GetActor(r).Role, models.PermExportReports) {
		writeError(w, apperrors.Unauthorized("missing permission to export reports"))
		return
	}

	month, year, ok := monthYearQuery(w, r)
	if !ok {
		return
	}

	data, fileName, err := c.reportService.ExportLoanBalances(month, year)
	if err != nil {
		writeError(w, err)
		return
	}
	serveWorkbook(w, fileName, data)
}

// ExportDividendRecipients downloads one fiscal year's recipient snapshots
func (c *ReportController) ExportDividendRecipients(w http.ResponseWriter, r *http.Request) {
	if !models.HasPermission(middleware.GetActor(r).Role, models.PermExportReports) {
		writeError(w, apperrors.Unauthorized("missing permission to export reports"))
		return
	}

	year, ok := fiscalYearVar(w, r)
	if !ok {
		return
	}

	data, fileName, err := c.reportService.ExportDividendRecipients(year)
	if err != nil {
		writeError(w, err)
		return
	}
	serveWorkbook(w, fileName, data)
}

func serveWorkbook(w http.ResponseWriter, fileName string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
