package controllers

import (
	"net/http"
	"strconv"
	"time"

	"coopledger/apperrors"
	"coopledger/middleware"
	"coopledger/models"
	"coopledger/services"
)

// PeriodController handles month-close and overdue-sweep endpoints
type PeriodController struct {
	periodService *services.PeriodService
}

// NewPeriodController creates a new PeriodController
func NewPeriodController(periodService *services.PeriodService) *PeriodController {
	return &PeriodController{periodService: periodService}
}

type closeMonthRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// CloseMonth closes one accounting month
func (c *PeriodController) CloseMonth(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if !models.HasPermission(actor.Role, models.PermClosePeriod) {
		writeError(w, apperrors.Unauthorized("missing permission to close periods"))
		return
	}

	var req closeMonthRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, apperrors.Validation("month must be between 1 and 12"))
		return
	}

	result, err := c.periodService.CloseMonth(time.Month(req.Month), req.Year, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SweepOverdue flags past-maturity loans as defaulted
func (c *PeriodController) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	if !models.HasPermission(middleware.GetActor(r).Role, models.PermClosePeriod) {
		writeError(w, apperrors.Unauthorized("missing permission to run the overdue sweep"))
		return
	}

	flagged, err := c.periodService.CheckAndFlagOverdueLoans()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"flagged": flagged})
}

// GetBalances lists one month's closing snapshots
func (c *PeriodController) GetBalances(w http.ResponseWriter, r *http.Request) {
	month, year, ok := monthYearQuery(w, r)
	if !ok {
		return
	}

	balances, err := c.periodService.GetLoanBalances(month, year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// monthYearQuery parses the month and year query parameters
func monthYearQuery(w http.ResponseWriter, r *http.Request) (time.Month, int, bool) {
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "month must be between 1 and 12"})
		return 0, 0, false
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year is required"})
		return 0, 0, false
	}
	return time.Month(month), year, true
}
