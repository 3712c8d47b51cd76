package controllers

import (
	"net/http"
	"time"

	"coopledger/middleware"
	"coopledger/services"
)

// LoanController handles the loan lifecycle endpoints
type LoanController struct {
	loanService *services.LoanService
}

// NewLoanController creates a new LoanController
func NewLoanController(loanService *services.LoanService) *LoanController {
	return &LoanController{loanService: loanService}
}

// Apply registers a loan application
func (c *LoanController) Apply(w http.ResponseWriter, r *http.Request) {
	var dto services.LoanApplicationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	loan, err := c.loanService.Apply(&dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// Approve stamps a pending loan with the approver
func (c *LoanController) Approve(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := c.loanService.Approve(loanID, middleware.GetActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// Disburse activates an approved loan and pays it out
func (c *LoanController) Disburse(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := c.loanService.Disburse(loanID, middleware.GetActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// Reject declines a pending application
func (c *LoanController) Reject(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	loan, err := c.loanService.Reject(loanID, middleware.GetActor(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// WriteOff removes an uncollectable loan from the active book
func (c *LoanController) WriteOff(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	loan, err := c.loanService.WriteOff(loanID, middleware.GetActor(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// GetLoan returns one loan
func (c *LoanController) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := c.loanService.GetLoan(loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// GetPayoff returns the amount needed to settle a loan today, or on the
// date given in the asOf query parameter
func (c *LoanController) GetPayoff(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	asOf := time.Now()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "asOf must be in YYYY-MM-DD format"})
			return
		}
		asOf = parsed
	}

	payoff, err := c.loanService.CalculatePayoff(loanID, asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payoff)
}

// GetMemberLoans lists one member's loans
func (c *LoanController) GetMemberLoans(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "memberId")
	if !ok {
		return
	}

	loans, err := c.loanService.GetMemberLoans(memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}
