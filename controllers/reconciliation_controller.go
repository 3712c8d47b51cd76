package controllers

import (
	"net/http"
	"time"

	"coopledger/middleware"
	"coopledger/services"
)

// ReconciliationController handles the end-of-day cash workflow
type ReconciliationController struct {
	reconciliationService *services.ReconciliationService
}

// NewReconciliationController creates a new ReconciliationController
func NewReconciliationController(reconciliationService *services.ReconciliationService) *ReconciliationController {
	return &ReconciliationController{reconciliationService: reconciliationService}
}

// Create submits today's cash count
func (c *ReconciliationController) Create(w http.ResponseWriter, r *http.Request) {
	var dto services.ReconciliationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	reconciliation, err := c.reconciliationService.Create(&dto, middleware.GetActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reconciliation)
}

// Approve accepts a pending reconciliation
func (c *ReconciliationController) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var dto services.ReviewDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	reconciliation, err := c.reconciliationService.Approve(id, middleware.GetActor(r), &dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconciliation)
}

// Reject declines a pending reconciliation
func (c *ReconciliationController) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var dto services.ReviewDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	reconciliation, err := c.reconciliationService.Reject(id, middleware.GetActor(r), &dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconciliation)
}

// ListPending lists reconciliations awaiting review with a non-zero variance
func (c *ReconciliationController) ListPending(w http.ResponseWriter, r *http.Request) {
	reconciliations, err := c.reconciliationService.ListPendingWithVariance()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconciliations)
}

// CanCloseDay reports whether a day is free of unresolved cash variances
func (c *ReconciliationController) CanCloseDay(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be in YYYY-MM-DD format"})
			return
		}
		day = parsed
	}

	canClose, err := c.reconciliationService.CanCloseDay(day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canClose": canClose})
}
