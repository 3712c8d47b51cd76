package controllers

import (
	"net/http"

	"coopledger/apperrors"
	"coopledger/middleware"
	"coopledger/models"
	"coopledger/services"
)

// PaymentController handles loan payment endpoints
type PaymentController struct {
	paymentService *services.PaymentService
}

// NewPaymentController creates a new PaymentController
func NewPaymentController(paymentService *services.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService}
}

// Record accepts a loan payment and allocates it
func (c *PaymentController) Record(w http.ResponseWriter, r *http.Request) {
	if !models.HasPermission(middleware.GetActor(r).Role, models.PermRecordPayment) {
		writeError(w, apperrors.Unauthorized("missing permission to record payments"))
		return
	}

	var dto services.PaymentDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	result, err := c.paymentService.AllocatePayment(&dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// RecordComposite accepts a bundled share deposit and loan payment
func (c *PaymentController) RecordComposite(w http.ResponseWriter, r *http.Request) {
	if !models.HasPermission(middleware.GetActor(r).Role, models.PermRecordPayment) {
		writeError(w, apperrors.Unauthorized("missing permission to record payments"))
		return
	}

	var dto services.CompositePaymentDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	result, err := c.paymentService.PayWithShareDeposit(&dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetLoanPayments lists one loan's payments
func (c *PaymentController) GetLoanPayments(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	payments, err := c.paymentService.GetLoanPayments(loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}
