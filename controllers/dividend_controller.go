package controllers

import (
	"net/http"
	"strconv"

	"coopledger/middleware"
	"coopledger/services"

	"github.com/gorilla/mux"
)

// DividendController handles dividend calculation and distribution
type DividendController struct {
	dividendService *services.DividendService
}

// NewDividendController creates a new DividendController
func NewDividendController(dividendService *services.DividendService) *DividendController {
	return &DividendController{dividendService: dividendService}
}

// Calculate computes a fiscal year's distribution
func (c *DividendController) Calculate(w http.ResponseWriter, r *http.Request) {
	var dto services.DividendCalculationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	distribution, err := c.dividendService.Calculate(&dto, middleware.GetActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, distribution)
}

// Distribute pays a calculated distribution out
func (c *DividendController) Distribute(w http.ResponseWriter, r *http.Request) {
	year, ok := fiscalYearVar(w, r)
	if !ok {
		return
	}

	distribution, err := c.dividendService.Distribute(year, middleware.GetActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, distribution)
}

// Get returns one fiscal year's distribution with its recipients
func (c *DividendController) Get(w http.ResponseWriter, r *http.Request) {
	year, ok := fiscalYearVar(w, r)
	if !ok {
		return
	}

	distribution, err := c.dividendService.GetDistribution(year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, distribution)
}

// fiscalYearVar parses the year path variable
func fiscalYearVar(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid year"})
		return 0, false
	}
	return year, true
}
