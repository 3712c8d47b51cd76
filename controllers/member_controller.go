package controllers

import (
	"net/http"

	"coopledger/middleware"
	"coopledger/models"
	"coopledger/services"
)

// MemberController handles member registration and savings endpoints
type MemberController struct {
	memberService  *services.MemberService
	savingsService *services.SavingsService
}

// NewMemberController creates a new MemberController
func NewMemberController(memberService *services.MemberService, savingsService *services.SavingsService) *MemberController {
	return &MemberController{
		memberService:  memberService,
		savingsService: savingsService,
	}
}

// Register creates a new member
func (c *MemberController) Register(w http.ResponseWriter, r *http.Request) {
	var dto services.MemberRegistrationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	member, err := c.memberService.Register(&dto, middleware.GetActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// Get returns one member
func (c *MemberController) Get(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	member, err := c.memberService.GetMember(memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// List returns members, optionally filtered by status
func (c *MemberController) List(w http.ResponseWriter, r *http.Request) {
	status := models.MemberStatus(r.URL.Query().Get("status"))

	members, err := c.memberService.ListMembers(status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// Deactivate marks a member inactive
func (c *MemberController) Deactivate(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	member, err := c.memberService.Deactivate(memberID, middleware.GetActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// Deposit credits a member's savings
func (c *MemberController) Deposit(w http.ResponseWriter, r *http.Request) {
	var dto services.SavingsOperationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	transaction, err := c.savingsService.Deposit(&dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transaction)
}

// Withdraw debits a member's savings
func (c *MemberController) Withdraw(w http.ResponseWriter, r *http.Request) {
	var dto services.SavingsOperationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	transaction, err := c.savingsService.Withdraw(&dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transaction)
}

// ShareDeposit increases a member's share capital
func (c *MemberController) ShareDeposit(w http.ResponseWriter, r *http.Request) {
	var dto services.SavingsOperationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	transaction, err := c.savingsService.ShareDeposit(&dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transaction)
}

// GetTransactions lists a member's savings history
func (c *MemberController) GetTransactions(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	transactions, err := c.savingsService.GetTransactions(memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}
