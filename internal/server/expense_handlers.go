package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tripsplit/tripsplit/internal/apiresponse"
	"github.com/tripsplit/tripsplit/internal/expenses"
	"github.com/tripsplit/tripsplit/internal/ledger"
	"github.com/tripsplit/tripsplit/internal/models"
)

type CreateExpenseRequest struct {
	Description  string         `json:"description" binding:"required" validate:"max=200"`
	AmountCents  int64          `json:"amount_cents" binding:"required" validate:"gt=0,lte=100000000000"`
	Currency     string         `json:"currency" validate:"omitempty,currency"`
	PaidByID     string         `json:"paid_by_id"`
	SplitMethod  string         `json:"split_method" validate:"omitempty,oneof=equal exact"`
	Participants []string       `json:"participants"`
	Shares       []ledger.Share `json:"shares"`
	SpentAt      *time.Time     `json:"spent_at"`
}

// @Router /api/groups/{id}/expenses [get]
// @Param id path string true "Group ID"
// @Success 200 {object} apiresponse.Paginated[models.Expense]
func (s *Server) listExpenses(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	page := apiresponse.ParsePageRequest(c)

	list, total, err := s.expensesService.List(c.Request.Context(), c.Param("id"), sessionData.UserID, page.Offset(), page.Limit)
	if err != nil {
		s.respondServiceError(c, err, "list expenses")
		return
	}

	apiresponse.Page(c, "Expenses", list, page, total)
}

// @Router /api/groups/{id}/expenses [post]
// @Param id path string true "Group ID"
// @Param request body CreateExpenseRequest true "Create expense request"
// @Success 201 {object} models.Expense
func (s *Server) createExpense(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Invalid request body", err.Error())
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Validation failed", err.Error())
		return
	}

	params := expenses.CreateExpenseParams{
		GroupID:      c.Param("id"),
		ActorID:      sessionData.UserID,
		PaidByID:     req.PaidByID,
		Description:  req.Description,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		SplitMethod:  req.SplitMethod,
		Participants: req.Participants,
		Shares:       req.Shares,
	}
	if req.SpentAt != nil {
		params.SpentAt = req.SpentAt.UTC()
	}

	expense, err := s.expensesService.Create(c.Request.Context(), params)
	if err != nil {
		s.respondServiceError(c, err, "create expense")
		return
	}

	apiresponse.OK(c, http.StatusCreated, "Expense created", *expense)
}

// @Router /api/groups/{id}/expenses/{expenseId} [delete]
// @Param id path string true "Group ID"
// @Param expenseId path string true "Expense ID"
// @Success 200
func (s *Server) deleteExpense(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	if err := s.expensesService.Delete(c.Request.Context(), c.Param("id"), c.Param("expenseId"), sessionData.UserID); err != nil {
		s.respondServiceError(c, err, "delete expense")
		return
	}

	apiresponse.OK(c, http.StatusOK, "Expense deleted", gin.H{"id": c.Param("expenseId")})
}

// @Router /api/groups/{id}/balances [get]
// @Param id path string true "Group ID"
// @Success 200 {object} expenses.Summary
func (s *Server) getBalances(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	summary, err := s.expensesService.Balances(c.Request.Context(), c.Param("id"), sessionData.UserID)
	if err != nil {
		s.respondServiceError(c, err, "compute balances")
		return
	}

	apiresponse.OK(c, http.StatusOK, "Balances", *summary)
}

// @Router /api/groups/{id}/balances/history [get]
// @Param id path string true "Group ID"
// @Success 200 {object} apiresponse.Paginated[models.BalanceSnapshot]
func (s *Server) getBalanceHistory(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	page := apiresponse.ParsePageRequest(c)

	snapshots, total, err := s.expensesService.History(c.Request.Context(), c.Param("id"), sessionData.UserID, page.Offset(), page.Limit)
	if err != nil {
		s.respondServiceError(c, err, "list balance history")
		return
	}

	apiresponse.Page[models.BalanceSnapshot](c, "Balance history", snapshots, page, total)
}
