package handler

import (
	"time"

	"flowpay-ledger/internal/adapter/http/dto"
	"flowpay-ledger/internal/adapter/http/middleware"
	"flowpay-ledger/internal/core/domain"
	"flowpay-ledger/internal/core/ports"
	"flowpay-ledger/pkg/apperror"
	"flowpay-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccountHandler handles account lifecycle endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// Open handles POST /api/v1/accounts.
func (h *AccountHandler) Open(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	userID := caller.UserID
	if req.UserID != nil {
		parsed, err := uuid.Parse(*req.UserID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid user_id"))
			return
		}
		userID = parsed
	}

	account, err := h.accountSvc.Open(c.Request.Context(), caller, ports.OpenAccountRequest{
		UserID:     userID,
		Type:       domain.AccountType(req.Type),
		DailyLimit: req.DailyLimit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toAccountResponse(account))
}

// Get handles GET /api/v1/accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid account id"))
		return
	}

	account, err := h.accountSvc.Get(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAccountResponse(account))
}

// UpdateStatus handles PUT /api/v1/accounts/:id/status (admin).
func (h *AccountHandler) UpdateStatus(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid account id"))
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.accountSvc.UpdateStatus(c.Request.Context(), caller, id, domain.AccountStatus(req.Status)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"id": id.String(), "status": req.Status})
}

// UpdateDailyLimit handles PUT /api/v1/accounts/:id/limit (admin).
func (h *AccountHandler) UpdateDailyLimit(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid account id"))
		return
	}

	var req dto.UpdateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.accountSvc.UpdateDailyLimit(c.Request.Context(), caller, id, req.DailyLimit); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"id": id.String(), "daily_limit": req.DailyLimit})
}

// toAccountResponse converts domain.Account to DTO.
func toAccountResponse(a *domain.Account) dto.AccountResponse {
	return dto.AccountResponse{
		ID:               a.ID.String(),
		UserID:           a.UserID.String(),
		Number:           a.Number,
		Branch:           a.Branch,
		Type:             string(a.Type),
		Status:           string(a.Status),
		Balance:          a.Balance,
		BlockedBalance:   a.BlockedBalance,
		AvailableBalance: a.AvailableBalance(),
		DailyLimit:       a.DailyLimit,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
}
