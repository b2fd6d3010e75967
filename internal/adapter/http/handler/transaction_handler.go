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

// TransactionHandler handles transaction engine endpoints.
type TransactionHandler struct {
	txSvc ports.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(txSvc ports.TransactionService) *TransactionHandler {
	return &TransactionHandler{txSvc: txSvc}
}

// Deposit handles POST /api/v1/transactions/deposit.
func (h *TransactionHandler) Deposit(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid account_id"))
		return
	}

	tx, err := h.txSvc.Deposit(c.Request.Context(), caller, ports.DepositRequest{
		AccountID:      accountID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(c),
		Description:    req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(tx))
}

// Withdraw handles POST /api/v1/transactions/withdrawal.
func (h *TransactionHandler) Withdraw(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid account_id"))
		return
	}

	tx, err := h.txSvc.Withdraw(c.Request.Context(), caller, ports.WithdrawRequest{
		AccountID:      accountID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(c),
		Description:    req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(tx))
}

// Transfer handles POST /api/v1/transactions/transfer.
func (h *TransactionHandler) Transfer(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	sourceID, err := uuid.Parse(req.SourceAccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid source_account_id"))
		return
	}
	destID, err := uuid.Parse(req.DestinationAccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid destination_account_id"))
		return
	}

	tx, err := h.txSvc.Transfer(c.Request.Context(), caller, ports.TransferRequest{
		SourceAccountID:      sourceID,
		DestinationAccountID: destID,
		Amount:               req.Amount,
		Type:                 domain.TransactionType(req.Type),
		IdempotencyKey:       idempotencyKey(c),
		Description:          req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(tx))
}

// Reverse handles POST /api/v1/transactions/:id/reverse (admin).
func (h *TransactionHandler) Reverse(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	tx, err := h.txSvc.Reverse(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(tx))
}

// Get handles GET /api/v1/transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	tx, err := h.txSvc.GetTransaction(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(tx))
}

// ListByAccount handles GET /api/v1/accounts/:id/transactions.
func (h *TransactionHandler) ListByAccount(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid account id"))
		return
	}

	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.HistoryParams{
		AccountID: accountID,
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
	if q.From != "" {
		from, err := time.Parse(time.RFC3339, q.From)
		if err != nil {
			response.Error(c, apperror.Validation("invalid from timestamp"))
			return
		}
		params.From = &from
	}
	if q.To != "" {
		to, err := time.Parse(time.RFC3339, q.To)
		if err != nil {
			response.Error(c, apperror.Validation("invalid to timestamp"))
			return
		}
		params.To = &to
	}

	// Normalize before the call so the envelope echoes the paging the
	// service actually used.
	params = params.Normalized()

	items, total, err := h.txSvc.ListAccountTransactions(c.Request.Context(), caller, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.TransactionListResponse{
		Items:      make([]dto.TransactionResponse, 0, len(items)),
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: int((total + int64(params.PageSize) - 1) / int64(params.PageSize)),
	}
	for i := range items {
		resp.Items = append(resp.Items, toTransactionResponse(&items[i]))
	}

	response.OK(c, resp)
}

// idempotencyKey extracts the Idempotency-Key header, nil when absent.
func idempotencyKey(c *gin.Context) *string {
	if key := c.GetHeader(middleware.HeaderIdempotencyKey); key != "" {
		return &key
	}
	return nil
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:          tx.ID.String(),
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Fee:         tx.Fee,
		Status:      string(tx.Status),
		Description: tx.Description,
		RiskScore:   tx.RiskScore,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.SourceAccountID != nil {
		s := tx.SourceAccountID.String()
		resp.SourceAccountID = &s
	}
	if tx.DestinationAccountID != nil {
		s := tx.DestinationAccountID.String()
		resp.DestinationAccountID = &s
	}
	if tx.ReversedByID != nil {
		s := tx.ReversedByID.String()
		resp.ReversedByID = &s
	}
	if tx.ProcessedAt != nil {
		s := tx.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}
