package dto

import (
	"github.com/shopspring/decimal"
)

// OpenAccountRequest is the request body for opening an account.
// UserID may only be set by an administrator opening an account for
// someone else; everyone else opens accounts for themselves.
type OpenAccountRequest struct {
	UserID     *string          `json:"user_id,omitempty" binding:"omitempty,uuid"`
	Type       string           `json:"type" binding:"required,oneof=CHECKING SAVINGS"`
	DailyLimit *decimal.Decimal `json:"daily_limit,omitempty"`
}

// UpdateStatusRequest is the request body for an account status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE BLOCKED CLOSED UNDER_REVIEW"`
}

// UpdateLimitRequest is the request body for a daily limit change.
type UpdateLimitRequest struct {
	DailyLimit decimal.Decimal `json:"daily_limit" binding:"required"`
}

// DepositRequest is the request body for a deposit.
type DepositRequest struct {
	AccountID   string          `json:"account_id" binding:"required,uuid"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description" binding:"max=255"`
}

// WithdrawRequest is the request body for a withdrawal.
type WithdrawRequest struct {
	AccountID   string          `json:"account_id" binding:"required,uuid"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description" binding:"max=255"`
}

// TransferRequest is the request body for a transfer-like movement.
type TransferRequest struct {
	SourceAccountID      string          `json:"source_account_id" binding:"required,uuid"`
	DestinationAccountID string          `json:"destination_account_id" binding:"required,uuid"`
	Amount               decimal.Decimal `json:"amount" binding:"required"`
	Type                 string          `json:"type" binding:"required,oneof=TRANSFER PIX TED DOC"`
	Description          string          `json:"description" binding:"max=255"`
}

// HistoryQuery carries the query parameters for transaction history.
// From and To are RFC3339 timestamps.
type HistoryQuery struct {
	From     string `form:"from" binding:"omitempty"`
	To       string `form:"to" binding:"omitempty"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// AccountResponse is the response body for account queries.
type AccountResponse struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Number           string          `json:"number"`
	Branch           string          `json:"branch"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	Balance          decimal.Decimal `json:"balance"`
	BlockedBalance   decimal.Decimal `json:"blocked_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	DailyLimit       decimal.Decimal `json:"daily_limit"`
	CreatedAt        string          `json:"created_at"`
}

// TransactionResponse is the response body for ledger entries.
type TransactionResponse struct {
	ID                   string          `json:"id"`
	Type                 string          `json:"type"`
	Amount               decimal.Decimal `json:"amount"`
	Fee                  decimal.Decimal `json:"fee"`
	Status               string          `json:"status"`
	Description          string          `json:"description,omitempty"`
	SourceAccountID      *string         `json:"source_account_id,omitempty"`
	DestinationAccountID *string         `json:"destination_account_id,omitempty"`
	RiskScore            int             `json:"risk_score"`
	ReversedByID         *string         `json:"reversed_by_id,omitempty"`
	CreatedAt            string          `json:"created_at"`
	ProcessedAt          *string         `json:"processed_at,omitempty"`
}

// TransactionListResponse wraps a paginated transaction history.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}
