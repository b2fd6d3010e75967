package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType represents the kind of bank account.
type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
)

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "ACTIVE"
	AccountStatusBlocked     AccountStatus = "BLOCKED"
	AccountStatusClosed      AccountStatus = "CLOSED"
	AccountStatusUnderReview AccountStatus = "UNDER_REVIEW"
)

// DefaultDailyLimit is applied to accounts opened without an explicit limit.
var DefaultDailyLimit = decimal.RequireFromString("5000.00")

// Account holds the mutable balance state for one customer account.
// Balance fields are mutated only by the transaction engine, inside the
// same database transaction that appends the matching ledger entry.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Number         string          `json:"number"`
	Branch         string          `json:"branch"`
	Type           AccountType     `json:"type"`
	Status         AccountStatus   `json:"status"`
	Balance        decimal.Decimal `json:"balance"`
	BlockedBalance decimal.Decimal `json:"blocked_balance"`
	DailyLimit     decimal.Decimal `json:"daily_limit"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AvailableBalance returns balance minus blocked balance, the amount
// usable for debits. Recomputed on every call, never cached.
func (a *Account) AvailableBalance() decimal.Decimal {
	return a.Balance.Sub(a.BlockedBalance)
}

// IsActive returns true if the account can take part in transactions.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// FormattedNumber returns the human-facing identifier (e.g. 0001/12345678).
func (a *Account) FormattedNumber() string {
	return a.Branch + "/" + a.Number
}
