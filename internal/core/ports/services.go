package ports

import (
	"context"
	"time"

	"flowpay-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Caller is the authenticated identity on whose behalf an engine call runs.
// It is passed explicitly into every operation; the engine holds no ambient
// security context.
type Caller struct {
	UserID uuid.UUID
	Admin  bool
}

// CanAccess reports whether the caller may act on resources owned by ownerID.
func (c Caller) CanAccess(ownerID uuid.UUID) bool {
	return c.Admin || c.UserID == ownerID
}

// TransactionService is the transaction engine: the only component allowed
// to mutate account balances, always inside one atomic unit that also
// appends the ledger entry and reserves the idempotency key.
type TransactionService interface {
	Deposit(ctx context.Context, caller Caller, req DepositRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, caller Caller, req WithdrawRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, caller Caller, req TransferRequest) (*domain.Transaction, error)
	// Reverse undoes a completed TRANSFER or PIX entry, at most once.
	// Administrator only. The fee is not refunded.
	Reverse(ctx context.Context, caller Caller, transactionID uuid.UUID) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, caller Caller, id uuid.UUID) (*domain.Transaction, error)
	ListAccountTransactions(ctx context.Context, caller Caller, params HistoryParams) ([]domain.Transaction, int64, error)
}

// DepositRequest holds validated input for a deposit.
type DepositRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey *string
	Description    string
}

// WithdrawRequest holds validated input for a withdrawal.
type WithdrawRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey *string
	Description    string
}

// TransferRequest holds validated input for a transfer-like movement
// (TRANSFER, PIX, TED or DOC).
type TransferRequest struct {
	SourceAccountID      uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               decimal.Decimal
	Type                 domain.TransactionType
	IdempotencyKey       *string
	Description          string
}

// AccountService owns account lifecycle and configuration. It never touches
// balances; that is the engine's exclusive right.
type AccountService interface {
	Open(ctx context.Context, caller Caller, req OpenAccountRequest) (*domain.Account, error)
	Get(ctx context.Context, caller Caller, id uuid.UUID) (*domain.Account, error)
	UpdateStatus(ctx context.Context, caller Caller, id uuid.UUID, status domain.AccountStatus) error
	UpdateDailyLimit(ctx context.Context, caller Caller, id uuid.UUID, limit decimal.Decimal) error
}

// OpenAccountRequest holds validated input for account opening.
type OpenAccountRequest struct {
	UserID     uuid.UUID
	Type       domain.AccountType
	DailyLimit *decimal.Decimal // nil = default limit
}

// AccountValidator checks that an account is eligible to take part in a
// transaction, returning the matching typed error when it is not.
type AccountValidator interface {
	ValidateForTransaction(account *domain.Account) error
}

// IdempotencyCache is the Redis fast path in front of the authoritative
// idempotency index. Best-effort: cache failures never fail a request.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TokenService issues and validates the caller-identity tokens the REST
// adapter translates into a Caller.
type TokenService interface {
	Generate(userID uuid.UUID, admin bool) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed token claims.
type TokenClaims struct {
	UserID uuid.UUID
	Admin  bool
}

// NotificationService delivers completed-entry notifications to an external
// collaborator. Delivery is best-effort and never affects the ledger.
type NotificationService interface {
	NotifyTransaction(ctx context.Context, transaction *domain.Transaction)
}
