package ports

import (
	"context"
	"time"

	"flowpay-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx run inside the engine's atomic unit and use
// row-level pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// GetByIDForUpdate fetches an account with SELECT ... FOR UPDATE.
	// Returns domain.ErrLockNotAcquired when the lock timeout elapses.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) error
	UpdateDailyLimit(ctx context.Context, id uuid.UUID, limit decimal.Decimal) error
}

// TransactionRepository defines persistence for the append-only ledger.
// There is deliberately no delete operation.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	// MarkReversed sets the reversal link on the original entry. Returns
	// domain.ErrAlreadyReversed if the link was already set.
	MarkReversed(ctx context.Context, tx pgx.Tx, originalID, reversalID uuid.UUID) error
	// SumCompletedDebits totals COMPLETED debit-type entries with the given
	// source account inside [from, to).
	SumCompletedDebits(ctx context.Context, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	// CountRecentBySource counts entries with the given source account
	// created at or after since.
	CountRecentBySource(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error)
	ListByAccount(ctx context.Context, params HistoryParams) ([]domain.Transaction, int64, error)
}

// Pagination bounds for the account statement query.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// HistoryParams holds filter + pagination for the account statement query.
type HistoryParams struct {
	AccountID uuid.UUID
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// Normalized returns a copy with Page and PageSize clamped to the bounds
// above. The service applies it before querying; callers that echo paging
// back use it to report the values actually used.
func (p HistoryParams) Normalized() HistoryParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// IdempotencyRepository is the authoritative idempotency index, backed by a
// uniqueness constraint. Create must run inside the atomic unit it guards
// and surface domain.ErrDuplicateKey on a constraint violation.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
