package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowpay-ledger/internal/core/domain"
	"flowpay-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository over the append-only
// transactions table. Entries are inserted once; the only later write is
// setting reversed_by_id, guarded so it can happen at most once.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, hash, idempotency_key, type, amount, fee, status, description,
	source_account_id, destination_account_id, balance_before, balance_after,
	risk_score, reversed_by_id, failure_reason, created_at, processed_at`

// Create inserts a new ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, hash, idempotency_key, type, amount, fee, status, description,
		source_account_id, destination_account_id, balance_before, balance_after,
		risk_score, reversed_by_id, failure_reason, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Hash, t.IdempotencyKey, t.Type, t.Amount, t.Fee, t.Status, t.Description,
		t.SourceAccountID, t.DestinationAccountID, t.BalanceBefore, t.BalanceAfter,
		t.RiskScore, t.ReversedByID, t.FailureReason, t.CreatedAt, t.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", mapError(err))
	}
	return nil
}

// GetByID fetches a ledger entry by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey fetches the entry produced under the given key.
func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, key))
}

// MarkReversed sets the reversal link on the original entry. The IS NULL
// guard makes the link write-once: a second reversal attempt affects zero
// rows and gets domain.ErrAlreadyReversed.
func (r *TransactionRepo) MarkReversed(ctx context.Context, tx pgx.Tx, originalID, reversalID uuid.UUID) error {
	query := `UPDATE transactions SET reversed_by_id = $1 WHERE id = $2 AND reversed_by_id IS NULL`

	tag, err := tx.Exec(ctx, query, reversalID, originalID)
	if err != nil {
		return fmt.Errorf("mark transaction reversed: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyReversed
	}
	return nil
}

// SumCompletedDebits totals COMPLETED debit-type entries with the given
// source account inside [from, to). Fees are deliberately excluded.
func (r *TransactionRepo) SumCompletedDebits(ctx context.Context, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE source_account_id = $1 AND status = 'COMPLETED'
		AND type IN (` + debitTypeList() + `)
		AND created_at >= $2 AND created_at < $3`

	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, accountID, from, to).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum completed debits: %w", err)
	}
	return sum, nil
}

// CountRecentBySource counts entries the account originated at or after since.
func (r *TransactionRepo) CountRecentBySource(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE source_account_id = $1 AND created_at >= $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, accountID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent transactions: %w", err)
	}
	return count, nil
}

// ListByAccount fetches the account's statement (entries where it is source
// or destination) with filtering and pagination, newest first.
func (r *TransactionRepo) ListByAccount(ctx context.Context, params ports.HistoryParams) ([]domain.Transaction, int64, error) {
	conditions := []string{"(source_account_id = $1 OR destination_account_id = $1)"}
	args := []any{params.AccountID}
	argIdx := 2

	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.Hash, &t.IdempotencyKey, &t.Type, &t.Amount, &t.Fee, &t.Status, &t.Description,
			&t.SourceAccountID, &t.DestinationAccountID, &t.BalanceBefore, &t.BalanceAfter,
			&t.RiskScore, &t.ReversedByID, &t.FailureReason, &t.CreatedAt, &t.ProcessedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// debitTypeList renders the debit entry types as a SQL literal list.
func debitTypeList() string {
	types := domain.DebitTypes()
	quoted := make([]string, len(types))
	for i, t := range types {
		quoted[i] = "'" + string(t) + "'"
	}
	return strings.Join(quoted, ", ")
}

// scanTransaction is a helper to scan a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.Hash, &t.IdempotencyKey, &t.Type, &t.Amount, &t.Fee, &t.Status, &t.Description,
		&t.SourceAccountID, &t.DestinationAccountID, &t.BalanceBefore, &t.BalanceAfter,
		&t.RiskScore, &t.ReversedByID, &t.FailureReason, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
