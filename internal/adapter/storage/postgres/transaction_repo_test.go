package postgres

import (
	"context"
	"testing"
	"time"

	"flowpay-ledger/internal/core/domain"
	"flowpay-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction() *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	sourceID := uuid.New()
	destID := uuid.New()
	key := "txn-key-001"
	txnID := uuid.New()
	return &domain.Transaction{
		ID:                   txnID,
		Hash:                 domain.NewContentHash(txnID, domain.TransactionTypeTransfer, decimal.RequireFromString("100.00"), now),
		IdempotencyKey:       &key,
		Type:                 domain.TransactionTypeTransfer,
		Amount:               decimal.RequireFromString("100.00"),
		Fee:                  decimal.Zero,
		Status:               domain.TransactionStatusCompleted,
		Description:          "test transfer",
		SourceAccountID:      &sourceID,
		DestinationAccountID: &destID,
		BalanceBefore:        decimal.RequireFromString("500.00"),
		BalanceAfter:         decimal.RequireFromString("400.00"),
		RiskScore:            5,
		CreatedAt:            now,
		ProcessedAt:          &now,
	}
}

func transactionColumnNames() []string {
	return []string{"id", "hash", "idempotency_key", "type", "amount", "fee", "status", "description",
		"source_account_id", "destination_account_id", "balance_before", "balance_after",
		"risk_score", "reversed_by_id", "failure_reason", "created_at", "processed_at"}
}

func transactionRow(t *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(transactionColumnNames()).AddRow(
		t.ID, t.Hash, t.IdempotencyKey, t.Type, t.Amount, t.Fee, t.Status, t.Description,
		t.SourceAccountID, t.DestinationAccountID, t.BalanceBefore, t.BalanceAfter,
		t.RiskScore, t.ReversedByID, t.FailureReason, t.CreatedAt, t.ProcessedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.Hash, txn.IdempotencyKey, txn.Type, txn.Amount, txn.Fee, txn.Status, txn.Description,
			txn.SourceAccountID, txn.DestinationAccountID, txn.BalanceBefore, txn.BalanceAfter,
			txn.RiskScore, txn.ReversedByID, txn.FailureReason, txn.CreatedAt, txn.ProcessedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(transactionRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.True(t, result.Amount.Equal(txn.Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(transactionColumnNames()))

	result, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_MarkReversed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	originalID := uuid.New()
	reversalID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET reversed_by_id").
		WithArgs(reversalID, originalID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkReversed(context.Background(), tx, originalID, reversalID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_MarkReversed_AlreadyReversed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET reversed_by_id").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkReversed(context.Background(), tx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumCompletedDebits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	accountID := uuid.New()
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM transactions").
		WithArgs(accountID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("4980.00")))

	sum, err := repo.SumCompletedDebits(context.Background(), accountID, from, to)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("4980.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_CountRecentBySource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	accountID := uuid.New()
	since := time.Now().Add(-5 * time.Minute)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE source_account_id").
		WithArgs(accountID, since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	count, err := repo.CountRecentBySource(context.Background(), accountID, since)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()
	accountID := *txn.SourceAccountID

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions").
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM transactions .+ ORDER BY created_at DESC").
		WithArgs(accountID, 20, 0).
		WillReturnRows(transactionRow(txn))

	result, total, err := repo.ListByAccount(context.Background(), ports.HistoryParams{
		AccountID: accountID,
		Page:      1,
		PageSize:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, result, 1)
	assert.Equal(t, txn.ID, result[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
