package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flowpay-ledger/internal/core/domain"
	"flowpay-ledger/internal/core/ports"
	"flowpay-ledger/internal/observability"
	"flowpay-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// defaultIdempotencyTTL bounds the Redis fast-path cache lifetime when the
// configuration does not set one. The PostgreSQL index stays authoritative
// regardless.
const defaultIdempotencyTTL = 24 * time.Hour

// transferTypes are the movement types accepted by Transfer.
var transferTypes = map[domain.TransactionType]bool{
	domain.TransactionTypeTransfer: true,
	domain.TransactionTypePix:      true,
	domain.TransactionTypeTed:      true,
	domain.TransactionTypeDoc:      true,
}

// TransactionServiceImpl implements ports.TransactionService. It is the only
// component that mutates balances: every operation runs inside one database
// transaction that locks the affected accounts, moves the money, appends the
// ledger entry and reserves the idempotency key together.
type TransactionServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	validator   ports.AccountValidator
	transactor  ports.DBTransactor
	fees        *FeeCalculator
	risk        *RiskScorer
	limits      *DailyLimitTracker
	notifier    ports.NotificationService
	metrics     *observability.Metrics
	idemTTL     time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewTransactionService creates a new TransactionServiceImpl. notifier and
// metrics may be nil; a zero idempotencyTTL falls back to the default.
func NewTransactionService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	validator ports.AccountValidator,
	transactor ports.DBTransactor,
	fees *FeeCalculator,
	risk *RiskScorer,
	limits *DailyLimitTracker,
	notifier ports.NotificationService,
	metrics *observability.Metrics,
	idempotencyTTL time.Duration,
	log zerolog.Logger,
) *TransactionServiceImpl {
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}
	return &TransactionServiceImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		validator:   validator,
		transactor:  transactor,
		fees:        fees,
		risk:        risk,
		limits:      limits,
		notifier:    notifier,
		metrics:     metrics,
		idemTTL:     idempotencyTTL,
		log:         log,
		now:         time.Now,
	}
}

// Deposit credits an account. The caller must own the account or be an
// administrator.
func (s *TransactionServiceImpl) Deposit(ctx context.Context, caller ports.Caller, req ports.DepositRequest) (*domain.Transaction, error) {
	started := s.now()

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.ErrInvalidAmount()
	}
	if replay, err := s.replayIdempotent(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.lockAccount(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(account.UserID) {
		return nil, apperror.ErrUnauthorized()
	}
	if err := s.validator.ValidateForTransaction(account); err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(req.Amount)

	now := s.now().UTC()
	txnID := uuid.New()
	txn := &domain.Transaction{
		ID:                   txnID,
		Hash:                 domain.NewContentHash(txnID, domain.TransactionTypeDeposit, req.Amount, now),
		IdempotencyKey:       req.IdempotencyKey,
		Type:                 domain.TransactionTypeDeposit,
		Amount:               req.Amount,
		Fee:                  decimal.Zero,
		Status:               domain.TransactionStatusCompleted,
		Description:          req.Description,
		DestinationAccountID: &req.AccountID,
		BalanceBefore:        account.Balance,
		BalanceAfter:         newBalance,
		RiskScore:            0, // credits are never risk scored
		CreatedAt:            now,
		ProcessedAt:          &now,
	}

	if err := s.accountRepo.UpdateBalance(ctx, dbTx, account.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	result, err := s.finalize(ctx, dbTx, txn, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result, started)
	return result, nil
}

// Withdraw debits an account. Subject to available balance and the daily
// debit limit.
func (s *TransactionServiceImpl) Withdraw(ctx context.Context, caller ports.Caller, req ports.WithdrawRequest) (*domain.Transaction, error) {
	started := s.now()

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.ErrInvalidAmount()
	}
	if replay, err := s.replayIdempotent(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	score, err := s.scoreDebit(ctx, req.AccountID, req.Amount, domain.TransactionTypeWithdrawal)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.lockAccount(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(account.UserID) {
		return nil, apperror.ErrUnauthorized()
	}
	if err := s.validator.ValidateForTransaction(account); err != nil {
		return nil, err
	}
	if account.AvailableBalance().LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientBalance()
	}

	// Checked under the row lock so a concurrent debit cannot slip usage
	// past the limit.
	exceeded, err := s.limits.WouldExceed(ctx, account, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("daily limit check: %w", err))
	}
	if exceeded {
		return nil, apperror.ErrDailyLimitExceeded()
	}

	newBalance := account.Balance.Sub(req.Amount)

	now := s.now().UTC()
	txnID := uuid.New()
	txn := &domain.Transaction{
		ID:              txnID,
		Hash:            domain.NewContentHash(txnID, domain.TransactionTypeWithdrawal, req.Amount, now),
		IdempotencyKey:  req.IdempotencyKey,
		Type:            domain.TransactionTypeWithdrawal,
		Amount:          req.Amount,
		Fee:             decimal.Zero,
		Status:          domain.TransactionStatusCompleted,
		Description:     req.Description,
		SourceAccountID: &req.AccountID,
		BalanceBefore:   account.Balance,
		BalanceAfter:    newBalance,
		RiskScore:       score,
		CreatedAt:       now,
		ProcessedAt:     &now,
	}

	if err := s.accountRepo.UpdateBalance(ctx, dbTx, account.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	result, err := s.finalize(ctx, dbTx, txn, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result, started)
	return result, nil
}

// Transfer moves money between two accounts (TRANSFER, PIX, TED or DOC).
// The fee, when any, is debited from the source together with the amount;
// the destination is credited the amount only. The daily limit binds the
// amount alone.
func (s *TransactionServiceImpl) Transfer(ctx context.Context, caller ports.Caller, req ports.TransferRequest) (*domain.Transaction, error) {
	started := s.now()

	if !transferTypes[req.Type] {
		return nil, apperror.ErrInvalidTransaction("transfer type must be TRANSFER, PIX, TED or DOC")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.SourceAccountID == req.DestinationAccountID {
		return nil, apperror.ErrInvalidTransaction("source and destination accounts must differ")
	}
	if replay, err := s.replayIdempotent(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	score, err := s.scoreDebit(ctx, req.SourceAccountID, req.Amount, req.Type)
	if err != nil {
		return nil, err
	}

	fee := s.fees.Calculate(req.Type, req.Amount)
	total := req.Amount.Add(fee)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	source, dest, err := s.lockPair(ctx, dbTx, req.SourceAccountID, req.DestinationAccountID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(source.UserID) {
		return nil, apperror.ErrUnauthorized()
	}
	if err := s.validator.ValidateForTransaction(source); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateForTransaction(dest); err != nil {
		return nil, err
	}
	if source.AvailableBalance().LessThan(total) {
		return nil, apperror.ErrInsufficientBalance()
	}

	// The fee is excluded from the limit: it caps what the holder moves,
	// not what the institution charges.
	exceeded, err := s.limits.WouldExceed(ctx, source, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("daily limit check: %w", err))
	}
	if exceeded {
		return nil, apperror.ErrDailyLimitExceeded()
	}

	newSourceBalance := source.Balance.Sub(total)
	newDestBalance := dest.Balance.Add(req.Amount)

	now := s.now().UTC()
	txnID := uuid.New()
	txn := &domain.Transaction{
		ID:                   txnID,
		Hash:                 domain.NewContentHash(txnID, req.Type, req.Amount, now),
		IdempotencyKey:       req.IdempotencyKey,
		Type:                 req.Type,
		Amount:               req.Amount,
		Fee:                  fee,
		Status:               domain.TransactionStatusCompleted,
		Description:          req.Description,
		SourceAccountID:      &req.SourceAccountID,
		DestinationAccountID: &req.DestinationAccountID,
		BalanceBefore:        source.Balance,
		BalanceAfter:         newSourceBalance,
		RiskScore:            score,
		CreatedAt:            now,
		ProcessedAt:          &now,
	}

	if err := s.accountRepo.UpdateBalance(ctx, dbTx, source.ID, newSourceBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update source balance: %w", err))
	}
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, dest.ID, newDestBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update destination balance: %w", err))
	}

	result, err := s.finalize(ctx, dbTx, txn, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result, started)
	return result, nil
}

// Reverse undoes a completed TRANSFER or PIX entry, at most once.
// Administrator only. The amount flows back from the original destination to
// the original source; the fee stays charged.
func (s *TransactionServiceImpl) Reverse(ctx context.Context, caller ports.Caller, transactionID uuid.UUID) (*domain.Transaction, error) {
	started := s.now()

	if !caller.Admin {
		return nil, apperror.ErrUnauthorized()
	}

	original, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get original transaction: %w", err))
	}
	if original == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if !original.CanBeReversed() {
		return nil, apperror.ErrInvalidTransaction("transaction cannot be reversed")
	}
	if original.SourceAccountID == nil || original.DestinationAccountID == nil {
		return nil, apperror.ErrInvalidTransaction("transaction cannot be reversed")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	origSource, origDest, err := s.lockPair(ctx, dbTx, *original.SourceAccountID, *original.DestinationAccountID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateForTransaction(origSource); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateForTransaction(origDest); err != nil {
		return nil, err
	}
	// The destination gives the money back; it must still have it.
	if origDest.AvailableBalance().LessThan(original.Amount) {
		return nil, apperror.ErrInsufficientBalance()
	}

	now := s.now().UTC()
	reversalID := uuid.New()

	// Conditional update: loses to a concurrent reversal of the same entry.
	if err := s.txRepo.MarkReversed(ctx, dbTx, original.ID, reversalID); err != nil {
		if errors.Is(err, domain.ErrAlreadyReversed) {
			return nil, apperror.ErrInvalidTransaction("transaction cannot be reversed")
		}
		return nil, apperror.InternalError(fmt.Errorf("mark reversed: %w", err))
	}

	newDestBalance := origDest.Balance.Sub(original.Amount)
	newSourceBalance := origSource.Balance.Add(original.Amount)

	txn := &domain.Transaction{
		ID:                   reversalID,
		Hash:                 domain.NewContentHash(reversalID, domain.TransactionTypeReversal, original.Amount, now),
		Type:                 domain.TransactionTypeReversal,
		Amount:               original.Amount,
		Fee:                  decimal.Zero,
		Status:               domain.TransactionStatusCompleted,
		Description:          "Reversal of " + original.ID.String(),
		SourceAccountID:      original.DestinationAccountID,
		DestinationAccountID: original.SourceAccountID,
		BalanceBefore:        origDest.Balance,
		BalanceAfter:         newDestBalance,
		CreatedAt:            now,
		ProcessedAt:          &now,
	}

	if err := s.accountRepo.UpdateBalance(ctx, dbTx, origDest.ID, newDestBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update destination balance: %w", err))
	}
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, origSource.ID, newSourceBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update source balance: %w", err))
	}

	result, err := s.finalize(ctx, dbTx, txn, nil)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tx_id", result.ID.String()).
		Str("original_tx_id", original.ID.String()).
		Str("amount", original.Amount.String()).
		Msg("transaction reversed")

	s.afterCommit(ctx, result, started)
	return result, nil
}

// GetTransaction fetches one ledger entry. Non-admin callers must own one of
// the involved accounts.
func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, caller ports.Caller, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if err := s.authorizeForEntry(ctx, caller, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ListAccountTransactions returns the account's statement, newest first.
func (s *TransactionServiceImpl) ListAccountTransactions(ctx context.Context, caller ports.Caller, params ports.HistoryParams) ([]domain.Transaction, int64, error) {
	account, err := s.accountRepo.GetByID(ctx, params.AccountID)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, 0, apperror.ErrAccountNotFound()
	}
	if !caller.CanAccess(account.UserID) {
		return nil, 0, apperror.ErrUnauthorized()
	}

	entries, total, err := s.txRepo.ListByAccount(ctx, params.Normalized())
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return entries, total, nil
}

// replayIdempotent answers a repeated request from the idempotency layers:
// Redis fast path first, then the authoritative PostgreSQL index.
func (s *TransactionServiceImpl) replayIdempotent(ctx context.Context, key *string) (*domain.Transaction, error) {
	if key == nil || *key == "" {
		return nil, nil
	}

	cached, err := s.idempCache.Get(ctx, *key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", *key).Msg("redis idempotency check failed, falling through to db")
	}
	if cached != nil {
		if s.metrics != nil {
			s.metrics.IncrIdempotentReplay("cache")
		}
		return unmarshalTransaction(cached)
	}

	record, err := s.idempRepo.Get(ctx, *key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if record != nil {
		if s.metrics != nil {
			s.metrics.IncrIdempotentReplay("index")
		}
		return unmarshalTransaction(record.ResponseJSON)
	}
	return nil, nil
}

// scoreDebit computes the advisory risk score for a debit, counting the
// source account's recent activity before any locks are taken.
func (s *TransactionServiceImpl) scoreDebit(ctx context.Context, sourceID uuid.UUID, amount decimal.Decimal, typ domain.TransactionType) (int, error) {
	at := s.now()
	recent, err := s.txRepo.CountRecentBySource(ctx, sourceID, at.Add(-s.risk.VelocityWindow()))
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("count recent transactions: %w", err))
	}
	return s.risk.Score(RiskInput{
		Amount:    amount,
		Type:      typ,
		RecentOps: recent,
		At:        at,
	}), nil
}

// lockAccount fetches one account under SELECT ... FOR UPDATE.
func (s *TransactionServiceImpl) lockAccount(ctx context.Context, dbTx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, s.mapLockError(err, "lock account")
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}

// lockPair locks two accounts in canonical order (ascending id bytes) so
// concurrent transfers over the same pair can never deadlock, then returns
// them in the order requested.
func (s *TransactionServiceImpl) lockPair(ctx context.Context, dbTx pgx.Tx, firstID, secondID uuid.UUID) (*domain.Account, *domain.Account, error) {
	lo, hi := firstID, secondID
	if bytes.Compare(hi[:], lo[:]) < 0 {
		lo, hi = hi, lo
	}

	loAcc, err := s.lockAccount(ctx, dbTx, lo)
	if err != nil {
		return nil, nil, err
	}
	hiAcc, err := s.lockAccount(ctx, dbTx, hi)
	if err != nil {
		return nil, nil, err
	}

	if lo == firstID {
		return loAcc, hiAcc, nil
	}
	return hiAcc, loAcc, nil
}

// finalize appends the ledger entry, reserves the idempotency key and
// commits. When the key was reserved first by a concurrent request, the
// unit is rolled back and the winner's entry is returned instead.
func (s *TransactionServiceImpl) finalize(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction, key *string) (*domain.Transaction, error) {
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		// A unique violation here means a concurrent request with the same
		// idempotency key got its entry in first.
		if errors.Is(err, domain.ErrDuplicateKey) && key != nil && *key != "" {
			return s.yieldToWinner(ctx, dbTx, *key)
		}
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	var respJSON []byte
	if key != nil && *key != "" {
		var err error
		respJSON, err = json.Marshal(txn)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		record := &domain.IdempotencyRecord{
			Key:           *key,
			TransactionID: txn.ID,
			ResponseJSON:  respJSON,
			CreatedAt:     txn.CreatedAt,
		}
		if err := s.idempRepo.Create(ctx, dbTx, record); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return s.yieldToWinner(ctx, dbTx, *key)
			}
			return nil, apperror.InternalError(fmt.Errorf("reserve idempotency key: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, s.mapLockError(err, "commit tx")
	}

	if respJSON != nil {
		if err := s.idempCache.Set(ctx, *key, respJSON, s.idemTTL); err != nil {
			s.log.Warn().Err(err).Str("key", *key).Msg("failed to cache idempotency record in redis")
		}
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("type", string(txn.Type)).
		Str("amount", txn.Amount.String()).
		Str("fee", txn.Fee.String()).
		Int("risk_score", txn.RiskScore).
		Msg("transaction completed")

	return txn, nil
}

// yieldToWinner handles the idempotency race: a concurrent request with the
// same key committed first, so this unit rolls back and the winner's entry
// becomes this request's response.
func (s *TransactionServiceImpl) yieldToWinner(ctx context.Context, dbTx pgx.Tx, key string) (*domain.Transaction, error) {
	_ = dbTx.Rollback(ctx)

	record, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fetch winning idempotency record: %w", err))
	}
	if record == nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency key %q reserved but record missing", key))
	}
	if s.metrics != nil {
		s.metrics.IncrIdempotentReplay("index")
	}
	return unmarshalTransaction(record.ResponseJSON)
}

// authorizeForEntry allows admins and owners of either involved account.
func (s *TransactionServiceImpl) authorizeForEntry(ctx context.Context, caller ports.Caller, txn *domain.Transaction) error {
	if caller.Admin {
		return nil
	}
	for _, accountID := range []*uuid.UUID{txn.SourceAccountID, txn.DestinationAccountID} {
		if accountID == nil {
			continue
		}
		account, err := s.accountRepo.GetByID(ctx, *accountID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get account: %w", err))
		}
		if account != nil && account.UserID == caller.UserID {
			return nil
		}
	}
	return apperror.ErrUnauthorized()
}

// mapLockError turns lock-timeout conditions into the retryable error.
func (s *TransactionServiceImpl) mapLockError(err error, op string) error {
	if errors.Is(err, domain.ErrLockNotAcquired) {
		if s.metrics != nil {
			s.metrics.IncrLockTimeout()
		}
		return apperror.ErrLockTimeout(err)
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}

// afterCommit runs the best-effort post-commit work: metrics and the
// external notification.
func (s *TransactionServiceImpl) afterCommit(ctx context.Context, txn *domain.Transaction, started time.Time) {
	if s.metrics != nil {
		s.metrics.RecordTransaction(string(txn.Type), string(txn.Status), s.now().Sub(started))
		s.metrics.ObserveRiskScore(txn.RiskScore)
	}
	if s.notifier != nil {
		s.notifier.NotifyTransaction(ctx, txn)
	}
}

// unmarshalTransaction deserializes a stored idempotency response.
func unmarshalTransaction(data []byte) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal stored transaction: %w", err))
	}
	return txn, nil
}
