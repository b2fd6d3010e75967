package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"flowpay-ledger/internal/core/domain"
	"flowpay-ledger/internal/core/ports"
	"flowpay-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBranch = "0001"

// AccountServiceImpl implements ports.AccountService and ports.AccountValidator.
// It manages account lifecycle and configuration but never touches balances;
// those belong to the transaction engine alone.
type AccountServiceImpl struct {
	accountRepo ports.AccountRepository
	log         zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(accountRepo ports.AccountRepository, log zerolog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{accountRepo: accountRepo, log: log}
}

// Open creates a new account with a zero balance and a generated number.
func (s *AccountServiceImpl) Open(ctx context.Context, caller ports.Caller, req ports.OpenAccountRequest) (*domain.Account, error) {
	if !caller.CanAccess(req.UserID) {
		return nil, apperror.ErrUnauthorized()
	}
	if req.Type != domain.AccountTypeChecking && req.Type != domain.AccountTypeSavings {
		return nil, apperror.Validation("account type must be CHECKING or SAVINGS")
	}

	limit := domain.DefaultDailyLimit
	if req.DailyLimit != nil {
		if req.DailyLimit.LessThanOrEqual(decimal.Zero) {
			return nil, apperror.Validation("daily limit must be greater than zero")
		}
		limit = *req.DailyLimit
	}

	number, err := generateAccountNumber()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate account number: %w", err))
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:             uuid.New(),
		UserID:         req.UserID,
		Number:         number,
		Branch:         defaultBranch,
		Type:           req.Type,
		Status:         domain.AccountStatusActive,
		Balance:        decimal.Zero,
		BlockedBalance: decimal.Zero,
		DailyLimit:     limit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("user_id", account.UserID.String()).
		Str("number", account.FormattedNumber()).
		Msg("account opened")

	return account, nil
}

// Get fetches an account. Non-admin callers can only see their own accounts.
func (s *AccountServiceImpl) Get(ctx context.Context, caller ports.Caller, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	if !caller.CanAccess(account.UserID) {
		return nil, apperror.ErrUnauthorized()
	}
	return account, nil
}

// UpdateStatus changes the account lifecycle state. Administrator only.
// Closing is terminal: a CLOSED account cannot be reopened.
func (s *AccountServiceImpl) UpdateStatus(ctx context.Context, caller ports.Caller, id uuid.UUID, status domain.AccountStatus) error {
	if !caller.Admin {
		return apperror.ErrUnauthorized()
	}
	switch status {
	case domain.AccountStatusActive, domain.AccountStatusBlocked,
		domain.AccountStatusClosed, domain.AccountStatusUnderReview:
	default:
		return apperror.Validation("unknown account status")
	}

	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return apperror.ErrAccountNotFound()
	}
	if account.Status == domain.AccountStatusClosed {
		return apperror.ErrAccountClosed()
	}

	if err := s.accountRepo.UpdateStatus(ctx, id, status); err != nil {
		return apperror.InternalError(fmt.Errorf("update status: %w", err))
	}

	s.log.Info().
		Str("account_id", id.String()).
		Str("from", string(account.Status)).
		Str("to", string(status)).
		Msg("account status changed")

	return nil
}

// UpdateDailyLimit changes the account's daily debit limit. Administrator only.
func (s *AccountServiceImpl) UpdateDailyLimit(ctx context.Context, caller ports.Caller, id uuid.UUID, limit decimal.Decimal) error {
	if !caller.Admin {
		return apperror.ErrUnauthorized()
	}
	if limit.LessThanOrEqual(decimal.Zero) {
		return apperror.Validation("daily limit must be greater than zero")
	}

	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return apperror.ErrAccountNotFound()
	}

	if err := s.accountRepo.UpdateDailyLimit(ctx, id, limit); err != nil {
		return apperror.InternalError(fmt.Errorf("update daily limit: %w", err))
	}

	s.log.Info().
		Str("account_id", id.String()).
		Str("limit", limit.String()).
		Msg("daily limit changed")

	return nil
}

// ValidateForTransaction checks that an account may take part in a money
// movement, returning the typed error matching its status when it may not.
func (s *AccountServiceImpl) ValidateForTransaction(account *domain.Account) error {
	if account == nil {
		return apperror.ErrAccountNotFound()
	}
	switch account.Status {
	case domain.AccountStatusActive:
		return nil
	case domain.AccountStatusBlocked:
		return apperror.ErrAccountBlocked()
	case domain.AccountStatusClosed:
		return apperror.ErrAccountClosed()
	case domain.AccountStatusUnderReview:
		return apperror.ErrAccountUnderReview()
	default:
		return apperror.ErrInvalidTransaction("account in unknown state")
	}
}

// generateAccountNumber produces an 8-digit account number.
func generateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}
