package service

import (
	"context"
	"testing"

	"flowpay-ledger/internal/core/domain"
	"flowpay-ledger/internal/core/ports"
	"flowpay-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAccountService(t *testing.T) (*AccountServiceImpl, *mocks.MockAccountRepository, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	return NewAccountService(repo, zerolog.Nop()), repo, ctrl
}

func TestAccountService_Open_Success(t *testing.T) {
	svc, repo, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	var created *domain.Account
	repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, a *domain.Account) error {
		created = a
		return nil
	})

	account, err := svc.Open(ctx, ports.Caller{UserID: userID}, ports.OpenAccountRequest{
		UserID: userID,
		Type:   domain.AccountTypeChecking,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, domain.AccountStatusActive, account.Status)
	assert.True(t, account.Balance.IsZero())
	assert.True(t, account.DailyLimit.Equal(domain.DefaultDailyLimit))
	assert.Len(t, account.Number, 8)
	assert.Equal(t, "0001", account.Branch)
}

func TestAccountService_Open_CustomLimit(t *testing.T) {
	svc, repo, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	limit := decimal.RequireFromString("12000.00")

	repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	account, err := svc.Open(ctx, ports.Caller{UserID: userID}, ports.OpenAccountRequest{
		UserID:     userID,
		Type:       domain.AccountTypeSavings,
		DailyLimit: &limit,
	})
	require.NoError(t, err)
	assert.True(t, account.DailyLimit.Equal(limit))
}

func TestAccountService_Open_ForAnotherUser(t *testing.T) {
	svc, _, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	account, err := svc.Open(context.Background(), ports.Caller{UserID: uuid.New()}, ports.OpenAccountRequest{
		UserID: uuid.New(),
		Type:   domain.AccountTypeChecking,
	})
	assert.Nil(t, account)
	assertAppError(t, err, "AUTH_001")
}

func TestAccountService_Get_NotFound(t *testing.T) {
	svc, repo, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	repo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	account, err := svc.Get(ctx, ports.Caller{UserID: uuid.New(), Admin: true}, id)
	assert.Nil(t, account)
	assertAppError(t, err, "ACC_001")
}

func TestAccountService_Get_OtherUsersAccount(t *testing.T) {
	svc, repo, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	account := &domain.Account{ID: uuid.New(), UserID: uuid.New(), Status: domain.AccountStatusActive}
	repo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)

	result, err := svc.Get(ctx, ports.Caller{UserID: uuid.New()}, account.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "AUTH_001")
}

func TestAccountService_UpdateStatus_AdminOnly(t *testing.T) {
	svc, _, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	err := svc.UpdateStatus(context.Background(), ports.Caller{UserID: uuid.New()}, uuid.New(), domain.AccountStatusBlocked)
	assertAppError(t, err, "AUTH_001")
}

func TestAccountService_UpdateStatus_ClosedIsTerminal(t *testing.T) {
	svc, repo, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	account := &domain.Account{ID: uuid.New(), Status: domain.AccountStatusClosed}
	repo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)

	err := svc.UpdateStatus(ctx, ports.Caller{UserID: uuid.New(), Admin: true}, account.ID, domain.AccountStatusActive)
	assertAppError(t, err, "ACC_003")
}

func TestAccountService_UpdateDailyLimit(t *testing.T) {
	svc, repo, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	account := &domain.Account{ID: uuid.New(), Status: domain.AccountStatusActive}
	limit := decimal.RequireFromString("9000.00")

	repo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	repo.EXPECT().UpdateDailyLimit(ctx, account.ID, limit).Return(nil)

	err := svc.UpdateDailyLimit(ctx, ports.Caller{UserID: uuid.New(), Admin: true}, account.ID, limit)
	require.NoError(t, err)
}

func TestAccountService_UpdateDailyLimit_Invalid(t *testing.T) {
	svc, _, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	err := svc.UpdateDailyLimit(context.Background(), ports.Caller{Admin: true}, uuid.New(), decimal.Zero)
	assertAppError(t, err, "TXN_002")
}

func TestAccountService_ValidateForTransaction(t *testing.T) {
	svc, _, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	tests := []struct {
		status   domain.AccountStatus
		wantCode string
	}{
		{domain.AccountStatusActive, ""},
		{domain.AccountStatusBlocked, "ACC_002"},
		{domain.AccountStatusClosed, "ACC_003"},
		{domain.AccountStatusUnderReview, "ACC_004"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := svc.ValidateForTransaction(&domain.Account{Status: tt.status})
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assertAppError(t, err, tt.wantCode)
		})
	}
}

func TestAccountService_ValidateForTransaction_Nil(t *testing.T) {
	svc, _, ctrl := setupAccountService(t)
	defer ctrl.Finish()

	assertAppError(t, svc.ValidateForTransaction(nil), "ACC_001")
}
