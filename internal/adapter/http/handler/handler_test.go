package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flowpay-ledger/internal/adapter/http/dto"
	"flowpay-ledger/internal/adapter/http/middleware"
	"flowpay-ledger/internal/core/domain"
	"flowpay-ledger/internal/core/ports"
	"flowpay-ledger/internal/core/ports/mocks"
	"flowpay-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strptr(s string) *string { return &s }

// decEq matches a decimal by value; DeepEqual is unreliable for decimals
// that took different paths through parsing.
func decEq(s string) gomock.Matcher {
	want := decimal.RequireFromString(s)
	return gomock.Cond(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func testContext(t *testing.T, method, target string, body []byte, caller *ports.Caller) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	if caller != nil {
		c.Set(middleware.CtxCaller, *caller)
	}
	return c, w
}

// --- Transaction Handler Tests ---

func TestDeposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mocks.NewMockTransactionService(ctrl)
	h := NewTransactionHandler(mockTx)

	userID := uuid.New()
	accountID := uuid.New()
	txID := uuid.New()
	now := time.Now()
	caller := ports.Caller{UserID: userID}

	mockTx.EXPECT().Deposit(gomock.Any(), caller, gomock.Cond(func(r ports.DepositRequest) bool {
		return r.AccountID == accountID &&
			r.Amount.Equal(dec("500.00")) &&
			r.IdempotencyKey != nil && *r.IdempotencyKey == "dep-001" &&
			r.Description == "payroll"
	})).Return(&domain.Transaction{
		ID:                   txID,
		Type:                 domain.TransactionTypeDeposit,
		Amount:               dec("500.00"),
		Fee:                  decimal.Zero,
		Status:               domain.TransactionStatusCompleted,
		Description:          "payroll",
		DestinationAccountID: &accountID,
		CreatedAt:            now,
		ProcessedAt:          &now,
	}, nil)

	body, _ := json.Marshal(dto.DepositRequest{
		AccountID:   accountID.String(),
		Amount:      dec("500.00"),
		Description: "payroll",
	})

	c, w := testContext(t, http.MethodPost, "/", body, &caller)
	c.Request.Header.Set(middleware.HeaderIdempotencyKey, "dep-001")

	h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, txID.String(), data["id"])
	assert.Equal(t, "DEPOSIT", data["type"])
	assert.Equal(t, "500.00", data["amount"])
	assert.Equal(t, "COMPLETED", data["status"])
	assert.NotEmpty(t, resp["request_id"])
}

func TestDeposit_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewTransactionHandler(mocks.NewMockTransactionService(ctrl))
	caller := ports.Caller{UserID: uuid.New()}

	c, w := testContext(t, http.MethodPost, "/", []byte("{}"), &caller)
	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeposit_MissingCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewTransactionHandler(mocks.NewMockTransactionService(ctrl))

	c, w := testContext(t, http.MethodPost, "/", []byte("{}"), nil)
	h.Deposit(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdraw_InsufficientBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mocks.NewMockTransactionService(ctrl)
	h := NewTransactionHandler(mockTx)
	caller := ports.Caller{UserID: uuid.New()}

	mockTx.EXPECT().Withdraw(gomock.Any(), caller, gomock.Any()).
		Return(nil, apperror.ErrInsufficientBalance())

	body, _ := json.Marshal(dto.WithdrawRequest{
		AccountID: uuid.New().String(),
		Amount:    dec("200.00"),
	})

	c, w := testContext(t, http.MethodPost, "/", body, &caller)
	h.Withdraw(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "TXN_001", resp["error_code"])
}

func TestTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mocks.NewMockTransactionService(ctrl)
	h := NewTransactionHandler(mockTx)

	sourceID := uuid.New()
	destID := uuid.New()
	caller := ports.Caller{UserID: uuid.New()}
	now := time.Now()

	mockTx.EXPECT().Transfer(gomock.Any(), caller, gomock.Cond(func(r ports.TransferRequest) bool {
		return r.SourceAccountID == sourceID &&
			r.DestinationAccountID == destID &&
			r.Amount.Equal(dec("100.00")) &&
			r.Type == domain.TransactionTypeTed &&
			r.IdempotencyKey == nil
	})).Return(&domain.Transaction{
		ID:                   uuid.New(),
		Type:                 domain.TransactionTypeTed,
		Amount:               dec("100.00"),
		Fee:                  dec("8.50"),
		Status:               domain.TransactionStatusCompleted,
		SourceAccountID:      &sourceID,
		DestinationAccountID: &destID,
		CreatedAt:            now,
		ProcessedAt:          &now,
	}, nil)

	body, _ := json.Marshal(dto.TransferRequest{
		SourceAccountID:      sourceID.String(),
		DestinationAccountID: destID.String(),
		Amount:               dec("100.00"),
		Type:                 "TED",
	})

	c, w := testContext(t, http.MethodPost, "/", body, &caller)
	h.Transfer(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "TED", data["type"])
	assert.Equal(t, "8.50", data["fee"])
	assert.Equal(t, sourceID.String(), data["source_account_id"])
	assert.Equal(t, destID.String(), data["destination_account_id"])
}

func TestTransfer_UnknownTypeRejectedByBinding(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewTransactionHandler(mocks.NewMockTransactionService(ctrl))
	caller := ports.Caller{UserID: uuid.New()}

	body, _ := json.Marshal(map[string]interface{}{
		"source_account_id":      uuid.New().String(),
		"destination_account_id": uuid.New().String(),
		"amount":                 "50.00",
		"type":                   "WIRE",
	})

	c, w := testContext(t, http.MethodPost, "/", body, &caller)
	h.Transfer(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReverse_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mocks.NewMockTransactionService(ctrl)
	h := NewTransactionHandler(mockTx)

	admin := ports.Caller{UserID: uuid.New(), Admin: true}
	origID := uuid.New()
	now := time.Now()

	mockTx.EXPECT().Reverse(gomock.Any(), admin, origID).Return(&domain.Transaction{
		ID:          uuid.New(),
		Type:        domain.TransactionTypeReversal,
		Amount:      dec("100.00"),
		Status:      domain.TransactionStatusCompleted,
		Description: "Reversal of " + origID.String(),
		CreatedAt:   now,
		ProcessedAt: &now,
	}, nil)

	c, w := testContext(t, http.MethodPost, "/", nil, &admin)
	c.Params = gin.Params{{Key: "id", Value: origID.String()}}

	h.Reverse(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "REVERSAL", data["type"])
}

func TestReverse_AlreadyReversed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mocks.NewMockTransactionService(ctrl)
	h := NewTransactionHandler(mockTx)

	admin := ports.Caller{UserID: uuid.New(), Admin: true}
	origID := uuid.New()

	mockTx.EXPECT().Reverse(gomock.Any(), admin, origID).
		Return(nil, apperror.ErrInvalidTransaction("transaction already reversed"))

	c, w := testContext(t, http.MethodPost, "/", nil, &admin)
	c.Params = gin.Params{{Key: "id", Value: origID.String()}}

	h.Reverse(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "TXN_004", resp["error_code"])
}

func TestGetTransaction_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mocks.NewMockTransactionService(ctrl)
	h := NewTransactionHandler(mockTx)
	caller := ports.Caller{UserID: uuid.New()}

	mockTx.EXPECT().GetTransaction(gomock.Any(), caller, gomock.Any()).
		Return(nil, apperror.ErrTransactionNotFound())

	c, w := testContext(t, http.MethodGet, "/", nil, &caller)
	c.Params = gin.Params{{Key: "id", Value: uuid.New().String()}}

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTransaction_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewTransactionHandler(mocks.NewMockTransactionService(ctrl))
	caller := ports.Caller{UserID: uuid.New()}

	c, w := testContext(t, http.MethodGet, "/", nil, &caller)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	h.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListByAccount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mocks.NewMockTransactionService(ctrl)
	h := NewTransactionHandler(mockTx)

	accountID := uuid.New()
	caller := ports.Caller{UserID: uuid.New()}
	now := time.Now()

	mockTx.EXPECT().ListAccountTransactions(gomock.Any(), caller, ports.HistoryParams{
		AccountID: accountID,
		Page:      1,
		PageSize:  20,
	}).Return([]domain.Transaction{
		{
			ID:                   uuid.New(),
			Type:                 domain.TransactionTypeDeposit,
			Amount:               dec("500.00"),
			Status:               domain.TransactionStatusCompleted,
			DestinationAccountID: &accountID,
			CreatedAt:            now,
		},
	}, int64(21), nil)

	c, w := testContext(t, http.MethodGet, "/?page=1&page_size=20", nil, &caller)
	c.Params = gin.Params{{Key: "id", Value: accountID.String()}}

	h.ListByAccount(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	assert.Len(t, items, 1)
	assert.Equal(t, float64(21), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
}

func TestListByAccount_EchoesNormalizedPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mocks.NewMockTransactionService(ctrl)
	h := NewTransactionHandler(mockTx)

	accountID := uuid.New()
	caller := ports.Caller{UserID: uuid.New()}

	mockTx.EXPECT().ListAccountTransactions(gomock.Any(), caller, ports.HistoryParams{
		AccountID: accountID,
		Page:      1,
		PageSize:  ports.MaxPageSize,
	}).Return([]domain.Transaction{}, int64(0), nil)

	// Out-of-range query values get clamped once, and the envelope reports
	// the values the service was given.
	c, w := testContext(t, http.MethodGet, "/?page=0&page_size=9999", nil, &caller)
	c.Params = gin.Params{{Key: "id", Value: accountID.String()}}

	h.ListByAccount(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["page"])
	assert.Equal(t, float64(ports.MaxPageSize), data["page_size"])
}

func TestListByAccount_InvalidFromTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewTransactionHandler(mocks.NewMockTransactionService(ctrl))
	caller := ports.Caller{UserID: uuid.New()}

	c, w := testContext(t, http.MethodGet, "/?from=yesterday", nil, &caller)
	c.Params = gin.Params{{Key: "id", Value: uuid.New().String()}}

	h.ListByAccount(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Account Handler Tests ---

func TestOpenAccount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAcc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAcc)

	userID := uuid.New()
	caller := ports.Caller{UserID: userID}
	accountID := uuid.New()

	mockAcc.EXPECT().Open(gomock.Any(), caller, gomock.Cond(func(r ports.OpenAccountRequest) bool {
		return r.UserID == userID && r.Type == domain.AccountTypeChecking
	})).Return(&domain.Account{
		ID:         accountID,
		UserID:     userID,
		Number:     "12345678",
		Branch:     "0001",
		Type:       domain.AccountTypeChecking,
		Status:     domain.AccountStatusActive,
		Balance:    decimal.Zero,
		DailyLimit: dec("5000.00"),
		CreatedAt:  time.Now(),
	}, nil)

	body, _ := json.Marshal(dto.OpenAccountRequest{Type: "CHECKING"})

	c, w := testContext(t, http.MethodPost, "/", body, &caller)
	h.Open(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, accountID.String(), data["id"])
	assert.Equal(t, "0001", data["branch"])
	assert.Equal(t, "5000.00", data["daily_limit"])
}

func TestOpenAccount_InvalidType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAccountHandler(mocks.NewMockAccountService(ctrl))
	caller := ports.Caller{UserID: uuid.New()}

	body, _ := json.Marshal(map[string]string{"type": "OFFSHORE"})

	c, w := testContext(t, http.MethodPost, "/", body, &caller)
	h.Open(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAccount_Forbidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAcc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAcc)
	caller := ports.Caller{UserID: uuid.New()}

	mockAcc.EXPECT().Get(gomock.Any(), caller, gomock.Any()).
		Return(nil, apperror.ErrUnauthorized())

	c, w := testContext(t, http.MethodGet, "/", nil, &caller)
	c.Params = gin.Params{{Key: "id", Value: uuid.New().String()}}

	h.Get(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AUTH_001", resp["error_code"])
}

func TestUpdateStatus_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAcc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAcc)

	admin := ports.Caller{UserID: uuid.New(), Admin: true}
	accountID := uuid.New()

	mockAcc.EXPECT().UpdateStatus(gomock.Any(), admin, accountID, domain.AccountStatusBlocked).Return(nil)

	body, _ := json.Marshal(dto.UpdateStatusRequest{Status: "BLOCKED"})

	c, w := testContext(t, http.MethodPut, "/", body, &admin)
	c.Params = gin.Params{{Key: "id", Value: accountID.String()}}

	h.UpdateStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateDailyLimit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAcc := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAcc)

	admin := ports.Caller{UserID: uuid.New(), Admin: true}
	accountID := uuid.New()

	mockAcc.EXPECT().UpdateDailyLimit(gomock.Any(), admin, accountID, decEq("10000.00")).Return(nil)

	body, _ := json.Marshal(dto.UpdateLimitRequest{DailyLimit: dec("10000.00")})

	c, w := testContext(t, http.MethodPut, "/", body, &admin)
	c.Params = gin.Params{{Key: "id", Value: accountID.String()}}

	h.UpdateDailyLimit(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Health Check Test ---

func TestHealthCheck_NoCheckers(t *testing.T) {
	c, w := testContext(t, http.MethodGet, "/health", nil, nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_UnhealthyDependency(t *testing.T) {
	c, w := testContext(t, http.MethodGet, "/health", nil, nil)

	HealthCheck(failingChecker{})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
}

type failingChecker struct{}

func (failingChecker) Ping(ctx context.Context) error { return errors.New("connection refused") }
func (failingChecker) Name() string                   { return "postgresql" }
