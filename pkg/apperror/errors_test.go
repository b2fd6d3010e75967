package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	e := ErrInsufficientBalance()
	assert.Equal(t, "[TXN_001] Insufficient available balance", e.Error())

	wrapped := InternalError(errors.New("boom"))
	assert.Contains(t, wrapped.Error(), "SYS_001")
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("deadlock detected")
	e := ErrLockTimeout(cause)
	assert.ErrorIs(t, e, cause)
}

func TestAppError_ErrorsAs(t *testing.T) {
	var appErr *AppError
	err := fmt.Errorf("handler: %w", ErrDailyLimitExceeded())
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TXN_003", appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
}

func TestAppError_Retryable(t *testing.T) {
	assert.True(t, ErrLockTimeout(nil).Retryable())
	assert.False(t, ErrInsufficientBalance().Retryable())
	assert.False(t, ErrUnauthorized().Retryable())
}

func TestTaxonomyStatusCodes(t *testing.T) {
	cases := map[string]struct {
		err    *AppError
		status int
	}{
		"account not found":    {ErrAccountNotFound(), http.StatusNotFound},
		"account blocked":      {ErrAccountBlocked(), http.StatusForbidden},
		"account closed":       {ErrAccountClosed(), http.StatusForbidden},
		"account under review": {ErrAccountUnderReview(), http.StatusForbidden},
		"insufficient balance": {ErrInsufficientBalance(), http.StatusPaymentRequired},
		"invalid amount":       {ErrInvalidAmount(), http.StatusBadRequest},
		"daily limit":          {ErrDailyLimitExceeded(), http.StatusUnprocessableEntity},
		"invalid transaction":  {ErrInvalidTransaction("same account"), http.StatusBadRequest},
		"unauthorized":         {ErrUnauthorized(), http.StatusForbidden},
		"invalid token":        {ErrInvalidToken(), http.StatusUnauthorized},
		"lock timeout":         {ErrLockTimeout(nil), http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus, name)
	}
}
