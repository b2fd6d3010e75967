package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may safely resubmit the same request
// (with the same idempotency key). Only lock timeouts qualify.
func (e *AppError) Retryable() bool {
	return e.Code == "SYS_002"
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound() *AppError {
	return New("ACC_001", "Account not found", http.StatusNotFound)
}

func ErrAccountBlocked() *AppError {
	return New("ACC_002", "Account is blocked", http.StatusForbidden)
}

func ErrAccountClosed() *AppError {
	return New("ACC_003", "Account is closed", http.StatusForbidden)
}

func ErrAccountUnderReview() *AppError {
	return New("ACC_004", "Account is under review", http.StatusForbidden)
}

// ---- Transactions (TXN) ----

func ErrInsufficientBalance() *AppError {
	return New("TXN_001", "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("TXN_002", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrDailyLimitExceeded() *AppError {
	return New("TXN_003", "Daily transaction limit exceeded", http.StatusUnprocessableEntity)
}

func ErrInvalidTransaction(message string) *AppError {
	return New("TXN_004", message, http.StatusBadRequest)
}

func ErrTransactionNotFound() *AppError {
	return New("TXN_005", "Transaction not found", http.StatusNotFound)
}

// ---- Authentication & authorization (AUTH) ----

func ErrUnauthorized() *AppError {
	return New("AUTH_001", "Access denied", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- System & infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrLockTimeout is the only retryable condition: the engine could not
// acquire the account lock(s) within the configured bound.
func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout, retry the request", http.StatusServiceUnavailable, err)
}

// Validation returns a TXN_002-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("TXN_002", message, http.StatusBadRequest)
}
