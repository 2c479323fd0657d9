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

// ---- Wallet (WAL) ----

func ErrNotFound(entity string) *AppError {
	return New("WAL_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrWalletExists() *AppError {
	return New("WAL_002", "Wallet already exists for this user and currency", http.StatusConflict)
}

func ErrInsufficientBalance() *AppError {
	return New("WAL_003", "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrCurrencyMismatch() *AppError {
	return New("WAL_004", "Wallets are denominated in different currencies", http.StatusUnprocessableEntity)
}

func ErrBalanceNotZero() *AppError {
	return New("WAL_005", "Wallet balance must be zero before deletion", http.StatusConflict)
}

func ErrInvalidAmount(message string) *AppError {
	return New("WAL_006", message, http.StatusBadRequest)
}

// ---- Exchange (EXG) ----

// CodeAlreadySettled identifies the terminal-transition conflict; callers
// racing a concurrent settlement branch on it.
const CodeAlreadySettled = "EXG_002"

func ErrInvalidCurrency() *AppError {
	return New("EXG_001", "Currency does not exist or is not active", http.StatusUnprocessableEntity)
}

func ErrAlreadySettled() *AppError {
	return New(CodeAlreadySettled, "Exchange is no longer pending", http.StatusConflict)
}

func ErrNotParticipant() *AppError {
	return New("EXG_003", "User is not a party to this exchange", http.StatusForbidden)
}

// ---- Market data (RATE) ----

func ErrRateUnavailable(err error) *AppError {
	return Wrap("RATE_001", "Exchange rate unavailable", http.StatusServiceUnavailable, err)
}

func ErrUnsupportedSymbol(symbol string) *AppError {
	return New("RATE_002", fmt.Sprintf("Symbol %s is not supported", symbol), http.StatusUnprocessableEntity)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrSettlementTimeout(err error) *AppError {
	return Wrap("SYS_002", "Settlement deadline exceeded", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a WAL_006-style validation error.
func Validation(message string) *AppError {
	return New("WAL_006", message, http.StatusBadRequest)
}
