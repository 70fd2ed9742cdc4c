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

// IsConflict reports whether the error is a benign state conflict
// ("someone else already completed this"); callers must not retry these.
func (e *AppError) IsConflict() bool {
	return e.HTTPStatus == http.StatusConflict
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

// ---- Escrow state machine (ESC) ----

func ErrOrderNotFound() *AppError {
	return New("ESC_001", "Order not found", http.StatusNotFound)
}

func ErrWalletNotFound() *AppError {
	return New("ESC_002", "Escrow wallet not found", http.StatusNotFound)
}

func ErrWalletAlreadyExists() *AppError {
	return New("ESC_003", "Escrow wallet already exists for this order", http.StatusConflict)
}

func ErrAlreadyReleased() *AppError {
	return New("ESC_004", "Escrow wallet already released", http.StatusConflict)
}

func ErrAlreadyRefunded() *AppError {
	return New("ESC_005", "Escrow wallet already refunded", http.StatusConflict)
}

func ErrNotLocked() *AppError {
	return New("ESC_006", "Escrow wallet is not in locked state", http.StatusConflict)
}

func ErrDisputeOpen() *AppError {
	return New("ESC_007", "An open dispute blocks release of this order", http.StatusConflict)
}

func ErrDisputeAlreadyExists() *AppError {
	return New("ESC_008", "A dispute already exists for this order", http.StatusConflict)
}

// ---- Payment verification (VER) ----

func ErrDepositNotFound() *AppError {
	return New("VER_001", "Escrow deposit not found", http.StatusNotFound)
}

func ErrDepositNotPending() *AppError {
	return New("VER_002", "Deposit is not awaiting approval", http.StatusConflict)
}

func ErrDuplicateTransactionCode() *AppError {
	return New("VER_003", "Transaction code already used on another order", http.StatusConflict)
}

func ErrDepositFlagged() *AppError {
	return New("VER_004", "Deposit failed verification and is flagged for review", http.StatusUnprocessableEntity)
}

func ErrDepositAlreadyExists() *AppError {
	return New("VER_005", "A deposit was already submitted for this order", http.StatusConflict)
}

// ---- Payouts & seller wallets (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_001", "Invalid amount", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("PAY_002", "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrSellerWalletNotFound() *AppError {
	return New("PAY_003", "Seller wallet not found", http.StatusNotFound)
}

func ErrProviderUnavailable(err error) *AppError {
	return Wrap("PAY_004", "Payment provider unavailable", http.StatusBadGateway, err)
}

func ErrProviderRejected(detail string) *AppError {
	return New("PAY_005", fmt.Sprintf("Payment provider rejected the request: %s", detail), http.StatusBadGateway)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidCronSecret() *AppError {
	return New("AUTH_003", "Invalid scheduler secret", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Validation & System ----

// Validation returns a 400 validation error with a caller-supplied message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
