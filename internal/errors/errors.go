// Package errors provides custom error types for the minhasfinancas API.
// All service-layer and billing-engine errors should use AppError so that
// every rejection carries a stable code, an actionable message and the HTTP
// status the API answers with, without leaking internal details to clients.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError carrying the same code, so that
// errors.Is(err, ErrObligationNotFound) matches copies built by Wrap/WithMessage.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Category errors.
var (
	ErrCategoryNotFound  = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse     = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing obligations", StatusCode: http.StatusConflict}
	ErrDuplicateCategory = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name already exists", StatusCode: http.StatusConflict}
)

// Card errors.
var (
	ErrCardNotFound  = &AppError{Code: "CARD_NOT_FOUND", Message: "Card not found", StatusCode: http.StatusNotFound}
	ErrCardInUse     = &AppError{Code: "CARD_IN_USE", Message: "Card has purchases or statements; remove them first", StatusCode: http.StatusConflict}
	ErrDuplicateCard = &AppError{Code: "DUPLICATE_CARD", Message: "A card with this name already exists", StatusCode: http.StatusConflict}
)

// Obligation errors.
var (
	ErrObligationNotFound     = &AppError{Code: "OBLIGATION_NOT_FOUND", Message: "Obligation not found", StatusCode: http.StatusNotFound}
	ErrInvalidInstallmentPlan = &AppError{Code: "INVALID_INSTALLMENT_PLAN", Message: "Installment plans need total_installments and remaining_installments, both at least 1, with remaining not above total", StatusCode: http.StatusBadRequest}
	ErrAlreadyInSeries        = &AppError{Code: "ALREADY_IN_SERIES", Message: "Only a simple obligation can be converted into an installment plan or recurring series", StatusCode: http.StatusBadRequest}
	ErrNotInstallment         = &AppError{Code: "NOT_INSTALLMENT", Message: "Obligation is not part of an installment plan", StatusCode: http.StatusBadRequest}
	ErrCardPurchaseNotPayable = &AppError{Code: "CARD_PURCHASE_NOT_PAYABLE", Message: "Card purchases are settled through their statement; confirm the statement and pay its obligation instead", StatusCode: http.StatusConflict}
)

// Statement errors.
var (
	ErrStatementNotFound     = &AppError{Code: "STATEMENT_NOT_FOUND", Message: "Statement not found", StatusCode: http.StatusNotFound}
	ErrStatementNotConfirmed = &AppError{Code: "STATEMENT_NOT_CONFIRMED", Message: "The card statement is pending again; confirm it before recording its payment", StatusCode: http.StatusConflict}
)

// ErrConsistencyViolation signals that an internal invariant would be broken
// (a duplicate statement for one cycle, an installment index above its count).
// It is a defect to surface, never something to correct silently.
var ErrConsistencyViolation = &AppError{Code: "CONSISTENCY_VIOLATION", Message: "Records are inconsistent", StatusCode: http.StatusInternalServerError}

// ErrorKind classifies an error into the families callers can act on.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindConsistency ErrorKind = "consistency"
	KindInternal    ErrorKind = "internal"
)

// Kind reports which family err belongs to. Errors that are not an AppError
// are internal.
func Kind(err error) ErrorKind {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return KindInternal
	}
	if appErr.Code == ErrConsistencyViolation.Code {
		return KindConsistency
	}
	switch appErr.StatusCode {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	}
	return KindInternal
}
