package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrTripNotFound          = errors.New("trip not found")
	ErrNoSeatsAvailable      = errors.New("no seats available")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrTransactionAborted    = errors.New("transaction aborted")
	ErrAccountNotFound       = errors.New("account not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotCancellable = errors.New("booking cannot be cancelled")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrForbidden             = errors.New("forbidden")
	ErrIdempotencyConflict   = errors.New("idempotency key already used for a different request")
)

// InsufficientFundsError carries the numbers behind a rejected debit.
type InsufficientFundsError struct {
	UserID    string
	Available decimal.Decimal
	Required  decimal.Decimal
	Shortfall decimal.Decimal
}

func NewInsufficientFundsError(userID string, available, required decimal.Decimal) *InsufficientFundsError {
	return &InsufficientFundsError{
		UserID:    userID,
		Available: available,
		Required:  required,
		Shortfall: required.Sub(available),
	}
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: available %s, required %s",
		e.UserID, e.Available.StringFixed(2), e.Required.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransactionAbortedError wraps an infrastructure failure that rolled the
// unit of work back. The same request may be retried.
type TransactionAbortedError struct {
	Op  string
	Err error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("%s: transaction aborted: %v", e.Op, e.Err)
}

func (e *TransactionAbortedError) Unwrap() error { return e.Err }

func (e *TransactionAbortedError) Is(target error) bool {
	return target == ErrTransactionAborted
}

var clientErrors = []error{
	ErrTripNotFound,
	ErrNoSeatsAvailable,
	ErrInsufficientFunds,
	ErrAccountNotFound,
	ErrBookingNotFound,
	ErrBookingNotCancellable,
	ErrInvalidRequest,
	ErrForbidden,
	ErrIdempotencyConflict,
}

// IsClientError reports whether err is a rejection caused by the request
// rather than by the infrastructure.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrTripNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrBookingNotFound)
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionAborted)
}

// classify leaves domain errors untouched and turns anything else coming out
// of a transaction, including context cancellation, into a
// TransactionAbortedError.
func classify(op string, err error) error {
	if err == nil || IsClientError(err) {
		return err
	}
	if errors.Is(err, ErrTransactionAborted) {
		return err
	}
	return &TransactionAbortedError{Op: op, Err: err}
}
