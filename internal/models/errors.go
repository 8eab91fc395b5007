package models

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to API clients. Conflicts detected at commit
// time due to races use the same codes as up-front detection, so callers
// cannot distinguish "lost the race" from "was never eligible".
const (
	ErrCodeAccountNotFound     = "account_not_found"
	ErrCodeCardUnavailable     = "card_unavailable"
	ErrCodePriceUnresolved     = "price_unresolved"
	ErrCodeInsufficientBalance = "insufficient_balance"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeInvalidPrice        = "invalid_price"
	ErrCodeUnknownTier         = "unknown_tier"
	ErrCodeInvalidCardField    = "invalid_card_field"
	ErrCodeDuplicateCard       = "duplicate_card"
	ErrCodeDuplicateUsername   = "duplicate_username"
	ErrCodeConflict            = "conflict"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeInternal            = "internal_error"
)

// StoreError is a business failure with a stable machine-checkable code and
// a human-readable message.
type StoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError with no underlying cause.
func NewStoreError(code, message string) *StoreError {
	return &StoreError{Code: code, Message: message}
}

// WrapStoreError attaches a cause to a coded failure.
func WrapStoreError(code, message string, err error) *StoreError {
	return &StoreError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the stable code from err, falling back to
// internal_error for anything that is not a StoreError.
func ErrorCode(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}
