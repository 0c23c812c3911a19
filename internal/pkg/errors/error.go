package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict: resource already exists")
	ErrInternal     = errors.New("internal server error")
)

// Engine outcomes. These are expected results of entitlement, ledger and
// code operations, surfaced to the caller so it can pick an accurate
// message and HTTP status. They are never swallowed.
var (
	ErrInvalidTier             = errors.New("invalid tier")
	ErrUserNotFound            = errors.New("user not found")
	ErrInsufficientCredits     = errors.New("insufficient credits")
	ErrFeatureDisabled         = errors.New("feature not available for tier")
	ErrMonthlyLimitReached     = errors.New("monthly usage limit reached")
	ErrCodeNotFound            = errors.New("code not found")
	ErrCodeExpired             = errors.New("code has expired")
	ErrCodeExhausted           = errors.New("code has already been fully redeemed")
	ErrCodeInactive            = errors.New("code has been deactivated")
	ErrCodeAlreadyRedeemed     = errors.New("code already redeemed by this user")
	ErrDuplicateCodeGeneration = errors.New("failed to generate unique code")
	ErrConcurrencyTimeout      = errors.New("timed out waiting for row lock")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Retryable reports whether the caller may safely retry the operation as-is.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyTimeout)
}
