package topup

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("topup: not found")
	ErrAlreadyExists = errors.New("topup: already exists")
	ErrInvalidInput  = errors.New("topup: invalid input")

	// Order errors
	ErrOrderNotFound      = errors.New("topup: order not found")
	ErrStateConflict      = errors.New("topup: order state conflict")
	ErrServiceUnavailable = errors.New("topup: not accepting orders")
	ErrNoSelection        = errors.New("topup: no plan selected")

	// Catalog errors
	ErrPlanNotFound = errors.New("topup: plan not found")

	// Ledger errors
	ErrCustomerNotFound   = errors.New("topup: customer not found")
	ErrReferralNotFound   = errors.New("topup: referral not found")
	ErrInsufficientCredit = errors.New("topup: insufficient credit")

	// Store errors
	ErrStoreNotReady     = errors.New("topup: store not ready")
	ErrStoreClosed       = errors.New("topup: store is closed")
	ErrTransactionFailed = errors.New("topup: transaction failed")
	ErrMigrationFailed   = errors.New("topup: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("topup: validation failed for %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match any ValidationError.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrReferralNotFound)
}

// IsStateConflict returns true if a transition lost a race or was attempted
// from a state the order is no longer in. Callers treat it as a no-op.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

// IsValidation returns true if the error is caused by malformed input.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidInput)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
