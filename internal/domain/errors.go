package domain

import "errors"

// Domain error values. Handlers and callers match these with errors.Is; the
// message strings are part of the API compatibility contract and must not
// change.
var (
	// ErrAccountNotFound is returned when a referenced account does not exist.
	ErrAccountNotFound = errors.New("Account not found.")

	// ErrRecurringTransactionNotFound is returned when a recurring transaction
	// rule cannot be resolved.
	ErrRecurringTransactionNotFound = errors.New("Recurring transaction not found.")

	// ErrRecurringTransferNotFound is returned when a recurring transfer rule
	// cannot be resolved.
	ErrRecurringTransferNotFound = errors.New("Recurring transfer not found.")

	// ErrAlreadyRealized is returned when an occurrence already has a realized
	// ledger transaction for its (rule, original instance date) key.
	ErrAlreadyRealized = errors.New("This instance has already been realized.")

	// ErrInstanceSkipped is returned when realization is attempted against an
	// occurrence that a skip exception excludes.
	ErrInstanceSkipped = errors.New("This instance has been skipped.")

	// ErrCategoryNotFound is returned when a referenced category does not exist.
	ErrCategoryNotFound = errors.New("Category not found.")
)

// ValidationError reports malformed construction parameters, such as a
// recurrence interval below 1 or a day-of-month outside 1-31.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
