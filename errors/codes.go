package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: store timeouts, temporary backend unavailability.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: invalid input, resource not found, permission denied.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	// Examples: corrupted rows, ledger writes lost after a commit.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for lifecycle engine failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout     ErrorCode = "TIMEOUT"     // Store call exceeded its deadline
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Store temporarily unreachable

	// Permanent errors
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"      // Missing or malformed field
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"          // Task or user absent, or soft-deleted
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"          // Caller not allowed to act on this task
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION" // Status edge not in the transition graph
	ErrCodeLeaseExpired      ErrorCode = "LEASE_EXPIRED"      // lockedAt deadline already passed
	ErrCodeConflict          ErrorCode = "CONFLICT"           // Lost a concurrent row update race
	ErrCodeInvalidCursor     ErrorCode = "INVALID_CURSOR"     // Malformed pagination token
	ErrCodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"     // Unique constraint violated
	ErrCodeCanceled          ErrorCode = "CANCELED"           // Caller canceled the operation

	// Internal errors
	ErrCodeInternal      ErrorCode = "INTERNAL"       // Unexpected internal error
	ErrCodePartialCommit ErrorCode = "PARTIAL_COMMIT" // Mutation committed but ledger append failed
	ErrCodeCorruption    ErrorCode = "CORRUPTION"     // Stored row failed to decode
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeUnavailable:
		return CategoryTransient

	case ErrCodeInvalidInput, ErrCodeNotFound, ErrCodeForbidden,
		ErrCodeInvalidTransition, ErrCodeLeaseExpired, ErrCodeConflict,
		ErrCodeInvalidCursor, ErrCodeAlreadyExists, ErrCodeCanceled:
		return CategoryPermanent

	case ErrCodeInternal, ErrCodePartialCommit, ErrCodeCorruption:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:           "store operation timed out",
	ErrCodeUnavailable:       "store temporarily unavailable",
	ErrCodeInvalidInput:      "invalid input provided",
	ErrCodeNotFound:          "resource not found",
	ErrCodeForbidden:         "access denied",
	ErrCodeInvalidTransition: "status transition not allowed",
	ErrCodeLeaseExpired:      "task lease has expired",
	ErrCodeConflict:          "conflicting concurrent update",
	ErrCodeInvalidCursor:     "malformed pagination cursor",
	ErrCodeAlreadyExists:     "resource already exists",
	ErrCodeCanceled:          "operation canceled",
	ErrCodeInternal:          "internal error",
	ErrCodePartialCommit:     "mutation committed without history record",
	ErrCodeCorruption:        "stored data failed to decode",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
