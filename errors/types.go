// Package errors provides structured error types with fix suggestions for Warden.
// These error types wrap underlying store and evaluation errors with stable
// error codes and actionable guidance on how to resolve common failures.
package errors

// WardenError provides additional context for error handling.
// It wraps underlying errors with error codes and actionable suggestions.
type WardenError interface {
	error
	Unwrap() error              // Original error
	Code() string               // Error code (e.g., "ACCOUNT_LOCKED")
	Suggestion() string         // Actionable fix suggestion
	Context() map[string]string // Additional context (user, policy, table, etc.)
}

// Policy evaluation error codes
const (
	ErrCodeNoApplicablePolicy   = "NO_APPLICABLE_POLICY"
	ErrCodePolicyDenied         = "POLICY_DENIED"
	ErrCodeInvalidPolicyPattern = "INVALID_POLICY_PATTERN"
)

// Approval workflow error codes
const (
	ErrCodeUnauthorizedApprover = "UNAUTHORIZED_APPROVER"
	ErrCodeAlreadyDecided       = "ALREADY_DECIDED"
	ErrCodeRequestExpired       = "REQUEST_EXPIRED"
)

// MFA error codes
const (
	ErrCodeAccountLocked     = "ACCOUNT_LOCKED"
	ErrCodeInvalidCode       = "INVALID_CODE"
	ErrCodeInvalidBackupCode = "INVALID_BACKUP_CODE"
	ErrCodeAlreadyEnabled    = "ALREADY_ENABLED"
	ErrCodeSetupNotPending   = "SETUP_NOT_PENDING"
	ErrCodeMFANotEnabled     = "MFA_NOT_ENABLED"
	ErrCodeTooManyAttempts   = "TOO_MANY_ATTEMPTS"
)

// Configuration error codes
const (
	ErrCodeInvalidConfiguration = "INVALID_CONFIGURATION"
)

// Store error codes
const (
	ErrCodeStoreAccessDenied    = "STORE_ACCESS_DENIED"
	ErrCodeStoreTableNotFound   = "STORE_TABLE_NOT_FOUND"
	ErrCodeStoreThrottled       = "STORE_THROTTLED"
	ErrCodeStoreConditionFailed = "STORE_CONDITION_FAILED"
)

// wardenError implements the WardenError interface.
type wardenError struct {
	code       string
	message    string
	suggestion string
	context    map[string]string
	cause      error
}

// Error implements the error interface.
func (e *wardenError) Error() string {
	return e.message
}

// Unwrap returns the underlying cause error.
func (e *wardenError) Unwrap() error {
	return e.cause
}

// Code returns the error code.
func (e *wardenError) Code() string {
	return e.code
}

// Suggestion returns the actionable fix suggestion.
func (e *wardenError) Suggestion() string {
	return e.suggestion
}

// Context returns additional context about the error.
func (e *wardenError) Context() map[string]string {
	return e.context
}

// New creates a new WardenError with the given code, message, suggestion, and cause.
func New(code, message, suggestion string, cause error) WardenError {
	return &wardenError{
		code:       code,
		message:    message,
		suggestion: suggestion,
		context:    make(map[string]string),
		cause:      cause,
	}
}

// WithContext adds context to an error and returns a new WardenError.
// The original error is not modified.
func WithContext(err WardenError, key, value string) WardenError {
	existingCtx := err.Context()
	newCtx := make(map[string]string, len(existingCtx)+1)
	for k, v := range existingCtx {
		newCtx[k] = v
	}
	newCtx[key] = value

	return &wardenError{
		code:       err.Code(),
		message:    err.Error(),
		suggestion: err.Suggestion(),
		context:    newCtx,
		cause:      err.Unwrap(),
	}
}

// IsWardenError checks if err is a WardenError and returns it.
// If err is nil or not a WardenError, returns (nil, false).
func IsWardenError(err error) (WardenError, bool) {
	if err == nil {
		return nil, false
	}
	if we, ok := err.(WardenError); ok {
		return we, true
	}
	return nil, false
}

// GetCode extracts the error code from an error.
// Returns empty string if err is not a WardenError.
func GetCode(err error) string {
	if we, ok := IsWardenError(err); ok {
		return we.Code()
	}
	return ""
}
