package errors

import (
	"fmt"
	"strings"
)

// Suggestions contains default fix suggestions for each error code.
var Suggestions = map[string]string{
	ErrCodeNoApplicablePolicy: "No active policy covers this server for this role. " +
		"An administrator must create a policy before access can be granted.",
	ErrCodePolicyDenied: "Access denied by Warden policy.",
	ErrCodeInvalidPolicyPattern: "A command pattern in the matched policy is not a valid regular expression. " +
		"Run: warden policy lint <file> to locate it.",
	ErrCodeUnauthorizedApprover: "Your role is not in the approver set for this request's policy. " +
		"Ask a user holding one of the required roles to decide it.",
	ErrCodeAlreadyDecided: "The request has already reached a terminal state and cannot be re-decided.",
	ErrCodeRequestExpired: "The request expired before it was decided. Submit a new access request.",
	ErrCodeAccountLocked: "Too many failed verification attempts. " +
		"Wait for the lock to expire or use a backup code.",
	ErrCodeInvalidCode:       "The one-time code did not match. Check your authenticator app clock and retry.",
	ErrCodeInvalidBackupCode: "The backup code is unknown or was already used. Each backup code works exactly once.",
	ErrCodeAlreadyEnabled: "MFA is already enabled for this user. " +
		"Use an administrative reset to re-provision a new secret.",
	ErrCodeSetupNotPending: "MFA setup has not been initiated. Run setup first to generate a secret.",
	ErrCodeMFANotEnabled:   "MFA is not enabled for this user. Complete setup before verifying login codes.",
	ErrCodeTooManyAttempts: "Verification attempts are rate limited. Wait a moment and retry.",
	ErrCodeInvalidConfiguration: "The settings patch was rejected before persistence. " +
		"Check policy mode, role names, grace period range, and enforcement date format.",
	ErrCodeStoreAccessDenied: "Ensure your IAM policy includes DynamoDB permissions for the Warden tables.",
	ErrCodeStoreTableNotFound: "The DynamoDB table does not exist. " +
		"Create it with CloudFormation or Terraform before starting Warden.",
	ErrCodeStoreThrottled:       "DynamoDB throughput exceeded. Wait a moment and retry, or increase table capacity.",
	ErrCodeStoreConditionFailed: "The DynamoDB conditional check failed. The item may have been modified by another process.",
}

// GetSuggestion returns the default suggestion for an error code.
// Returns empty string if no suggestion is defined.
func GetSuggestion(code string) string {
	return Suggestions[code]
}

// WrapDynamoDBError examines a DynamoDB error and returns a WardenError with context.
func WrapDynamoDBError(err error, table, operation string) WardenError {
	if err == nil {
		return nil
	}

	var code string
	var message string

	errStr := strings.ToLower(err.Error())

	switch {
	case isTableNotFound(errStr):
		code = ErrCodeStoreTableNotFound
		message = fmt.Sprintf("DynamoDB table not found: %s", table)
	case isThrottled(errStr):
		code = ErrCodeStoreThrottled
		message = fmt.Sprintf("DynamoDB throttled during %s on table: %s", operation, table)
	case isConditionFailed(errStr):
		code = ErrCodeStoreConditionFailed
		message = fmt.Sprintf("DynamoDB conditional check failed during %s on table: %s", operation, table)
	case isAccessDenied(errStr):
		code = ErrCodeStoreAccessDenied
		message = fmt.Sprintf("Access denied to DynamoDB table: %s", table)
	default:
		code = ErrCodeStoreAccessDenied
		message = fmt.Sprintf("DynamoDB error during %s on table %s: %v", operation, table, err)
	}

	we := New(code, message, Suggestions[code], err)
	we = WithContext(we, "table", table)
	we = WithContext(we, "operation", operation)
	return we
}

// isAccessDenied checks if the error string indicates an access denied error.
func isAccessDenied(errStr string) bool {
	return strings.Contains(errStr, "accessdenied") ||
		strings.Contains(errStr, "access denied") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "not authorized")
}

// isThrottled checks if the error string indicates a throttling error.
func isThrottled(errStr string) bool {
	return strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "rate exceeded") ||
		strings.Contains(errStr, "provisionedthroughputexceeded")
}

// isTableNotFound checks if the error string indicates a missing table.
func isTableNotFound(errStr string) bool {
	return strings.Contains(errStr, "resourcenotfound") ||
		strings.Contains(errStr, "table not found") ||
		strings.Contains(errStr, "requested resource not found")
}

// isConditionFailed checks if the error string indicates a failed conditional write.
func isConditionFailed(errStr string) bool {
	return strings.Contains(errStr, "conditionalcheckfailed") ||
		strings.Contains(errStr, "conditional request failed")
}
