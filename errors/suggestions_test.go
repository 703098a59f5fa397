package errors

import (
	"errors"
	"testing"
)

func TestGetSuggestion(t *testing.T) {
	if got := GetSuggestion(ErrCodeAccountLocked); got == "" {
		t.Error("ACCOUNT_LOCKED should have a suggestion")
	}
	if got := GetSuggestion("UNKNOWN_CODE"); got != "" {
		t.Errorf("unknown code should have empty suggestion, got %q", got)
	}
}

func TestWrapDynamoDBError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "table not found",
			err:      errors.New("ResourceNotFoundException: Requested resource not found"),
			wantCode: ErrCodeStoreTableNotFound,
		},
		{
			name:     "throttled",
			err:      errors.New("ProvisionedThroughputExceededException: rate exceeded"),
			wantCode: ErrCodeStoreThrottled,
		},
		{
			name:     "conditional check failed",
			err:      errors.New("ConditionalCheckFailedException: The conditional request failed"),
			wantCode: ErrCodeStoreConditionFailed,
		},
		{
			name:     "access denied",
			err:      errors.New("AccessDeniedException: user is not authorized to perform dynamodb:PutItem"),
			wantCode: ErrCodeStoreAccessDenied,
		},
		{
			name:     "unknown error falls back to access denied code",
			err:      errors.New("connection reset by peer"),
			wantCode: ErrCodeStoreAccessDenied,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			we := WrapDynamoDBError(tc.err, "warden-requests", "PutItem")
			if we.Code() != tc.wantCode {
				t.Errorf("Code() = %q, want %q", we.Code(), tc.wantCode)
			}
			if we.Context()["table"] != "warden-requests" {
				t.Errorf("context table = %q, want warden-requests", we.Context()["table"])
			}
			if we.Context()["operation"] != "PutItem" {
				t.Errorf("context operation = %q, want PutItem", we.Context()["operation"])
			}
			if !errors.Is(we, tc.err) {
				t.Error("wrapped error should unwrap to the original")
			}
		})
	}

	if WrapDynamoDBError(nil, "t", "op") != nil {
		t.Error("wrapping nil should return nil")
	}
}
