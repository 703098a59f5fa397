package logging

import (
	"time"

	"github.com/wardenhq/warden/iso8601"
)

// MFA event type constants for audit logging.
const (
	// MFAEventSetupInitiated is logged when a user starts enrollment.
	MFAEventSetupInitiated = "mfa.setup_initiated"
	// MFAEventSetupVerified is logged when enrollment completes.
	MFAEventSetupVerified = "mfa.setup_verified"
	// MFAEventLoginSuccess is logged on a successful OTP verification.
	MFAEventLoginSuccess = "mfa.login_success"
	// MFAEventLoginFailure is logged on a failed OTP verification.
	MFAEventLoginFailure = "mfa.login_failure"
	// MFAEventBackupCodeUsed is logged when a backup code is consumed.
	MFAEventBackupCodeUsed = "mfa.backup_code_used"
	// MFAEventLocked is logged when repeated failures lock an account.
	MFAEventLocked = "mfa.locked"
	// MFAEventReset is logged when an administrator resets enrollment.
	MFAEventReset = "mfa.reset"
)

// MFALogEntry captures all context for an MFA security event. The OTP code
// itself is never logged.
type MFALogEntry struct {
	Timestamp   string `json:"timestamp"`              // ISO8601 format
	Event       string `json:"event"`                  // "mfa.login_failure", "mfa.locked", etc.
	User        string `json:"user"`                   // Affected user
	Status      string `json:"status"`                 // Record status after the event
	FailCount   int    `json:"fail_count,omitempty"`   // Consecutive failures after the event
	LockedUntil string `json:"locked_until,omitempty"` // ISO8601 lock deadline (locked events)
	ResetBy     string `json:"reset_by,omitempty"`     // Administrator (reset events)
}

// NewMFALogEntry creates an MFALogEntry for the given event and user.
// Callers populate the optional fields that apply to the event type.
func NewMFALogEntry(event, user, status string) MFALogEntry {
	return MFALogEntry{
		Timestamp: iso8601.Format(time.Now()),
		Event:     event,
		User:      user,
		Status:    status,
	}
}

// WithLock returns a copy of the entry carrying the lock context.
func (e MFALogEntry) WithLock(failCount int, until time.Time) MFALogEntry {
	e.FailCount = failCount
	e.LockedUntil = iso8601.Format(until)
	return e
}

// WithReset returns a copy of the entry attributed to an administrator.
func (e MFALogEntry) WithReset(adminID string) MFALogEntry {
	e.ResetBy = adminID
	return e
}
