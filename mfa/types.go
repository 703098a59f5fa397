// Package mfa implements Warden's per-user one-time-password lifecycle.
// It covers TOTP setup and verification (RFC 6238), failure counting with
// lockout, single-use backup codes, administrative reset, and the
// organization-wide enforcement gate.
//
// # OTP State Machine
//
// Valid state transitions:
//   - not_setup -> pending_setup (InitiateSetup)
//   - reset_required -> pending_setup (InitiateSetup)
//   - pending_setup -> enabled (VerifySetup)
//   - enabled -> locked (5th consecutive VerifyLogin failure)
//   - locked -> enabled (lock expiry, applied lazily; or backup code)
//   - any -> reset_required (AdminReset)
//
// All mutation goes through RecordStore with optimistic version checks, so
// concurrent verification attempts for one user serialize their
// read-modify-write of the failure counter.
package mfa

import (
	"time"
)

const (
	// DefaultDigits is the number of digits in a TOTP code.
	DefaultDigits = 6

	// DefaultPeriod is the TOTP time step.
	DefaultPeriod = 30 * time.Second

	// DefaultSkew is how many adjacent time steps are accepted for clock drift.
	DefaultSkew = 1

	// DefaultBackupCodeCount is how many backup codes are issued on setup.
	DefaultBackupCodeCount = 10

	// DefaultBackupCodeLength is the character length of each backup code.
	DefaultBackupCodeLength = 8

	// DefaultMaxFailAttempts is the consecutive failure count that locks an account.
	DefaultMaxFailAttempts = 5

	// DefaultLockDuration is how long a locked account stays locked.
	DefaultLockDuration = 15 * time.Minute
)

// Status represents the current state of a user's OTP record.
type Status string

const (
	// StatusNotSetup indicates the user has never enrolled.
	StatusNotSetup Status = "not_setup"
	// StatusPendingSetup indicates a secret was issued but not yet verified.
	StatusPendingSetup Status = "pending_setup"
	// StatusEnabled indicates OTP verification is active.
	StatusEnabled Status = "enabled"
	// StatusLocked indicates too many consecutive failures; locked until LockedUntil.
	StatusLocked Status = "locked"
	// StatusResetRequired indicates an administrator cleared the enrollment.
	StatusResetRequired Status = "reset_required"
)

// IsValid returns true if the Status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotSetup, StatusPendingSetup, StatusEnabled, StatusLocked, StatusResetRequired:
		return true
	}
	return false
}

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// BackupCode is a single-use fallback credential. Only the SHA-256 hash of
// the plaintext is persisted; the plaintext is shown to the user exactly once
// at generation time.
type BackupCode struct {
	// Hash is the lowercase hex SHA-256 of the plaintext code.
	Hash string `json:"hash"`

	// Used marks a consumed code. Consumed codes never validate again.
	Used bool `json:"used"`

	// UsedAt is when the code was consumed (nil while unused).
	UsedAt *time.Time `json:"used_at,omitempty"`
}

// Record is the persisted OTP state for one user.
type Record struct {
	// UserID is the owning user.
	UserID string `json:"user_id"`

	// Secret is the Base32-encoded shared TOTP secret. Empty until setup
	// is initiated and after an administrative reset.
	Secret string `json:"secret,omitempty"`

	// Status is the current state machine position.
	Status Status `json:"status"`

	// FailCount is the consecutive verification failure count. It resets to
	// zero whenever status transitions away from a fail-tracking state.
	FailCount int `json:"fail_count"`

	// LockedUntil is when a locked record unlocks (nil unless locked).
	LockedUntil *time.Time `json:"locked_until,omitempty"`

	// LastResetAt is when an administrator last reset this record.
	LastResetAt *time.Time `json:"last_reset_at,omitempty"`

	// LastResetBy is the administrator who performed the last reset.
	LastResetBy string `json:"last_reset_by,omitempty"`

	// BackupCodes holds the issued backup codes, hashes only.
	BackupCodes []BackupCode `json:"backup_codes,omitempty"`

	// Version is the optimistic locking token for RecordStore.Update.
	// It starts at 1 on create and increments on every successful write.
	Version int64 `json:"version"`

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// UnusedBackupCodes returns how many backup codes remain usable.
func (r *Record) UnusedBackupCodes() int {
	n := 0
	for _, c := range r.BackupCodes {
		if !c.Used {
			n++
		}
	}
	return n
}

// Config carries the tunable state-machine parameters. The zero value is
// usable; unset fields fall back to the package defaults.
type Config struct {
	// Issuer names the organization in provisioning URLs.
	Issuer string

	// Digits is the number of digits in a TOTP code.
	Digits int

	// Period is the TOTP time step.
	Period time.Duration

	// Skew is how many adjacent time steps are accepted.
	Skew int

	// BackupCodeCount is how many backup codes are issued on setup.
	BackupCodeCount int

	// BackupCodeLength is the character length of each backup code.
	BackupCodeLength int

	// MaxFailAttempts is the consecutive failure count that locks an account.
	MaxFailAttempts int

	// LockDuration is how long a locked account stays locked.
	LockDuration time.Duration
}

// withDefaults returns a copy of the config with unset fields filled in.
func (c Config) withDefaults() Config {
	if c.Issuer == "" {
		c.Issuer = "Warden"
	}
	if c.Digits == 0 {
		c.Digits = DefaultDigits
	}
	if c.Period == 0 {
		c.Period = DefaultPeriod
	}
	if c.Skew == 0 {
		c.Skew = DefaultSkew
	}
	if c.BackupCodeCount == 0 {
		c.BackupCodeCount = DefaultBackupCodeCount
	}
	if c.BackupCodeLength == 0 {
		c.BackupCodeLength = DefaultBackupCodeLength
	}
	if c.MaxFailAttempts == 0 {
		c.MaxFailAttempts = DefaultMaxFailAttempts
	}
	if c.LockDuration == 0 {
		c.LockDuration = DefaultLockDuration
	}
	return c
}
