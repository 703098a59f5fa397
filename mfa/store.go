package mfa

import (
	"context"
	"errors"
)

// Storage-related sentinel errors for RecordStore implementations.
var (
	// ErrRecordNotFound is returned when no OTP record exists for the user.
	ErrRecordNotFound = errors.New("otp record not found")

	// ErrRecordExists is returned when creating a record for a user that
	// already has one.
	ErrRecordExists = errors.New("otp record already exists")

	// ErrConcurrentModification is returned when an update loses an optimistic
	// version check - another process wrote the record between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// RecordStore defines the interface for OTP record persistence.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// Create stores a new record with Version 1.
	// Returns ErrRecordExists if the user already has a record.
	Create(ctx context.Context, rec *Record) error

	// Get retrieves the record for a user. Returns ErrRecordNotFound if none.
	Get(ctx context.Context, userID string) (*Record, error)

	// Update writes a modified record. The record's Version must hold the
	// value from the last read; it is the optimistic locking token. Returns
	// ErrConcurrentModification if the stored version differs, and
	// ErrRecordNotFound if the record does not exist. On success the store
	// increments rec.Version and sets rec.UpdatedAt to the write time.
	Update(ctx context.Context, rec *Record) error

	// Delete removes a user's record. No-op if not exists (idempotent).
	Delete(ctx context.Context, userID string) error
}
