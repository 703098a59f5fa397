package mfa

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRecordStore implements RecordStore with an in-memory map.
// Safe for concurrent use. Primarily used in tests and single-process
// deployments; production deployments use DynamoDBRecordStore.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryRecordStore creates an empty MemoryRecordStore.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]*Record),
	}
}

// Create stores a new record with Version 1.
func (s *MemoryRecordStore) Create(_ context.Context, rec *Record) error {
	if rec.UserID == "" {
		return fmt.Errorf("record missing user id")
	}
	if !rec.Status.IsValid() {
		return fmt.Errorf("invalid status %q", rec.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.UserID]; ok {
		return fmt.Errorf("%s: %w", rec.UserID, ErrRecordExists)
	}

	clone := cloneRecord(rec)
	clone.Version = 1
	clone.UpdatedAt = time.Now()
	s.records[rec.UserID] = clone
	rec.Version = clone.Version
	rec.UpdatedAt = clone.UpdatedAt
	return nil
}

// Get retrieves the record for a user.
func (s *MemoryRecordStore) Get(_ context.Context, userID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", userID, ErrRecordNotFound)
	}
	return cloneRecord(stored), nil
}

// Update writes a modified record under an optimistic version check.
func (s *MemoryRecordStore) Update(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.UserID]
	if !ok {
		return fmt.Errorf("%s: %w", rec.UserID, ErrRecordNotFound)
	}
	if stored.Version != rec.Version {
		return fmt.Errorf("%s: %w", rec.UserID, ErrConcurrentModification)
	}

	clone := cloneRecord(rec)
	clone.Version = rec.Version + 1
	clone.UpdatedAt = time.Now()
	s.records[rec.UserID] = clone
	rec.Version = clone.Version
	rec.UpdatedAt = clone.UpdatedAt
	return nil
}

// Delete removes a user's record. No-op if not exists (idempotent).
func (s *MemoryRecordStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

// cloneRecord deep-copies a record so callers never share backup code slices.
func cloneRecord(rec *Record) *Record {
	clone := *rec
	if rec.BackupCodes != nil {
		clone.BackupCodes = make([]BackupCode, len(rec.BackupCodes))
		copy(clone.BackupCodes, rec.BackupCodes)
	}
	if rec.LockedUntil != nil {
		t := *rec.LockedUntil
		clone.LockedUntil = &t
	}
	if rec.LastResetAt != nil {
		t := *rec.LastResetAt
		clone.LastResetAt = &t
	}
	return &clone
}
