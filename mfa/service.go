package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/ratelimit"
	"github.com/wardenhq/warden/validate"
)

// casRetries bounds re-reads when an optimistic update loses a race.
const casRetries = 3

// EventSink receives security-relevant state transitions. Implementations
// forward them to notification or audit logging. A nil sink discards events.
type EventSink interface {
	// AccountLocked fires when consecutive failures lock a user's account.
	AccountLocked(userID string, until time.Time)

	// AccountReset fires when an administrator resets a user's enrollment.
	AccountReset(userID, adminID string)
}

// SetupInfo is returned by InitiateSetup. The secret and URL are shown to
// the user once; only the secret is persisted.
type SetupInfo struct {
	// Secret is the Base32-encoded shared secret.
	Secret string

	// ProvisioningURL is the otpauth:// URL for authenticator app enrollment.
	ProvisioningURL string
}

// Service drives the per-user OTP state machine over a RecordStore.
// Failure counting, lockout, and backup-code consumption are serialized per
// user through the store's version check: a lost race re-reads the record
// and re-applies the transition, so two simultaneous failing attempts cannot
// both observe failCount = max-1 and skip the lock.
type Service struct {
	store RecordStore
	cfg   Config
	now   func() time.Time

	// Limiter optionally throttles verification attempts per user before any
	// record is read. Nil disables throttling.
	Limiter ratelimit.Limiter

	// Events optionally receives lock and reset transitions. Nil discards.
	Events EventSink
}

// NewService creates a Service over the given store. Zero fields in cfg fall
// back to the package defaults.
func NewService(store RecordStore, cfg Config) *Service {
	return &Service{
		store: store,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

// WithClock replaces the service's time source. Used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Status returns the user's current state machine position.
// Users without a record are reported as not_setup. Lock expiry is applied
// to the reported status but not persisted until the next verification.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	if err := validate.ValidateID(userID); err != nil {
		return "", fmt.Errorf("user id: %w", err)
	}

	rec, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return StatusNotSetup, nil
	}
	if err != nil {
		return "", err
	}
	if rec.Status == StatusLocked && rec.LockedUntil != nil && !s.now().Before(*rec.LockedUntil) {
		return StatusEnabled, nil
	}
	return rec.Status, nil
}

// InitiateSetup starts enrollment for a user. Valid from not_setup (no
// record yet) or reset_required; moves the record to pending_setup with a
// fresh secret. Fails with ALREADY_ENABLED when the user is already enrolled.
func (s *Service) InitiateSetup(ctx context.Context, userID string) (*SetupInfo, error) {
	if err := validate.ValidateID(userID); err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}

	secret, err := NewSecret()
	if err != nil {
		return nil, err
	}
	info := &SetupInfo{
		Secret:          secret,
		ProvisioningURL: ProvisioningURL(secret, userID, s.cfg),
	}

	for attempt := 0; ; attempt++ {
		rec, err := s.store.Get(ctx, userID)
		if errors.Is(err, ErrRecordNotFound) {
			rec = &Record{
				UserID: userID,
				Secret: secret,
				Status: StatusPendingSetup,
			}
			err = s.store.Create(ctx, rec)
			if err == nil {
				return info, nil
			}
			if errors.Is(err, ErrRecordExists) && attempt < casRetries {
				continue // another process created the record first; re-read
			}
			return nil, fmt.Errorf("create otp record: %w", err)
		}
		if err != nil {
			return nil, err
		}

		switch rec.Status {
		case StatusEnabled, StatusLocked:
			return nil, wardenerrors.New(wardenerrors.ErrCodeAlreadyEnabled,
				fmt.Sprintf("user %s already has an active enrollment", userID),
				wardenerrors.GetSuggestion(wardenerrors.ErrCodeAlreadyEnabled), nil)
		case StatusNotSetup, StatusResetRequired, StatusPendingSetup:
			// Re-initiating from pending_setup rotates the secret; the
			// previous one was never verified.
		}

		rec.Secret = secret
		rec.Status = StatusPendingSetup
		rec.FailCount = 0
		rec.LockedUntil = nil
		rec.BackupCodes = nil

		err = s.store.Update(ctx, rec)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, ErrConcurrentModification) || attempt >= casRetries {
			return nil, fmt.Errorf("update otp record: %w", err)
		}
	}
}

// VerifySetup completes enrollment. Valid from pending_setup; on a correct
// code the record moves to enabled and freshly generated backup codes are
// returned in plaintext exactly once. A wrong code fails with INVALID_CODE
// and leaves the record unchanged.
func (s *Service) VerifySetup(ctx context.Context, userID, code string) ([]string, error) {
	if err := validate.ValidateID(userID); err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}

	for attempt := 0; ; attempt++ {
		rec, err := s.store.Get(ctx, userID)
		if errors.Is(err, ErrRecordNotFound) {
			return nil, setupNotPending(userID, StatusNotSetup)
		}
		if err != nil {
			return nil, err
		}
		if rec.Status != StatusPendingSetup {
			return nil, setupNotPending(userID, rec.Status)
		}

		if !verifyTOTP(rec.Secret, code, s.now(), s.cfg) {
			return nil, invalidCode(userID)
		}

		plain, hashed, err := generateBackupCodes(s.cfg.BackupCodeCount, s.cfg.BackupCodeLength)
		if err != nil {
			return nil, err
		}

		rec.Status = StatusEnabled
		rec.FailCount = 0
		rec.BackupCodes = hashed

		err = s.store.Update(ctx, rec)
		if err == nil {
			return plain, nil
		}
		if !errors.Is(err, ErrConcurrentModification) || attempt >= casRetries {
			return nil, fmt.Errorf("update otp record: %w", err)
		}
	}
}

// VerifyLogin checks a time-step code for an enabled user. Success resets
// the failure counter. Failure increments it; reaching the configured
// maximum locks the account for the lock duration. Calls against a live lock
// fail with ACCOUNT_LOCKED without consuming an attempt; once the lock has
// expired the record is lazily re-enabled and the attempt counts normally.
func (s *Service) VerifyLogin(ctx context.Context, userID, code string) error {
	return s.verify(ctx, userID, false, func(rec *Record) bool {
		return verifyTOTP(rec.Secret, code, s.now(), s.cfg)
	}, invalidCode)
}

// VerifyBackupCode checks a single-use backup code. Valid from enabled or
// locked; a match consumes the code and, when made against a locked record,
// clears the lock. A used or unknown code fails with INVALID_BACKUP_CODE and
// counts toward the failure counter identically to a bad time-step code.
func (s *Service) VerifyBackupCode(ctx context.Context, userID, code string) error {
	return s.verify(ctx, userID, true, func(rec *Record) bool {
		return consumeBackupCode(rec.BackupCodes, code, s.now())
	}, invalidBackupCode)
}

// verify runs the shared read-check-write loop for both code kinds.
// allowLocked lets backup codes through a live lock (a successful match
// clears it); time-step codes fail with ACCOUNT_LOCKED without consuming an
// attempt. match mutates the record on success for backup codes
// (consumption), so the success path always writes the record back.
func (s *Service) verify(ctx context.Context, userID string, allowLocked bool, match func(*Record) bool, failErr func(string) error) error {
	if err := validate.ValidateID(userID); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	if err := s.allowAttempt(ctx, userID); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		rec, err := s.store.Get(ctx, userID)
		if errors.Is(err, ErrRecordNotFound) {
			return notEnabled(userID)
		}
		if err != nil {
			return err
		}

		now := s.now()
		lockLive := false
		switch rec.Status {
		case StatusLocked:
			if rec.LockedUntil != nil && now.Before(*rec.LockedUntil) {
				if !allowLocked {
					return wardenerrors.New(wardenerrors.ErrCodeAccountLocked,
						fmt.Sprintf("account %s is locked until %s", userID, rec.LockedUntil.Format(time.RFC3339)),
						wardenerrors.GetSuggestion(wardenerrors.ErrCodeAccountLocked), nil)
				}
				lockLive = true
			} else {
				// Lock expired: lazily re-enable and evaluate normally.
				rec.Status = StatusEnabled
				rec.FailCount = 0
				rec.LockedUntil = nil
			}
		case StatusEnabled:
		default:
			return notEnabled(userID)
		}

		matched := match(rec)
		var locked bool
		if matched {
			rec.Status = StatusEnabled
			rec.FailCount = 0
			rec.LockedUntil = nil
		} else {
			rec.FailCount++
			if !lockLive && rec.FailCount >= s.cfg.MaxFailAttempts {
				until := now.Add(s.cfg.LockDuration)
				rec.Status = StatusLocked
				rec.LockedUntil = &until
				locked = true
			}
		}

		err = s.store.Update(ctx, rec)
		if err == nil {
			if locked && s.Events != nil {
				s.Events.AccountLocked(userID, *rec.LockedUntil)
			}
			if matched {
				return nil
			}
			return failErr(userID)
		}
		if !errors.Is(err, ErrConcurrentModification) || attempt >= casRetries {
			return fmt.Errorf("update otp record: %w", err)
		}
		// Lost the race against a concurrent attempt; re-read so the
		// failure counter and lock transition stay linearizable.
	}
}

// AdminReset clears a user's enrollment from any state. The secret and
// backup codes are discarded, the record moves to reset_required, and the
// acting administrator is recorded. Always succeeds for existing records.
func (s *Service) AdminReset(ctx context.Context, userID, adminID string) error {
	if err := validate.ValidateID(userID); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	if err := validate.ValidateID(adminID); err != nil {
		return fmt.Errorf("admin id: %w", err)
	}

	for attempt := 0; ; attempt++ {
		rec, err := s.store.Get(ctx, userID)
		if errors.Is(err, ErrRecordNotFound) {
			rec = &Record{UserID: userID, Status: StatusResetRequired}
			now := s.now()
			rec.LastResetAt = &now
			rec.LastResetBy = adminID
			err = s.store.Create(ctx, rec)
			if err == nil {
				s.notifyReset(userID, adminID)
				return nil
			}
			if errors.Is(err, ErrRecordExists) && attempt < casRetries {
				continue
			}
			return fmt.Errorf("create otp record: %w", err)
		}
		if err != nil {
			return err
		}

		now := s.now()
		rec.Secret = ""
		rec.Status = StatusResetRequired
		rec.FailCount = 0
		rec.LockedUntil = nil
		rec.BackupCodes = nil
		rec.LastResetAt = &now
		rec.LastResetBy = adminID

		err = s.store.Update(ctx, rec)
		if err == nil {
			s.notifyReset(userID, adminID)
			return nil
		}
		if !errors.Is(err, ErrConcurrentModification) || attempt >= casRetries {
			return fmt.Errorf("update otp record: %w", err)
		}
	}
}

// allowAttempt consults the optional rate limiter before a verification.
func (s *Service) allowAttempt(ctx context.Context, userID string) error {
	if s.Limiter == nil {
		return nil
	}
	allowed, retryAfter, err := s.Limiter.Allow(ctx, "mfa:"+userID)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		return wardenerrors.New(wardenerrors.ErrCodeTooManyAttempts,
			fmt.Sprintf("too many verification attempts for %s, retry after %s", userID, retryAfter),
			wardenerrors.GetSuggestion(wardenerrors.ErrCodeTooManyAttempts), nil)
	}
	return nil
}

func (s *Service) notifyReset(userID, adminID string) {
	if s.Events != nil {
		s.Events.AccountReset(userID, adminID)
	}
}

func setupNotPending(userID string, status Status) error {
	return wardenerrors.New(wardenerrors.ErrCodeSetupNotPending,
		fmt.Sprintf("user %s has no pending enrollment (status %s)", userID, status),
		wardenerrors.GetSuggestion(wardenerrors.ErrCodeSetupNotPending), nil)
}

func invalidCode(userID string) error {
	return wardenerrors.New(wardenerrors.ErrCodeInvalidCode,
		fmt.Sprintf("invalid verification code for %s", userID),
		wardenerrors.GetSuggestion(wardenerrors.ErrCodeInvalidCode), nil)
}

func invalidBackupCode(userID string) error {
	return wardenerrors.New(wardenerrors.ErrCodeInvalidBackupCode,
		fmt.Sprintf("invalid backup code for %s", userID),
		wardenerrors.GetSuggestion(wardenerrors.ErrCodeInvalidBackupCode), nil)
}

func notEnabled(userID string) error {
	return wardenerrors.New(wardenerrors.ErrCodeMFANotEnabled,
		fmt.Sprintf("user %s does not have verification enabled", userID),
		wardenerrors.GetSuggestion(wardenerrors.ErrCodeMFANotEnabled), nil)
}
