package mfa

import (
	"context"
	"strings"
	"testing"
	"time"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/ratelimit"
)

// serviceClock is a settable time source for service tests.
type serviceClock struct {
	current time.Time
}

func (c *serviceClock) now() time.Time { return c.current }

func (c *serviceClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestService(t *testing.T) (*Service, *MemoryRecordStore, *serviceClock) {
	t.Helper()
	store := NewMemoryRecordStore()
	clock := &serviceClock{current: time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)}
	svc := NewService(store, Config{Issuer: "WardenTest"}).WithClock(clock.now)
	return svc, store, clock
}

// enrollUser walks a user through setup and returns the secret and backup codes.
func enrollUser(t *testing.T, svc *Service, clock *serviceClock, userID string) (string, []string) {
	t.Helper()
	info, err := svc.InitiateSetup(context.Background(), userID)
	if err != nil {
		t.Fatalf("InitiateSetup: %v", err)
	}
	code := GenerateTOTPAtTime(info.Secret, clock.current, DefaultPeriod, DefaultDigits)
	backup, err := svc.VerifySetup(context.Background(), userID, code)
	if err != nil {
		t.Fatalf("VerifySetup: %v", err)
	}
	return info.Secret, backup
}

// failLogin performs one VerifyLogin with a code that cannot match.
func failLogin(t *testing.T, svc *Service, userID string) error {
	t.Helper()
	return svc.VerifyLogin(context.Background(), userID, "000000")
}

func TestService_SetupFlow(t *testing.T) {
	svc, _, clock := newTestService(t)

	status, err := svc.Status(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusNotSetup {
		t.Errorf("initial status = %v, want not_setup", status)
	}

	info, err := svc.InitiateSetup(context.Background(), "alice")
	if err != nil {
		t.Fatalf("InitiateSetup: %v", err)
	}
	if info.Secret == "" {
		t.Error("empty secret")
	}
	if !strings.HasPrefix(info.ProvisioningURL, "otpauth://totp/") {
		t.Errorf("ProvisioningURL = %q", info.ProvisioningURL)
	}

	status, _ = svc.Status(context.Background(), "alice")
	if status != StatusPendingSetup {
		t.Errorf("status after initiate = %v, want pending_setup", status)
	}

	code := GenerateTOTPAtTime(info.Secret, clock.current, DefaultPeriod, DefaultDigits)
	backup, err := svc.VerifySetup(context.Background(), "alice", code)
	if err != nil {
		t.Fatalf("VerifySetup: %v", err)
	}
	if len(backup) != DefaultBackupCodeCount {
		t.Errorf("backup code count = %d, want %d", len(backup), DefaultBackupCodeCount)
	}
	for _, c := range backup {
		if len(c) != DefaultBackupCodeLength {
			t.Errorf("backup code %q length = %d, want %d", c, len(c), DefaultBackupCodeLength)
		}
	}

	status, _ = svc.Status(context.Background(), "alice")
	if status != StatusEnabled {
		t.Errorf("status after verify = %v, want enabled", status)
	}
}

func TestService_InitiateSetupAlreadyEnabled(t *testing.T) {
	svc, _, clock := newTestService(t)
	enrollUser(t, svc, clock, "alice")

	_, err := svc.InitiateSetup(context.Background(), "alice")
	if wardenerrors.GetCode(err) != wardenerrors.ErrCodeAlreadyEnabled {
		t.Errorf("InitiateSetup on enabled = %v, want ALREADY_ENABLED", err)
	}
}

func TestService_VerifySetupWrongCode(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.InitiateSetup(context.Background(), "alice"); err != nil {
		t.Fatalf("InitiateSetup: %v", err)
	}

	_, err := svc.VerifySetup(context.Background(), "alice", "000000")
	if wardenerrors.GetCode(err) != wardenerrors.ErrCodeInvalidCode {
		t.Errorf("VerifySetup = %v, want INVALID_CODE", err)
	}

	// A wrong setup code does not change state; retry can still succeed.
	status, _ := svc.Status(context.Background(), "alice")
	if status != StatusPendingSetup {
		t.Errorf("status = %v, want pending_setup after failed setup code", status)
	}
}

func TestService_VerifySetupNotPending(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.VerifySetup(context.Background(), "nobody", "000000")
	if wardenerrors.GetCode(err) != wardenerrors.ErrCodeSetupNotPending {
		t.Errorf("VerifySetup without record = %v, want SETUP_NOT_PENDING", err)
	}
}

func TestService_VerifyLogin(t *testing.T) {
	svc, _, clock := newTestService(t)
	secret, _ := enrollUser(t, svc, clock, "alice")

	clock.advance(time.Minute)
	code := GenerateTOTPAtTime(secret, clock.current, DefaultPeriod, DefaultDigits)
	if err := svc.VerifyLogin(context.Background(), "alice", code); err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}

	if err := failLogin(t, svc, "alice"); wardenerrors.GetCode(err) != wardenerrors.ErrCodeInvalidCode {
		t.Errorf("bad code = %v, want INVALID_CODE", err)
	}

	// Success resets the counter.
	code = GenerateTOTPAtTime(secret, clock.current, DefaultPeriod, DefaultDigits)
	if err := svc.VerifyLogin(context.Background(), "alice", code); err != nil {
		t.Fatalf("VerifyLogin after failure: %v", err)
	}
}

func TestService_VerifyLoginNotEnabled(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := failLogin(t, svc, "nobody"); wardenerrors.GetCode(err) != wardenerrors.ErrCodeMFANotEnabled {
		t.Errorf("VerifyLogin without record = %v, want MFA_NOT_ENABLED", err)
	}
}

func TestService_LockAfterFiveFailures(t *testing.T) {
	svc, store, clock := newTestService(t)
	secret, _ := enrollUser(t, svc, clock, "alice")

	// Exactly five consecutive failures lock the account.
	for i := 0; i < DefaultMaxFailAttempts; i++ {
		err := failLogin(t, svc, "alice")
		if wardenerrors.GetCode(err) != wardenerrors.ErrCodeInvalidCode {
			t.Fatalf("failure %d = %v, want INVALID_CODE", i+1, err)
		}
	}

	rec, err := store.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != StatusLocked {
		t.Fatalf("status after 5 failures = %v, want locked", rec.Status)
	}
	if rec.LockedUntil == nil || !rec.LockedUntil.Equal(clock.current.Add(DefaultLockDuration)) {
		t.Errorf("LockedUntil = %v, want now + 15m", rec.LockedUntil)
	}

	// A 6th call before lockedUntil fails with ACCOUNT_LOCKED and does not
	// increment the counter - even with a correct code.
	code := GenerateTOTPAtTime(secret, clock.current, DefaultPeriod, DefaultDigits)
	err = svc.VerifyLogin(context.Background(), "alice", code)
	if wardenerrors.GetCode(err) != wardenerrors.ErrCodeAccountLocked {
		t.Fatalf("locked login = %v, want ACCOUNT_LOCKED", err)
	}
	rec, _ = store.Get(context.Background(), "alice")
	if rec.FailCount != DefaultMaxFailAttempts {
		t.Errorf("FailCount = %d, want unchanged %d", rec.FailCount, DefaultMaxFailAttempts)
	}

	// After lockedUntil the attempt is evaluated normally.
	clock.advance(DefaultLockDuration + time.Second)
	code = GenerateTOTPAtTime(secret, clock.current, DefaultPeriod, DefaultDigits)
	if err := svc.VerifyLogin(context.Background(), "alice", code); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	rec, _ = store.Get(context.Background(), "alice")
	if rec.Status != StatusEnabled || rec.FailCount != 0 || rec.LockedUntil != nil {
		t.Errorf("record after recovery = %+v", rec)
	}
}

func TestService_FailureAfterLockExpiryCountsNormally(t *testing.T) {
	svc, store, clock := newTestService(t)
	enrollUser(t, svc, clock, "alice")

	for i := 0; i < DefaultMaxFailAttempts; i++ {
		failLogin(t, svc, "alice")
	}
	clock.advance(DefaultLockDuration + time.Second)

	// A bad code after expiry counts from a fresh counter.
	if err := failLogin(t, svc, "alice"); wardenerrors.GetCode(err) != wardenerrors.ErrCodeInvalidCode {
		t.Fatalf("post-expiry failure = %v, want INVALID_CODE", err)
	}
	rec, _ := store.Get(context.Background(), "alice")
	if rec.Status != StatusEnabled {
		t.Errorf("status = %v, want enabled (counter restarted)", rec.Status)
	}
	if rec.FailCount != 1 {
		t.Errorf("FailCount = %d, want 1", rec.FailCount)
	}
}

func TestService_BackupCodeSingleUse(t *testing.T) {
	svc, _, clock := newTestService(t)
	_, backup := enrollUser(t, svc, clock, "alice")

	if err := svc.VerifyBackupCode(context.Background(), "alice", backup[0]); err != nil {
		t.Fatalf("VerifyBackupCode: %v", err)
	}

	// The same code fails on the second use even though it was valid before.
	err := svc.VerifyBackupCode(context.Background(), "alice", backup[0])
	if wardenerrors.GetCode(err) != wardenerrors.ErrCodeInvalidBackupCode {
		t.Errorf("second use = %v, want INVALID_BACKUP_CODE", err)
	}

	// Other codes are unaffected.
	if err := svc.VerifyBackupCode(context.Background(), "alice", backup[1]); err != nil {
		t.Errorf("sibling backup code: %v", err)
	}
}

func TestService_BackupCodeClearsLock(t *testing.T) {
	svc, store, clock := newTestService(t)
	_, backup := enrollUser(t, svc, clock, "alice")

	for i := 0; i < DefaultMaxFailAttempts; i++ {
		failLogin(t, svc, "alice")
	}
	rec, _ := store.Get(context.Background(), "alice")
	if rec.Status != StatusLocked {
		t.Fatalf("precondition: status = %v, want locked", rec.Status)
	}

	// A valid backup code works through a live lock and clears it.
	if err := svc.VerifyBackupCode(context.Background(), "alice", backup[0]); err != nil {
		t.Fatalf("VerifyBackupCode while locked: %v", err)
	}
	rec, _ = store.Get(context.Background(), "alice")
	if rec.Status != StatusEnabled || rec.FailCount != 0 || rec.LockedUntil != nil {
		t.Errorf("record after backup unlock = %+v", rec)
	}
}

func TestService_BadBackupCodeCountsTowardLock(t *testing.T) {
	svc, store, clock := newTestService(t)
	enrollUser(t, svc, clock, "alice")

	// Mix bad time-step codes and bad backup codes; both feed one counter.
	for i := 0; i < 3; i++ {
		failLogin(t, svc, "alice")
	}
	for i := 0; i < 2; i++ {
		err := svc.VerifyBackupCode(context.Background(), "alice", "WRONGCOD")
		if wardenerrors.GetCode(err) != wardenerrors.ErrCodeInvalidBackupCode {
			t.Fatalf("bad backup code = %v, want INVALID_BACKUP_CODE", err)
		}
	}

	rec, _ := store.Get(context.Background(), "alice")
	if rec.Status != StatusLocked {
		t.Errorf("status after 3 bad codes + 2 bad backup codes = %v, want locked", rec.Status)
	}
}

func TestService_AdminReset(t *testing.T) {
	svc, store, clock := newTestService(t)
	enrollUser(t, svc, clock, "alice")

	// Reset works from any state, here from locked.
	for i := 0; i < DefaultMaxFailAttempts; i++ {
		failLogin(t, svc, "alice")
	}

	if err := svc.AdminReset(context.Background(), "alice", "admin-1"); err != nil {
		t.Fatalf("AdminReset: %v", err)
	}

	rec, err := store.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != StatusResetRequired {
		t.Errorf("Status = %v, want reset_required", rec.Status)
	}
	if rec.Secret != "" || len(rec.BackupCodes) != 0 {
		t.Error("secret and backup codes must be cleared on reset")
	}
	if rec.FailCount != 0 || rec.LockedUntil != nil {
		t.Errorf("counter state not cleared: %+v", rec)
	}
	if rec.LastResetBy != "admin-1" || rec.LastResetAt == nil {
		t.Errorf("reset attribution missing: %+v", rec)
	}

	// Re-enrollment from reset_required works.
	if _, err := svc.InitiateSetup(context.Background(), "alice"); err != nil {
		t.Fatalf("InitiateSetup after reset: %v", err)
	}
}

func TestService_AdminResetWithoutRecord(t *testing.T) {
	svc, store, _ := newTestService(t)

	if err := svc.AdminReset(context.Background(), "alice", "admin-1"); err != nil {
		t.Fatalf("AdminReset on fresh user: %v", err)
	}
	rec, err := store.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != StatusResetRequired {
		t.Errorf("Status = %v, want reset_required", rec.Status)
	}
}

// lockEvents records EventSink callbacks.
type lockEvents struct {
	locked []string
	resets []string
}

func (e *lockEvents) AccountLocked(userID string, until time.Time) {
	e.locked = append(e.locked, userID)
}

func (e *lockEvents) AccountReset(userID, adminID string) {
	e.resets = append(e.resets, userID+":"+adminID)
}

func TestService_Events(t *testing.T) {
	svc, _, clock := newTestService(t)
	events := &lockEvents{}
	svc.Events = events
	enrollUser(t, svc, clock, "alice")

	for i := 0; i < DefaultMaxFailAttempts; i++ {
		failLogin(t, svc, "alice")
	}
	if len(events.locked) != 1 || events.locked[0] != "alice" {
		t.Errorf("locked events = %v, want one for alice", events.locked)
	}

	// Further locked attempts do not re-fire the event.
	failLogin(t, svc, "alice")
	if len(events.locked) != 1 {
		t.Errorf("locked events after locked attempt = %d, want 1", len(events.locked))
	}

	if err := svc.AdminReset(context.Background(), "alice", "admin-1"); err != nil {
		t.Fatalf("AdminReset: %v", err)
	}
	if len(events.resets) != 1 || events.resets[0] != "alice:admin-1" {
		t.Errorf("reset events = %v", events.resets)
	}
}

func TestService_RateLimiter(t *testing.T) {
	svc, _, clock := newTestService(t)
	secret, _ := enrollUser(t, svc, clock, "alice")

	limiter, err := ratelimit.NewMemoryLimiter(ratelimit.Config{
		MaxAttempts: 2,
		Window:      time.Minute,
	})
	if err != nil {
		t.Fatalf("NewMemoryLimiter: %v", err)
	}
	t.Cleanup(func() { limiter.Close() })
	svc.Limiter = limiter

	code := GenerateTOTPAtTime(secret, clock.current, DefaultPeriod, DefaultDigits)
	for i := 0; i < 2; i++ {
		if err := svc.VerifyLogin(context.Background(), "alice", code); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	err = svc.VerifyLogin(context.Background(), "alice", code)
	if wardenerrors.GetCode(err) != wardenerrors.ErrCodeTooManyAttempts {
		t.Errorf("throttled attempt = %v, want TOO_MANY_ATTEMPTS", err)
	}
}

func TestService_RejectsBadIDs(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.InitiateSetup(context.Background(), ""); err == nil {
		t.Error("empty user id accepted")
	}
	if err := svc.VerifyLogin(context.Background(), "user with spaces", "000000"); err == nil {
		t.Error("malformed user id accepted")
	}
	if err := svc.AdminReset(context.Background(), "alice", ""); err == nil {
		t.Error("empty admin id accepted")
	}
}
