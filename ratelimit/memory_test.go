package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testClock is a settable time source so window expiry is deterministic.
type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

func newTestLimiter(t *testing.T, cfg Config) (*MemoryLimiter, *testClock) {
	t.Helper()
	m, err := NewMemoryLimiter(cfg)
	if err != nil {
		t.Fatalf("NewMemoryLimiter: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	clock := &testClock{current: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	m.now = clock.now
	return m, clock
}

func TestMemoryLimiter_BlocksAfterMaxAttempts(t *testing.T) {
	m, _ := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := m.Allow(ctx, "mfa:alice")
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("attempt %d blocked, want allowed", i+1)
		}
	}

	allowed, retryAfter, err := m.Allow(ctx, "mfa:alice")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Error("fourth attempt allowed, want blocked")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("retryAfter = %v, want within (0, 1m]", retryAfter)
	}
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	m, clock := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if allowed, _, _ := m.Allow(ctx, "mfa:alice"); !allowed {
			t.Fatalf("attempt %d blocked", i+1)
		}
	}
	if allowed, _, _ := m.Allow(ctx, "mfa:alice"); allowed {
		t.Fatal("over-limit attempt allowed")
	}

	clock.advance(61 * time.Second)

	allowed, _, err := m.Allow(ctx, "mfa:alice")
	if err != nil {
		t.Fatalf("Allow after window: %v", err)
	}
	if !allowed {
		t.Error("attempt after window expiry blocked, want allowed")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	m, _ := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	if allowed, _, _ := m.Allow(ctx, "mfa:alice"); !allowed {
		t.Fatal("alice first attempt blocked")
	}
	if allowed, _, _ := m.Allow(ctx, "mfa:alice"); allowed {
		t.Error("alice second attempt allowed, want blocked")
	}
	if allowed, _, _ := m.Allow(ctx, "mfa:bob"); !allowed {
		t.Error("bob blocked by alice's attempts")
	}
}

func TestMemoryLimiter_ConcurrentAttemptsRespectLimit(t *testing.T) {
	m, _ := newTestLimiter(t, Config{MaxAttempts: 5, Window: time.Minute})
	ctx := context.Background()

	const goroutines = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, err := m.Allow(ctx, "mfa:alice")
			if err != nil {
				t.Errorf("Allow: %v", err)
				return
			}
			if allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 5 {
		t.Errorf("admitted %d concurrent attempts, want exactly 5", admitted)
	}
}

func TestMemoryLimiter_SweepForgetsQuietKeys(t *testing.T) {
	m, clock := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	m.Allow(ctx, "mfa:alice")
	m.Allow(ctx, "mfa:bob")

	clock.advance(2 * time.Minute)
	m.sweep()

	m.mu.Lock()
	tracked := len(m.attempts)
	m.mu.Unlock()
	if tracked != 0 {
		t.Errorf("tracking %d keys after sweep, want 0", tracked)
	}
}

func TestMemoryLimiter_CloseIsIdempotent(t *testing.T) {
	m, err := NewMemoryLimiter(Config{MaxAttempts: 1, Window: time.Minute})
	if err != nil {
		t.Fatalf("NewMemoryLimiter: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewMemoryLimiter_RejectsInvalidConfig(t *testing.T) {
	if _, err := NewMemoryLimiter(Config{}); err == nil {
		t.Error("zero config accepted")
	}
}
