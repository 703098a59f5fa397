package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps a sliding window of attempt timestamps per key. It
// serves a single process; multi-node deployments share a DynamoDBLimiter
// instead.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time

	cleanupInterval time.Duration
	done            chan struct{}
	wg              sync.WaitGroup
}

// NewMemoryLimiter creates an in-process limiter. A background goroutine
// drops idle keys; call Close to stop it.
func NewMemoryLimiter(cfg Config) (*MemoryLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &MemoryLimiter{
		cfg:             cfg,
		now:             time.Now,
		attempts:        make(map[string][]time.Time),
		cleanupInterval: 10 * time.Minute,
		done:            make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop()
	return m, nil
}

// Allow admits the attempt unless MaxAttempts timestamps already fall inside
// the window ending now.
func (m *MemoryLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.cfg.Window)

	recent := trimExpired(m.attempts[key], cutoff)
	if len(recent) >= m.cfg.MaxAttempts {
		m.attempts[key] = recent
		retryAfter := recent[0].Add(m.cfg.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}

	m.attempts[key] = append(recent, now)
	return true, 0, nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	select {
	case <-m.done:
		return nil
	default:
		close(m.done)
	}
	m.wg.Wait()
	return nil
}

func (m *MemoryLimiter) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep discards timestamps outside the window and forgets quiet keys, so
// memory stays proportional to recently active users.
func (m *MemoryLimiter) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.cfg.Window)
	for key, stamps := range m.attempts {
		recent := trimExpired(stamps, cutoff)
		if len(recent) == 0 {
			delete(m.attempts, key)
			continue
		}
		m.attempts[key] = recent
	}
}

// trimExpired filters in place, keeping timestamps after cutoff.
func trimExpired(stamps []time.Time, cutoff time.Time) []time.Time {
	recent := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}
