// Package ratelimit throttles OTP verification attempts per user. It sits in
// front of the per-account failure counter: the counter locks an account
// after bad codes, the limiter caps how fast anyone can burn attempts at all,
// valid or not.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter gates verification attempts by key. A key identifies the thing
// being throttled, e.g. "mfa:alice". Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow reports whether an attempt under key may proceed now.
	// When blocked, retryAfter is how long until the next attempt would
	// be admitted.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Config bounds attempts per key.
type Config struct {
	// MaxAttempts is the number of attempts admitted per Window.
	MaxAttempts int

	// Window is the period over which attempts are counted.
	Window time.Duration
}

// DefaultVerifyConfig returns the throttle applied to OTP verification:
// generous enough for a fumbled passcode, tight enough that six-digit codes
// cannot be searched.
func DefaultVerifyConfig() Config {
	return Config{MaxAttempts: 10, Window: time.Minute}
}

// Validate reports a configuration that cannot enforce anything.
func (c *Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("MaxAttempts must be positive, got %d", c.MaxAttempts)
	}
	if c.Window <= 0 {
		return fmt.Errorf("Window must be positive, got %v", c.Window)
	}
	return nil
}
