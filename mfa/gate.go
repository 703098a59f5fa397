package mfa

import (
	"context"
	"time"

	"github.com/wardenhq/warden/identity"
)

// IsRequired reports whether the settings require MFA for a role at the
// given time. Administrative tiers are unconditionally required regardless
// of mode, overriding disabled and optional.
func IsRequired(s Settings, role identity.Role, now time.Time) bool {
	if role.IsAdministrative() {
		return true
	}

	switch s.Policy {
	case PolicyDisabled, PolicyOptional:
		return false
	case PolicyRoleBased:
		return identity.ContainsRole(s.RequiredRoles, role)
	case PolicyRequired:
		if s.EnforcementDate == nil {
			return true
		}
		// Before the enforcement date the mode behaves as a grace period:
		// recommended, not enforced. Callers compute per-user soft deadlines
		// from GracePeriodDays.
		return !now.Before(*s.EnforcementDate)
	}
	return false
}

// Gate evaluates the enforcement decision against live settings on every
// login, the way the administrative surface expects.
type Gate struct {
	store SettingsStore
	now   func() time.Time
}

// NewGate creates a Gate over the given settings store.
func NewGate(store SettingsStore) *Gate {
	return &Gate{store: store, now: time.Now}
}

// WithClock replaces the gate's time source. Used in tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// IsRequired reads the current settings and evaluates enforcement for role.
func (g *Gate) IsRequired(ctx context.Context, role identity.Role) (bool, error) {
	settings, err := g.store.Get(ctx)
	if err != nil {
		return false, err
	}
	return IsRequired(settings, role, g.now()), nil
}
