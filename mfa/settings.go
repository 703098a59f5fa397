package mfa

import (
	"fmt"
	"time"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/identity"
)

// PolicyMode is the organization-wide MFA enforcement mode.
type PolicyMode string

const (
	// PolicyDisabled never requires MFA (administrative tiers excepted).
	PolicyDisabled PolicyMode = "disabled"
	// PolicyOptional leaves enrollment to the user.
	PolicyOptional PolicyMode = "optional"
	// PolicyRoleBased requires MFA for the configured role set.
	PolicyRoleBased PolicyMode = "role_based"
	// PolicyRequired requires MFA for everyone, subject to the enforcement date.
	PolicyRequired PolicyMode = "required"
)

// IsValid returns true if the PolicyMode is a known value.
func (m PolicyMode) IsValid() bool {
	switch m {
	case PolicyDisabled, PolicyOptional, PolicyRoleBased, PolicyRequired:
		return true
	}
	return false
}

// String returns the string representation of the PolicyMode.
func (m PolicyMode) String() string {
	return string(m)
}

const (
	// MinGracePeriodDays is the lower bound for the grace period.
	MinGracePeriodDays = 0
	// MaxGracePeriodDays is the upper bound for the grace period.
	MaxGracePeriodDays = 365
)

// Settings is the organization-wide MFA enforcement configuration.
// Mutated only by administrators; read by the gate on every login.
type Settings struct {
	// Policy is the enforcement mode.
	Policy PolicyMode `json:"policy"`

	// RequiredRoles is the role set requiring MFA under role_based.
	RequiredRoles []identity.Role `json:"required_roles,omitempty"`

	// GracePeriodDays is the soft-deadline window (from first login) during
	// which MFA is recommended but not enforced under required mode.
	GracePeriodDays int `json:"grace_period_days"`

	// EnforcementDate is when required mode takes effect for everyone.
	// Nil means immediately.
	EnforcementDate *time.Time `json:"enforcement_date,omitempty"`

	// UpdatedAt is when the settings were last changed.
	UpdatedAt time.Time `json:"updated_at"`

	// UpdatedBy is the administrator who last changed the settings.
	UpdatedBy string `json:"updated_by,omitempty"`
}

// DefaultSettings returns the configuration used before any administrator
// has written one.
func DefaultSettings() Settings {
	return Settings{
		Policy:          PolicyOptional,
		GracePeriodDays: 30,
	}
}

// SettingsPatch is a partial administrative update. Nil fields are left
// unchanged; EnforcementDate accepts an RFC 3339 timestamp or the empty
// string to clear the date.
type SettingsPatch struct {
	Policy          *PolicyMode
	RequiredRoles   []identity.Role
	GracePeriodDays *int
	EnforcementDate *string
}

// Validate rejects a patch before any persistence happens.
func (p *SettingsPatch) Validate() error {
	if p.Policy != nil && !p.Policy.IsValid() {
		return invalidConfiguration(fmt.Sprintf("unknown policy mode %q", *p.Policy))
	}
	if p.RequiredRoles != nil && !identity.SubsetOfKnown(p.RequiredRoles) {
		return invalidConfiguration("requiredRoles contains an unknown role")
	}
	if p.GracePeriodDays != nil {
		if *p.GracePeriodDays < MinGracePeriodDays || *p.GracePeriodDays > MaxGracePeriodDays {
			return invalidConfiguration(fmt.Sprintf("gracePeriodDays %d outside [%d,%d]",
				*p.GracePeriodDays, MinGracePeriodDays, MaxGracePeriodDays))
		}
	}
	if p.EnforcementDate != nil && *p.EnforcementDate != "" {
		if _, err := time.Parse(time.RFC3339, *p.EnforcementDate); err != nil {
			return invalidConfiguration(fmt.Sprintf("enforcementDate %q does not parse: %v", *p.EnforcementDate, err))
		}
	}
	return nil
}

// Apply validates the patch and returns the updated settings with the actor
// and time recorded. The receiver is not modified.
func (s Settings) Apply(patch SettingsPatch, actorID string, now time.Time) (Settings, error) {
	if err := patch.Validate(); err != nil {
		return Settings{}, err
	}

	out := s
	if patch.Policy != nil {
		out.Policy = *patch.Policy
	}
	if patch.RequiredRoles != nil {
		out.RequiredRoles = append([]identity.Role(nil), patch.RequiredRoles...)
	}
	if patch.GracePeriodDays != nil {
		out.GracePeriodDays = *patch.GracePeriodDays
	}
	if patch.EnforcementDate != nil {
		if *patch.EnforcementDate == "" {
			out.EnforcementDate = nil
		} else {
			t, err := time.Parse(time.RFC3339, *patch.EnforcementDate)
			if err != nil {
				return Settings{}, invalidConfiguration(fmt.Sprintf("enforcementDate %q does not parse: %v", *patch.EnforcementDate, err))
			}
			out.EnforcementDate = &t
		}
	}
	out.UpdatedAt = now
	out.UpdatedBy = actorID
	return out, nil
}

func invalidConfiguration(msg string) error {
	return wardenerrors.New(wardenerrors.ErrCodeInvalidConfiguration, msg,
		wardenerrors.GetSuggestion(wardenerrors.ErrCodeInvalidConfiguration), nil)
}
