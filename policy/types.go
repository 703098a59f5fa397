// Package policy defines Warden's access control policy schema and the
// decision engine that evaluates remote-session requests against it.
// Policies constrain who may access which servers, when, and with which
// commands. The highest-priority active policy matching a request is
// authoritative; requests matching no policy are denied.
package policy

import (
	"time"

	"github.com/wardenhq/warden/identity"
)

// Weekday represents a day of the week.
// Days are specified as lowercase strings (monday, tuesday, etc.).
type Weekday string

const (
	// Monday represents Monday.
	Monday Weekday = "monday"
	// Tuesday represents Tuesday.
	Tuesday Weekday = "tuesday"
	// Wednesday represents Wednesday.
	Wednesday Weekday = "wednesday"
	// Thursday represents Thursday.
	Thursday Weekday = "thursday"
	// Friday represents Friday.
	Friday Weekday = "friday"
	// Saturday represents Saturday.
	Saturday Weekday = "saturday"
	// Sunday represents Sunday.
	Sunday Weekday = "sunday"
)

// IsValid returns true if the Weekday is a known value.
func (w Weekday) IsValid() bool {
	switch w {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// String returns the string representation of the Weekday.
func (w Weekday) String() string {
	return string(w)
}

// AllWeekdays returns all valid weekday values.
func AllWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// FromTimeWeekday converts a time.Weekday to a Weekday.
func FromTimeWeekday(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// CommandMode selects how a policy's command patterns are interpreted.
type CommandMode string

const (
	// ModeAllowlist permits a command only if it matches at least one pattern.
	ModeAllowlist CommandMode = "allowlist"
	// ModeDenylist rejects a command if it matches any pattern.
	ModeDenylist CommandMode = "denylist"
)

// IsValid returns true if the CommandMode is a known value.
func (m CommandMode) IsValid() bool {
	return m == ModeAllowlist || m == ModeDenylist
}

// String returns the string representation of the CommandMode.
func (m CommandMode) String() string {
	return string(m)
}

// HourRange defines a daily time window.
// Start and End times are specified in 24-hour format (HH:MM).
// A window whose End precedes its Start wraps past midnight into the
// following day (e.g. 22:00-06:00).
type HourRange struct {
	Start string `yaml:"start" json:"start"` // Format: "HH:MM" (24-hour)
	End   string `yaml:"end" json:"end"`     // Format: "HH:MM" (24-hour)

	// Timezone is the IANA zone the window is interpreted in.
	// Empty means the window is interpreted in the request timestamp's zone.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// Scope restricts which servers a policy applies to.
// A server is in scope when its ID is listed directly or when it belongs
// to one of the listed server groups.
type Scope struct {
	ServerIDs      []string `yaml:"server_ids,omitempty" json:"server_ids,omitempty"`
	ServerGroupIDs []string `yaml:"server_group_ids,omitempty" json:"server_group_ids,omitempty"`
}

// IncludesServer reports whether serverID is in scope, given the groups the
// server belongs to.
func (s *Scope) IncludesServer(serverID string, groups []string) bool {
	for _, id := range s.ServerIDs {
		if id == serverID {
			return true
		}
	}
	for _, gid := range s.ServerGroupIDs {
		for _, g := range groups {
			if g == gid {
				return true
			}
		}
	}
	return false
}

// Policy is a single administrator-defined access rule.
// Policies are ranked by Priority descending; ties are broken by earliest
// CreatedAt so evaluation is deterministic across repeated requests.
type Policy struct {
	// ID is the unique policy identifier.
	ID string `yaml:"id" json:"id"`

	// Name is a human-readable label used in lint and audit output.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Priority ranks this policy against others matching the same request.
	// Higher wins.
	Priority int `yaml:"priority" json:"priority"`

	// Active controls whether the policy participates in evaluation.
	Active bool `yaml:"active" json:"active"`

	// Days restricts which weekdays the policy matches. Empty means any day.
	Days []Weekday `yaml:"days,omitempty" json:"days,omitempty"`

	// Window restricts the time of day the policy matches. Nil means any time.
	Window *HourRange `yaml:"window,omitempty" json:"window,omitempty"`

	// Roles restricts which user roles the policy matches. Empty means any role.
	Roles []identity.Role `yaml:"roles,omitempty" json:"roles,omitempty"`

	// CommandMode selects allowlist or denylist interpretation of CommandPatterns.
	CommandMode CommandMode `yaml:"command_mode,omitempty" json:"command_mode,omitempty"`

	// CommandPatterns are ordered regular expressions matched against the
	// requested command. Empty means no command filtering.
	CommandPatterns []string `yaml:"command_patterns,omitempty" json:"command_patterns,omitempty"`

	// RequireApproval demands approver sign-off before access is granted.
	RequireApproval bool `yaml:"require_approval,omitempty" json:"require_approval,omitempty"`

	// ApproverRoles is the set of roles eligible to decide approval requests
	// created under this policy. Required when RequireApproval is set.
	ApproverRoles []identity.Role `yaml:"approver_roles,omitempty" json:"approver_roles,omitempty"`

	// Scope restricts which servers the policy applies to.
	Scope Scope `yaml:"scope" json:"scope"`

	// CreatedAt orders policies with equal priority. Set on creation,
	// immutable afterwards.
	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
}

// AppliesToRole reports whether the policy matches the given role.
// A policy with no role restriction matches any role.
func (p *Policy) AppliesToRole(role identity.Role) bool {
	if len(p.Roles) == 0 {
		return true
	}
	return identity.ContainsRole(p.Roles, role)
}
