// Package identity defines Warden's role model and principal types.
// Roles are assigned to users by administrators and referenced by access
// policies, approval rules, and the system MFA policy. The core assumes a
// caller has already authenticated the user and resolved their role before
// invoking any evaluation function.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role represents a user's assigned role within the organization.
type Role string

const (
	// RoleAdmin is the top administrative tier with full system control.
	RoleAdmin Role = "admin"
	// RoleSecurityAdmin manages policies, MFA enforcement, and audit configuration.
	RoleSecurityAdmin Role = "security_admin"
	// RoleOperator runs day-to-day infrastructure operations.
	RoleOperator Role = "operator"
	// RoleDeveloper has scoped access to development and staging servers.
	RoleDeveloper Role = "developer"
	// RoleAuditor has read-only access to audit records and decisions.
	RoleAuditor Role = "auditor"
)

// ErrUnknownRole indicates a role name that is not part of the known role set.
var ErrUnknownRole = errors.New("unknown role")

// IsValid returns true if the Role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSecurityAdmin, RoleOperator, RoleDeveloper, RoleAuditor:
		return true
	}
	return false
}

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsAdministrative returns true for administrative tiers that are
// unconditionally required to have MFA enabled regardless of the
// organization-wide MFA policy.
func (r Role) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleSecurityAdmin
}

// AllRoles returns all valid role values.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleSecurityAdmin, RoleOperator, RoleDeveloper, RoleAuditor}
}

// ParseRole converts a string to a Role. Matching is case-insensitive.
// Returns ErrUnknownRole if the string is not a known role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// ParseRoles converts a list of strings to roles.
// Returns an error naming the first unknown role encountered.
func ParseRoles(names []string) ([]Role, error) {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		r, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// ContainsRole reports whether role is a member of the given set.
func ContainsRole(set []Role, role Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}

// SubsetOfKnown reports whether every role in the set is a known role.
func SubsetOfKnown(set []Role) bool {
	for _, r := range set {
		if !r.IsValid() {
			return false
		}
	}
	return true
}

// Principal is an authenticated (user, role) pair.
// The caller resolves and validates both before invoking the core.
type Principal struct {
	UserID string
	Role   Role
}
