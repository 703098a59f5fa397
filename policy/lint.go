package policy

import (
	"fmt"
	"regexp"

	"github.com/wardenhq/warden/identity"
)

// LintIssueType categorizes the type of lint issue detected.
type LintIssueType string

const (
	// LintInvalidPattern indicates a command pattern that does not compile.
	// At evaluation time such patterns are treated as non-matches, which
	// silently weakens allowlists.
	LintInvalidPattern LintIssueType = "invalid-pattern"
	// LintShadowedPolicy indicates a policy that can never win because a
	// higher-ranked policy covers every request it would match.
	LintShadowedPolicy LintIssueType = "shadowed-policy"
	// LintInactivePolicy indicates a policy that is present but disabled.
	LintInactivePolicy LintIssueType = "inactive-policy"
)

// LintIssue represents a potential problem detected in a policy set.
type LintIssue struct {
	Type     LintIssueType // Type of issue detected
	PolicyID string        // ID of the problematic policy
	Message  string        // Compiler-style terse description
}

// Lint analyzes a policy set for common mistakes and returns any issues found.
// It checks for:
//   - Command patterns that fail to compile
//   - Policies shadowed by higher-ranked policies with broader match criteria
//   - Inactive policies that administrators may have forgotten to re-enable
func Lint(policies []*Policy) []LintIssue {
	var issues []LintIssue

	issues = append(issues, checkPatterns(policies)...)
	issues = append(issues, checkShadowed(policies)...)
	issues = append(issues, checkInactive(policies)...)

	return issues
}

// checkPatterns detects command patterns that do not compile.
func checkPatterns(policies []*Policy) []LintIssue {
	var issues []LintIssue
	for _, p := range policies {
		for _, pattern := range p.CommandPatterns {
			if _, err := regexp.Compile(pattern); err != nil {
				issues = append(issues, LintIssue{
					Type:     LintInvalidPattern,
					PolicyID: p.ID,
					Message:  fmt.Sprintf("policy '%s': command pattern %q does not compile: %v", p.ID, pattern, err),
				})
			}
		}
	}
	return issues
}

// checkShadowed detects policies that can never become authoritative.
// A policy is shadowed when a strictly higher-priority active policy has no
// day or time restriction, matches at least every role the lower one
// matches, and covers at least every server the lower one names directly.
// Group scopes are skipped because membership is resolved at evaluation time.
func checkShadowed(policies []*Policy) []LintIssue {
	var issues []LintIssue

	for _, lower := range policies {
		if !lower.Active || len(lower.Scope.ServerIDs) == 0 || len(lower.Scope.ServerGroupIDs) > 0 {
			continue
		}
		for _, higher := range policies {
			if higher.ID == lower.ID || !higher.Active {
				continue
			}
			if higher.Priority <= lower.Priority {
				continue
			}
			if len(higher.Days) > 0 || higher.Window != nil {
				continue
			}
			if !rolesCover(higher.Roles, lower.Roles) {
				continue
			}
			if !serversCover(higher.Scope.ServerIDs, lower.Scope.ServerIDs) {
				continue
			}
			issues = append(issues, LintIssue{
				Type:     LintShadowedPolicy,
				PolicyID: lower.ID,
				Message: fmt.Sprintf("policy '%s' (priority %d) is shadowed by '%s' (priority %d)",
					lower.ID, lower.Priority, higher.ID, higher.Priority),
			})
			break // Only report once per shadowed policy
		}
	}

	return issues
}

// checkInactive reports disabled policies.
func checkInactive(policies []*Policy) []LintIssue {
	var issues []LintIssue
	for _, p := range policies {
		if !p.Active {
			issues = append(issues, LintIssue{
				Type:     LintInactivePolicy,
				PolicyID: p.ID,
				Message:  fmt.Sprintf("policy '%s' is inactive and never evaluated", p.ID),
			})
		}
	}
	return issues
}

// rolesCover reports whether the higher role set matches every role the
// lower set matches. An empty set matches any role.
func rolesCover(higher, lower []identity.Role) bool {
	if len(higher) == 0 {
		return true
	}
	if len(lower) == 0 {
		return false
	}
	for _, l := range lower {
		found := false
		for _, h := range higher {
			if h == l {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// serversCover reports whether higher includes every server in lower.
func serversCover(higher, lower []string) bool {
	for _, l := range lower {
		found := false
		for _, h := range higher {
			if h == l {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
