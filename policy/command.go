package policy

import (
	"fmt"
	"regexp"
)

// PatternWarning reports a command pattern that failed to compile during
// evaluation. Malformed patterns are treated as non-matches (fail safe) and
// surfaced to the audit collaborator instead of failing the evaluation.
type PatternWarning struct {
	PolicyID string
	Pattern  string
	Err      error
}

// String returns a compiler-style one-line description of the warning.
func (w PatternWarning) String() string {
	return fmt.Sprintf("policy '%s': command pattern %q does not compile: %v", w.PolicyID, w.Pattern, w.Err)
}

// CommandAllowed reports whether the given command passes the policy's
// command filter.
//
// In allowlist mode the command must match at least one pattern; in denylist
// mode a single match rejects it. Policies with no patterns, and requests
// with no command, always pass. Patterns that fail to compile are skipped as
// non-matches and reported in the returned warnings.
func (p *Policy) CommandAllowed(command string) (bool, []PatternWarning) {
	if command == "" || len(p.CommandPatterns) == 0 {
		return true, nil
	}

	var warnings []PatternWarning
	matched := false
	for _, pattern := range p.CommandPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			warnings = append(warnings, PatternWarning{PolicyID: p.ID, Pattern: pattern, Err: err})
			continue
		}
		if re.MatchString(command) {
			matched = true
			break
		}
	}

	switch p.CommandMode {
	case ModeDenylist:
		return !matched, warnings
	default:
		// Allowlist: a command matching nothing is rejected. This also
		// covers the case where every pattern was malformed.
		return matched, warnings
	}
}
