package policy

import (
	"fmt"
	"regexp"
	"time"

	"github.com/wardenhq/warden/identity"
)

// hourFormatRegex matches HH:MM format (24-hour, two digits each).
var hourFormatRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// SupportedVersions lists the document versions this build understands.
var SupportedVersions = []string{"1"}

// Validate checks if the Document is semantically correct.
// It verifies the version is supported, at least one policy exists,
// policy IDs are unique, and every policy is valid.
func (d *Document) Validate() error {
	supported := false
	for _, v := range SupportedVersions {
		if d.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported document version '%s', supported versions: %v", d.Version, SupportedVersions)
	}

	if len(d.Policies) == 0 {
		return fmt.Errorf("document must contain at least one policy")
	}

	seen := make(map[string]bool, len(d.Policies))
	for i, p := range d.Policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("policy at index %d: %w", i, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate policy id '%s'", p.ID)
		}
		seen[p.ID] = true
	}

	return nil
}

// Validate checks if the Policy is semantically correct.
// It enforces the schema invariants: an ID is present, roles and days are
// known values, a window has both start and end in HH:MM format with a
// loadable timezone, command mode is valid when patterns are present, and
// approval policies name at least one approver role.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("policy missing id")
	}

	for _, day := range p.Days {
		if !day.IsValid() {
			return fmt.Errorf("invalid weekday '%s' in policy '%s'", day, p.ID)
		}
	}

	if p.Window != nil {
		if err := p.Window.Validate(); err != nil {
			return fmt.Errorf("policy '%s': %w", p.ID, err)
		}
	}

	for _, r := range p.Roles {
		if !r.IsValid() {
			return fmt.Errorf("unknown role '%s' in policy '%s'", r, p.ID)
		}
	}

	if len(p.CommandPatterns) > 0 && !p.CommandMode.IsValid() {
		return fmt.Errorf("policy '%s' has command patterns but invalid command mode '%s'", p.ID, p.CommandMode)
	}

	if p.RequireApproval {
		if len(p.ApproverRoles) == 0 {
			return fmt.Errorf("policy '%s' requires approval but names no approver roles", p.ID)
		}
		if !identity.SubsetOfKnown(p.ApproverRoles) {
			return fmt.Errorf("policy '%s' names an unknown approver role", p.ID)
		}
	}

	if len(p.Scope.ServerIDs) == 0 && len(p.Scope.ServerGroupIDs) == 0 {
		return fmt.Errorf("policy '%s' has an empty scope", p.ID)
	}

	return nil
}

// Validate checks if an HourRange has valid HH:MM format times and a
// loadable timezone. Start and end must both be present and must differ;
// an end earlier than the start is valid and wraps past midnight.
func (h *HourRange) Validate() error {
	if h.Start == "" || h.End == "" {
		return fmt.Errorf("window requires both start and end times")
	}
	if err := validateHourFormat(h.Start); err != nil {
		return err
	}
	if err := validateHourFormat(h.End); err != nil {
		return err
	}
	if h.Start == h.End {
		return fmt.Errorf("window start and end must differ")
	}
	if h.Timezone != "" {
		if _, err := time.LoadLocation(h.Timezone); err != nil {
			return fmt.Errorf("invalid timezone '%s'", h.Timezone)
		}
	}
	return nil
}

// validateHourFormat checks if a time string is in valid HH:MM 24-hour format.
// The regex already validates hour (00-23) and minute (00-59) ranges.
func validateHourFormat(timeStr string) error {
	if !hourFormatRegex.MatchString(timeStr) {
		return fmt.Errorf("invalid hour format '%s'", timeStr)
	}
	return nil
}

// ValidateDocument validates a policy document from raw YAML bytes.
// Returns a detailed error if validation fails, nil if valid.
// This is the entry point for CLI validation commands.
func ValidateDocument(data []byte) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	return doc.Validate()
}
