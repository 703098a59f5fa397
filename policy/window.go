package policy

import (
	"strconv"
	"strings"
	"time"
)

// InWindow reports whether the policy's day and time-of-day constraints
// contain the given timestamp. Policies with no day set and no window match
// any time.
//
// The check is timezone-aware: when the window names a timezone the
// timestamp is converted into it first, otherwise the timestamp's own
// location is used. A window whose end precedes its start wraps past
// midnight; a timestamp before the end matches if the window opened on the
// previous day, so the day restriction is checked against the day the
// window started.
func (p *Policy) InWindow(at time.Time) bool {
	t := at
	if p.Window != nil && p.Window.Timezone != "" {
		loc, err := time.LoadLocation(p.Window.Timezone)
		if err != nil {
			// Validation rejects unknown zones before a policy is stored.
			// Fail closed if one slips through.
			return false
		}
		t = at.In(loc)
	}

	if p.Window == nil {
		return p.dayAllowed(FromTimeWeekday(t.Weekday()))
	}

	start, okStart := parseMinutes(p.Window.Start)
	end, okEnd := parseMinutes(p.Window.End)
	if !okStart || !okEnd || start == end {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()

	if start < end {
		// Same-day window.
		if minutes < start || minutes >= end {
			return false
		}
		return p.dayAllowed(FromTimeWeekday(t.Weekday()))
	}

	// Wrapping window: end < start means the window runs into the next day.
	switch {
	case minutes >= start:
		// Window opened today.
		return p.dayAllowed(FromTimeWeekday(t.Weekday()))
	case minutes < end:
		// Window opened yesterday.
		return p.dayAllowed(FromTimeWeekday(t.AddDate(0, 0, -1).Weekday()))
	default:
		return false
	}
}

// dayAllowed reports whether the weekday passes the policy's day restriction.
// An empty day set matches any day.
func (p *Policy) dayAllowed(day Weekday) bool {
	if len(p.Days) == 0 {
		return true
	}
	for _, d := range p.Days {
		if d == day {
			return true
		}
	}
	return false
}

// parseMinutes converts an "HH:MM" string to minutes since midnight.
// Returns false for strings not in that format.
func parseMinutes(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
