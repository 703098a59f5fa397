package policy

import (
	"testing"
	"time"
)

// mustTime parses an RFC3339 timestamp or fails the test.
func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return parsed
}

func TestPolicy_InWindow_NoRestrictions(t *testing.T) {
	p := &Policy{}
	if !p.InWindow(mustTime(t, "2025-06-11T03:00:00Z")) {
		t.Error("policy without day or window restrictions should match any time")
	}
}

func TestPolicy_InWindow_DayOnly(t *testing.T) {
	p := &Policy{Days: []Weekday{Monday, Tuesday}}

	// 2025-06-09 is a Monday.
	if !p.InWindow(mustTime(t, "2025-06-09T10:00:00Z")) {
		t.Error("Monday should match day set {monday, tuesday}")
	}
	// 2025-06-11 is a Wednesday.
	if p.InWindow(mustTime(t, "2025-06-11T10:00:00Z")) {
		t.Error("Wednesday should not match day set {monday, tuesday}")
	}
}

func TestPolicy_InWindow_SameDayWindow(t *testing.T) {
	p := &Policy{Window: &HourRange{Start: "09:00", End: "17:00"}}

	testCases := []struct {
		name string
		at   string
		want bool
	}{
		{
			name: "inside window",
			at:   "2025-06-09T12:30:00Z",
			want: true,
		},
		{
			name: "exact start is included",
			at:   "2025-06-09T09:00:00Z",
			want: true,
		},
		{
			name: "exact end is excluded",
			at:   "2025-06-09T17:00:00Z",
			want: false,
		},
		{
			name: "before window",
			at:   "2025-06-09T08:59:00Z",
			want: false,
		},
		{
			name: "after window",
			at:   "2025-06-09T20:00:00Z",
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.InWindow(mustTime(t, tc.at))
			if got != tc.want {
				t.Errorf("InWindow(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestPolicy_InWindow_WrapsMidnight(t *testing.T) {
	p := &Policy{Window: &HourRange{Start: "22:00", End: "06:00"}}

	testCases := []struct {
		name string
		at   string
		want bool
	}{
		{
			name: "late evening matches",
			at:   "2025-06-09T23:30:00Z",
			want: true,
		},
		{
			name: "early morning matches",
			at:   "2025-06-10T02:00:00Z",
			want: true,
		},
		{
			name: "midday does not match",
			at:   "2025-06-09T12:00:00Z",
			want: false,
		},
		{
			name: "end boundary excluded",
			at:   "2025-06-10T06:00:00Z",
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.InWindow(mustTime(t, tc.at))
			if got != tc.want {
				t.Errorf("InWindow(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestPolicy_InWindow_WrappedWindowDayCheck(t *testing.T) {
	// Window opens Friday 22:00 and runs into Saturday morning.
	p := &Policy{
		Days:   []Weekday{Friday},
		Window: &HourRange{Start: "22:00", End: "06:00"},
	}

	// 2025-06-13 is a Friday.
	if !p.InWindow(mustTime(t, "2025-06-13T23:00:00Z")) {
		t.Error("Friday 23:00 should match a Friday 22:00-06:00 window")
	}
	// Saturday 02:00 belongs to the window that opened Friday.
	if !p.InWindow(mustTime(t, "2025-06-14T02:00:00Z")) {
		t.Error("Saturday 02:00 should match the window opened on Friday")
	}
	// Saturday 23:00 would belong to a window opened Saturday, which is not allowed.
	if p.InWindow(mustTime(t, "2025-06-14T23:00:00Z")) {
		t.Error("Saturday 23:00 should not match a Friday-only window")
	}
}

func TestPolicy_InWindow_TimezoneAware(t *testing.T) {
	p := &Policy{Window: &HourRange{Start: "09:00", End: "17:00", Timezone: "America/New_York"}}

	// 18:00 UTC is 14:00 in New York during June (EDT, UTC-4): inside the window.
	if !p.InWindow(mustTime(t, "2025-06-09T18:00:00Z")) {
		t.Error("18:00 UTC should be inside a 09:00-17:00 New York window in June")
	}
	// 08:00 UTC is 04:00 in New York: outside.
	if p.InWindow(mustTime(t, "2025-06-09T08:00:00Z")) {
		t.Error("08:00 UTC should be outside a 09:00-17:00 New York window")
	}
}

func TestPolicy_InWindow_TimezoneShiftsDay(t *testing.T) {
	// Monday-only policy evaluated in Tokyo time.
	p := &Policy{
		Days:   []Weekday{Monday},
		Window: &HourRange{Start: "08:00", End: "18:00", Timezone: "Asia/Tokyo"},
	}

	// Sunday 23:30 UTC is Monday 08:30 in Tokyo: matches.
	if !p.InWindow(mustTime(t, "2025-06-08T23:30:00Z")) {
		t.Error("Sunday 23:30 UTC should be Monday morning in Tokyo")
	}
	// Monday 23:30 UTC is Tuesday 08:30 in Tokyo: does not match.
	if p.InWindow(mustTime(t, "2025-06-09T23:30:00Z")) {
		t.Error("Monday 23:30 UTC should be Tuesday morning in Tokyo")
	}
}
