// Package testutil provides reusable test helpers and mock implementations
// shared across package test suites.
package testutil

import (
	"time"

	"github.com/wardenhq/warden/identity"
	"github.com/wardenhq/warden/policy"
	"github.com/wardenhq/warden/request"
)

// MustParseTime parses a time string using the given layout and panics on error.
// Useful for test data initialization where parse errors indicate a test bug.
func MustParseTime(layout, value string) time.Time {
	t, err := time.Parse(layout, value)
	if err != nil {
		panic("testutil.MustParseTime: " + err.Error())
	}
	return t
}

// FixedClock returns a function that always returns the given time.
// Useful for testing time-dependent logic with deterministic values.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}

// MakePolicy creates an active allow-everything policy scoped to the given
// server. Callers tighten the fields they care about.
func MakePolicy(id, serverID string) *policy.Policy {
	return &policy.Policy{
		ID:        id,
		Name:      id,
		Priority:  1,
		Active:    true,
		Scope:     policy.Scope{ServerIDs: []string{serverID}},
		CreatedAt: MustParseTime(time.RFC3339, "2025-01-01T00:00:00Z"),
	}
}

// MakeApprovalPolicy creates an active policy requiring security_admin
// approval, scoped to the given server.
func MakeApprovalPolicy(id, serverID string) *policy.Policy {
	p := MakePolicy(id, serverID)
	p.RequireApproval = true
	p.ApproverRoles = []identity.Role{identity.RoleSecurityAdmin}
	return p
}

// MakeRequest creates a valid pending access request for the given user and
// server, expiring one hour after creation.
func MakeRequest(id, requester, serverID string) *request.Request {
	created := MustParseTime(time.RFC3339, "2025-06-09T12:00:00Z")
	return &request.Request{
		ID:            id,
		Requester:     requester,
		ServerID:      serverID,
		Purpose:       "scheduled maintenance",
		AccessType:    "session",
		PolicyID:      "test-policy",
		ApproverRoles: []identity.Role{identity.RoleSecurityAdmin},
		Status:        request.StatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
		ExpiresAt:     created.Add(time.Hour),
	}
}
