package request

import (
	"strings"
	"testing"
	"time"

	"github.com/wardenhq/warden/identity"
)

func TestStatusIsValid(t *testing.T) {
	testCases := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusApproved, true},
		{StatusRejected, true},
		{StatusExpired, true},
		{StatusCancelled, true},
		{Status("open"), false},
		{Status(""), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.IsValid(); got != tc.want {
				t.Errorf("IsValid() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() {
		t.Error("pending must not be terminal")
	}
	for _, s := range []Status{StatusApproved, StatusRejected, StatusExpired, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestNewRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		if !ValidateRequestID(id) {
			t.Fatalf("generated id %q is not valid", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestValidateRequestID(t *testing.T) {
	testCases := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "0123456789abcdef", true},
		{"too short", "0123456789abcde", false},
		{"too long", "0123456789abcdef0", false},
		{"uppercase", "0123456789ABCDEF", false},
		{"non-hex", "0123456789abcdeg", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateRequestID(tc.id); got != tc.want {
				t.Errorf("ValidateRequestID(%q) = %v, want %v", tc.id, got, tc.want)
			}
		})
	}
}

// newTestRequest returns a valid pending request for mutation in table cases.
func newTestRequest() *Request {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	return &Request{
		ID:            NewRequestID(),
		Requester:     "alice",
		ServerID:      "web-01",
		Purpose:       "deploy hotfix",
		AccessType:    "session",
		PolicyID:      "needs-signoff",
		ApproverRoles: []identity.Role{identity.RoleSecurityAdmin},
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(DefaultRequestTTL),
	}
}

func TestRequestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Request)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(r *Request) {},
		},
		{
			name:    "bad id",
			mutate:  func(r *Request) { r.ID = "not-hex" },
			wantErr: "invalid request id",
		},
		{
			name:    "empty requester",
			mutate:  func(r *Request) { r.Requester = "" },
			wantErr: "requester",
		},
		{
			name:    "bad server id",
			mutate:  func(r *Request) { r.ServerID = "web 01" },
			wantErr: "server id",
		},
		{
			name:    "empty purpose",
			mutate:  func(r *Request) { r.Purpose = "" },
			wantErr: "purpose",
		},
		{
			name:    "purpose too long",
			mutate:  func(r *Request) { r.Purpose = strings.Repeat("x", MaxPurposeLength+1) },
			wantErr: "purpose",
		},
		{
			name:    "invalid status",
			mutate:  func(r *Request) { r.Status = Status("open") },
			wantErr: "invalid status",
		},
		{
			name:    "zero created_at",
			mutate:  func(r *Request) { r.CreatedAt = time.Time{} },
			wantErr: "created_at",
		},
		{
			name: "expiry not after creation",
			mutate: func(r *Request) {
				r.ExpiresAt = r.CreatedAt
			},
			wantErr: "expires_at",
		},
		{
			name: "unknown approver role",
			mutate: func(r *Request) {
				r.ApproverRoles = []identity.Role{"superuser"}
			},
			wantErr: "unknown role",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := newTestRequest()
			tc.mutate(req)
			err := req.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
