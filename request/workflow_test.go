package request

import (
	"context"
	"testing"
	"time"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/identity"
)

// fakeClock is a settable time source for workflow tests.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestWorkflow(t *testing.T) (*Workflow, *fakeClock) {
	t.Helper()
	clock := &fakeClock{current: time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)}
	w := NewWorkflow(NewMemoryStore(), time.Hour).WithClock(clock.now)
	return w, clock
}

func submitTestRequest(t *testing.T, w *Workflow) *Request {
	t.Helper()
	req, err := w.Submit(context.Background(), SubmitInput{
		Requester:     "alice",
		ServerID:      "web-01",
		Purpose:       "deploy hotfix",
		AccessType:    "session",
		PolicyID:      "needs-signoff",
		ApproverRoles: []identity.Role{identity.RoleSecurityAdmin},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return req
}

func TestWorkflow_Submit(t *testing.T) {
	w, clock := newTestWorkflow(t)

	req := submitTestRequest(t, w)
	if req.Status != StatusPending {
		t.Errorf("Status = %v, want pending", req.Status)
	}
	if !ValidateRequestID(req.ID) {
		t.Errorf("ID %q is not a valid request id", req.ID)
	}
	if !req.ExpiresAt.Equal(clock.current.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want creation + 1h", req.ExpiresAt)
	}
}

func TestWorkflow_SubmitIdempotent(t *testing.T) {
	w, _ := newTestWorkflow(t)

	first := submitTestRequest(t, w)
	second := submitTestRequest(t, w)
	if first.ID != second.ID {
		t.Errorf("repeated Submit created a new request: %s vs %s", first.ID, second.ID)
	}

	// A different purpose is a different request.
	other, err := w.Submit(context.Background(), SubmitInput{
		Requester:     "alice",
		ServerID:      "web-01",
		Purpose:       "investigate outage",
		AccessType:    "session",
		ApproverRoles: []identity.Role{identity.RoleSecurityAdmin},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if other.ID == first.ID {
		t.Error("different purpose should open a new request")
	}
}

func TestWorkflow_SubmitAfterExpiryOpensNew(t *testing.T) {
	w, clock := newTestWorkflow(t)

	first := submitTestRequest(t, w)
	clock.advance(2 * time.Hour)

	second := submitTestRequest(t, w)
	if second.ID == first.ID {
		t.Error("an expired request must not satisfy the idempotency check")
	}
}

func TestWorkflow_Approve(t *testing.T) {
	w, clock := newTestWorkflow(t)
	req := submitTestRequest(t, w)

	approver := identity.Principal{UserID: "sam", Role: identity.RoleSecurityAdmin}
	decided, err := w.Approve(context.Background(), req.ID, approver, "looks fine")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if decided.Status != StatusApproved {
		t.Errorf("Status = %v, want approved", decided.Status)
	}
	if decided.DecidedBy != "sam" {
		t.Errorf("DecidedBy = %q, want sam", decided.DecidedBy)
	}
	if decided.DecidedAt == nil || !decided.DecidedAt.Equal(clock.current) {
		t.Errorf("DecidedAt = %v, want clock time", decided.DecidedAt)
	}
	if decided.DecisionReason != "looks fine" {
		t.Errorf("DecisionReason = %q", decided.DecisionReason)
	}
}

func TestWorkflow_Reject(t *testing.T) {
	w, _ := newTestWorkflow(t)
	req := submitTestRequest(t, w)

	approver := identity.Principal{UserID: "sam", Role: identity.RoleSecurityAdmin}
	decided, err := w.Reject(context.Background(), req.ID, approver, "no change window")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if decided.Status != StatusRejected {
		t.Errorf("Status = %v, want rejected", decided.Status)
	}
	if decided.DecisionReason != "no change window" {
		t.Errorf("DecisionReason = %q", decided.DecisionReason)
	}
}

func TestWorkflow_ApproveUnauthorizedRole(t *testing.T) {
	w, _ := newTestWorkflow(t)
	req := submitTestRequest(t, w)

	outsider := identity.Principal{UserID: "dave", Role: identity.RoleDeveloper}
	_, err := w.Approve(context.Background(), req.ID, outsider, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if wardenerrors.GetCode(err) != wardenerrors.ErrCodeUnauthorizedApprover {
		t.Errorf("code = %q, want UNAUTHORIZED_APPROVER", wardenerrors.GetCode(err))
	}

	// The failed attempt must not change the request.
	got, err := w.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %v, want pending", got.Status)
	}
}

func TestWorkflow_SelfApprovalRejected(t *testing.T) {
	w, _ := newTestWorkflow(t)
	req := submitTestRequest(t, w)

	// The requester holds an approver role but still may not self-approve.
	self := identity.Principal{UserID: "alice", Role: identity.RoleSecurityAdmin}
	_, err := w.Approve(context.Background(), req.ID, self, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if wardenerrors.GetCode(err) != wardenerrors.ErrCodeUnauthorizedApprover {
		t.Errorf("code = %q, want UNAUTHORIZED_APPROVER", wardenerrors.GetCode(err))
	}
}

func TestWorkflow_AlreadyDecided(t *testing.T) {
	w, _ := newTestWorkflow(t)
	req := submitTestRequest(t, w)

	approver := identity.Principal{UserID: "sam", Role: identity.RoleSecurityAdmin}
	if _, err := w.Approve(context.Background(), req.ID, approver, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// Terminal states are immutable.
	if _, err := w.Reject(context.Background(), req.ID, approver, ""); wardenerrors.GetCode(err) != wardenerrors.ErrCodeAlreadyDecided {
		t.Errorf("Reject after approve = %v, want ALREADY_DECIDED", err)
	}
	if _, err := w.Approve(context.Background(), req.ID, approver, ""); wardenerrors.GetCode(err) != wardenerrors.ErrCodeAlreadyDecided {
		t.Errorf("repeat Approve = %v, want ALREADY_DECIDED", err)
	}
}

func TestWorkflow_LazyExpiry(t *testing.T) {
	w, clock := newTestWorkflow(t)
	req := submitTestRequest(t, w)

	clock.advance(2 * time.Hour)

	got, err := w.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusExpired {
		t.Errorf("Status = %v, want expired", got.Status)
	}
	if got.DecidedBy != "system" {
		t.Errorf("DecidedBy = %q, want system", got.DecidedBy)
	}

	// Expired is terminal: a late approval fails.
	approver := identity.Principal{UserID: "sam", Role: identity.RoleSecurityAdmin}
	if _, err := w.Approve(context.Background(), req.ID, approver, ""); wardenerrors.GetCode(err) != wardenerrors.ErrCodeAlreadyDecided {
		t.Errorf("Approve after expiry = %v, want ALREADY_DECIDED", err)
	}
}

func TestWorkflow_ExpiryHonorsBoundary(t *testing.T) {
	w, clock := newTestWorkflow(t)
	req := submitTestRequest(t, w)

	// One second before the deadline the request is still pending.
	clock.advance(time.Hour - time.Second)
	got, err := w.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %v, want pending just before the deadline", got.Status)
	}
}

func TestWorkflow_Cancel(t *testing.T) {
	w, _ := newTestWorkflow(t)
	req := submitTestRequest(t, w)

	// Only the requester may cancel.
	if _, err := w.Cancel(context.Background(), req.ID, "bob"); wardenerrors.GetCode(err) != wardenerrors.ErrCodeUnauthorizedApprover {
		t.Errorf("Cancel by stranger = %v, want UNAUTHORIZED_APPROVER", err)
	}

	got, err := w.Cancel(context.Background(), req.ID, "alice")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("Status = %v, want cancelled", got.Status)
	}
	if got.DecidedBy != "alice" {
		t.Errorf("DecidedBy = %q, want alice", got.DecidedBy)
	}

	if _, err := w.Cancel(context.Background(), req.ID, "alice"); wardenerrors.GetCode(err) != wardenerrors.ErrCodeAlreadyDecided {
		t.Errorf("repeat Cancel = %v, want ALREADY_DECIDED", err)
	}
}

func TestWorkflow_ListPending(t *testing.T) {
	w, clock := newTestWorkflow(t)

	first := submitTestRequest(t, w)

	clock.advance(30 * time.Minute)
	second, err := w.Submit(context.Background(), SubmitInput{
		Requester:     "bob",
		ServerID:      "db-01",
		Purpose:       "index rebuild",
		AccessType:    "session",
		ApproverRoles: []identity.Role{identity.RoleSecurityAdmin},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Advance past the first request's deadline but not the second's.
	clock.advance(45 * time.Minute)

	pending, err := w.ListPending(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count = %d, want 1", len(pending))
	}
	if pending[0].ID != second.ID {
		t.Errorf("pending = %s, want %s", pending[0].ID, second.ID)
	}

	// The expired one was transitioned, not merely hidden.
	got, err := w.Get(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusExpired {
		t.Errorf("first request Status = %v, want expired", got.Status)
	}
}

func TestFindApprovedRequest(t *testing.T) {
	// FindApprovedRequest checks expiry against the wall clock, so this
	// test runs on real time rather than the fake clock.
	store := NewMemoryStore()
	w := NewWorkflow(store, time.Hour)

	req := submitTestRequest(t, w)

	// Pending does not satisfy the check.
	found, err := FindApprovedRequest(context.Background(), store, "alice", "web-01", "deploy hotfix")
	if err != nil {
		t.Fatalf("FindApprovedRequest: %v", err)
	}
	if found != nil {
		t.Error("pending request must not count as approved")
	}

	approver := identity.Principal{UserID: "sam", Role: identity.RoleSecurityAdmin}
	if _, err := w.Approve(context.Background(), req.ID, approver, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	found, err = FindApprovedRequest(context.Background(), store, "alice", "web-01", "deploy hotfix")
	if err != nil {
		t.Fatalf("FindApprovedRequest: %v", err)
	}
	if found == nil || found.ID != req.ID {
		t.Errorf("FindApprovedRequest = %+v, want request %s", found, req.ID)
	}

	// Purpose is part of the match key.
	found, err = FindApprovedRequest(context.Background(), store, "alice", "web-01", "other purpose")
	if err != nil {
		t.Fatalf("FindApprovedRequest: %v", err)
	}
	if found != nil {
		t.Error("mismatched purpose must not match")
	}
}
