package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/identity"
)

// casRetries bounds re-reads when an optimistic update loses a race.
const casRetries = 3

// Workflow coordinates the approval request state machine over a Store.
// It applies lazy expiry on every read: pending requests past their
// ExpiresAt are transitioned to expired before being returned, so callers
// never observe a stale pending request. There is no background timer.
type Workflow struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewWorkflow creates a Workflow over the given store.
// Pending requests expire after ttl; ttl <= 0 selects DefaultRequestTTL.
func NewWorkflow(store Store, ttl time.Duration) *Workflow {
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	return &Workflow{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock replaces the workflow's time source. Used in tests.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// SubmitInput carries the fields needed to open an approval request.
type SubmitInput struct {
	Requester     string
	ServerID      string
	Purpose       string
	AccessType    string
	PolicyID      string
	ApproverRoles []identity.Role
}

// Submit opens a new pending approval request, or returns the existing one
// if the requester already has a live pending request for the same server
// and purpose. Idempotency is keyed on (requester, server, purpose) so a
// retried session request does not fan out into duplicate approvals.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput) (*Request, error) {
	existing, err := w.findPending(ctx, in.Requester, in.ServerID, in.Purpose)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := w.now()
	req := &Request{
		ID:            NewRequestID(),
		Requester:     in.Requester,
		ServerID:      in.ServerID,
		Purpose:       in.Purpose,
		AccessType:    in.AccessType,
		PolicyID:      in.PolicyID,
		ApproverRoles: in.ApproverRoles,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(w.ttl),
	}
	if err := w.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// Get retrieves a request by ID with lazy expiry applied.
func (w *Workflow) Get(ctx context.Context, id string) (*Request, error) {
	req, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return w.expireIfDue(ctx, req)
}

// Approve transitions a pending request to approved.
// The approver's role must be a member of the request's approver set, and
// the approver must not be the requester. Terminal requests fail with an
// ALREADY_DECIDED error.
func (w *Workflow) Approve(ctx context.Context, id string, approver identity.Principal, comment string) (*Request, error) {
	return w.decide(ctx, id, approver, StatusApproved, comment)
}

// Reject transitions a pending request to rejected with the given reason.
// Authorization rules match Approve.
func (w *Workflow) Reject(ctx context.Context, id string, approver identity.Principal, reason string) (*Request, error) {
	return w.decide(ctx, id, approver, StatusRejected, reason)
}

// Cancel transitions a pending request to cancelled.
// Only the original requester may cancel.
func (w *Workflow) Cancel(ctx context.Context, id, requesterID string) (*Request, error) {
	for attempt := 0; ; attempt++ {
		req, err := w.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if req.Requester != requesterID {
			return nil, wardenerrors.New(wardenerrors.ErrCodeUnauthorizedApprover,
				fmt.Sprintf("user %s is not the requester of %s", requesterID, id),
				wardenerrors.GetSuggestion(wardenerrors.ErrCodeUnauthorizedApprover), nil)
		}
		if req.Status.IsTerminal() {
			return nil, alreadyDecided(req)
		}

		now := w.now()
		req.Status = StatusCancelled
		req.DecidedAt = &now
		req.DecidedBy = requesterID

		err = w.store.Update(ctx, req)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, ErrConcurrentModification) || attempt >= casRetries {
			return nil, fmt.Errorf("update request: %w", err)
		}
	}
}

// ListPending returns pending requests with lazy expiry applied, newest first.
// Requests that expire during the read are filtered out of the listing.
func (w *Workflow) ListPending(ctx context.Context, limit int) ([]*Request, error) {
	reqs, err := w.store.ListByStatus(ctx, StatusPending, limit)
	if err != nil {
		return nil, err
	}

	live := make([]*Request, 0, len(reqs))
	for _, req := range reqs {
		updated, err := w.expireIfDue(ctx, req)
		if err != nil {
			return nil, err
		}
		if updated.Status == StatusPending {
			live = append(live, updated)
		}
	}
	return live, nil
}

// decide applies an approve/reject transition with authorization checks and
// a bounded retry on optimistic locking conflicts.
func (w *Workflow) decide(ctx context.Context, id string, approver identity.Principal, target Status, comment string) (*Request, error) {
	for attempt := 0; ; attempt++ {
		req, err := w.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if req.Status.IsTerminal() {
			return nil, alreadyDecided(req)
		}

		if !identity.ContainsRole(req.ApproverRoles, approver.Role) {
			return nil, wardenerrors.New(wardenerrors.ErrCodeUnauthorizedApprover,
				fmt.Sprintf("role %s may not decide request %s", approver.Role, id),
				wardenerrors.GetSuggestion(wardenerrors.ErrCodeUnauthorizedApprover), nil)
		}
		if approver.UserID == req.Requester {
			return nil, wardenerrors.New(wardenerrors.ErrCodeUnauthorizedApprover,
				fmt.Sprintf("requester %s may not decide their own request", approver.UserID),
				"A different user holding an approver role must decide this request.", nil)
		}

		now := w.now()
		req.Status = target
		req.DecidedAt = &now
		req.DecidedBy = approver.UserID
		req.DecisionReason = comment

		err = w.store.Update(ctx, req)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, ErrConcurrentModification) || attempt >= casRetries {
			return nil, fmt.Errorf("update request: %w", err)
		}
		// Lost the race; re-read and re-check. If the other writer decided
		// the request, the next iteration fails with ALREADY_DECIDED.
	}
}

// findPending locates a live pending request matching the idempotency key.
func (w *Workflow) findPending(ctx context.Context, requester, serverID, purpose string) (*Request, error) {
	reqs, err := w.store.ListByRequester(ctx, requester, MaxQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	for _, req := range reqs {
		if req.Status != StatusPending || req.ServerID != serverID || req.Purpose != purpose {
			continue
		}
		updated, err := w.expireIfDue(ctx, req)
		if err != nil {
			return nil, err
		}
		if updated.Status == StatusPending {
			return updated, nil
		}
	}
	return nil, nil
}

// expireIfDue transitions a pending request past its deadline to expired.
// Conflicting writers are tolerated: if another process decides or expires
// the request first, the fresh copy is returned.
func (w *Workflow) expireIfDue(ctx context.Context, req *Request) (*Request, error) {
	if req.Status != StatusPending || w.now().Before(req.ExpiresAt) {
		return req, nil
	}

	now := w.now()
	req.Status = StatusExpired
	req.DecidedAt = &now
	req.DecidedBy = "system"

	err := w.store.Update(ctx, req)
	if err == nil {
		return req, nil
	}
	if errors.Is(err, ErrConcurrentModification) {
		fresh, getErr := w.store.Get(ctx, req.ID)
		if getErr != nil {
			return nil, getErr
		}
		return fresh, nil
	}
	return nil, fmt.Errorf("expire request: %w", err)
}

// alreadyDecided builds the terminal-state error for a request.
func alreadyDecided(req *Request) error {
	return wardenerrors.New(wardenerrors.ErrCodeAlreadyDecided,
		fmt.Sprintf("request %s is already %s", req.ID, req.Status),
		wardenerrors.GetSuggestion(wardenerrors.ErrCodeAlreadyDecided), nil)
}
