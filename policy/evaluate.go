package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wardenhq/warden/identity"
	"github.com/wardenhq/warden/request"
	"github.com/wardenhq/warden/validate"
)

// AccessRequest represents a remote-session request to be evaluated.
// The caller is expected to have authenticated the user and resolved the
// role before evaluation; Time carries the request timezone via its location.
type AccessRequest struct {
	UserID   string
	Role     identity.Role
	ServerID string
	ClientIP string
	Purpose  string
	Command  string // optional; empty means no command filtering applies
	Time     time.Time
}

// Outcome is the verdict of policy evaluation.
type Outcome string

const (
	// OutcomeAllow grants the session.
	OutcomeAllow Outcome = "allow"
	// OutcomeDeny rejects the session.
	OutcomeDeny Outcome = "deny"
	// OutcomePendingApproval defers the session until an approver signs off.
	OutcomePendingApproval Outcome = "pending_approval"
)

// IsValid returns true if the Outcome is a known value.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeAllow, OutcomeDeny, OutcomePendingApproval:
		return true
	}
	return false
}

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	return string(o)
}

// Decision represents the outcome of policy evaluation.
// Reasons is never empty: every decision carries at least one justification,
// retained for audit consumption. Requesters see only UserMessage.
type Decision struct {
	Outcome           Outcome
	MatchedPolicyID   string
	Reasons           []string
	ApprovalRequestID string // set when Outcome is pending_approval and a workflow is wired
}

// UserMessage returns the generic, non-revealing message surfaced to the
// requester. Precise reasons stay in Reasons for the audit trail.
func (d Decision) UserMessage() string {
	switch d.Outcome {
	case OutcomeAllow:
		return "access granted"
	case OutcomePendingApproval:
		return "access pending approval"
	default:
		return "access denied"
	}
}

// AuditSink receives configuration warnings discovered during evaluation.
// Malformed command patterns are reported here rather than failing the
// evaluation.
type AuditSink interface {
	PatternWarning(w PatternWarning)
}

// Evaluator produces access decisions for remote-session requests.
// Evaluation is a single bounded computation over a snapshot of active
// policies; it never throws for "no match" - the absence of a match is
// itself a DENY decision.
type Evaluator struct {
	// Store supplies the active policies in scope for a server.
	Store Store

	// Approvals registers pending approval requests when a matched policy
	// demands sign-off. Nil disables registration; the decision still
	// reports pending_approval.
	Approvals *request.Workflow

	// Audit receives configuration warnings. Nil discards them.
	Audit AuditSink
}

// NewEvaluator creates an Evaluator over the given policy store.
func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{Store: store}
}

// Evaluate evaluates a session request against the active policy set.
//
// The evaluation pipeline:
//  1. Fetch active policies in scope for the server.
//  2. Discard policies whose role restriction excludes the user's role.
//  3. Discard policies whose day/time window does not contain the request time.
//  4. Rank the remainder by priority descending, ties broken by earliest
//     CreatedAt; the highest-ranked policy is authoritative.
//  5. Apply the authoritative policy's command filter, if any.
//  6. Emit allow, deny, or pending_approval per the authoritative policy.
//
// With no applicable policy the default is DENY (fail closed). Structural
// errors in the request are rejected before evaluation runs; store failures
// are returned as errors, not decisions.
func (e *Evaluator) Evaluate(ctx context.Context, req *AccessRequest) (Decision, error) {
	if err := req.validate(); err != nil {
		return Decision{}, fmt.Errorf("invalid access request: %w", err)
	}

	policies, err := e.Store.ListForServer(ctx, req.ServerID)
	if err != nil {
		return Decision{}, fmt.Errorf("list policies: %w", err)
	}

	candidates := make([]*Policy, 0, len(policies))
	for _, p := range policies {
		if !p.Active {
			continue
		}
		if !p.AppliesToRole(req.Role) {
			continue
		}
		if !p.InWindow(req.Time) {
			continue
		}
		candidates = append(candidates, p)
	}

	if len(candidates) == 0 {
		return Decision{
			Outcome: OutcomeDeny,
			Reasons: []string{"no applicable policy"},
		}, nil
	}

	rankPolicies(candidates)
	authoritative := candidates[0]

	allowed, warnings := authoritative.CommandAllowed(req.Command)
	if e.Audit != nil {
		for _, w := range warnings {
			e.Audit.PatternWarning(w)
		}
	}
	if !allowed {
		reason := fmt.Sprintf("command rejected by %s filter of policy '%s'",
			authoritative.CommandMode, authoritative.ID)
		return Decision{
			Outcome:         OutcomeDeny,
			MatchedPolicyID: authoritative.ID,
			Reasons:         []string{reason},
		}, nil
	}

	if authoritative.RequireApproval {
		decision := Decision{
			Outcome:         OutcomePendingApproval,
			MatchedPolicyID: authoritative.ID,
			Reasons:         []string{fmt.Sprintf("approval required by policy '%s'", authoritative.ID)},
		}
		if e.Approvals != nil {
			approval, err := e.Approvals.Submit(ctx, request.SubmitInput{
				Requester:     req.UserID,
				ServerID:      req.ServerID,
				Purpose:       req.Purpose,
				AccessType:    "session",
				PolicyID:      authoritative.ID,
				ApproverRoles: authoritative.ApproverRoles,
			})
			if err != nil {
				return Decision{}, fmt.Errorf("register approval request: %w", err)
			}
			decision.ApprovalRequestID = approval.ID
		}
		return decision, nil
	}

	return Decision{
		Outcome:         OutcomeAllow,
		MatchedPolicyID: authoritative.ID,
		Reasons:         []string{fmt.Sprintf("matched policy '%s'", authoritative.ID)},
	}, nil
}

// validate rejects structurally malformed requests at the boundary.
func (r *AccessRequest) validate() error {
	if err := validate.ValidateID(r.UserID); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	if err := validate.ValidateID(r.ServerID); err != nil {
		return fmt.Errorf("server id: %w", err)
	}
	if !r.Role.IsValid() {
		return fmt.Errorf("unknown role %q", r.Role)
	}
	if err := validate.ValidatePurpose(r.Purpose); err != nil {
		return fmt.Errorf("purpose: %w", err)
	}
	if err := validate.ValidateSafeString(r.Command, validate.MaxCommandLength); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	if r.Time.IsZero() {
		return fmt.Errorf("time must be set")
	}
	return nil
}

// rankPolicies sorts candidates into authoritative order: priority
// descending, ties broken by earliest CreatedAt, then by ID so the order is
// fully deterministic across repeated evaluations.
func rankPolicies(policies []*Policy) {
	sort.SliceStable(policies, func(i, j int) bool {
		if policies[i].Priority != policies[j].Priority {
			return policies[i].Priority > policies[j].Priority
		}
		if !policies[i].CreatedAt.Equal(policies[j].CreatedAt) {
			return policies[i].CreatedAt.Before(policies[j].CreatedAt)
		}
		return policies[i].ID < policies[j].ID
	})
}
