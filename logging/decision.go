package logging

import (
	"time"

	"github.com/wardenhq/warden/iso8601"
	"github.com/wardenhq/warden/policy"
)

// DecisionLogEntry captures all context for an access decision.
// Reasons carries the precise justifications retained for audit; the
// requester only ever sees the generic user message.
type DecisionLogEntry struct {
	Timestamp         string   `json:"timestamp"`                     // ISO8601 format
	User              string   `json:"user"`                          // User requesting the session
	Role              string   `json:"role"`                          // Resolved role at evaluation time
	ServerID          string   `json:"server_id"`                     // Target server
	ClientIP          string   `json:"client_ip,omitempty"`           // Request source address
	Purpose           string   `json:"purpose,omitempty"`             // Stated purpose of the session
	Command           string   `json:"command,omitempty"`             // Requested command, if any
	Outcome           string   `json:"outcome"`                       // "allow", "deny", or "pending_approval"
	PolicyID          string   `json:"policy_id,omitempty"`           // Winning policy (empty on fail-closed deny)
	Reasons           []string `json:"reasons"`                       // Audit justifications, never empty
	ApprovalRequestID string   `json:"approval_request_id,omitempty"` // Created approval request, if pending
}

// NewDecisionLogEntry creates a DecisionLogEntry from policy evaluation results.
func NewDecisionLogEntry(req *policy.AccessRequest, decision policy.Decision) DecisionLogEntry {
	return DecisionLogEntry{
		Timestamp:         iso8601.Format(time.Now()),
		User:              req.UserID,
		Role:              string(req.Role),
		ServerID:          req.ServerID,
		ClientIP:          req.ClientIP,
		Purpose:           req.Purpose,
		Command:           req.Command,
		Outcome:           string(decision.Outcome),
		PolicyID:          decision.MatchedPolicyID,
		Reasons:           decision.Reasons,
		ApprovalRequestID: decision.ApprovalRequestID,
	}
}
