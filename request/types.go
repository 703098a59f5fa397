// Package request defines Warden's approval request schema and workflow.
// Requests are produced by the policy evaluator when a matched policy demands
// sign-off before a remote session is opened. Each request flows through a
// state machine from pending to terminal states (approved, rejected, expired,
// cancelled).
//
// # Request State Machine
//
// Valid state transitions:
//   - pending -> approved (by approver)
//   - pending -> rejected (by approver)
//   - pending -> expired (by TTL, applied lazily on read)
//   - pending -> cancelled (by requester)
//
// Terminal states (approved, rejected, expired, cancelled) cannot transition.
//
// # Request ID Format
//
// Request IDs are 16-character lowercase hexadecimal strings (64 bits of
// entropy), providing uniqueness and correlation across workflow operations.
package request

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/wardenhq/warden/identity"
)

const (
	// DefaultRequestTTL is how long pending requests remain valid before expiring.
	DefaultRequestTTL = 24 * time.Hour

	// MaxPurposeLength is the maximum length for purpose text.
	MaxPurposeLength = 500

	// RequestIDLength is the exact length for request IDs (16 hex chars).
	RequestIDLength = 16
)

// Status represents the current state of an approval request.
// It can be pending, approved, rejected, expired, or cancelled.
type Status string

const (
	// StatusPending indicates the request is awaiting approval.
	StatusPending Status = "pending"
	// StatusApproved indicates the request was approved by an approver.
	StatusApproved Status = "approved"
	// StatusRejected indicates the request was rejected by an approver.
	StatusRejected Status = "rejected"
	// StatusExpired indicates the request expired before being actioned.
	StatusExpired Status = "expired"
	// StatusCancelled indicates the request was cancelled by the requester.
	StatusCancelled Status = "cancelled"
)

// IsValid returns true if the Status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is a terminal state that cannot transition.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Request represents an approval request for remote-session access.
// It records who is requesting access to which server and why, the approver
// roles eligible to decide it, and the current state of the workflow.
type Request struct {
	// ID is the unique request identifier (16 lowercase hex chars).
	ID string `yaml:"id" json:"id"`

	// Requester is the user ID requesting access.
	Requester string `yaml:"requester" json:"requester"`

	// ServerID is the server being requested.
	ServerID string `yaml:"server_id" json:"server_id"`

	// Purpose explains why access is needed.
	Purpose string `yaml:"purpose" json:"purpose"`

	// AccessType labels the kind of access requested (e.g. "session").
	AccessType string `yaml:"access_type" json:"access_type"`

	// PolicyID is the policy whose approval requirement created this request.
	PolicyID string `yaml:"policy_id" json:"policy_id"`

	// ApproverRoles is the set of roles eligible to decide this request,
	// captured from the originating policy at creation time.
	ApproverRoles []identity.Role `yaml:"approver_roles" json:"approver_roles"`

	// Status is the current state of the request (pending, approved, etc.).
	Status Status `yaml:"status" json:"status"`

	// CreatedAt is when the request was submitted.
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`

	// UpdatedAt is when the request was last modified. It doubles as the
	// optimistic locking token for Store.Update.
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`

	// ExpiresAt is when the pending request times out.
	ExpiresAt time.Time `yaml:"expires_at" json:"expires_at"`

	// DecidedAt is when the request reached a terminal state (nil while pending).
	DecidedAt *time.Time `yaml:"decided_at,omitempty" json:"decided_at,omitempty"`

	// DecidedBy is who approved/rejected/cancelled the request, or "system"
	// for lazy expiry. Empty while pending.
	DecidedBy string `yaml:"decided_by,omitempty" json:"decided_by,omitempty"`

	// DecisionReason is an optional comment from the decider.
	DecisionReason string `yaml:"decision_reason,omitempty" json:"decision_reason,omitempty"`
}

// requestIDRegex matches valid request IDs (16 lowercase hex chars).
var requestIDRegex = regexp.MustCompile(`^[0-9a-f]{16}$`)

// NewRequestID generates a new 16-character lowercase hex request ID.
// It uses crypto/rand for cryptographic randomness.
func NewRequestID() string {
	// Generate 8 random bytes (64 bits of entropy)
	bytes := make([]byte, 8)
	_, err := rand.Read(bytes)
	if err != nil {
		// This should never happen with crypto/rand
		// Fall back to zeros rather than panic
		return "0000000000000000"
	}

	// Encode as 16-character lowercase hex string
	return hex.EncodeToString(bytes)
}

// ValidateRequestID checks if the given string is a valid request ID.
// A valid request ID is exactly 16 lowercase hexadecimal characters.
func ValidateRequestID(id string) bool {
	return requestIDRegex.MatchString(id)
}
