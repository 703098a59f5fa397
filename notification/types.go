// Package notification provides event types and pluggable delivery for
// security-relevant state changes: request lifecycle transitions, MFA
// lockouts and administrative resets, and malformed policy configuration.
//
// # Event Types
//
// Request lifecycle events are emitted when request state changes:
//   - request.created: A new access request was submitted
//   - request.approved: A request was approved by an approver
//   - request.rejected: A request was rejected by an approver
//   - request.expired: A pending request timed out
//   - request.cancelled: A request was cancelled by the requester
//
// Security events carry no request:
//   - mfa.locked: An account was locked after repeated OTP failures
//   - mfa.reset: An administrator reset a user's MFA enrollment
//   - policy.pattern_invalid: A policy carries a command pattern that does
//     not compile
//
// # Notification Delivery
//
// The Notifier interface allows pluggable notification backends (SNS,
// webhooks, etc.). MultiNotifier composes multiple backends for fanout
// delivery.
package notification

import (
	"time"

	"github.com/wardenhq/warden/request"
)

// EventType represents the type of notification event.
type EventType string

const (
	// EventRequestCreated is emitted when a new access request is submitted.
	EventRequestCreated EventType = "request.created"
	// EventRequestApproved is emitted when a request is approved by an approver.
	EventRequestApproved EventType = "request.approved"
	// EventRequestRejected is emitted when a request is rejected by an approver.
	EventRequestRejected EventType = "request.rejected"
	// EventRequestExpired is emitted when a pending request times out.
	EventRequestExpired EventType = "request.expired"
	// EventRequestCancelled is emitted when a request is cancelled by the requester.
	EventRequestCancelled EventType = "request.cancelled"

	// EventMFALocked is emitted when an account locks after repeated OTP failures.
	EventMFALocked EventType = "mfa.locked"
	// EventMFAReset is emitted when an administrator resets a user's enrollment.
	EventMFAReset EventType = "mfa.reset"

	// EventPatternInvalid is emitted when a policy command pattern fails to compile.
	EventPatternInvalid EventType = "policy.pattern_invalid"
)

// IsValid returns true if the EventType is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventRequestCreated, EventRequestApproved, EventRequestRejected,
		EventRequestExpired, EventRequestCancelled,
		EventMFALocked, EventMFAReset, EventPatternInvalid:
		return true
	}
	return false
}

// String returns the string representation of the EventType.
func (t EventType) String() string {
	return string(t)
}

// Event represents a notification event. Request is set for request
// lifecycle events and nil for MFA and policy configuration events, which
// carry their context in UserID and Detail instead.
type Event struct {
	// Type is the event type.
	Type EventType `json:"type"`

	// Request is the request that triggered this event, if any.
	Request *request.Request `json:"request,omitempty"`

	// UserID is the affected user for MFA events.
	UserID string `json:"user_id,omitempty"`

	// Detail is a human-readable supplement: the lock deadline for
	// mfa.locked, the offending pattern for policy.pattern_invalid.
	Detail string `json:"detail,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Actor is who triggered the event:
	//   - requester user ID for created/cancelled
	//   - approver user ID for approved/rejected
	//   - administrator user ID for mfa.reset
	//   - "system" for expired, mfa.locked, and policy.pattern_invalid
	Actor string `json:"actor"`
}

// NewEvent creates a request lifecycle event stamped with the current time.
func NewEvent(eventType EventType, req *request.Request, actor string) *Event {
	return &Event{
		Type:      eventType,
		Request:   req,
		Timestamp: time.Now(),
		Actor:     actor,
	}
}

// NewSecurityEvent creates an MFA or configuration event stamped with the
// current time.
func NewSecurityEvent(eventType EventType, userID, actor, detail string) *Event {
	return &Event{
		Type:      eventType,
		UserID:    userID,
		Detail:    detail,
		Timestamp: time.Now(),
		Actor:     actor,
	}
}
