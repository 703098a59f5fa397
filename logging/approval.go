package logging

import (
	"time"

	"github.com/wardenhq/warden/iso8601"
	"github.com/wardenhq/warden/notification"
	"github.com/wardenhq/warden/request"
)

// ApprovalLogEntry captures all context for an approval workflow event.
// Events include: request.created, request.approved, request.rejected,
// request.expired, request.cancelled.
type ApprovalLogEntry struct {
	Timestamp string `json:"timestamp"`          // ISO8601 format
	Event     string `json:"event"`              // "request.created", "request.approved", etc.
	RequestID string `json:"request_id"`         // 16-char hex request ID
	Requester string `json:"requester"`          // Who requested access
	ServerID  string `json:"server_id"`          // Server being requested
	PolicyID  string `json:"policy_id"`          // Policy that required approval
	Status    string `json:"status"`             // Current status after event
	Actor     string `json:"actor"`              // Who triggered event (requester, approver, or "system")
	Purpose   string `json:"purpose,omitempty"`  // Reason for request (on create)
	Approver  string `json:"approver,omitempty"` // Who approved/rejected
}

// NewApprovalLogEntry creates an ApprovalLogEntry from a notification event.
// It populates fields based on the event type:
//   - request.created: includes purpose
//   - request.approved/rejected: includes approver
//   - request.expired/cancelled: no additional optional fields
func NewApprovalLogEntry(event notification.EventType, req *request.Request, actor string) ApprovalLogEntry {
	entry := ApprovalLogEntry{
		Timestamp: iso8601.Format(time.Now()),
		Event:     string(event),
		RequestID: req.ID,
		Requester: req.Requester,
		ServerID:  req.ServerID,
		PolicyID:  req.PolicyID,
		Status:    string(req.Status),
		Actor:     actor,
	}

	switch event {
	case notification.EventRequestCreated:
		entry.Purpose = req.Purpose

	case notification.EventRequestApproved, notification.EventRequestRejected:
		entry.Approver = req.DecidedBy
	}

	return entry
}
