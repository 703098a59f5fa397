package request

import (
	"fmt"

	"github.com/wardenhq/warden/identity"
	"github.com/wardenhq/warden/validate"
)

// Validate checks that the Request is structurally sound before it is
// persisted. Store implementations call this on Create.
func (r *Request) Validate() error {
	if !ValidateRequestID(r.ID) {
		return fmt.Errorf("invalid request id %q", r.ID)
	}
	if err := validate.ValidateID(r.Requester); err != nil {
		return fmt.Errorf("requester: %w", err)
	}
	if err := validate.ValidateID(r.ServerID); err != nil {
		return fmt.Errorf("server id: %w", err)
	}
	if err := validate.ValidatePurpose(r.Purpose); err != nil {
		return fmt.Errorf("purpose: %w", err)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at must be set")
	}
	if !r.ExpiresAt.After(r.CreatedAt) {
		return fmt.Errorf("expires_at must be after created_at")
	}
	if !identity.SubsetOfKnown(r.ApproverRoles) {
		return fmt.Errorf("approver roles contain an unknown role")
	}
	return nil
}
