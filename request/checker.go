package request

import (
	"context"
	"time"
)

// FindApprovedRequest searches for a valid approved request for a specific
// user, server, and purpose. Callers re-checking access before opening a
// session use this; pending, expired, and otherwise terminal requests are
// treated as deny (nil result).
//
// Returns the first matching request if found, or nil if no valid approved
// request exists. Returns error only for store errors, not for "no approved
// request found".
func FindApprovedRequest(ctx context.Context, store Store, requester, serverID, purpose string) (*Request, error) {
	requests, err := store.ListByRequester(ctx, requester, MaxQueryLimit)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, req := range requests {
		if req.Status != StatusApproved {
			continue
		}
		if req.ServerID != serverID || req.Purpose != purpose {
			continue
		}
		if now.After(req.ExpiresAt) {
			continue
		}
		return req, nil
	}

	return nil, nil
}
