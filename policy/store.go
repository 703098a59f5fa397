package policy

import (
	"context"
	"errors"
)

// Storage-related sentinel errors for Store implementations.
// These errors support errors.Is() checking for robust error handling.
var (
	// ErrPolicyNotFound is returned when the requested policy does not exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPolicyExists is returned when attempting to create a policy with an
	// ID that already exists in the store.
	ErrPolicyExists = errors.New("policy already exists")
)

// Store defines the read surface the evaluator depends on.
// Implementations must be safe for concurrent use. Policy mutations take
// effect for subsequent evaluations; a listing is a consistent snapshot.
type Store interface {
	// ListForServer returns all active policies whose scope includes the
	// server, directly or via group membership. Returns an empty slice when
	// no policy applies.
	ListForServer(ctx context.Context, serverID string) ([]*Policy, error)
}

// GroupResolver resolves the server groups a server belongs to.
// Scope matching against ServerGroupIDs depends on this membership.
type GroupResolver interface {
	// GroupsForServer returns the group IDs the server is a member of.
	// Returns an empty slice for servers in no group.
	GroupsForServer(ctx context.Context, serverID string) ([]string, error)
}

// StaticGroupResolver implements GroupResolver over a fixed membership map.
// Useful for file-based deployments and tests.
type StaticGroupResolver map[string][]string

// GroupsForServer returns the configured group memberships for serverID.
func (r StaticGroupResolver) GroupsForServer(_ context.Context, serverID string) ([]string, error) {
	groups := r[serverID]
	out := make([]string, len(groups))
	copy(out, groups)
	return out, nil
}
