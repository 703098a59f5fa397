package policy

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore implements Store with an in-memory policy set.
// Safe for concurrent use. Listings return copies so callers hold a
// snapshot that later mutations do not affect.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*Policy
	resolver GroupResolver
}

// NewMemoryStore creates an empty MemoryStore.
// The resolver supplies server group membership for scope matching;
// nil means servers belong to no groups.
func NewMemoryStore(resolver GroupResolver) *MemoryStore {
	if resolver == nil {
		resolver = StaticGroupResolver{}
	}
	return &MemoryStore{
		policies: make(map[string]*Policy),
		resolver: resolver,
	}
}

// Put stores or replaces a policy. The policy must validate.
func (s *MemoryStore) Put(p *Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	s.policies[p.ID] = &clone
	return nil
}

// Get retrieves a policy by ID. Returns ErrPolicyNotFound if not present.
func (s *MemoryStore) Get(id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrPolicyNotFound)
	}
	clone := *p
	return &clone, nil
}

// Delete removes a policy by ID. No-op if not present (idempotent).
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
}

// ListForServer returns copies of all active policies in scope for serverID.
func (s *MemoryStore) ListForServer(ctx context.Context, serverID string) ([]*Policy, error) {
	groups, err := s.resolver.GroupsForServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("resolve server groups: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Policy
	for _, p := range s.policies {
		if !p.Active {
			continue
		}
		if !p.Scope.IncludesServer(serverID, groups) {
			continue
		}
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}
