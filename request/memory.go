package request

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory map.
// Safe for concurrent use. Primarily used in tests and single-process
// deployments; production deployments use DynamoDBStore.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]*Request
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*Request),
	}
}

// Create stores a new request. Returns ErrRequestExists if ID already exists.
func (s *MemoryStore) Create(_ context.Context, req *Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("%s: %w", req.ID, ErrRequestExists)
	}
	clone := *req
	s.requests[req.ID] = &clone
	return nil
}

// Get retrieves a request by ID. Returns ErrRequestNotFound if not exists.
func (s *MemoryStore) Get(_ context.Context, id string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}
	clone := *stored
	return &clone, nil
}

// Update modifies an existing request using optimistic locking on UpdatedAt.
func (s *MemoryStore) Update(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[req.ID]
	if !ok {
		return fmt.Errorf("%s: %w", req.ID, ErrRequestNotFound)
	}
	if !stored.UpdatedAt.Equal(req.UpdatedAt) {
		return fmt.Errorf("%s: %w", req.ID, ErrConcurrentModification)
	}

	clone := *req
	clone.UpdatedAt = time.Now()
	s.requests[req.ID] = &clone
	req.UpdatedAt = clone.UpdatedAt
	return nil
}

// Delete removes a request by ID. No-op if not exists (idempotent).
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, id)
	return nil
}

// ListByRequester returns all requests from a specific user, newest first.
func (s *MemoryStore) ListByRequester(_ context.Context, requester string, limit int) ([]*Request, error) {
	return s.list(limit, func(r *Request) bool { return r.Requester == requester }), nil
}

// ListByStatus returns all requests with a specific status, newest first.
func (s *MemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Request, error) {
	return s.list(limit, func(r *Request) bool { return r.Status == status }), nil
}

// ListByServer returns all requests for a specific server, newest first.
func (s *MemoryStore) ListByServer(_ context.Context, serverID string, limit int) ([]*Request, error) {
	return s.list(limit, func(r *Request) bool { return r.ServerID == serverID }), nil
}

// list returns copies of requests matching the filter, ordered by created_at
// descending and capped at the normalized limit.
func (s *MemoryStore) list(limit int, match func(*Request) bool) []*Request {
	limit = normalizeLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Request, 0)
	for _, r := range s.requests {
		if match(r) {
			clone := *r
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
