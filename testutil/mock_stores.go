package testutil

import (
	"context"
	"sync"

	"github.com/wardenhq/warden/logging"
	"github.com/wardenhq/warden/policy"
	"github.com/wardenhq/warden/request"
)

// MockPolicyStore implements policy.Store with configurable behavior and
// call tracking.
type MockPolicyStore struct {
	mu sync.Mutex

	// ListForServerFunc overrides the default behavior when set.
	ListForServerFunc func(ctx context.Context, serverID string) ([]*policy.Policy, error)

	// ListForServerErr is returned when no override is set.
	ListForServerErr error

	// Policies is returned when no override or error is set.
	Policies []*policy.Policy

	// ListForServerCalls records the serverID of every call.
	ListForServerCalls []string
}

// ListForServer returns the configured policies, error, or override result.
func (m *MockPolicyStore) ListForServer(ctx context.Context, serverID string) ([]*policy.Policy, error) {
	m.mu.Lock()
	m.ListForServerCalls = append(m.ListForServerCalls, serverID)
	m.mu.Unlock()

	if m.ListForServerFunc != nil {
		return m.ListForServerFunc(ctx, serverID)
	}
	if m.ListForServerErr != nil {
		return nil, m.ListForServerErr
	}
	return m.Policies, nil
}

// MockRequestStore implements request.Store for testing. It wraps an
// in-memory store and lets tests inject errors per operation.
type MockRequestStore struct {
	*request.MemoryStore

	CreateErr error
	GetErr    error
	UpdateErr error
}

// NewMockRequestStore creates a MockRequestStore over an empty memory store.
func NewMockRequestStore() *MockRequestStore {
	return &MockRequestStore{MemoryStore: request.NewMemoryStore()}
}

// Create returns the injected error or delegates to the memory store.
func (m *MockRequestStore) Create(ctx context.Context, req *request.Request) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	return m.MemoryStore.Create(ctx, req)
}

// Get returns the injected error or delegates to the memory store.
func (m *MockRequestStore) Get(ctx context.Context, id string) (*request.Request, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.MemoryStore.Get(ctx, id)
}

// Update returns the injected error or delegates to the memory store.
func (m *MockRequestStore) Update(ctx context.Context, req *request.Request) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	return m.MemoryStore.Update(ctx, req)
}

// RecordingLogger implements logging.Logger and captures every entry for
// assertions. Safe for concurrent use.
type RecordingLogger struct {
	mu        sync.Mutex
	Decisions []logging.DecisionLogEntry
	Approvals []logging.ApprovalLogEntry
	MFAEvents []logging.MFALogEntry
}

// LogDecision records the entry.
func (l *RecordingLogger) LogDecision(entry logging.DecisionLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Decisions = append(l.Decisions, entry)
}

// LogApproval records the entry.
func (l *RecordingLogger) LogApproval(entry logging.ApprovalLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Approvals = append(l.Approvals, entry)
}

// LogMFA records the entry.
func (l *RecordingLogger) LogMFA(entry logging.MFALogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.MFAEvents = append(l.MFAEvents, entry)
}
