package request

import (
	"context"
	"sync"
	"testing"
	"time"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/identity"
)

// TestWorkflow_ConcurrentDecisions races several approvers against the same
// pending request. Exactly one decision must win; the rest must observe
// ALREADY_DECIDED after retrying their lost optimistic update.
func TestWorkflow_ConcurrentDecisions(t *testing.T) {
	w := NewWorkflow(NewMemoryStore(), time.Hour)
	req := submitTestRequest(t, w)

	const deciders = 8
	var wg sync.WaitGroup
	results := make(chan error, deciders)

	for i := 0; i < deciders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			approver := identity.Principal{UserID: "sam", Role: identity.RoleSecurityAdmin}
			var err error
			if n%2 == 0 {
				_, err = w.Approve(context.Background(), req.ID, approver, "")
			} else {
				_, err = w.Reject(context.Background(), req.ID, approver, "")
			}
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case wardenerrors.GetCode(err) == wardenerrors.ErrCodeAlreadyDecided:
			losses++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winning decisions = %d, want exactly 1", wins)
	}
	if losses != deciders-1 {
		t.Errorf("ALREADY_DECIDED losses = %d, want %d", losses, deciders-1)
	}

	got, err := w.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Status.IsTerminal() {
		t.Errorf("final status %v should be terminal", got.Status)
	}
}

// TestMemoryStore_ConcurrentCreates verifies the store tolerates parallel
// writers without losing requests.
func TestMemoryStore_ConcurrentCreates(t *testing.T) {
	store := NewMemoryStore()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := newTestRequest()
			req.ID = NewRequestID()
			if err := store.Create(context.Background(), req); err != nil {
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()

	out, err := store.ListByRequester(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("ListByRequester: %v", err)
	}
	if len(out) != writers {
		t.Errorf("stored requests = %d, want %d", len(out), writers)
	}
}
