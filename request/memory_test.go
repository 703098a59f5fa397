package request

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_CreateGet(t *testing.T) {
	store := NewMemoryStore()
	req := newTestRequest()

	if err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Requester != "alice" || got.Status != StatusPending {
		t.Errorf("Get returned %+v", got)
	}

	// Returned value is a copy.
	got.Requester = "mallory"
	again, err := store.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Requester != "alice" {
		t.Error("stored request mutated through returned copy")
	}
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	store := NewMemoryStore()
	req := newTestRequest()

	if err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(context.Background(), req); !errors.Is(err, ErrRequestExists) {
		t.Errorf("duplicate Create = %v, want ErrRequestExists", err)
	}
}

func TestMemoryStore_CreateRejectsInvalid(t *testing.T) {
	store := NewMemoryStore()
	req := newTestRequest()
	req.ID = "bogus"

	if err := store.Create(context.Background(), req); err == nil {
		t.Error("Create should reject an invalid request")
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "0123456789abcdef"); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("Get = %v, want ErrRequestNotFound", err)
	}
}

func TestMemoryStore_UpdateOptimisticLock(t *testing.T) {
	store := NewMemoryStore()
	req := newTestRequest()
	if err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := store.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := store.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	first.Status = StatusApproved
	if err := store.Update(context.Background(), first); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	// The store hands back the new lock token.
	if first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Error("Update should advance UpdatedAt")
	}

	// The second writer holds a stale token and must lose.
	second.Status = StatusRejected
	if err := store.Update(context.Background(), second); !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("stale Update = %v, want ErrConcurrentModification", err)
	}

	got, err := store.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("Status = %v, want approved (first writer wins)", got.Status)
	}
}

func TestMemoryStore_UpdateNotFound(t *testing.T) {
	store := NewMemoryStore()
	req := newTestRequest()
	if err := store.Update(context.Background(), req); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("Update = %v, want ErrRequestNotFound", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	req := newTestRequest()
	if err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Delete(context.Background(), req.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(context.Background(), req.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("Get after Delete = %v, want ErrRequestNotFound", err)
	}
	// Idempotent.
	if err := store.Delete(context.Background(), req.ID); err != nil {
		t.Errorf("repeat Delete = %v", err)
	}
}

func TestMemoryStore_Listings(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)

	mk := func(requester, serverID string, status Status, offset time.Duration) *Request {
		req := newTestRequest()
		req.ID = NewRequestID()
		req.Requester = requester
		req.ServerID = serverID
		req.Status = status
		req.CreatedAt = base.Add(offset)
		req.UpdatedAt = req.CreatedAt
		req.ExpiresAt = req.CreatedAt.Add(DefaultRequestTTL)
		if err := store.Create(context.Background(), req); err != nil {
			t.Fatalf("create: %v", err)
		}
		return req
	}

	mk("alice", "web-01", StatusPending, 0)
	mk("alice", "db-01", StatusApproved, time.Minute)
	newest := mk("alice", "web-01", StatusPending, 2*time.Minute)
	mk("bob", "web-01", StatusPending, 3*time.Minute)

	byRequester, err := store.ListByRequester(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("ListByRequester: %v", err)
	}
	if len(byRequester) != 3 {
		t.Errorf("alice request count = %d, want 3", len(byRequester))
	}
	if byRequester[0].ID != newest.ID {
		t.Error("listings should be ordered newest first")
	}

	byStatus, err := store.ListByStatus(context.Background(), StatusPending, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(byStatus) != 3 {
		t.Errorf("pending count = %d, want 3", len(byStatus))
	}

	byServer, err := store.ListByServer(context.Background(), "web-01", 0)
	if err != nil {
		t.Fatalf("ListByServer: %v", err)
	}
	if len(byServer) != 3 {
		t.Errorf("web-01 count = %d, want 3", len(byServer))
	}

	capped, err := store.ListByRequester(context.Background(), "alice", 2)
	if err != nil {
		t.Fatalf("ListByRequester: %v", err)
	}
	if len(capped) != 2 {
		t.Errorf("capped count = %d, want 2", len(capped))
	}
}
