package notification

import (
	"context"
	"testing"
	"time"

	"github.com/wardenhq/warden/identity"
	"github.com/wardenhq/warden/request"
)

// channelNotifier delivers events on a channel so tests can wait for the
// asynchronous fire without sleeping.
type channelNotifier struct {
	events chan *Event
}

func newChannelNotifier() *channelNotifier {
	return &channelNotifier{events: make(chan *Event, 10)}
}

func (n *channelNotifier) Notify(_ context.Context, event *Event) error {
	n.events <- event
	return nil
}

func (n *channelNotifier) wait(t *testing.T) *Event {
	t.Helper()
	select {
	case event := <-n.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func notifyTestRequest() *request.Request {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	return &request.Request{
		ID:            "a1b2c3d4e5f60718",
		Requester:     "alice",
		ServerID:      "web-01",
		Purpose:       "deploy hotfix",
		AccessType:    "session",
		PolicyID:      "prod-web",
		ApproverRoles: []identity.Role{identity.RoleSecurityAdmin},
		Status:        request.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(time.Hour),
	}
}

func TestNotifyStore_CreateFiresEvent(t *testing.T) {
	ctx := context.Background()
	notifier := newChannelNotifier()
	store := NewNotifyStore(request.NewMemoryStore(), notifier)

	req := notifyTestRequest()
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	event := notifier.wait(t)
	if event.Type != EventRequestCreated {
		t.Errorf("Type = %q, want %q", event.Type, EventRequestCreated)
	}
	if event.Actor != "alice" {
		t.Errorf("Actor = %q, want requester", event.Actor)
	}
	if event.Request.ID != req.ID {
		t.Errorf("Request.ID = %q", event.Request.ID)
	}
}

func TestNotifyStore_UpdateFiresTransitionEvents(t *testing.T) {
	decide := func(req *request.Request, status request.Status, by string) {
		now := req.CreatedAt.Add(30 * time.Minute)
		req.Status = status
		req.DecidedAt = &now
		req.DecidedBy = by
	}

	testCases := []struct {
		name      string
		mutate    func(req *request.Request)
		wantType  EventType
		wantActor string
	}{
		{
			name:      "approved",
			mutate:    func(req *request.Request) { decide(req, request.StatusApproved, "carol") },
			wantType:  EventRequestApproved,
			wantActor: "carol",
		},
		{
			name:      "rejected",
			mutate:    func(req *request.Request) { decide(req, request.StatusRejected, "carol") },
			wantType:  EventRequestRejected,
			wantActor: "carol",
		},
		{
			name:      "cancelled",
			mutate:    func(req *request.Request) { decide(req, request.StatusCancelled, "alice") },
			wantType:  EventRequestCancelled,
			wantActor: "alice",
		},
		{
			name:      "expired",
			mutate:    func(req *request.Request) { decide(req, request.StatusExpired, "system") },
			wantType:  EventRequestExpired,
			wantActor: "system",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			notifier := newChannelNotifier()
			store := NewNotifyStore(request.NewMemoryStore(), notifier)

			req := notifyTestRequest()
			if err := store.Create(ctx, req); err != nil {
				t.Fatalf("Create: %v", err)
			}
			<-notifier.events // drain the created event

			tc.mutate(req)
			if err := store.Update(ctx, req); err != nil {
				t.Fatalf("Update: %v", err)
			}

			event := notifier.wait(t)
			if event.Type != tc.wantType {
				t.Errorf("Type = %q, want %q", event.Type, tc.wantType)
			}
			if event.Actor != tc.wantActor {
				t.Errorf("Actor = %q, want %q", event.Actor, tc.wantActor)
			}
		})
	}
}

func TestNotifyStore_NoEventWithoutTransition(t *testing.T) {
	ctx := context.Background()
	notifier := newChannelNotifier()
	store := NewNotifyStore(request.NewMemoryStore(), notifier)

	req := notifyTestRequest()
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	<-notifier.events

	// A pending-to-pending update is not a transition.
	req.Purpose = "deploy hotfix and verify"
	if err := store.Update(ctx, req); err != nil {
		t.Fatalf("Update: %v", err)
	}

	select {
	case event := <-notifier.events:
		t.Errorf("unexpected event %q", event.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifyStore_NilNotifier(t *testing.T) {
	ctx := context.Background()
	store := NewNotifyStore(request.NewMemoryStore(), nil)

	req := notifyTestRequest()
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != req.ID {
		t.Errorf("Get returned %q", got.ID)
	}
}

func TestNotifyStore_DelegatesListings(t *testing.T) {
	ctx := context.Background()
	store := NewNotifyStore(request.NewMemoryStore(), nil)

	req := notifyTestRequest()
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byRequester, err := store.ListByRequester(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("ListByRequester: %v", err)
	}
	byStatus, err := store.ListByStatus(ctx, request.StatusPending, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	byServer, err := store.ListByServer(ctx, "web-01", 0)
	if err != nil {
		t.Fatalf("ListByServer: %v", err)
	}
	if len(byRequester) != 1 || len(byStatus) != 1 || len(byServer) != 1 {
		t.Errorf("listing counts = %d, %d, %d, want 1 each", len(byRequester), len(byStatus), len(byServer))
	}
}
