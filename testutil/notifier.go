package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/wardenhq/warden/notification"
)

// RecordingNotifier implements notification.Notifier and buffers delivered
// events. Delivery is often asynchronous; Wait blocks until one arrives.
type RecordingNotifier struct {
	events chan *notification.Event
}

// NewRecordingNotifier creates a notifier buffering up to 16 events.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{events: make(chan *notification.Event, 16)}
}

// Notify buffers the event.
func (n *RecordingNotifier) Notify(_ context.Context, event *notification.Event) error {
	n.events <- event
	return nil
}

// Wait returns the next delivered event, failing the test after a timeout.
func (n *RecordingNotifier) Wait(t *testing.T) *notification.Event {
	t.Helper()
	select {
	case event := <-n.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no notification delivered")
		return nil
	}
}
