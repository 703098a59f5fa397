package notification

import (
	"context"
	"log"
	"time"

	"github.com/wardenhq/warden/iso8601"
	"github.com/wardenhq/warden/policy"
)

// SecuritySink bridges MFA lockout/reset events and policy configuration
// warnings onto a Notifier. It implements mfa.EventSink and policy.AuditSink.
//
// Delivery is asynchronous and fail-open: a notifier error is logged, never
// propagated, so alerting problems cannot block a login or an evaluation.
type SecuritySink struct {
	notifier Notifier
}

// NewSecuritySink creates a sink delivering to the given notifier.
// If notifier is nil, a NoopNotifier is used.
func NewSecuritySink(notifier Notifier) *SecuritySink {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	return &SecuritySink{notifier: notifier}
}

// AccountLocked publishes an mfa.locked event carrying the lock deadline.
func (s *SecuritySink) AccountLocked(userID string, until time.Time) {
	go s.deliver(NewSecurityEvent(EventMFALocked, userID, "system", "locked until "+iso8601.Format(until)))
}

// AccountReset publishes an mfa.reset event attributed to the administrator.
func (s *SecuritySink) AccountReset(userID, adminID string) {
	go s.deliver(NewSecurityEvent(EventMFAReset, userID, adminID, ""))
}

// PatternWarning publishes a policy.pattern_invalid event for a command
// pattern that failed to compile.
func (s *SecuritySink) PatternWarning(w policy.PatternWarning) {
	go s.deliver(NewSecurityEvent(EventPatternInvalid, "", "system", w.String()))
}

func (s *SecuritySink) deliver(event *Event) {
	if err := s.notifier.Notify(context.Background(), event); err != nil {
		log.Printf("notification error (%s): %v", event.Type, err)
	}
}
