package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/wardenhq/warden/request"
)

// mockSNSClient implements snsAPI with a settable function field.
type mockSNSClient struct {
	publishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *mockSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.publishFunc(ctx, params, optFns...)
}

func TestSNSNotifier_Notify(t *testing.T) {
	var captured *sns.PublishInput
	mock := &mockSNSClient{
		publishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}
	notifier := newSNSNotifierWithClient(mock, "arn:aws:sns:us-east-1:123456789012:warden-events")

	event := NewEvent(EventRequestApproved, &request.Request{
		ID:        "a1b2c3d4e5f60718",
		Requester: "alice",
		ServerID:  "web-01",
		Status:    request.StatusApproved,
	}, "carol")

	if err := notifier.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if captured == nil {
		t.Fatal("Publish not called")
	}
	if *captured.TopicArn != "arn:aws:sns:us-east-1:123456789012:warden-events" {
		t.Errorf("TopicArn = %q", *captured.TopicArn)
	}

	attr, ok := captured.MessageAttributes["event_type"]
	if !ok {
		t.Fatal("event_type attribute missing")
	}
	if *attr.StringValue != "request.approved" {
		t.Errorf("event_type = %q", *attr.StringValue)
	}

	if captured.Subject == nil || *captured.Subject != "warden: request.approved" {
		t.Errorf("Subject = %v, want warden: request.approved", captured.Subject)
	}

	var decoded Event
	if err := json.Unmarshal([]byte(*captured.Message), &decoded); err != nil {
		t.Fatalf("message not JSON: %v", err)
	}
	if decoded.Type != EventRequestApproved || decoded.Request.ID != "a1b2c3d4e5f60718" {
		t.Errorf("decoded event = %+v", decoded)
	}
}

func TestSNSNotifier_PublishError(t *testing.T) {
	mock := &mockSNSClient{
		publishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("topic not found")
		},
	}
	notifier := newSNSNotifierWithClient(mock, "arn:aws:sns:us-east-1:123456789012:missing")

	err := notifier.Notify(context.Background(), NewSecurityEvent(EventMFALocked, "alice", "system", ""))
	if err == nil {
		t.Fatal("expected error")
	}
}
