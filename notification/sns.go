package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsAPI is the single SNS operation the notifier needs.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes security events to an SNS topic as JSON. Each
// message carries an "event_type" attribute so subscriptions can filter on
// it, e.g. a pager subscription that only matches mfa.locked.
type SNSNotifier struct {
	client   snsAPI
	topicARN string
}

// NewSNSNotifier creates a notifier publishing to topicARN.
func NewSNSNotifier(cfg aws.Config, topicARN string) *SNSNotifier {
	return newSNSNotifierWithClient(sns.NewFromConfig(cfg), topicARN)
}

func newSNSNotifierWithClient(client snsAPI, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

// Notify publishes the event. The subject summarizes the event type for
// email subscriptions; the body is the full event as JSON.
func (n *SNSNotifier) Notify(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String("warden: " + event.Type.String()),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Type.String()),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
