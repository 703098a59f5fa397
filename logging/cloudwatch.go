package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// CloudWatchConfig selects the log group and stream audit entries ship to.
// A non-nil SignConfig signs each entry before shipping.
type CloudWatchConfig struct {
	LogGroupName  string
	LogStreamName string
	SignConfig    *SignatureConfig
}

// CloudWatchAPI is the single CloudWatch Logs operation the logger needs.
type CloudWatchAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogger ships audit entries to CloudWatch Logs. Shipping is
// fail-open: a delivery error is reported to stderr and the operation being
// logged proceeds.
type CloudWatchLogger struct {
	client CloudWatchAPI
	config *CloudWatchConfig

	mu            sync.Mutex
	sequenceToken *string
}

// NewCloudWatchLogger creates a logger from the AWS configuration.
func NewCloudWatchLogger(awsCfg aws.Config, config *CloudWatchConfig) *CloudWatchLogger {
	return NewCloudWatchLoggerWithClient(cloudwatchlogs.NewFromConfig(awsCfg), config)
}

// NewCloudWatchLoggerWithClient creates a logger over an existing client.
func NewCloudWatchLoggerWithClient(client CloudWatchAPI, config *CloudWatchConfig) *CloudWatchLogger {
	return &CloudWatchLogger{client: client, config: config}
}

// LogDecision ships a decision entry.
func (l *CloudWatchLogger) LogDecision(entry DecisionLogEntry) {
	l.ship(entry)
}

// LogApproval ships an approval workflow entry.
func (l *CloudWatchLogger) LogApproval(entry ApprovalLogEntry) {
	l.ship(entry)
}

// LogMFA ships an MFA entry.
func (l *CloudWatchLogger) LogMFA(entry MFALogEntry) {
	l.ship(entry)
}

func (l *CloudWatchLogger) ship(entry any) {
	message, err := json.Marshal(l.maybeSign(entry))
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch marshal error: %v\n", err)
		return
	}
	l.putLogEvent(string(message))
}

// maybeSign wraps the entry in a SignedEntry when signing is configured.
// A signing failure degrades to the unsigned entry rather than dropping it.
func (l *CloudWatchLogger) maybeSign(entry any) any {
	if l.config.SignConfig == nil {
		return entry
	}
	signed, err := NewSignedEntry(entry, l.config.SignConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch signing error: %v\n", err)
		return entry
	}
	return signed
}

// putLogEvent sends one event, threading the sequence token between calls.
func (l *CloudWatchLogger) putLogEvent(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(l.config.LogGroupName),
		LogStreamName: aws.String(l.config.LogStreamName),
		SequenceToken: l.sequenceToken,
		LogEvents: []types.InputLogEvent{
			{
				Message:   aws.String(message),
				Timestamp: aws.Int64(time.Now().UnixMilli()),
			},
		},
	}

	output, err := l.client.PutLogEvents(context.Background(), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch PutLogEvents error: %v\n", err)
		return
	}
	if output != nil && output.NextSequenceToken != nil {
		l.sequenceToken = output.NextSequenceToken
	}
}
