package ratelimit

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the single DynamoDB operation the limiter needs.
type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDBLimiter counts attempts in fixed windows shared across nodes, so a
// caller rotating through warden hosts cannot multiply their attempt budget.
//
// One item per key:
//   - PK: "RL#" + key
//   - Attempts: count in the current window
//   - WindowStart: RFC3339 start of the current window
//   - TTL: unix expiry for DynamoDB cleanup
//
// The limiter fails open: when DynamoDB is unreachable the attempt is
// admitted and the error logged, so an outage degrades throttling rather
// than OTP login. The per-account failure counter still applies.
type DynamoDBLimiter struct {
	client    DynamoDBAPI
	tableName string
	cfg       Config
}

// NewDynamoDBLimiter creates a limiter over a table whose partition key is a
// string attribute named "PK".
func NewDynamoDBLimiter(client DynamoDBAPI, tableName string, cfg Config) (*DynamoDBLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("DynamoDB client cannot be nil")
	}
	if tableName == "" {
		return nil, errors.New("tableName cannot be empty")
	}
	return &DynamoDBLimiter{client: client, tableName: tableName, cfg: cfg}, nil
}

// Allow increments the window counter atomically and admits the attempt if
// the count stays within MaxAttempts. The increment is conditioned on the
// stored WindowStart still being current; when the window has rolled over
// the condition fails and the counter is restarted at one.
func (r *DynamoDBLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	windowStart := now.Truncate(r.cfg.Window)

	input := r.updateInput(key, windowStart,
		"SET #n = if_not_exists(#n, :zero) + :one, #ws = if_not_exists(#ws, :ws), #ttl = :ttl")
	input.ConditionExpression = aws.String("attribute_not_exists(#ws) OR #ws = :ws")
	input.ExpressionAttributeValues[":zero"] = &types.AttributeValueMemberN{Value: "0"}

	out, err := r.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return r.restartWindow(ctx, key, now)
		}
		log.Printf("ratelimit: DynamoDB error, admitting attempt: %v", err)
		return true, 0, nil
	}
	return r.judge(out, windowStart, now)
}

// restartWindow unconditionally resets the item to the new window with one
// attempt recorded. Racing resetters all write the same window; at worst a
// couple of attempts from the old window are forgotten.
func (r *DynamoDBLimiter) restartWindow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error) {
	windowStart := now.Truncate(r.cfg.Window)

	input := r.updateInput(key, windowStart, "SET #n = :one, #ws = :ws, #ttl = :ttl")

	out, err := r.client.UpdateItem(ctx, input)
	if err != nil {
		log.Printf("ratelimit: DynamoDB error on window restart, admitting attempt: %v", err)
		return true, 0, nil
	}
	return r.judge(out, windowStart, now)
}

func (r *DynamoDBLimiter) updateInput(key string, windowStart time.Time, expr string) *dynamodb.UpdateItemInput {
	// Items linger one window past expiry before TTL collection.
	ttl := windowStart.Add(2 * r.cfg.Window).Unix()

	return &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "RL#" + key},
		},
		UpdateExpression: aws.String(expr),
		ExpressionAttributeNames: map[string]string{
			"#n":   "Attempts",
			"#ws":  "WindowStart",
			"#ttl": "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":ws":  &types.AttributeValueMemberS{Value: windowStart.Format(time.RFC3339)},
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	}
}

func (r *DynamoDBLimiter) judge(out *dynamodb.UpdateItemOutput, windowStart, now time.Time) (bool, time.Duration, error) {
	if attemptCount(out.Attributes["Attempts"]) > r.cfg.MaxAttempts {
		retryAfter := windowStart.Add(r.cfg.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}

// attemptCount reads the counter attribute, treating anything unreadable
// as zero.
func attemptCount(attr types.AttributeValue) int {
	n, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	count, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0
	}
	return count
}

var _ Limiter = (*DynamoDBLimiter)(nil)
var _ Limiter = (*MemoryLimiter)(nil)
