package mfa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	wardenerrors "github.com/wardenhq/warden/errors"
)

// dynamoDBAPI defines the DynamoDB operations used by DynamoDBRecordStore.
// This interface enables testing with mock implementations.
type dynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBRecordStore implements RecordStore using AWS DynamoDB.
// Updates are conditional on the record version, which makes the failure
// counter and lock transition linearizable per user.
//
// Table schema assumptions (created externally via Terraform/CloudFormation):
//   - Partition key: user_id (String)
//   - All Record fields stored as attributes
type DynamoDBRecordStore struct {
	client    dynamoDBAPI
	tableName string
}

// NewDynamoDBRecordStore creates a new DynamoDBRecordStore using the provided
// AWS configuration. The tableName specifies the table for OTP records.
func NewDynamoDBRecordStore(cfg aws.Config, tableName string) *DynamoDBRecordStore {
	return &DynamoDBRecordStore{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
	}
}

// newDynamoDBRecordStoreWithClient creates a DynamoDBRecordStore with a custom
// client. This is primarily used for testing with mock clients.
func newDynamoDBRecordStoreWithClient(client dynamoDBAPI, tableName string) *DynamoDBRecordStore {
	return &DynamoDBRecordStore{
		client:    client,
		tableName: tableName,
	}
}

// backupCodeItem mirrors BackupCode for DynamoDB serialization.
type backupCodeItem struct {
	Hash   string `dynamodbav:"hash"`
	Used   bool   `dynamodbav:"used"`
	UsedAt string `dynamodbav:"used_at"` // RFC3339, empty while unused
}

// recordItem represents the DynamoDB item structure for a Record.
// It uses explicit field mapping for proper serialization of Go types.
type recordItem struct {
	UserID      string           `dynamodbav:"user_id"`
	Secret      string           `dynamodbav:"secret"`
	Status      string           `dynamodbav:"status"`
	FailCount   int              `dynamodbav:"fail_count"`
	LockedUntil string           `dynamodbav:"locked_until"`  // RFC3339, empty unless locked
	LastResetAt string           `dynamodbav:"last_reset_at"` // RFC3339, empty unless reset
	LastResetBy string           `dynamodbav:"last_reset_by"`
	BackupCodes []backupCodeItem `dynamodbav:"backup_codes,omitempty"`
	Version     int64            `dynamodbav:"version"`
	UpdatedAt   string           `dynamodbav:"updated_at"` // RFC3339
}

// recordToItem converts a Record to a DynamoDB item structure.
func recordToItem(rec *Record) *recordItem {
	item := &recordItem{
		UserID:      rec.UserID,
		Secret:      rec.Secret,
		Status:      string(rec.Status),
		FailCount:   rec.FailCount,
		LastResetBy: rec.LastResetBy,
		Version:     rec.Version,
		UpdatedAt:   rec.UpdatedAt.Format(time.RFC3339Nano),
	}
	if rec.LockedUntil != nil {
		item.LockedUntil = rec.LockedUntil.Format(time.RFC3339Nano)
	}
	if rec.LastResetAt != nil {
		item.LastResetAt = rec.LastResetAt.Format(time.RFC3339Nano)
	}
	for _, c := range rec.BackupCodes {
		ci := backupCodeItem{Hash: c.Hash, Used: c.Used}
		if c.UsedAt != nil {
			ci.UsedAt = c.UsedAt.Format(time.RFC3339Nano)
		}
		item.BackupCodes = append(item.BackupCodes, ci)
	}
	return item
}

// itemToRecord converts a DynamoDB item structure back to a Record.
func itemToRecord(item *recordItem) (*Record, error) {
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	rec := &Record{
		UserID:      item.UserID,
		Secret:      item.Secret,
		Status:      Status(item.Status),
		FailCount:   item.FailCount,
		LastResetBy: item.LastResetBy,
		Version:     item.Version,
		UpdatedAt:   updatedAt,
	}
	if item.LockedUntil != "" {
		t, err := time.Parse(time.RFC3339Nano, item.LockedUntil)
		if err != nil {
			return nil, fmt.Errorf("parse locked_until: %w", err)
		}
		rec.LockedUntil = &t
	}
	if item.LastResetAt != "" {
		t, err := time.Parse(time.RFC3339Nano, item.LastResetAt)
		if err != nil {
			return nil, fmt.Errorf("parse last_reset_at: %w", err)
		}
		rec.LastResetAt = &t
	}
	for _, ci := range item.BackupCodes {
		c := BackupCode{Hash: ci.Hash, Used: ci.Used}
		if ci.UsedAt != "" {
			t, err := time.Parse(time.RFC3339Nano, ci.UsedAt)
			if err != nil {
				return nil, fmt.Errorf("parse used_at: %w", err)
			}
			c.UsedAt = &t
		}
		rec.BackupCodes = append(rec.BackupCodes, c)
	}
	return rec, nil
}

// Create stores a new record with Version 1.
func (s *DynamoDBRecordStore) Create(ctx context.Context, rec *Record) error {
	if rec.UserID == "" {
		return fmt.Errorf("record missing user id")
	}
	if !rec.Status.IsValid() {
		return fmt.Errorf("invalid status %q", rec.Status)
	}

	created := *rec
	created.Version = 1
	created.UpdatedAt = time.Now()

	av, err := attributevalue.MarshalMap(recordToItem(&created))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%s: %w", rec.UserID, ErrRecordExists)
		}
		return wardenerrors.WrapDynamoDBError(err, s.tableName, "PutItem")
	}

	rec.Version = created.Version
	rec.UpdatedAt = created.UpdatedAt
	return nil
}

// Get retrieves the record for a user.
func (s *DynamoDBRecordStore) Get(ctx context.Context, userID string) (*Record, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, wardenerrors.WrapDynamoDBError(err, s.tableName, "GetItem")
	}

	if output.Item == nil {
		return nil, fmt.Errorf("%s: %w", userID, ErrRecordNotFound)
	}

	var item recordItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return itemToRecord(&item)
}

// Update writes a modified record under an optimistic version check.
func (s *DynamoDBRecordStore) Update(ctx context.Context, rec *Record) error {
	oldVersion := rec.Version

	updated := *rec
	updated.Version = oldVersion + 1
	updated.UpdatedAt = time.Now()

	av, err := attributevalue.MarshalMap(recordToItem(&updated))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	// Item must exist AND version must match the value from the last read.
	// If another process updated the item in between, the condition fails.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(user_id) AND #version = :old_version"),
		ExpressionAttributeNames: map[string]string{
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":old_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(oldVersion, 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Could be either not found or concurrent modification
			// Check if item exists to differentiate
			exists, checkErr := s.exists(ctx, rec.UserID)
			if checkErr != nil {
				return fmt.Errorf("dynamodb PutItem condition failed, check exists: %w", checkErr)
			}
			if !exists {
				return fmt.Errorf("%s: %w", rec.UserID, ErrRecordNotFound)
			}
			return fmt.Errorf("%s: %w", rec.UserID, ErrConcurrentModification)
		}
		return wardenerrors.WrapDynamoDBError(err, s.tableName, "PutItem")
	}

	rec.Version = updated.Version
	rec.UpdatedAt = updated.UpdatedAt
	return nil
}

// Delete removes a user's record. No-op if not exists (idempotent).
func (s *DynamoDBRecordStore) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return wardenerrors.WrapDynamoDBError(err, s.tableName, "DeleteItem")
	}
	return nil
}

// exists checks if a record for the given user exists in the store.
func (s *DynamoDBRecordStore) exists(ctx context.Context, userID string) (bool, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		ProjectionExpression: aws.String("user_id"),
	})
	if err != nil {
		return false, wardenerrors.WrapDynamoDBError(err, s.tableName, "GetItem")
	}
	return output.Item != nil, nil
}
