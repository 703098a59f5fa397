package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/identity"
)

// GSI name constants for DynamoDB Global Secondary Indexes.
// These indexes are created externally via Terraform/CloudFormation.
const (
	// GSIRequester indexes requests by requester with created_at sort key.
	GSIRequester = "gsi-requester"
	// GSIStatus indexes requests by status with created_at sort key.
	GSIStatus = "gsi-status"
	// GSIServer indexes requests by server_id with created_at sort key.
	GSIServer = "gsi-server"
)

// dynamoDBAPI defines the DynamoDB operations used by DynamoDBStore.
// This interface enables testing with mock implementations.
type dynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDBStore implements Store using AWS DynamoDB.
// It provides CRUD operations for approval requests with optimistic locking.
//
// Table schema assumptions (created externally via Terraform/CloudFormation):
//   - Partition key: id (String)
//   - TTL attribute: ttl (Number, Unix timestamp)
//   - All Request fields stored as attributes
type DynamoDBStore struct {
	client    dynamoDBAPI
	tableName string
}

// NewDynamoDBStore creates a new DynamoDBStore using the provided AWS configuration.
// The tableName specifies the DynamoDB table for storing requests.
func NewDynamoDBStore(cfg aws.Config, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
	}
}

// newDynamoDBStoreWithClient creates a DynamoDBStore with a custom client.
// This is primarily used for testing with mock clients.
func newDynamoDBStoreWithClient(client dynamoDBAPI, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

// dynamoItem represents the DynamoDB item structure for a Request.
// It uses explicit field mapping for proper serialization of Go types.
type dynamoItem struct {
	ID             string   `dynamodbav:"id"`
	Requester      string   `dynamodbav:"requester"`
	ServerID       string   `dynamodbav:"server_id"`
	Purpose        string   `dynamodbav:"purpose"`
	AccessType     string   `dynamodbav:"access_type"`
	PolicyID       string   `dynamodbav:"policy_id"`
	ApproverRoles  []string `dynamodbav:"approver_roles,omitempty"`
	Status         string   `dynamodbav:"status"`     // Status as string
	CreatedAt      string   `dynamodbav:"created_at"` // RFC3339
	UpdatedAt      string   `dynamodbav:"updated_at"` // RFC3339
	ExpiresAt      string   `dynamodbav:"expires_at"` // RFC3339
	TTL            int64    `dynamodbav:"ttl"`        // Unix timestamp for DynamoDB TTL
	DecidedAt      string   `dynamodbav:"decided_at"` // RFC3339, empty while pending
	DecidedBy      string   `dynamodbav:"decided_by"`
	DecisionReason string   `dynamodbav:"decision_reason"`
}

// requestToItem converts a Request to a DynamoDB item structure.
func requestToItem(req *Request) *dynamoItem {
	roles := make([]string, len(req.ApproverRoles))
	for i, r := range req.ApproverRoles {
		roles[i] = string(r)
	}

	item := &dynamoItem{
		ID:             req.ID,
		Requester:      req.Requester,
		ServerID:       req.ServerID,
		Purpose:        req.Purpose,
		AccessType:     req.AccessType,
		PolicyID:       req.PolicyID,
		ApproverRoles:  roles,
		Status:         string(req.Status),
		CreatedAt:      req.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      req.UpdatedAt.Format(time.RFC3339Nano),
		ExpiresAt:      req.ExpiresAt.Format(time.RFC3339Nano),
		TTL:            req.ExpiresAt.Add(30 * 24 * time.Hour).Unix(),
		DecidedBy:      req.DecidedBy,
		DecisionReason: req.DecisionReason,
	}
	if req.DecidedAt != nil {
		item.DecidedAt = req.DecidedAt.Format(time.RFC3339Nano)
	}
	return item
}

// itemToRequest converts a DynamoDB item structure back to a Request.
func itemToRequest(item *dynamoItem) (*Request, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, item.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	roles := make([]identity.Role, len(item.ApproverRoles))
	for i, r := range item.ApproverRoles {
		roles[i] = identity.Role(r)
	}

	req := &Request{
		ID:             item.ID,
		Requester:      item.Requester,
		ServerID:       item.ServerID,
		Purpose:        item.Purpose,
		AccessType:     item.AccessType,
		PolicyID:       item.PolicyID,
		ApproverRoles:  roles,
		Status:         Status(item.Status),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		ExpiresAt:      expiresAt,
		DecidedBy:      item.DecidedBy,
		DecisionReason: item.DecisionReason,
	}
	if item.DecidedAt != "" {
		decidedAt, err := time.Parse(time.RFC3339Nano, item.DecidedAt)
		if err != nil {
			return nil, fmt.Errorf("parse decided_at: %w", err)
		}
		req.DecidedAt = &decidedAt
	}
	return req, nil
}

// Create stores a new request. Returns ErrRequestExists if ID already exists.
func (s *DynamoDBStore) Create(ctx context.Context, req *Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	av, err := attributevalue.MarshalMap(requestToItem(req))
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%s: %w", req.ID, ErrRequestExists)
		}
		return wardenerrors.WrapDynamoDBError(err, s.tableName, "PutItem")
	}

	return nil
}

// Get retrieves a request by ID. Returns ErrRequestNotFound if not exists.
func (s *DynamoDBStore) Get(ctx context.Context, id string) (*Request, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, wardenerrors.WrapDynamoDBError(err, s.tableName, "GetItem")
	}

	if output.Item == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}

	return itemToRequest(&item)
}

// Update modifies an existing request using optimistic locking.
// Returns ErrRequestNotFound if request doesn't exist.
// Returns ErrConcurrentModification if request was modified since last read.
func (s *DynamoDBStore) Update(ctx context.Context, req *Request) error {
	oldUpdatedAt := req.UpdatedAt
	newUpdatedAt := time.Now()

	updated := *req
	updated.UpdatedAt = newUpdatedAt

	av, err := attributevalue.MarshalMap(requestToItem(&updated))
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	// Item must exist AND updated_at must match the value from the last
	// read. If another process updated the item in between, the condition
	// fails.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(id) AND updated_at = :old_updated_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":old_updated_at": &types.AttributeValueMemberS{Value: oldUpdatedAt.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Could be either not found or concurrent modification
			// Check if item exists to differentiate
			exists, checkErr := s.exists(ctx, req.ID)
			if checkErr != nil {
				return fmt.Errorf("dynamodb PutItem condition failed, check exists: %w", checkErr)
			}
			if !exists {
				return fmt.Errorf("%s: %w", req.ID, ErrRequestNotFound)
			}
			return fmt.Errorf("%s: %w", req.ID, ErrConcurrentModification)
		}
		return wardenerrors.WrapDynamoDBError(err, s.tableName, "PutItem")
	}

	req.UpdatedAt = newUpdatedAt
	return nil
}

// Delete removes a request by ID. No-op if not exists (idempotent).
func (s *DynamoDBStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return wardenerrors.WrapDynamoDBError(err, s.tableName, "DeleteItem")
	}

	return nil
}

// exists checks if a request with the given ID exists in the store.
func (s *DynamoDBStore) exists(ctx context.Context, id string) (bool, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ProjectionExpression: aws.String("id"),
	})
	if err != nil {
		return false, wardenerrors.WrapDynamoDBError(err, s.tableName, "GetItem")
	}
	return output.Item != nil, nil
}

// ListByRequester returns all requests from a specific user, newest first.
func (s *DynamoDBStore) ListByRequester(ctx context.Context, requester string, limit int) ([]*Request, error) {
	return s.queryIndex(ctx, GSIRequester, "requester", requester, limit)
}

// ListByStatus returns all requests with a specific status, newest first.
func (s *DynamoDBStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Request, error) {
	return s.queryIndex(ctx, GSIStatus, "#status", string(status), limit)
}

// ListByServer returns all requests for a specific server, newest first.
func (s *DynamoDBStore) ListByServer(ctx context.Context, serverID string, limit int) ([]*Request, error) {
	return s.queryIndex(ctx, GSIServer, "server_id", serverID, limit)
}

// queryIndex queries a GSI by partition key value, newest first.
// keyName starting with '#' is treated as a reserved word requiring an
// expression attribute name.
func (s *DynamoDBStore) queryIndex(ctx context.Context, indexName, keyName, keyValue string, limit int) ([]*Request, error) {
	limit = normalizeLimit(limit)

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(indexName),
		KeyConditionExpression: aws.String(keyName + " = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: keyValue},
		},
		ScanIndexForward: aws.Bool(false), // newest first by created_at sort key
		Limit:            aws.Int32(int32(limit)),
	}
	if keyName == "#status" {
		input.ExpressionAttributeNames = map[string]string{"#status": "status"}
	}

	output, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, wardenerrors.WrapDynamoDBError(err, s.tableName, "Query")
	}

	out := make([]*Request, 0, len(output.Items))
	for _, raw := range output.Items {
		var item dynamoItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal request: %w", err)
		}
		req, err := itemToRequest(&item)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
