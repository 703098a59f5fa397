package policy

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

// dynamoDBAPI defines the DynamoDB operations used by DynamoDBStore.
// This interface enables testing with mock implementations.
type dynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoDBStore implements Store using AWS DynamoDB.
//
// Table schema assumptions (created externally via Terraform/CloudFormation):
//   - Partition key: id (String)
//   - All Policy fields stored as attributes
//
// Listings scan for active policies and filter scope client-side using the
// configured GroupResolver. Policy sets are small (tens, not thousands);
// wrap the store in a CachedStore to keep scan traffic off the hot path.
type DynamoDBStore struct {
	client    dynamoDBAPI
	tableName string
	resolver  GroupResolver
}

// NewDynamoDBStore creates a new DynamoDBStore using the provided AWS configuration.
// The tableName specifies the DynamoDB table for storing policies.
// The resolver supplies server group membership; nil means no group scoping.
func NewDynamoDBStore(cfg aws.Config, tableName string, resolver GroupResolver) *DynamoDBStore {
	return newDynamoDBStoreWithClient(dynamodb.NewFromConfig(cfg), tableName, resolver)
}

// newDynamoDBStoreWithClient creates a DynamoDBStore with a custom client.
// This is primarily used for testing with mock clients.
func newDynamoDBStoreWithClient(client dynamoDBAPI, tableName string, resolver GroupResolver) *DynamoDBStore {
	if resolver == nil {
		resolver = StaticGroupResolver{}
	}
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
		resolver:  resolver,
	}
}

// policyItem represents the DynamoDB item structure for a Policy.
// It uses explicit field mapping for proper serialization of Go types.
type policyItem struct {
	ID              string   `dynamodbav:"id"`
	Name            string   `dynamodbav:"name"`
	Priority        int      `dynamodbav:"priority"`
	Active          bool     `dynamodbav:"active"`
	Days            []string `dynamodbav:"days,omitempty"`
	WindowStart     string   `dynamodbav:"window_start"`
	WindowEnd       string   `dynamodbav:"window_end"`
	WindowTimezone  string   `dynamodbav:"window_timezone"`
	Roles           []string `dynamodbav:"roles,omitempty"`
	CommandMode     string   `dynamodbav:"command_mode"`
	CommandPatterns []string `dynamodbav:"command_patterns,omitempty"`
	RequireApproval bool     `dynamodbav:"require_approval"`
	ApproverRoles   []string `dynamodbav:"approver_roles,omitempty"`
	ServerIDs       []string `dynamodbav:"server_ids,omitempty"`
	ServerGroupIDs  []string `dynamodbav:"server_group_ids,omitempty"`
	CreatedAt       string   `dynamodbav:"created_at"` // RFC3339
}

// policyToItem converts a Policy to a DynamoDB item structure.
func policyToItem(p *Policy) *policyItem {
	item := &policyItem{
		ID:              p.ID,
		Name:            p.Name,
		Priority:        p.Priority,
		Active:          p.Active,
		Days:            weekdaysToStrings(p.Days),
		Roles:           rolesToStrings(p.Roles),
		CommandMode:     string(p.CommandMode),
		CommandPatterns: p.CommandPatterns,
		RequireApproval: p.RequireApproval,
		ApproverRoles:   rolesToStrings(p.ApproverRoles),
		ServerIDs:       p.Scope.ServerIDs,
		ServerGroupIDs:  p.Scope.ServerGroupIDs,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339Nano),
	}
	if p.Window != nil {
		item.WindowStart = p.Window.Start
		item.WindowEnd = p.Window.End
		item.WindowTimezone = p.Window.Timezone
	}
	return item
}

// itemToPolicy converts a DynamoDB item structure back to a Policy.
func itemToPolicy(item *policyItem) (*Policy, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	p := &Policy{
		ID:              item.ID,
		Name:            item.Name,
		Priority:        item.Priority,
		Active:          item.Active,
		Days:            stringsToWeekdays(item.Days),
		Roles:           stringsToRoles(item.Roles),
		CommandMode:     CommandMode(item.CommandMode),
		CommandPatterns: item.CommandPatterns,
		RequireApproval: item.RequireApproval,
		ApproverRoles:   stringsToRoles(item.ApproverRoles),
		Scope: Scope{
			ServerIDs:      item.ServerIDs,
			ServerGroupIDs: item.ServerGroupIDs,
		},
		CreatedAt: createdAt,
	}
	if item.WindowStart != "" || item.WindowEnd != "" {
		p.Window = &HourRange{
			Start:    item.WindowStart,
			End:      item.WindowEnd,
			Timezone: item.WindowTimezone,
		}
	}
	return p, nil
}

// Put stores or replaces a policy. The policy must validate.
func (s *DynamoDBStore) Put(ctx context.Context, p *Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	av, err := attributevalue.MarshalMap(policyToItem(p))
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return wardenerrors.WrapDynamoDBError(err, s.tableName, "PutItem")
	}
	return nil
}

// Get retrieves a policy by ID. Returns ErrPolicyNotFound if not exists.
func (s *DynamoDBStore) Get(ctx context.Context, id string) (*Policy, error) {
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
		return nil, fmt.Errorf("%s: %w", id, ErrPolicyNotFound)
	}

	var item policyItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}
	return itemToPolicy(&item)
}

// Delete removes a policy by ID. No-op if not exists (idempotent).
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

// ListForServer returns all active policies in scope for serverID.
func (s *DynamoDBStore) ListForServer(ctx context.Context, serverID string) ([]*Policy, error) {
	groups, err := s.resolver.GroupsForServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("resolve server groups: %w", err)
	}

	var out []*Policy
	var startKey map[string]types.AttributeValue

	for {
		output, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("#active = :true"),
			ExpressionAttributeNames: map[string]string{
				"#active": "active",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true": &types.AttributeValueMemberBOOL{Value: true},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, wardenerrors.WrapDynamoDBError(err, s.tableName, "Scan")
		}

		for _, raw := range output.Items {
			var item policyItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal policy: %w", err)
			}
			p, err := itemToPolicy(&item)
			if err != nil {
				return nil, err
			}
			if p.Scope.IncludesServer(serverID, groups) {
				out = append(out, p)
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	return out, nil
}

// IsNotFound reports whether err indicates a missing policy.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound)
}

func weekdaysToStrings(days []Weekday) []string {
	if len(days) == 0 {
		return nil
	}
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

func stringsToWeekdays(days []string) []Weekday {
	if len(days) == 0 {
		return nil
	}
	out := make([]Weekday, len(days))
	for i, d := range days {
		out[i] = Weekday(d)
	}
	return out
}

func rolesToStrings(roles []identity.Role) []string {
	if len(roles) == 0 {
		return nil
	}
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func stringsToRoles(roles []string) []identity.Role {
	if len(roles) == 0 {
		return nil
	}
	out := make([]identity.Role, len(roles))
	for i, r := range roles {
		out[i] = identity.Role(r)
	}
	return out
}
