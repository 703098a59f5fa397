package mfa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/identity"
)

// SettingsStore defines the interface for the single organization-wide
// settings document. Get on an empty store returns DefaultSettings.
// Implementations must be safe for concurrent use.
type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, s Settings) error
}

// UpdateSettings applies an administrative patch through the store: the
// current settings are read, the patch validated and applied, and the result
// persisted. Invalid patches are rejected before any write.
func UpdateSettings(ctx context.Context, store SettingsStore, patch SettingsPatch, actorID string) (Settings, error) {
	current, err := store.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	updated, err := current.Apply(patch, actorID, time.Now())
	if err != nil {
		return Settings{}, err
	}
	if err := store.Put(ctx, updated); err != nil {
		return Settings{}, err
	}
	return updated, nil
}

// MemorySettingsStore implements SettingsStore in memory.
type MemorySettingsStore struct {
	mu       sync.Mutex
	settings *Settings
}

// NewMemorySettingsStore creates a store holding the default settings.
func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{}
}

// Get returns the stored settings, or the defaults when nothing was written.
func (s *MemorySettingsStore) Get(_ context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return DefaultSettings(), nil
	}
	return *s.settings, nil
}

// Put replaces the stored settings.
func (s *MemorySettingsStore) Put(_ context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := settings
	s.settings = &clone
	return nil
}

// settingsKey is the partition key of the single settings item.
const settingsKey = "system"

// settingsItem represents the DynamoDB item structure for Settings.
type settingsItem struct {
	ID              string   `dynamodbav:"id"`
	Policy          string   `dynamodbav:"policy"`
	RequiredRoles   []string `dynamodbav:"required_roles,omitempty"`
	GracePeriodDays int      `dynamodbav:"grace_period_days"`
	EnforcementDate string   `dynamodbav:"enforcement_date"` // RFC3339, empty when unset
	UpdatedAt       string   `dynamodbav:"updated_at"`       // RFC3339
	UpdatedBy       string   `dynamodbav:"updated_by"`
}

// DynamoDBSettingsStore implements SettingsStore with a single-item table.
//
// Table schema assumptions (created externally via Terraform/CloudFormation):
//   - Partition key: id (String), always "system"
type DynamoDBSettingsStore struct {
	client    dynamoDBAPI
	tableName string
}

// NewDynamoDBSettingsStore creates a new DynamoDBSettingsStore using the
// provided AWS configuration.
func NewDynamoDBSettingsStore(cfg aws.Config, tableName string) *DynamoDBSettingsStore {
	return &DynamoDBSettingsStore{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
	}
}

// newDynamoDBSettingsStoreWithClient creates a store with a custom client.
// This is primarily used for testing with mock clients.
func newDynamoDBSettingsStoreWithClient(client dynamoDBAPI, tableName string) *DynamoDBSettingsStore {
	return &DynamoDBSettingsStore{
		client:    client,
		tableName: tableName,
	}
}

// Get returns the stored settings, or the defaults when nothing was written.
func (s *DynamoDBSettingsStore) Get(ctx context.Context) (Settings, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: settingsKey},
		},
	})
	if err != nil {
		return Settings{}, wardenerrors.WrapDynamoDBError(err, s.tableName, "GetItem")
	}
	if output.Item == nil {
		return DefaultSettings(), nil
	}

	var item settingsItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}

	out := Settings{
		Policy:          PolicyMode(item.Policy),
		GracePeriodDays: item.GracePeriodDays,
		UpdatedBy:       item.UpdatedBy,
	}
	for _, r := range item.RequiredRoles {
		out.RequiredRoles = append(out.RequiredRoles, identity.Role(r))
	}
	if item.EnforcementDate != "" {
		t, err := time.Parse(time.RFC3339Nano, item.EnforcementDate)
		if err != nil {
			return Settings{}, fmt.Errorf("parse enforcement_date: %w", err)
		}
		out.EnforcementDate = &t
	}
	if item.UpdatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
		if err != nil {
			return Settings{}, fmt.Errorf("parse updated_at: %w", err)
		}
		out.UpdatedAt = t
	}
	return out, nil
}

// Put replaces the stored settings.
func (s *DynamoDBSettingsStore) Put(ctx context.Context, settings Settings) error {
	item := settingsItem{
		ID:              settingsKey,
		Policy:          string(settings.Policy),
		GracePeriodDays: settings.GracePeriodDays,
		UpdatedAt:       settings.UpdatedAt.Format(time.RFC3339Nano),
		UpdatedBy:       settings.UpdatedBy,
	}
	for _, r := range settings.RequiredRoles {
		item.RequiredRoles = append(item.RequiredRoles, string(r))
	}
	if settings.EnforcementDate != nil {
		item.EnforcementDate = settings.EnforcementDate.Format(time.RFC3339Nano)
	}

	av, err := attributevalue.MarshalMap(&item)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
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
