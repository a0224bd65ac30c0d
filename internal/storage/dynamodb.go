package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI interface for mocking
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type DynamoDBJobStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBJobStorage(client DynamoDBAPI, tableName string) *DynamoDBJobStorage {
	return &DynamoDBJobStorage{
		client:    client,
		tableName: tableName,
	}
}

func (d *DynamoDBJobStorage) CreateJob(ctx context.Context, job *Job) error {
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put job: %w", err)
	}

	return nil
}

func (d *DynamoDBJobStorage) GetJob(ctx context.Context, jobID string) (*Job, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if result.Item == nil {
		return nil, ErrJobNotFound
	}

	var job Job
	if err := attributevalue.UnmarshalMap(result.Item, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (d *DynamoDBJobStorage) UpdateJob(ctx context.Context, job *Job) error {
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return nil
}

// TransitionJob performs the status-guarded conditional write. The
// ConditionExpression on the current status is what makes two concurrent
// accepts resolve to exactly one winner: DynamoDB rejects the second write
// with ConditionalCheckFailedException, which surfaces as ErrStatusConflict.
func (d *DynamoDBJobStorage) TransitionJob(ctx context.Context, jobID string, from, to Status, update JobUpdate) error {
	if !IsTransitionAllowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}

	updateExpression := "SET #status = :to"
	expressionAttributeValues := map[string]types.AttributeValue{
		":to":   &types.AttributeValueMemberS{Value: string(to)},
		":from": &types.AttributeValueMemberS{Value: string(from)},
	}

	appendTime := func(attr, placeholder string, v interface{}) error {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", attr, err)
		}
		updateExpression += fmt.Sprintf(", %s = %s", attr, placeholder)
		expressionAttributeValues[placeholder] = av
		return nil
	}

	if update.ProviderNetCents != nil {
		updateExpression += ", provider_net_cents = :providerNet"
		expressionAttributeValues[":providerNet"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", *update.ProviderNetCents)}
	}
	if update.ClientPriceCents != nil {
		updateExpression += ", client_price_cents = :clientPrice"
		expressionAttributeValues[":clientPrice"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", *update.ClientPriceCents)}
	}
	if update.ScheduledAt != nil {
		if err := appendTime("scheduled_at", ":scheduledAt", *update.ScheduledAt); err != nil {
			return err
		}
	}
	if update.AcceptedAt != nil {
		if err := appendTime("accepted_at", ":acceptedAt", *update.AcceptedAt); err != nil {
			return err
		}
	}
	if update.CompletedAt != nil {
		if err := appendTime("completed_at", ":completedAt", *update.CompletedAt); err != nil {
			return err
		}
	}

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression:    aws.String(updateExpression),
		ConditionExpression: aws.String("#status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: expressionAttributeValues,
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return ErrStatusConflict
		}
		return fmt.Errorf("failed to transition job status: %w", err)
	}

	return nil
}

func (d *DynamoDBJobStorage) GetJobsByStatus(ctx context.Context, status Status) ([]*Job, error) {
	result, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String("status-index"),
		KeyConditionExpression: aws.String("#status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by status: %w", err)
	}

	return unmarshalJobs(result.Items)
}

func (d *DynamoDBJobStorage) GetAllJobs(ctx context.Context) ([]*Job, error) {
	result, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan jobs: %w", err)
	}

	return unmarshalJobs(result.Items)
}

func unmarshalJobs(items []map[string]types.AttributeValue) ([]*Job, error) {
	var jobs []*Job
	for _, item := range items {
		var job Job
		if err := attributevalue.UnmarshalMap(item, &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// DynamoDBOfferStorage keeps offers in a table keyed by job_id (partition)
// and provider_id (sort), which enforces at most one offer per pair.
type DynamoDBOfferStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBOfferStorage(client DynamoDBAPI, tableName string) *DynamoDBOfferStorage {
	return &DynamoDBOfferStorage{
		client:    client,
		tableName: tableName,
	}
}

func (d *DynamoDBOfferStorage) CreateOffer(ctx context.Context, offer *Offer) error {
	item, err := attributevalue.MarshalMap(offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put offer: %w", err)
	}

	return nil
}

func (d *DynamoDBOfferStorage) GetOffer(ctx context.Context, jobID, providerID string) (*Offer, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"job_id":      &types.AttributeValueMemberS{Value: jobID},
			"provider_id": &types.AttributeValueMemberS{Value: providerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}

	if result.Item == nil {
		return nil, ErrOfferNotFound
	}

	var offer Offer
	if err := attributevalue.UnmarshalMap(result.Item, &offer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offer: %w", err)
	}

	return &offer, nil
}

func (d *DynamoDBOfferStorage) UpdateOffer(ctx context.Context, offer *Offer) error {
	item, err := attributevalue.MarshalMap(offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to update offer: %w", err)
	}

	return nil
}

func (d *DynamoDBOfferStorage) GetOffersByJob(ctx context.Context, jobID string) ([]*Offer, error) {
	result, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("job_id = :jobID"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":jobID": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query offers by job: %w", err)
	}

	var offers []*Offer
	for _, item := range result.Items {
		var offer Offer
		if err := attributevalue.UnmarshalMap(item, &offer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal offer: %w", err)
		}
		offers = append(offers, &offer)
	}

	return offers, nil
}

// DynamoDBCostFactorStorage reads the reference pricing table keyed by
// location_key (partition) and category (sort).
type DynamoDBCostFactorStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBCostFactorStorage(client DynamoDBAPI, tableName string) *DynamoDBCostFactorStorage {
	return &DynamoDBCostFactorStorage{
		client:    client,
		tableName: tableName,
	}
}

func (d *DynamoDBCostFactorStorage) GetCostFactors(ctx context.Context, locationKey, category string) (*CostFactors, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"location_key": &types.AttributeValueMemberS{Value: locationKey},
			"category":     &types.AttributeValueMemberS{Value: category},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cost factors: %w", err)
	}

	if result.Item == nil {
		return nil, ErrNotConfigured
	}

	var factors CostFactors
	if err := attributevalue.UnmarshalMap(result.Item, &factors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cost factors: %w", err)
	}

	return &factors, nil
}

// DynamoDBProviderStorage reads the provider roster.
type DynamoDBProviderStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBProviderStorage(client DynamoDBAPI, tableName string) *DynamoDBProviderStorage {
	return &DynamoDBProviderStorage{
		client:    client,
		tableName: tableName,
	}
}

func (d *DynamoDBProviderStorage) GetProvider(ctx context.Context, providerID string) (*Provider, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: providerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("provider %s not found", providerID)
	}

	var provider Provider
	if err := attributevalue.UnmarshalMap(result.Item, &provider); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider: %w", err)
	}

	return &provider, nil
}

func (d *DynamoDBProviderStorage) ListVerifiedProviders(ctx context.Context) ([]*Provider, error) {
	result, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(d.tableName),
		FilterExpression: aws.String("verified = :verified"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":verified": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan providers: %w", err)
	}

	var providers []*Provider
	for _, item := range result.Items {
		var provider Provider
		if err := attributevalue.UnmarshalMap(item, &provider); err != nil {
			return nil, fmt.Errorf("failed to unmarshal provider: %w", err)
		}
		providers = append(providers, &provider)
	}

	return providers, nil
}
