package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"live-events-scraper/internal/models"
)

// DynamoDBService implements the externally owned collaborator
// interfaces: the processed-identifier ledger and the stored-event
// catalog search
type DynamoDBService struct {
	client       *dynamodb.Client
	ledgerTable  string
	catalogTable string
}

// NewDynamoDBService creates a new DynamoDB service instance
func NewDynamoDBService(client *dynamodb.Client, ledgerTable, catalogTable string) *DynamoDBService {
	return &DynamoDBService{
		client:       client,
		ledgerTable:  ledgerTable,
		catalogTable: catalogTable,
	}
}

// ledgerItem is one processed-identifier record. Scope partitions the
// keyspace so event identifiers and vision image identifiers never clash.
type ledgerItem struct {
	Scope       string `dynamodbav:"PK"`
	Identifier  string `dynamodbav:"SK"`
	ProcessedAt string `dynamodbav:"ProcessedAt"`
}

// catalogItem is the minimal stored-event projection the duplicate
// matcher consumes
type catalogItem struct {
	EventID      string `dynamodbav:"EventID"`
	Title        string `dynamodbav:"Title"`
	VenueName    string `dynamodbav:"VenueName"`
	StartDate    string `dynamodbav:"StartDate"`
	VenueDateKey string `dynamodbav:"VenueDateKey"`
}

// Processed ledger

// IsProcessed reports whether an identifier was already marked in a scope
func (s *DynamoDBService) IsProcessed(ctx context.Context, identifier, scope string) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.ledgerTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: scope},
			"SK": &types.AttributeValueMemberS{Value: identifier},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}

	return result.Item != nil, nil
}

// MarkProcessed records an identifier in a scope. The conditional put
// makes the mark atomic and idempotent across retries: a concurrent or
// repeated mark of the same identifier is not an error.
func (s *DynamoDBService) MarkProcessed(ctx context.Context, identifier, scope string) error {
	item, err := attributevalue.MarshalMap(ledgerItem{
		Scope:       scope,
		Identifier:  identifier,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.ledgerTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return fmt.Errorf("failed to mark processed: %w", err)
	}

	return nil
}

// Event catalog search

// SearchByVenueAndDate queries the catalog's venue-date GSI. The key uses
// the normalized venue name so that sources disagreeing on venue spelling
// still land in the same partition.
func (s *DynamoDBService) SearchByVenueAndDate(ctx context.Context, venue, date string) ([]models.StoredEventSummary, error) {
	venueDateKey := fmt.Sprintf("%s#%s", models.NormalizeVenueName(venue), date)

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.catalogTable),
		IndexName:              aws.String("venue-date-index"),
		KeyConditionExpression: aws.String("VenueDateKey = :venueDateKey"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":venueDateKey": &types.AttributeValueMemberS{Value: venueDateKey},
		},
		Limit: aws.Int32(50),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog by venue and date: %w", err)
	}

	return unmarshalSummaries(result.Items)
}

// SearchByDate queries the catalog's date GSI for the wider tier 2
// candidate set
func (s *DynamoDBService) SearchByDate(ctx context.Context, date string) ([]models.StoredEventSummary, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.catalogTable),
		IndexName:              aws.String("date-index"),
		KeyConditionExpression: aws.String("StartDate = :startDate"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":startDate": &types.AttributeValueMemberS{Value: date},
		},
		Limit: aws.Int32(200),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog by date: %w", err)
	}

	return unmarshalSummaries(result.Items)
}

func unmarshalSummaries(items []map[string]types.AttributeValue) ([]models.StoredEventSummary, error) {
	var records []catalogItem
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog items: %w", err)
	}

	summaries := make([]models.StoredEventSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, models.StoredEventSummary{
			ID:        record.EventID,
			Title:     record.Title,
			VenueName: record.VenueName,
			StartDate: record.StartDate,
		})
	}
	return summaries, nil
}
