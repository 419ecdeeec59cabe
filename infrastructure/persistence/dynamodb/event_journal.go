package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"blueprint-editor/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JournalClient is the subset of the DynamoDB API the event journal uses
type JournalClient interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// maxBatchWrite is the DynamoDB limit for one BatchWriteItem call
const maxBatchWrite = 25

// EventRecord is one journaled domain event
type EventRecord struct {
	PK          string `dynamodbav:"PK"` // EVENTS#<diagram id>
	SK          string `dynamodbav:"SK"` // EVENT#<timestamp>#<event id>
	EventID     string `dynamodbav:"EventID"`
	EventType   string `dynamodbav:"EventType"`
	AggregateID string `dynamodbav:"AggregateID"`
	Payload     string `dynamodbav:"Payload"`
	Timestamp   string `dynamodbav:"Timestamp"`
	Version     int    `dynamodbav:"Version"`
	TTL         int64  `dynamodbav:"TTL,omitempty"`
}

// EventJournal appends diagram events to the diagrams table so the
// history of a diagram can be read back. It implements
// ports.EventPublisher.
type EventJournal struct {
	client    JournalClient
	tableName string
	retention time.Duration
	logger    *zap.Logger
}

// NewEventJournal creates a journal. A zero retention keeps events forever.
func NewEventJournal(client JournalClient, tableName string, retention time.Duration, logger *zap.Logger) *EventJournal {
	return &EventJournal{client: client, tableName: tableName, retention: retention, logger: logger}
}

// Publish journals a single event
func (j *EventJournal) Publish(ctx context.Context, event events.DomainEvent) error {
	return j.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch journals events in batches of 25
func (j *EventJournal) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(domainEvents))
	for _, event := range domainEvents {
		record, err := j.toRecord(event)
		if err != nil {
			return err
		}
		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("failed to marshal event record: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for i := 0; i < len(requests); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		out, err := j.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{j.tableName: requests[i:end]},
		})
		if err != nil {
			return fmt.Errorf("failed to write events batch: %w", err)
		}
		if n := len(out.UnprocessedItems[j.tableName]); n > 0 {
			return fmt.Errorf("failed to write %d events", n)
		}
	}

	j.logger.Debug("Journaled events", zap.Int("count", len(domainEvents)))
	return nil
}

// History returns the journaled events of a diagram, oldest first
func (j *EventJournal) History(ctx context.Context, aggregateID string) ([]EventRecord, error) {
	keyCond := expression.Key("PK").Equal(expression.Value("EVENTS#" + aggregateID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(j.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}

	records := []EventRecord{}
	for {
		out, err := j.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query events: %w", err)
		}
		for _, item := range out.Items {
			var record EventRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
			}
			records = append(records, record)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return records, nil
}

func (j *EventJournal) toRecord(event events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return EventRecord{}, fmt.Errorf("failed to encode %s event: %w", event.GetEventType(), err)
	}

	id := uuid.New().String()
	ts := event.GetTimestamp().UTC()
	record := EventRecord{
		PK:          "EVENTS#" + event.GetAggregateID(),
		SK:          fmt.Sprintf("EVENT#%s#%s", ts.Format(time.RFC3339Nano), id),
		EventID:     id,
		EventType:   event.GetEventType(),
		AggregateID: event.GetAggregateID(),
		Payload:     string(payload),
		Timestamp:   ts.Format(time.RFC3339Nano),
		Version:     event.GetVersion(),
	}
	if j.retention > 0 {
		record.TTL = ts.Add(j.retention).Unix()
	}
	return record, nil
}
