package ratelimit

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
)

// UpdateItemAPI is the part of the DynamoDB client the limiter needs
type UpdateItemAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DistributedLimiter counts requests in fixed windows stored in DynamoDB,
// so every Lambda execution environment shares one budget per client
type DistributedLimiter struct {
	client    UpdateItemAPI
	tableName string
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// counter is the item written per key and window
type counter struct {
	PK        string `dynamodbav:"PK"`
	Count     int    `dynamodbav:"Count"`
	WindowEnd string `dynamodbav:"WindowEnd"`
	TTL       int64  `dynamodbav:"TTL"`
}

// NewDistributedLimiter creates a limiter backed by tableName. Items carry
// a TTL an hour past their window so the table cleans itself.
func NewDistributedLimiter(client UpdateItemAPI, tableName, keyPrefix string, limit int, window time.Duration) *DistributedLimiter {
	return &DistributedLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// Window returns the counting window
func (l *DistributedLimiter) Window() time.Duration { return l.window }

// Allow atomically increments the counter of the current window unless it
// already reached the limit. Storage failures fail open.
func (l *DistributedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	start := l.now().Truncate(l.window)
	end := start.Add(l.window)

	out, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: l.partitionKey(key, start)},
		},
		UpdateExpression:    aws.String("SET #count = if_not_exists(#count, :zero) + :incr, WindowEnd = :window_end, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":       &types.AttributeValueMemberN{Value: "0"},
			":incr":       &types.AttributeValueMemberN{Value: "1"},
			":limit":      &types.AttributeValueMemberN{Value: strconv.Itoa(l.limit)},
			":window_end": &types.AttributeValueMemberS{Value: end.UTC().Format(time.RFC3339)},
			":ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(end.Add(time.Hour).Unix(), 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return true, fmt.Errorf("rate limiter update failed (failing open): %w", err)
	}

	var c counter
	if err := attributevalue.UnmarshalMap(out.Attributes, &c); err != nil {
		return true, fmt.Errorf("rate limiter counter unreadable (failing open): %w", err)
	}
	return c.Count <= l.limit, nil
}

func (l *DistributedLimiter) partitionKey(key string, windowStart time.Time) string {
	return fmt.Sprintf("RATELIMIT#%s#%s#%d", l.keyPrefix, key, windowStart.Unix())
}
