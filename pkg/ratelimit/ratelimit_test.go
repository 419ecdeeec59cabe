package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok, "third request inside the window")

	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "keys are independent")

	clock = clock.Add(time.Minute + time.Second)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok, "window slid past the old requests")

	l.Reset("10.0.0.1")
	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 0, l.Sweep())
	assert.Equal(t, time.Minute, l.Window())
}

func TestSlidingWindowSweepKeepsActiveKeys(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1_700_000_000, 0)
	l := NewSlidingWindowLimiter(5, time.Minute)
	l.now = func() time.Time { return clock }

	_, _ = l.Allow(ctx, "old")
	clock = clock.Add(50 * time.Second)
	_, _ = l.Allow(ctx, "new")
	clock = clock.Add(20 * time.Second)

	assert.Equal(t, 1, l.Sweep())
}

// counterTable mimics the conditional counter update
type counterTable struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (c *counterTable) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	limit, _ := strconv.Atoi(in.ExpressionAttributeValues[":limit"].(*types.AttributeValueMemberN).Value)
	if c.counts[pk] >= limit {
		return nil, &types.ConditionalCheckFailedException{}
	}
	c.counts[pk]++
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: pk},
		"Count": &types.AttributeValueMemberN{Value: strconv.Itoa(c.counts[pk])},
	}}, nil
}

func TestDistributedLimiter(t *testing.T) {
	ctx := context.Background()
	table := &counterTable{counts: map[string]int{}}
	l := NewDistributedLimiter(table, "rate-limits", "UPLOAD", 2, time.Minute)
	clock := time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	clock = clock.Add(time.Minute)
	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts a new counter")

	assert.Contains(t, table.counts, "RATELIMIT#UPLOAD#10.0.0.1#"+strconv.FormatInt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Unix(), 10))
}

func TestDistributedLimiterFailsOpen(t *testing.T) {
	table := &counterTable{err: errors.New("throttled")}
	l := NewDistributedLimiter(table, "rate-limits", "UPLOAD", 1, time.Minute)

	ok, err := l.Allow(context.Background(), "10.0.0.1")
	assert.True(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing open")
}
