package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the subset of the CloudWatch client the sink uses
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// maxDatums bounds one PutMetricData call
const maxDatums = 20

// CloudWatchMetrics buffers business metrics and ships them in batches.
// It implements ports.BusinessMetrics.
type CloudWatchMetrics struct {
	client    CloudWatchAPI
	namespace string
	logger    *zap.Logger

	mu      sync.Mutex
	pending []types.MetricDatum
	now     func() time.Time
}

// NewCloudWatchMetrics creates a sink for namespace
func NewCloudWatchMetrics(client CloudWatchAPI, namespace string, logger *zap.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger, now: time.Now}
}

func (c *CloudWatchMetrics) add(name string, value float64, unit types.StandardUnit, dims ...types.Dimension) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(c.now()),
	})
}

func dim(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func (c *CloudWatchMetrics) RecordUpload(size int64, err error) {
	c.add("BlueprintUploads", 1, types.StandardUnitCount, dim("Status", status(err)))
	if err == nil {
		c.add("BlueprintUploadBytes", float64(size), types.StandardUnitBytes)
	}
}

func (c *CloudWatchMetrics) RecordSave(nodeCount int, err error) {
	c.add("DiagramSaves", 1, types.StandardUnitCount, dim("Status", status(err)))
	if err == nil {
		c.add("SavedNodes", float64(nodeCount), types.StandardUnitCount)
	}
}

func (c *CloudWatchMetrics) RecordPlacement(symbolID string) {
	c.add("SymbolPlacements", 1, types.StandardUnitCount, dim("Symbol", symbolID))
}

// Pending reports the number of buffered datums
func (c *CloudWatchMetrics) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush sends everything buffered. Failed batches are dropped and logged.
func (c *CloudWatchMetrics) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	var firstErr error
	for i := 0; i < len(batch); i += maxDatums {
		end := i + maxDatums
		if end > len(batch) {
			end = len(batch)
		}
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: batch[i:end],
		})
		if err != nil {
			c.logger.Warn("Failed to send metrics", zap.Int("datums", end-i), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run flushes every interval until ctx is done, then flushes once more
func (c *CloudWatchMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			_ = c.Flush(ctx)
		}
	}
}

// BusinessMetrics fans business metrics out to several sinks
type BusinessMetrics []interface {
	RecordUpload(size int64, err error)
	RecordSave(nodeCount int, err error)
	RecordPlacement(symbolID string)
}

func (b BusinessMetrics) RecordUpload(size int64, err error) {
	for _, m := range b {
		m.RecordUpload(size, err)
	}
}

func (b BusinessMetrics) RecordSave(nodeCount int, err error) {
	for _, m := range b {
		m.RecordSave(nodeCount, err)
	}
}

func (b BusinessMetrics) RecordPlacement(symbolID string) {
	for _, m := range b {
		m.RecordPlacement(symbolID)
	}
}
