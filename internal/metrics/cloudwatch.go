// Package metrics publishes service telemetry to CloudWatch.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"fieldmap/internal/types"
)

// maxDatumsPerCall is the PutMetricData batch limit.
const maxDatumsPerCall = 1000

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchCollector buffers datums in memory and publishes them in
// batches, either on Flush or from the background loop started by Start.
//
// Metrics emitted:
//   - APILatency: Dims {Endpoint} -- per HTTP request
//   - MapBuilt / MapFailed: Dims {Field} / {Field, ErrorKind}
//   - InterpolationDuration, StationsUsed: Dims {Field}
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	clock     types.Clock

	mu      sync.Mutex
	pending []cwtypes.MetricDatum

	stop chan struct{}
	done chan struct{}
}

// NewCloudWatchCollector creates a collector publishing to namespace.
// An empty namespace falls back to types.MetricNamespace.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{
		client:    client,
		namespace: namespace,
		logger:    logger,
		clock:     types.RealClock{},
	}
}

// RecordRequest implements core.MetricsCollector.
func (c *CloudWatchCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	c.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricAPILatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimEndpoint), Value: aws.String(method + " " + endpoint)},
		},
	})
}

// RecordMap implements fieldmap.Recorder.
func (c *CloudWatchCollector) RecordMap(ctx context.Context, field string, stations int, duration time.Duration, err error) {
	fieldDim := cwtypes.Dimension{Name: aws.String(types.DimField), Value: aws.String(field)}

	if err != nil {
		kind := types.KindInternal
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			kind = appErr.Kind()
		}
		c.add(cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricMapFailed),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				fieldDim,
				{Name: aws.String(types.DimErrorKind), Value: aws.String(string(kind))},
			},
		})
		return
	}

	c.add(
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricMapBuilt),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{fieldDim},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricInterpolationDuration),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{fieldDim},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricStationsUsed),
			Value:      aws.Float64(float64(stations)),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{fieldDim},
		},
	)
}

func (c *CloudWatchCollector) add(datums ...cwtypes.MetricDatum) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range datums {
		d.Timestamp = aws.Time(now)
		c.pending = append(c.pending, d)
	}
}

// Pending returns the number of buffered datums.
func (c *CloudWatchCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush publishes all buffered datums. Batches that fail are logged and
// dropped; the first error is returned.
func (c *CloudWatchCollector) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	var firstErr error
	for start := 0; start < len(batch); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(batch))
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: batch[start:end],
		})
		if err != nil {
			c.logger.Error("failed to publish metrics",
				"error", err.Error(),
				"datums", end-start,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DefaultFlushInterval is used when Start gets a non-positive interval.
const DefaultFlushInterval = time.Minute

// Start flushes every interval until Close is called.
func (c *CloudWatchCollector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				_ = c.Flush(ctx)
				cancel()
			case <-c.stop:
				return
			}
		}
	}()
}

// Close stops the background loop and publishes what is left.
func (c *CloudWatchCollector) Close(ctx context.Context) error {
	if c.stop != nil {
		close(c.stop)
		<-c.done
		c.stop = nil
	}
	return c.Flush(ctx)
}
