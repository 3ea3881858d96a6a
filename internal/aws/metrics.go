package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names published by this service.
const (
	MetricNotificationFailures = "NotificationFailures"
	MetricNotificationsSent    = "NotificationsSent"
)

// Metrics publishes custom counters to CloudWatch. A nil *Metrics is a no-op.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetrics returns a Metrics bound to a namespace.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	if namespace == "" {
		namespace = "StoryKeeper"
	}
	return &Metrics{client: client, namespace: namespace, nowFunc: time.Now}
}

// Count records a single count data point with the given dimensions.
func (m *Metrics) Count(ctx context.Context, name string, dimensions map[string]string) error {
	if m == nil || m.client == nil {
		return nil
	}

	dims := make([]cwtypes.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, cwtypes.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(v)})
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String(name),
				Value:      sdkaws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  sdkaws.Time(m.nowFunc()),
				Dimensions: dims,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}

// RecordFailure satisfies notify.FailureRecorder for the worker.
func (m *Metrics) RecordFailure(ctx context.Context, kind string, _ error) {
	_ = m.Count(ctx, MetricNotificationFailures, map[string]string{"Kind": kind})
}
