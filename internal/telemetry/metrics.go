// Package telemetry reports engine delivery metrics. The alarm engine
// targets 99.9% delivery reliability; the counters here are what make
// that number observable. A CloudWatch-backed implementation is provided
// for deployments that mirror device metrics to AWS, plus a no-op for
// everything else.
package telemetry

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"wakebell/internal/types"
)

// Metric and dimension names.
const (
	DefaultNamespace     = "Wakebell/Engine"
	MetricScheduleResult = "ScheduleResult"
	MetricGatewayLatency = "GatewayLatency"
	MetricRecovery       = "RecoveryOutcome"
	DimKind              = "Kind"
	DimResult            = "Result"
	DimOutcome           = "Outcome"
)

// Result categorizes a scheduling outcome.
type Result string

const (
	ResultSuccess   Result = "success"
	ResultFailed    Result = "failed"
	ResultCancelled Result = "cancelled"
)

// Metrics abstracts telemetry emission for the engine.
type Metrics interface {
	RecordSchedule(ctx context.Context, kind types.TriggerKind, result Result)
	RecordGatewayLatency(ctx context.Context, op string, duration time.Duration)
	RecordRecovery(ctx context.Context, outcome string)
}

// Nop discards all metrics. Used as the default when telemetry is
// disabled.
type Nop struct{}

func (Nop) RecordSchedule(ctx context.Context, kind types.TriggerKind, result Result)   {}
func (Nop) RecordGatewayLatency(ctx context.Context, op string, duration time.Duration) {}
func (Nop) RecordRecovery(ctx context.Context, outcome string)                          {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchMetrics implements Metrics.
var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics emits engine metrics to AWS CloudWatch. Emission
// failures are logged and swallowed; telemetry must never affect alarm
// delivery.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to the
// given namespace. An empty namespace uses DefaultNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordSchedule emits a ScheduleResult count with Kind and Result
// dimensions.
func (m *CloudWatchMetrics) RecordSchedule(ctx context.Context, kind types.TriggerKind, result Result) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricScheduleResult),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(DimKind), Value: aws.String(string(kind))},
					{Name: aws.String(DimResult), Value: aws.String(string(result))},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record schedule metric",
			"error", err.Error(),
			"kind", string(kind),
			"result", string(result),
		)
	}
}

// RecordGatewayLatency emits the duration of one gateway operation in
// milliseconds.
func (m *CloudWatchMetrics) RecordGatewayLatency(ctx context.Context, op string, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricGatewayLatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Operation"), Value: aws.String(op)},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record latency metric",
			"error", err.Error(),
			"operation", op,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// RecordRecovery emits a RecoveryOutcome count dimensioned by the
// reliability engine's recommendation.
func (m *CloudWatchMetrics) RecordRecovery(ctx context.Context, outcome string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricRecovery),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(DimOutcome), Value: aws.String(outcome)},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record recovery metric",
			"error", err.Error(),
			"outcome", outcome,
		)
	}
}
