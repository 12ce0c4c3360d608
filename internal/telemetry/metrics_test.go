package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wakebell/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...any)    {}
func (nopLogger) Error(msg string, args ...any)   {}
func (nopLogger) Warn(msg string, args ...any)    {}
func (n nopLogger) With(args ...any) types.Logger { return n }

type fakeCW struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCW) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestRecordSchedule(t *testing.T) {
	cw := &fakeCW{}
	m := NewCloudWatchMetrics(cw, "", nopLogger{})

	m.RecordSchedule(context.Background(), types.TriggerAlarm, ResultSuccess)

	require.Len(t, cw.inputs, 1)
	input := cw.inputs[0]
	assert.Equal(t, DefaultNamespace, *input.Namespace)
	require.Len(t, input.MetricData, 1)

	datum := input.MetricData[0]
	assert.Equal(t, MetricScheduleResult, *datum.MetricName)
	assert.Equal(t, float64(1), *datum.Value)
	require.Len(t, datum.Dimensions, 2)
	assert.Equal(t, "alarm", *datum.Dimensions[0].Value)
	assert.Equal(t, "success", *datum.Dimensions[1].Value)
}

func TestRecordGatewayLatency(t *testing.T) {
	cw := &fakeCW{}
	m := NewCloudWatchMetrics(cw, "Custom/NS", nopLogger{})

	m.RecordGatewayLatency(context.Background(), "schedule_at", 250*time.Millisecond)

	require.Len(t, cw.inputs, 1)
	assert.Equal(t, "Custom/NS", *cw.inputs[0].Namespace)
	assert.Equal(t, float64(250), *cw.inputs[0].MetricData[0].Value)
}

func TestRecordRecovery_EmissionFailureIsSwallowed(t *testing.T) {
	cw := &fakeCW{err: errors.New("throttled")}
	m := NewCloudWatchMetrics(cw, "", nopLogger{})

	// Must not panic or propagate.
	m.RecordRecovery(context.Background(), "retry_requested")
	assert.Len(t, cw.inputs, 1)
}

func TestNopMetrics(t *testing.T) {
	var m Metrics = Nop{}
	m.RecordSchedule(context.Background(), types.TriggerSnooze, ResultFailed)
	m.RecordGatewayLatency(context.Background(), "cancel", time.Second)
	m.RecordRecovery(context.Background(), "recovered")
}
