package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"clinicremind/internal/types"
)

// Metrics receives run and send telemetry. Implementations must not fail the
// caller: publishing errors are logged and dropped.
type Metrics interface {
	RecordRun(ctx context.Context, report *types.RunReport, elapsed time.Duration)
	RecordSendFailure(ctx context.Context, provider types.MessagingProvider, code types.ErrorCode)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordRun(context.Context, *types.RunReport, time.Duration)                {}
func (NoopMetrics) RecordSendFailure(context.Context, types.MessagingProvider, types.ErrorCode) {}
func (NoopMetrics) RecordRefresh(context.Context, string)                                       {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics publishes scheduler and calendar metrics.
//
// Metrics emitted:
//   - ReminderSent / ReminderFailed / ReminderSkipped: Dims {Tier}, once per run
//   - TenantErrors: no dims, once per run
//   - RunDuration: milliseconds, once per run
//   - ExternalAPIFailure: Dims {Provider, Result}, per failed send
//   - CalendarTokenRefresh: Dims {Result}, per refresh attempt
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ Metrics = (*CloudWatchMetrics)(nil)

func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordRun emits the per-tier totals of a finished run in one request.
func (m *CloudWatchMetrics) RecordRun(ctx context.Context, report *types.RunReport, elapsed time.Duration) {
	type totals struct{ sent, failed, skipped int }
	byTier := make(map[types.Tier]*totals)
	tenantErrors := 0

	for _, tr := range report.Results {
		if tr.Error != "" {
			tenantErrors++
		}
		for _, r := range tr.Tiers {
			t := byTier[r.Tier]
			if t == nil {
				t = &totals{}
				byTier[r.Tier] = t
			}
			t.sent += r.Sent
			t.failed += r.Failed
			for _, n := range r.Skipped {
				t.skipped += n
			}
		}
	}

	data := []cwtypes.MetricDatum{
		{
			MetricName: aws.String(types.MetricTenantErrors),
			Value:      aws.Float64(float64(tenantErrors)),
			Unit:       cwtypes.StandardUnitCount,
		},
		{
			MetricName: aws.String(types.MetricRunDuration),
			Value:      aws.Float64(float64(elapsed.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
		},
	}
	for tier, t := range byTier {
		dims := []cwtypes.Dimension{{Name: aws.String(types.DimTier), Value: aws.String(string(tier))}}
		data = append(data,
			countDatum(types.MetricReminderSent, t.sent, dims),
			countDatum(types.MetricReminderFailed, t.failed, dims),
			countDatum(types.MetricReminderSkipped, t.skipped, dims),
		)
	}

	m.put(ctx, data, "run_id", report.RunID)
}

// RecordSendFailure emits one ExternalAPIFailure for a failed messaging call.
func (m *CloudWatchMetrics) RecordSendFailure(ctx context.Context, provider types.MessagingProvider, code types.ErrorCode) {
	m.put(ctx, []cwtypes.MetricDatum{
		countDatum(types.MetricExternalAPIFailed, 1, []cwtypes.Dimension{
			{Name: aws.String(types.DimProvider), Value: aws.String(string(provider))},
			{Name: aws.String(types.DimResult), Value: aws.String(string(code))},
		}),
	}, "provider", string(provider))
}

// RecordRefresh implements calendar.RefreshRecorder.
func (m *CloudWatchMetrics) RecordRefresh(ctx context.Context, result string) {
	m.put(ctx, []cwtypes.MetricDatum{
		countDatum(types.MetricCalendarRefresh, 1, []cwtypes.Dimension{
			{Name: aws.String(types.DimResult), Value: aws.String(result)},
		}),
	}, "result", result)
}

func (m *CloudWatchMetrics) put(ctx context.Context, data []cwtypes.MetricDatum, logAttrs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish metrics",
			append([]any{"error", err.Error(), "datums", len(data)}, logAttrs...)...,
		)
	}
}

func countDatum(name string, n int, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}
