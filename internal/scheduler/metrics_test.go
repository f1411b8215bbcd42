package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicremind/internal/types"
)

type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func datum(t *testing.T, data []cwtypes.MetricDatum, name string, dimValue string) cwtypes.MetricDatum {
	t.Helper()
	for _, d := range data {
		if *d.MetricName != name {
			continue
		}
		if dimValue == "" {
			return d
		}
		for _, dim := range d.Dimensions {
			if *dim.Value == dimValue {
				return d
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, dimValue)
	return cwtypes.MetricDatum{}
}

func TestCloudWatchMetrics_RecordRun(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", nil)

	report := &types.RunReport{
		RunID: "run-1",
		Results: []types.TenantResult{
			{TenantID: "a", Tiers: []types.TierResult{
				{Tier: types.Tier2h, Sent: 2, Failed: 1, Skipped: map[string]int{types.SkipTimeMismatch: 3}},
			}},
			{TenantID: "b", Error: "config_invalid_policy: bad", Tiers: nil},
			{TenantID: "c", Tiers: []types.TierResult{{Tier: types.Tier2h, Sent: 1}}},
		},
	}
	m.RecordRun(context.Background(), report, 1500*time.Millisecond)

	require.Len(t, cw.calls, 1)
	in := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, *in.Namespace)

	assert.Equal(t, 3.0, *datum(t, in.MetricData, types.MetricReminderSent, "2h").Value)
	assert.Equal(t, 1.0, *datum(t, in.MetricData, types.MetricReminderFailed, "2h").Value)
	assert.Equal(t, 3.0, *datum(t, in.MetricData, types.MetricReminderSkipped, "2h").Value)
	assert.Equal(t, 1.0, *datum(t, in.MetricData, types.MetricTenantErrors, "").Value)

	dur := datum(t, in.MetricData, types.MetricRunDuration, "")
	assert.Equal(t, 1500.0, *dur.Value)
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, dur.Unit)
}

func TestCloudWatchMetrics_SendFailureAndRefresh(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "Custom", nil)

	m.RecordSendFailure(context.Background(), types.ProviderTwilio, types.ErrCodeUpstreamRateLimited)
	m.RecordRefresh(context.Background(), "revoked")

	require.Len(t, cw.calls, 2)
	assert.Equal(t, "Custom", *cw.calls[0].Namespace)

	fail := cw.calls[0].MetricData[0]
	assert.Equal(t, types.MetricExternalAPIFailed, *fail.MetricName)
	assert.Equal(t, cwtypes.StandardUnitCount, fail.Unit)
	require.Len(t, fail.Dimensions, 2)
	assert.Equal(t, string(types.ProviderTwilio), *fail.Dimensions[0].Value)
	assert.Equal(t, string(types.ErrCodeUpstreamRateLimited), *fail.Dimensions[1].Value)

	refresh := cw.calls[1].MetricData[0]
	assert.Equal(t, types.MetricCalendarRefresh, *refresh.MetricName)
	assert.Equal(t, "revoked", *refresh.Dimensions[0].Value)
}

func TestCloudWatchMetrics_PublishErrorIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	m := NewCloudWatchMetrics(cw, "", nil)

	assert.NotPanics(t, func() {
		m.RecordRun(context.Background(), &types.RunReport{}, time.Second)
	})
	assert.Len(t, cw.calls, 1)
}
