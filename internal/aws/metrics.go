package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
)

// Metrics publishes one datum per channel result to CloudWatch.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics recorder for namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{CloudWatch: cw, Namespace: namespace, nowFunc: time.Now}
}

// RecordOutcome emits Notifications (count) and NotificationLatency
// (milliseconds), dimensioned by Channel and Status.
func (m *Metrics) RecordOutcome(ctx context.Context, out dispatch.Outcome) error {
	if out.Duplicate {
		return nil
	}
	ts := m.nowFunc()
	data := make([]cwtypes.MetricDatum, 0, 4)
	for _, r := range out.Results() {
		dims := []cwtypes.Dimension{
			{Name: awsString("Channel"), Value: awsString(r.Channel)},
			{Name: awsString("Status"), Value: awsString(string(r.Status))},
		}
		data = append(data, cwtypes.MetricDatum{
			MetricName: awsString("Notifications"),
			Dimensions: dims,
			Timestamp:  &ts,
			Unit:       cwtypes.StandardUnitCount,
			Value:      float64Ptr(1),
		})
		if r.Status != dispatch.StatusSkipped {
			data = append(data, cwtypes.MetricDatum{
				MetricName: awsString("NotificationLatency"),
				Dimensions: dims,
				Timestamp:  &ts,
				Unit:       cwtypes.StandardUnitMilliseconds,
				Value:      float64Ptr(float64(r.DurationMS)),
			})
		}
	}

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.Namespace,
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func float64Ptr(v float64) *float64 { return &v }
