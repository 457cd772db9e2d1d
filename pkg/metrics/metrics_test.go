package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	now := time.Unix(1_760_000_000, 0)
	m.ObserveRun("fanout-reconcile", now, 250*time.Millisecond, nil)
	m.ObserveRun("fanout-reconcile", now.Add(time.Minute), time.Second, errors.New("timeout"))
	m.CycleSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "anucarts_cron_job_runs_total", "outcome", CronSucceeded); got != 1 {
		t.Fatalf("expected one success, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "anucarts_cron_job_runs_total", "outcome", CronFailed); got != 1 {
		t.Fatalf("expected one failure, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "anucarts_cron_job_duration_seconds", "job", "fanout-reconcile"); err != nil || got != 1.25 {
		t.Fatalf("expected duration sum 1.25, got %f (%v)", got, err)
	}
	// The failed run must not move the last-success timestamp.
	gauge := findMetricFamily(mfs, "anucarts_cron_job_last_success_timestamp_seconds")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != float64(now.Unix()) {
		t.Fatalf("unexpected last success gauge %v", gauge)
	}
	if skipped := findMetricFamily(mfs, "anucarts_cron_cycles_skipped_total"); skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one skipped cycle")
	}
}

func TestOrderMetricsCountsFanoutResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewOrderMetrics(reg)
	metrics.IncFanout(FanoutSucceeded)
	metrics.IncFanout(FanoutSucceeded)
	metrics.IncFanout(FanoutFailed)
	metrics.IncPlaced(false)
	metrics.IncStatusChange("Shipped")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "anucarts_orders_fanout_sellers_total", "result", FanoutSucceeded); got != 2 {
		t.Fatalf("expected 2 successful fan-outs, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "anucarts_orders_fanout_sellers_total", "result", FanoutFailed); got != 1 {
		t.Fatalf("expected 1 failed fan-out, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "anucarts_orders_placed_total", "fanout_complete", "false"); got != 1 {
		t.Fatalf("expected 1 incomplete order, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "anucarts_orders_status_changes_total", "status", "Shipped"); got != 1 {
		t.Fatalf("expected 1 status change, got %f", got)
	}
}

func TestOutboxMetricsLabelsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewOutboxMetrics(reg)
	metrics.Observe("order_placed", OutboxPublished)
	metrics.Observe("", OutboxDeadLettered)
	metrics.IncBatchError()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "anucarts_outbox_events_total", "outcome", OutboxPublished); got != 1 {
		t.Fatalf("expected published=1, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "anucarts_outbox_events_total", "event_type", "unknown"); got != 1 {
		t.Fatalf("expected empty event type labelled unknown, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewCronJobMetrics(nil).ObserveRun("job", time.Now(), time.Second, nil)
	NewCronJobMetrics(nil).CycleSkipped()
	NewOrderMetrics(nil).IncFanout(FanoutFailed)
	NewOutboxMetrics(nil).Observe("order_placed", OutboxRetried)
	var nilMetrics *OrderMetrics
	nilMetrics.IncPlaced(true)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewOrderMetrics(reg).IncPlaced(true)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `anucarts_orders_placed_total{fanout_complete="true"} 1`) {
		t.Fatalf("metrics body missing counter:\n%s", rec.Body.String())
	}
}
