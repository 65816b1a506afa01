package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRunsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	finished := time.Unix(1_760_000_000, 0)

	metrics.ObserveRun("derived-audit", 250*time.Millisecond, nil, finished)
	metrics.ObserveRun("derived-audit", 100*time.Millisecond, errors.New("drift"), finished.Add(time.Hour))
	metrics.ObserveRun("", time.Millisecond, nil, finished)
	metrics.IncSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "reconcile_job_runs_total")
	if runs == nil {
		t.Fatal("runs metric missing")
	}
	counts := map[string]float64{}
	for _, m := range runs.GetMetric() {
		counts[labelValue(m, "job")+"/"+labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	if counts["derived-audit/success"] != 1 || counts["derived-audit/failure"] != 1 || counts["unknown/success"] != 1 {
		t.Fatalf("unexpected run counts %v", counts)
	}

	if got, err := fetchGaugeValue(mfs, "reconcile_job_last_success_timestamp_seconds", "job", "derived-audit"); err != nil {
		t.Fatalf("fetch last success: %v", err)
	} else if got != float64(finished.Unix()) {
		t.Fatalf("failed run must not move last success, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "reconcile_job_duration_seconds", "job", "derived-audit"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.35 {
		t.Fatalf("expected duration sum >= 0.35, got %f", got)
	}

	skipped := findMetricFamily(mfs, "reconcile_cycles_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected one skipped cycle")
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var nilMetrics *CronJobMetrics
	nilMetrics.ObserveRun("job", time.Second, nil, time.Now())
	nilMetrics.IncSkipped()

	unregistered := NewCronJobMetrics(nil)
	unregistered.ObserveRun("job", time.Second, errors.New("x"), time.Now())
	unregistered.IncSkipped()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findMetric(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findMetric(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetGauge().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findMetric(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleSum(), nil
}

func findMetric(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if labelValue(metric, label) == value {
			return metric, nil
		}
	}
	return nil, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}
