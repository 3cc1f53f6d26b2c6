package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range metric.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestAnalysisMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAnalysisMetrics(reg)
	m.ObserveAnalysis("success", true, 3.2)
	m.ObserveAnalysis("success", false, 1.1)
	m.ObserveAnalysis("analysis_failed", false, 0.4)
	m.ObserveOSINTScan("success", 4)
	m.ObserveOSINTScan("tool_failed", 0)
	m.ObserveRetentionDeletes(5)
	m.ObserveRetentionDeletes(0)
	m.ObserveMetadataFailure()
	m.ObserveVisionFallback("ok")

	if got := counterValue(t, reg, "sherlock_analysis_total", map[string]string{"outcome": "success"}); got != 2 {
		t.Fatalf("expected 2 successful analyses, got %v", got)
	}
	if got := counterValue(t, reg, "sherlock_osint_scans_total", map[string]string{"outcome": "tool_failed"}); got != 1 {
		t.Fatalf("expected 1 failed scan, got %v", got)
	}
	if got := counterValue(t, reg, "sherlock_retention_deleted_total", map[string]string{}); got != 5 {
		t.Fatalf("expected 5 retention deletes, got %v", got)
	}
	if got := counterValue(t, reg, "sherlock_analysis_metadata_failures_total", map[string]string{}); got != 1 {
		t.Fatalf("expected 1 metadata failure, got %v", got)
	}
}

func TestAnalysisMetricsDefaultRegistry(t *testing.T) {
	m := NewAnalysisMetrics(nil)
	m.ObserveAnalysis("error", false, 0.1)
}

func TestAnalysisMetricsNilSafe(t *testing.T) {
	var m *AnalysisMetrics
	m.ObserveAnalysis("success", false, 1)
	m.ObserveOSINTScan("success", 2)
	m.ObserveRetentionDeletes(3)
	m.ObserveMetadataFailure()
	m.ObserveVisionFallback("ok")
}
