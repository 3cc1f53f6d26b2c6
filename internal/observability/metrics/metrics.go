package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnalysisMetrics exposes counters/histograms for the screenshot analysis
// pipeline and its OSINT branch.
type AnalysisMetrics struct {
	analysesTotal     *prometheus.CounterVec
	pipelineLatency   *prometheus.HistogramVec
	osintScansTotal   *prometheus.CounterVec
	osintAccounts     prometheus.Histogram
	retentionDeletes  prometheus.Counter
	metadataFailures  prometheus.Counter
	visionFallbackUse *prometheus.CounterVec
}

func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	m := &AnalysisMetrics{
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sherlock",
			Subsystem: "analysis",
			Name:      "total",
			Help:      "Screenshot analyses by outcome",
		}, []string{"outcome"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sherlock",
			Subsystem: "analysis",
			Name:      "latency_seconds",
			Help:      "End-to-end latency of the analysis pipeline",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"osint"}),
		osintScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sherlock",
			Subsystem: "osint",
			Name:      "scans_total",
			Help:      "Username enumeration scans by outcome",
		}, []string{"outcome"}),
		osintAccounts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sherlock",
			Subsystem: "osint",
			Name:      "accounts_found",
			Help:      "Profiles discovered per successful scan",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		retentionDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sherlock",
			Subsystem: "retention",
			Name:      "deleted_total",
			Help:      "Analyses deleted by the per-user retention cap",
		}),
		metadataFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sherlock",
			Subsystem: "analysis",
			Name:      "metadata_failures_total",
			Help:      "Metadata extraction calls that degraded to an error result",
		}),
		visionFallbackUse: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sherlock",
			Subsystem: "vision",
			Name:      "fallback_total",
			Help:      "Vision calls served by the fallback provider",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.analysesTotal, m.pipelineLatency, m.osintScansTotal, m.osintAccounts,
		m.retentionDeletes, m.metadataFailures, m.visionFallbackUse)
	return m
}

// ObserveAnalysis records one pipeline run. outcome is "success",
// "analysis_failed" or "error".
func (m *AnalysisMetrics) ObserveAnalysis(outcome string, osintUsed bool, seconds float64) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(outcome).Inc()
	label := "false"
	if osintUsed {
		label = "true"
	}
	m.pipelineLatency.WithLabelValues(label).Observe(seconds)
}

// ObserveOSINTScan records a scan; accounts is only observed on success.
func (m *AnalysisMetrics) ObserveOSINTScan(outcome string, accounts int) {
	if m == nil {
		return
	}
	m.osintScansTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.osintAccounts.Observe(float64(accounts))
	}
}

func (m *AnalysisMetrics) ObserveRetentionDeletes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionDeletes.Add(float64(n))
}

func (m *AnalysisMetrics) ObserveMetadataFailure() {
	if m == nil {
		return
	}
	m.metadataFailures.Inc()
}

// ObserveVisionFallback records a call routed to the fallback provider.
func (m *AnalysisMetrics) ObserveVisionFallback(status string) {
	if m == nil {
		return
	}
	m.visionFallbackUse.WithLabelValues(status).Inc()
}
