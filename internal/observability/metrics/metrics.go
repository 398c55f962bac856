package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics exposes counters/histograms for notification dispatch.
type DispatchMetrics struct {
	dispatchTotal      *prometheus.CounterVec
	carrierLatency     *prometheus.HistogramVec
	auditWriteFailures *prometheus.CounterVec
	consentLookupErrs  *prometheus.CounterVec
	inboundTotal       *prometheus.CounterVec
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charter",
			Subsystem: "dispatch",
			Name:      "total",
			Help:      "Dispatch attempts by template kind and terminal status",
		}, []string{"kind", "status"}),
		carrierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "charter",
			Subsystem: "dispatch",
			Name:      "carrier_latency_seconds",
			Help:      "Latency of a logical carrier send including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
		auditWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charter",
			Subsystem: "dispatch",
			Name:      "audit_write_failures_total",
			Help:      "Audit rows that could not be written",
		}, []string{"status"}),
		consentLookupErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charter",
			Subsystem: "consent",
			Name:      "lookup_errors_total",
			Help:      "Opt-out registry lookups that failed",
		}, []string{"fail_mode"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charter",
			Subsystem: "consent",
			Name:      "inbound_keywords_total",
			Help:      "Inbound consent keywords processed",
		}, []string{"action"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dispatchTotal, m.carrierLatency, m.auditWriteFailures, m.consentLookupErrs, m.inboundTotal)
	return m
}

func (m *DispatchMetrics) ObserveDispatch(kind, status string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(kind, status).Inc()
}

func (m *DispatchMetrics) ObserveCarrierLatency(provider string, success bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "ok"
	}
	if provider == "" {
		provider = "unknown"
	}
	m.carrierLatency.WithLabelValues(provider, outcome).Observe(seconds)
}

func (m *DispatchMetrics) ObserveAuditWriteFailure(status string) {
	if m == nil {
		return
	}
	m.auditWriteFailures.WithLabelValues(status).Inc()
}

func (m *DispatchMetrics) ObserveConsentLookupError(failMode string) {
	if m == nil {
		return
	}
	m.consentLookupErrs.WithLabelValues(failMode).Inc()
}

func (m *DispatchMetrics) ObserveInboundKeyword(action string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(action).Inc()
}
