package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters for lead CRUD operations.
type LeadMetrics struct {
	opsTotal *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadconsole",
			Subsystem: "leads",
			Name:      "operations_total",
			Help:      "Total lead operations by type and outcome",
		}, []string{"op", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.opsTotal)
	return m
}

// ObserveOp records one lead operation outcome.
func (m *LeadMetrics) ObserveOp(op, status string) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op, status).Inc()
}

// ChatMetrics exposes counters/histograms for streaming chat turns.
type ChatMetrics struct {
	streamsTotal   *prometheus.CounterVec
	streamDuration prometheus.Histogram
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		streamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadconsole",
			Subsystem: "chat",
			Name:      "streams_total",
			Help:      "Total chat streams by outcome (completed, cancelled, failed)",
		}, []string{"outcome"}),
		streamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadconsole",
			Subsystem: "chat",
			Name:      "stream_duration_seconds",
			Help:      "Duration of chat streams from first request to close",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.streamsTotal, m.streamDuration)
	return m
}

// ObserveStream records one finished stream.
func (m *ChatMetrics) ObserveStream(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.streamsTotal.WithLabelValues(outcome).Inc()
	m.streamDuration.Observe(seconds)
}
