package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/f3rmion/fyenroll/transport"
)

// Metrics holds the coordinator's Prometheus collectors.
type Metrics struct {
	sessions      *prometheus.CounterVec
	enrollments   *prometheus.CounterVec
	roundDuration *prometheus.HistogramVec
	participants  prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg gives unregistered
// collectors, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fyenroll",
			Name:      "sessions_total",
			Help:      "Enrollment sessions by outcome.",
		}, []string{"outcome"}),
		enrollments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fyenroll",
			Name:      "enrollments_total",
			Help:      "Enroll calls by result.",
		}, []string{"result"}),
		roundDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fyenroll",
			Name:      "round_duration_seconds",
			Help:      "Duration of enrollment rounds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"round"}),
		participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fyenroll",
			Name:      "participants",
			Help:      "Current participant count n.",
		}),
	}
}

func (m *Metrics) observeRound(round string, d time.Duration) {
	m.roundDuration.WithLabelValues(round).Observe(d.Seconds())
}

func (m *Metrics) session(outcome string) {
	m.sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) enrollment(result string) {
	m.enrollments.WithLabelValues(result).Inc()
}

const roundAssemble = "assemble"

var (
	roundSplit     = transport.RoundSplit.String()
	roundAggregate = transport.RoundAggregate.String()
)
