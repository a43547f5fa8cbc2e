package fetch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records fetch activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	pages         *prometheus.CounterVec
	retries       prometheus.Counter
	commits       prometheus.Counter
	probeRequests prometheus.Counter
	fetchDuration prometheus.Histogram
}

// NewMetrics registers the fetch metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		pages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vdiff",
			Subsystem: "fetch",
			Name:      "pages_total",
			Help:      "Commit pages fetched, by result (ok, empty, failed).",
		}, []string{"result"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vdiff",
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Page fetch attempts that were retried after a transient error.",
		}),
		commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vdiff",
			Subsystem: "fetch",
			Name:      "commits_total",
			Help:      "Commit records retrieved.",
		}),
		probeRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vdiff",
			Subsystem: "probe",
			Name:      "requests_total",
			Help:      "Pages requested while probing for the page count.",
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vdiff",
			Subsystem: "fetch",
			Name:      "ref_duration_seconds",
			Help:      "Time to fetch the full history of one ref.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}

func (m *Metrics) page(result string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(result).Inc()
}

func (m *Metrics) retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) probed() {
	if m == nil {
		return
	}
	m.probeRequests.Inc()
}

func (m *Metrics) fetched(commits int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commits.Add(float64(commits))
	m.fetchDuration.Observe(elapsed.Seconds())
}
