package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sifan077/LinkPulse/internal/app/cache"
)

const namespace = "linkpulse"

// Metrics holds the collectors shared by the link store, the click recorder
// and the analytics aggregator.
type Metrics struct {
	cacheLookups    *prometheus.CounterVec
	clicksRecorded  prometheus.Counter
	clicksDropped   *prometheus.CounterVec
	degradedQueries *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slug_cache",
			Name:      "lookups_total",
			Help:      "Slug cache lookups by result.",
		}, []string{"result"}),
		clicksRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clicks",
			Name:      "recorded_total",
			Help:      "Click events persisted.",
		}),
		clicksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clicks",
			Name:      "dropped_total",
			Help:      "Click events that could not be persisted, by reason.",
		}, []string{"reason"}),
		degradedQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "degraded_total",
			Help:      "Analytics reads answered with a fallback value, by query.",
		}, []string{"query"}),
	}

	if reg != nil {
		reg.MustRegister(m.cacheLookups, m.clicksRecorded, m.clicksDropped, m.degradedQueries)
	}
	return m
}

// ObserveLookup implements cache.Observer.
func (m *Metrics) ObserveLookup(r cache.Result) {
	m.cacheLookups.WithLabelValues(r.String()).Inc()
}

func (m *Metrics) ClickRecorded() {
	m.clicksRecorded.Inc()
}

func (m *Metrics) ClickDropped(reason string) {
	m.clicksDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) QueryDegraded(query string) {
	m.degradedQueries.WithLabelValues(query).Inc()
}

var _ cache.Observer = (*Metrics)(nil)
