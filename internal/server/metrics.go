package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics bundles the Prometheus collectors exposed at GET /metrics. Uses
// a registry of its own plus promauto-registered collectors, both built
// per Server, rather than relying on the global default registry, so
// multiple Servers can coexist without a duplicate-registration panic.
type metrics struct {
	registry *prometheus.Registry

	upserts      *prometheus.CounterVec
	searches     prometheus.Counter
	searchHits   prometheus.Histogram
	forgets      *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	errorsByCode *prometheus.CounterVec
	documents    prometheus.GaugeFunc
	chunks       prometheus.GaugeFunc
}

// newMetrics registers every collector against a fresh registry scoped to
// this server instance (tests construct their own Server, so a shared
// global registry would panic on duplicate registration across tests).
func newMetrics(deps Deps) *metrics {
	reg := prometheus.NewRegistry()

	m := &metrics{
		registry: reg,
		upserts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexd",
			Name:      "upserts_total",
			Help:      "Documents upserted, labeled by effective namespace.",
		}, []string{"namespace"}),
		searches: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "indexd",
			Name:      "searches_total",
			Help:      "Search requests served.",
		}),
		searchHits: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "indexd",
			Name:      "search_matches",
			Help:      "Number of matches returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		forgets: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexd",
			Name:      "forgets_total",
			Help:      "Forget operations, labeled by dry_run.",
		}, []string{"dry_run"}),
		outcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexd",
			Name:      "outcomes_total",
			Help:      "Decision outcomes recorded, labeled by outcome value.",
		}, []string{"outcome"}),
		errorsByCode: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexd",
			Name:      "request_errors_total",
			Help:      "Handler errors, labeled by the apperr code string.",
		}, []string{"code"}),
	}

	if deps.Store != nil {
		m.documents = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "indexd",
			Name:      "documents",
			Help:      "Current total document count across all namespaces.",
		}, func() float64 { return float64(deps.Store.Stats().TotalDocuments) })
		m.chunks = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "indexd",
			Name:      "chunks",
			Help:      "Current total chunk count across all namespaces.",
		}, func() float64 { return float64(deps.Store.Stats().TotalChunks) })
	}

	return m
}
