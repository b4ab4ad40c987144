package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PersistTotal counts whole-index persists.
	// Labels: result (success, error)
	PersistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tdpchat",
			Subsystem: "vectorstore",
			Name:      "persist_total",
			Help:      "Total number of whole-index persist operations",
		},
		[]string{"result"},
	)

	// CorruptIndexTotal counts persisted indexes rejected on open.
	CorruptIndexTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tdpchat",
			Subsystem: "vectorstore",
			Name:      "corrupt_index_total",
			Help:      "Total number of persisted indexes rejected as corrupt or built by another embedder",
		},
	)

	// DocumentsTotal tracks stored documents per index location.
	DocumentsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tdpchat",
			Subsystem: "vectorstore",
			Name:      "documents",
			Help:      "Number of documents held by the index",
		},
		[]string{"location"},
	)

	// SearchDuration tracks search latency including query embedding.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tdpchat",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of search operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// recordPersist records the outcome of a persist.
func recordPersist(err error) {
	if err != nil {
		PersistTotal.WithLabelValues("error").Inc()
		return
	}
	PersistTotal.WithLabelValues("success").Inc()
}
