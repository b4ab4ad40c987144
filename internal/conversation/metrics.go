package conversation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DegradedRetrievalTotal counts turns answered without context because
	// retrieval failed.
	DegradedRetrievalTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tdpchat",
		Subsystem: "conversation",
		Name:      "degraded_retrieval_total",
		Help:      "Total number of turns answered without retrieved context after a retrieval failure",
	})

	// TurnsTotal counts finished turns.
	// Labels: result (answered, failed)
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tdpchat",
		Subsystem: "conversation",
		Name:      "turns_total",
		Help:      "Total number of conversation turns by result",
	}, []string{"result"})
)
