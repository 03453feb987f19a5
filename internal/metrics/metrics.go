package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolstats",
		Name:      "events_processed_total",
		Help:      "Protocol events fully processed, by kind.",
	}, []string{"kind"})

	EventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolstats",
		Name:      "events_skipped_total",
		Help:      "Protocol events skipped by the fail-soft policy, by kind and reason.",
	}, []string{"kind", "reason"})

	ValuationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "poolstats",
		Name:      "valuation_failures_total",
		Help:      "Reference-currency lookups that failed and fell back to zero.",
	})

	PoolsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "poolstats",
		Name:      "pools_created_total",
		Help:      "Liquidity pools registered.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
