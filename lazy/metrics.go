package lazy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	cachesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cellfield_lazy_caches_built_total",
		Help: "Total number of array caches built for a traversal",
	})

	transientCaches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cellfield_lazy_transient_caches_total",
		Help: "Total number of throwaway caches built for one-off indexing",
	})

	entriesComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cellfield_lazy_entries_computed_total",
		Help: "Total number of lazy array entries evaluated (cache misses)",
	})

	fillShortcuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cellfield_lazy_fill_shortcuts_total",
		Help: "Total number of lazy maps collapsed to a single evaluation over uniform sources",
	})

	rewrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cellfield_lazy_rewrites_total",
		Help: "Total number of construction-time expression rewrites, by rule",
	}, []string{"rule"})
)

func applied(rule string) {
	rewrites.WithLabelValues(rule).Inc()
	log.Debug().Str("rule", rule).Msg("lazy map rewritten")
}
