package assembly

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cellsAssembled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cellfield_assembly_cells_total",
		Help: "Total number of cell contributions scattered",
	})

	assemblyPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cellfield_assembly_passes_total",
		Help: "Total number of assembly passes started",
	})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cellfield_assembly_solve_duration_seconds",
		Help:    "Time spent factorizing and solving assembled systems",
		Buckets: prometheus.DefBuckets,
	})
)
