package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsByOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixeld",
		Subsystem: "engine",
		Name:      "generations_total",
		Help:      "Generations by outcome (ok, invalid, overloaded, oom, timeout, load_error, error)",
	}, []string{"outcome"})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pixeld",
		Subsystem: "engine",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of successful generations",
		Buckets:   []float64{1, 2, 5, 10, 20, 40, 60, 120, 300},
	})

	modelLoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pixeld",
		Subsystem: "engine",
		Name:      "model_loads_total",
		Help:      "Completed model loads since start",
	})

	oomTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pixeld",
		Subsystem: "engine",
		Name:      "oom_total",
		Help:      "Out-of-memory conditions recovered during generation",
	})

	overloadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pixeld",
		Subsystem: "engine",
		Name:      "overloaded_total",
		Help:      "Requests rejected because no execution slot became available",
	})

	deviceMemoryAllocated = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pixeld",
		Subsystem: "engine",
		Name:      "device_memory_allocated_bytes",
		Help:      "Accelerator memory allocated, as of the last snapshot",
	})
)
