package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("vcgauction.core")

var (
	// solveTotal counts winner determination runs.
	// Labels: status (success, too_many_bids, canceled)
	solveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vcgauction",
		Subsystem: "winner",
		Name:      "solve_total",
		Help:      "Total winner determination runs by outcome",
	}, []string{"status"})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vcgauction",
		Subsystem: "winner",
		Name:      "solve_duration_seconds",
		Help:      "Winner determination latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	subsetsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vcgauction",
		Subsystem: "winner",
		Name:      "subsets_evaluated_total",
		Help:      "Total candidate subsets enumerated",
	})

	// vcgRuns counts full VCG computations.
	// Labels: status (success, error)
	vcgRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vcgauction",
		Subsystem: "vcg",
		Name:      "runs_total",
		Help:      "Total VCG payment computations by outcome",
	}, []string{"status"})

	vcgPaymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vcgauction",
		Subsystem: "vcg",
		Name:      "payments_sum",
		Help:      "Sum of all VCG payments charged",
	})

	reserveRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vcgauction",
		Subsystem: "mechanism",
		Name:      "reserve_rejections_total",
		Help:      "Bids removed for failing item reserves",
	})
)
