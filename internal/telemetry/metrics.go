package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики оркестратора и разрешения переменных.
// Регистрируются в default registry, экспортируются через
// promhttp в main каждого сервиса.
var (
	// RunsFinalized — завершённые runs по финальному статусу.
	RunsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reducta_runs_finalized_total",
		Help: "Reduction runs moved to a terminal status.",
	}, []string{"status"})

	// RunsReceived — принятые события data_ready по инструментам.
	RunsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reducta_data_ready_total",
		Help: "data_ready events accepted for processing.",
	}, []string{"instrument"})

	// ReductionsInFlight — runs в статусе PROCESSING прямо сейчас.
	ReductionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reducta_reductions_in_flight",
		Help: "Runs currently handed off to the reduction process.",
	})

	// ReductionDuration — длительность внешней редукции.
	ReductionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reducta_reduction_duration_seconds",
		Help:    "Wall time of the external reduction process.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	// VariableOps — операции над строками InstrumentVariable
	// при разрешении (reuse / create / update).
	VariableOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reducta_variable_ops_total",
		Help: "Instrument variable rows reused, created or updated during resolution.",
	}, []string{"op"})

	// RecoveredRuns — runs, закрытые janitor'ом (orphaned / stuck).
	RecoveredRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reducta_recovered_runs_total",
		Help: "Runs finalized by the recovery sweep.",
	}, []string{"reason"})
)
