package sltm

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "sltm"

	AssignmentSubsystem = "assignment"
	LoadingSubsystem    = "loading"
)

var (
	assignmentIterations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: AssignmentSubsystem,
			Name:      "iterations_total",
			Help:      "Counter of equilibration iterations executed.",
		},
	)

	assignmentGap = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: AssignmentSubsystem,
			Name:      "gap",
			Help:      "Relative duality gap of the latest equilibration iteration.",
		},
	)

	loadingIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: LoadingSubsystem,
			Name:      "iterations",
			Help:      "Distribution of sLTM loading iterations needed per network loading.",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10, 15, 20, 30, 50, 75, 100},
		},
	)

	potentiallyBlockingNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: LoadingSubsystem,
			Name:      "potentially_blocking_nodes",
			Help:      "Number of nodes flagged as potentially blocking in the latest loading pass.",
		},
	)

	conservationViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: LoadingSubsystem,
			Name:      "flow_conservation_violations_total",
			Help:      "Counter of flow conservation violations broken out by the component which detected it.",
		},
		[]string{"component"},
	)
)

// RegisterMetrics registers assignment and loading metrics within given registerer.
// Registering again within the same registerer is no-op. Collectors are shared, so every registerer exposes the same values.
func RegisterMetrics(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		assignmentIterations,
		assignmentGap,
		loadingIterations,
		potentiallyBlockingNodes,
		conservationViolations,
	}
	for _, collector := range collectors {
		err := registerer.Register(collector)
		if err == nil {
			continue
		}
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) && already.ExistingCollector == collector {
			continue
		}
		return errors.Wrap(err, "Can't register metrics")
	}
	return nil
}

func recordConservationViolation(component string) {
	conservationViolations.WithLabelValues(component).Inc()
}
