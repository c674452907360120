package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-task-patterns/core"
)

const defaultNamespace = "taskpatterns"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// DurationBuckets are the run duration histogram buckets in seconds.
	// Runs last seconds to a minute, so the default spans 0.1s to 120s.
	DurationBuckets []float64
}

var defaultRunBuckets = []float64{0.1, 0.5, 1, 2, 3, 5, 10, 20, 30, 60, 120}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	runDurationSeconds *prom.HistogramVec
	unitOutcomeTotal   *prom.CounterVec
	runRejectedTotal   *prom.CounterVec
	taskPanicTotal     *prom.CounterVec
	queueDepth         *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Registering twice against the same registry reuses the existing collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = defaultRunBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Controller run duration in seconds by terminal state.",
		Buckets:   buckets,
	}, []string{"controller", "state"})
	outcomeVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "unit_outcome_total",
		Help:      "Total number of finished task units by outcome.",
	}, []string{"controller", "outcome"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "run_rejected_total",
		Help:      "Total number of refused run starts.",
	}, []string{"controller", "reason"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of recovered panics.",
	}, []string{"runner"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current worker pool queue depth.",
	}, []string{"runner"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if outcomeVec, err = registerCollector(reg, outcomeVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		runDurationSeconds: durationVec,
		unitOutcomeTotal:   outcomeVec,
		runRejectedTotal:   rejectedVec,
		taskPanicTotal:     panicVec,
		queueDepth:         queueDepthVec,
	}, nil
}

// RecordRunDuration records the duration of a finished run.
func (m *MetricsExporter) RecordRunDuration(controller string, state core.RunState, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDurationSeconds.WithLabelValues(normalizeLabel(controller, "unknown"), state.String()).Observe(duration.Seconds())
}

// RecordUnitOutcome counts a finished unit.
func (m *MetricsExporter) RecordUnitOutcome(controller string, outcome core.Outcome) {
	if m == nil {
		return
	}
	m.unitOutcomeTotal.WithLabelValues(normalizeLabel(controller, "unknown"), outcome.String()).Inc()
}

// RecordRunRejected counts a refused start.
func (m *MetricsExporter) RecordRunRejected(controller string, reason string) {
	if m == nil {
		return
	}
	m.runRejectedTotal.WithLabelValues(normalizeLabel(controller, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(runnerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(runnerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(runnerName, "unknown")).Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
