package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CouplerCollector bundles Prometheus metrics for the coupling layer: handle
// operations, simulation steps, and interpolation volume. All recording
// methods are safe on a nil receiver so components can run without metrics.
type CouplerCollector struct {
	gatherer prometheus.Gatherer

	OpRequests  *prometheus.CounterVec
	OpDurations *prometheus.HistogramVec

	StepsTotal        prometheus.Counter
	StepFailuresTotal prometheus.Counter
	StepDurations     prometheus.Histogram

	InterpolationPoints prometheus.Histogram
	LiveModels          prometheus.Gauge
}

// NewCouplerCollector registers coupling metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCouplerCollector(reg prometheus.Registerer) (*CouplerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coupler_ops_total",
		Help: "Total number of handle-boundary operations, labeled by operation and outcome.",
	}, []string{"op", "outcome"})
	requests, err := registerCounterVec(reg, requests, "coupler_ops_total")
	if err != nil {
		return nil, err
	}

	opDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coupler_op_duration_seconds",
		Help:    "Handle-boundary operation latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60},
	}, []string{"op"})
	opDurations, err = registerHistogramVec(reg, opDurations, "coupler_op_duration_seconds")
	if err != nil {
		return nil, err
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_steps_total",
		Help: "Total number of controlled simulation steps completed.",
	}), "sim_steps_total")
	if err != nil {
		return nil, err
	}
	stepFailures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_step_failures_total",
		Help: "Total number of controlled simulation steps that failed.",
	}), "sim_step_failures_total")
	if err != nil {
		return nil, err
	}
	stepDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_step_duration_seconds",
		Help:    "Wall-clock duration of controlled simulation steps.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 60, 300},
	}), "sim_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	interpPoints, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coupler_interpolation_points",
		Help:    "Number of query points per interpolation request.",
		Buckets: prometheus.ExponentialBuckets(10, 10, 7),
	}), "coupler_interpolation_points")
	if err != nil {
		return nil, err
	}
	liveModels, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coupler_live_models",
		Help: "Current number of live model handles.",
	}), "coupler_live_models")
	if err != nil {
		return nil, err
	}

	return &CouplerCollector{
		gatherer:            gatherer,
		OpRequests:          requests,
		OpDurations:         opDurations,
		StepsTotal:          steps,
		StepFailuresTotal:   stepFailures,
		StepDurations:       stepDurations,
		InterpolationPoints: interpPoints,
		LiveModels:          liveModels,
	}, nil
}

// ObserveOp records one handle-boundary operation with its outcome and
// latency.
func (c *CouplerCollector) ObserveOp(op string, start time.Time, failed bool) {
	if c == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	if c.OpRequests != nil {
		c.OpRequests.WithLabelValues(op, outcome).Inc()
	}
	if c.OpDurations != nil {
		c.OpDurations.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// ObserveStep records one completed simulation step.
func (c *CouplerCollector) ObserveStep(elapsedSeconds float64) {
	if c == nil {
		return
	}
	if c.StepsTotal != nil {
		c.StepsTotal.Inc()
	}
	if c.StepDurations != nil {
		c.StepDurations.Observe(elapsedSeconds)
	}
}

// ObserveStepFailure records one failed simulation step.
func (c *CouplerCollector) ObserveStepFailure() {
	if c == nil || c.StepFailuresTotal == nil {
		return
	}
	c.StepFailuresTotal.Inc()
}

// ObserveInterpolation records the size of one interpolation request.
func (c *CouplerCollector) ObserveInterpolation(points int) {
	if c == nil || c.InterpolationPoints == nil {
		return
	}
	c.InterpolationPoints.Observe(float64(points))
}

// SetLiveModels updates the live-handle gauge.
func (c *CouplerCollector) SetLiveModels(n int) {
	if c == nil || c.LiveModels == nil {
		return
	}
	c.LiveModels.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CouplerCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
