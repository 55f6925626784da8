// Package bridge exposes the coupling layer as a handle-based call surface:
// opaque integer handles, flat float64 triplet arrays, and negative-sentinel
// failure returns. It mirrors the convention of a cross-language boundary
// that cannot carry rich error values, while the Go API underneath keeps
// typed errors. All process state lives on an explicit Context; there are
// no package-level singletons.
package bridge

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/orogenlab/landcoupler/coupling"
	"github.com/orogenlab/landcoupler/engine"
	"github.com/orogenlab/landcoupler/internal/logging"
	"github.com/orogenlab/landcoupler/internal/observability"
	"github.com/orogenlab/landcoupler/mesh"
	"github.com/orogenlab/landcoupler/timectrl"
)

// Sentinel values used at the flat boundary. Callers must treat any
// negative return from a nominally non-negative quantity as a failure.
const (
	StatusOK      = 0
	StatusFailure = -1
	FailureFloat  = -1.0

	tracerName     = "github.com/orogenlab/landcoupler/bridge"
	failureOutcome = true
	successOutcome = false
)

// Config wires a Context's collaborators. Zero values select the noop
// logger, no metrics, and the globally registered tracer provider.
type Config struct {
	Log     logging.Logger
	Metrics *observability.CouplerCollector
}

// Context is the explicit process state behind the flat surface: the handle
// registry plus logging, metrics, and tracing. Construct once, pass to all
// operations, Close at teardown.
type Context struct {
	log        logging.Logger
	metrics    *observability.CouplerCollector
	tracer     trace.Tracer
	registry   *Registry
	dispatcher *coupling.Dispatcher
}

// NewContext constructs the bridge context.
func NewContext(cfg Config) *Context {
	log := cfg.Log
	if log == nil {
		log = logging.Noop()
	}
	return &Context{
		log:        log,
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer(tracerName),
		registry:   NewRegistry(),
		dispatcher: coupling.NewDispatcher(log, cfg.Metrics),
	}
}

// Close releases all live models. Handles created on this context are
// invalid afterwards.
func (c *Context) Close() {
	c.registry = NewRegistry()
	c.metrics.SetLiveModels(0)
}

// startOp opens a span and an op-scoped logger for one boundary operation.
func (c *Context) startOp(ctx context.Context, op string) (context.Context, logging.Logger, trace.Span, time.Time) {
	ctx, span := c.tracer.Start(ctx, op)
	ctx, log := logging.WithOpLogger(ctx, c.log, op)
	return ctx, log, span, time.Now()
}

// Create builds a model from a YAML configuration path and returns its
// handle, or FailureHandle when the configuration is invalid or unreadable.
func (c *Context) Create(ctx context.Context, configPath string) Handle {
	ctx, log, span, start := c.startOp(ctx, "create")
	defer span.End()
	span.SetAttributes(attribute.String("config_path", configPath))

	model, err := engine.LoadModel(configPath, c.log)
	if err != nil {
		log.Error(ctx, "model creation failed",
			logging.String("config_path", configPath),
			logging.String("error", err.Error()))
		c.metrics.ObserveOp("create", start, failureOutcome)
		return FailureHandle
	}

	h := c.registry.Add(model)
	c.metrics.ObserveOp("create", start, successOutcome)
	c.metrics.SetLiveModels(c.registry.Live())
	log.Info(ctx, "model created",
		logging.String("config_path", configPath),
		logging.Int("mesh_nodes", len(model.MeshCoords())))
	return h
}

// Destroy releases the model behind h. It returns StatusOK once; any
// further operation on h, including a second Destroy, fails.
func (c *Context) Destroy(ctx context.Context, h Handle) int {
	ctx, log, span, start := c.startOp(ctx, "destroy")
	defer span.End()

	if _, err := c.registry.Remove(h); err != nil {
		log.Warn(ctx, "destroy failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("destroy", start, failureOutcome)
		return StatusFailure
	}
	c.metrics.ObserveOp("destroy", start, successOutcome)
	c.metrics.SetLiveModels(c.registry.Live())
	return StatusOK
}

// RunForDt runs one step of size dt (non-positive selects the model's dt)
// and returns the wall-clock seconds of the step, or -1.0 on failure.
func (c *Context) RunForDt(ctx context.Context, h Handle, dt float64, verbose bool) float64 {
	ctx, log, span, start := c.startOp(ctx, "run_for_dt")
	defer span.End()

	model, err := c.registry.Get(h)
	if err != nil {
		log.Warn(ctx, "run_for_dt failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("run_for_dt", start, failureOutcome)
		return FailureFloat
	}

	ctrl := timectrl.NewController(model, log, c.metrics)
	elapsed, err := ctrl.RunForDt(ctx, sanitizeDt(dt), verbose)
	if err != nil {
		log.Error(ctx, "run_for_dt failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("run_for_dt", start, failureOutcome)
		return FailureFloat
	}
	c.metrics.ObserveOp("run_for_dt", start, successOutcome)
	return elapsed
}

// RunForSteps runs numSteps sequential steps and returns how many
// completed, or -1 when the arguments are invalid or the handle is dead.
// A mid-run step failure reports the completed count, matching the richer
// Go API underneath.
func (c *Context) RunForSteps(ctx context.Context, h Handle, numSteps int, dt float64, verbose bool) int {
	ctx, log, span, start := c.startOp(ctx, "run_for_steps")
	defer span.End()
	span.SetAttributes(attribute.Int("num_steps", numSteps))

	model, err := c.registry.Get(h)
	if err != nil {
		log.Warn(ctx, "run_for_steps failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("run_for_steps", start, failureOutcome)
		return StatusFailure
	}

	ctrl := timectrl.NewController(model, log, c.metrics)
	elapsed, err := ctrl.RunForSteps(ctx, numSteps, sanitizeDt(dt), verbose)
	if err != nil {
		log.Error(ctx, "run_for_steps failed",
			logging.Int("completed", len(elapsed)),
			logging.String("error", err.Error()))
		c.metrics.ObserveOp("run_for_steps", start, failureOutcome)
		// Bad arguments yield the failure sentinel; a step failing mid-run
		// reports how many steps actually completed.
		if len(elapsed) == 0 && errors.Is(err, mesh.ErrInvalidInput) {
			return StatusFailure
		}
		return len(elapsed)
	}
	c.metrics.ObserveOp("run_for_steps", start, successOutcome)
	return len(elapsed)
}

// RunUntilTime steps the model until targetTime and returns the number of
// completed steps, or -1 on failure. A target at or before the current time
// completes zero steps.
func (c *Context) RunUntilTime(ctx context.Context, h Handle, targetTime, dt float64, verbose bool) int {
	ctx, log, span, start := c.startOp(ctx, "run_until_time")
	defer span.End()
	span.SetAttributes(attribute.Float64("target_time", targetTime))

	model, err := c.registry.Get(h)
	if err != nil {
		log.Warn(ctx, "run_until_time failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("run_until_time", start, failureOutcome)
		return StatusFailure
	}

	ctrl := timectrl.NewController(model, log, c.metrics)
	elapsed, err := ctrl.RunUntilTime(ctx, targetTime, sanitizeDt(dt), verbose)
	if err != nil {
		log.Error(ctx, "run_until_time failed",
			logging.Int("completed", len(elapsed)),
			logging.String("error", err.Error()))
		c.metrics.ObserveOp("run_until_time", start, failureOutcome)
		return StatusFailure
	}
	c.metrics.ObserveOp("run_until_time", start, successOutcome)
	return len(elapsed)
}

// ApplyVelocityData interpolates an external velocity sample set onto the
// model mesh and routes it through the active advection scheme. coords and
// velocities are flat N-by-3 triplet arrays. Returns StatusOK or
// StatusFailure; rejected input never alters model state.
func (c *Context) ApplyVelocityData(ctx context.Context, h Handle, coords, velocities []float64, numPoints int, timer float64, k int, power float64) int {
	ctx, log, span, start := c.startOp(ctx, "apply_velocity_data")
	defer span.End()
	span.SetAttributes(attribute.Int("num_points", numPoints))

	model, err := c.registry.Get(h)
	if err != nil {
		log.Warn(ctx, "apply_velocity_data failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("apply_velocity_data", start, failureOutcome)
		return StatusFailure
	}

	data, err := unpackVelocityField(coords, velocities, numPoints)
	if err == nil {
		err = c.dispatcher.ApplyVelocityData(ctx, model, data, coupling.ApplyOptions{
			Timer: timer,
			K:     k,
			Power: power,
		})
	}
	if err != nil {
		log.Error(ctx, "apply_velocity_data failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("apply_velocity_data", start, failureOutcome)
		return StatusFailure
	}
	c.metrics.ObserveOp("apply_velocity_data", start, successOutcome)
	return StatusOK
}

// InterpolateElevationToPoints samples the model's elevation field at the
// flat N-by-3 query coordinates, returning one elevation per point or nil
// on failure. The output is never partially filled.
func (c *Context) InterpolateElevationToPoints(ctx context.Context, h Handle, coords []float64, numPoints, k int, power float64) []float64 {
	ctx, log, span, start := c.startOp(ctx, "interpolate_elevation")
	defer span.End()
	span.SetAttributes(attribute.Int("num_points", numPoints))

	model, err := c.registry.Get(h)
	if err != nil {
		log.Warn(ctx, "interpolate_elevation failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("interpolate_elevation", start, failureOutcome)
		return nil
	}

	query, err := mesh.UnpackTriplets(coords, numPoints)
	if err != nil {
		log.Error(ctx, "interpolate_elevation failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("interpolate_elevation", start, failureOutcome)
		return nil
	}

	out, err := coupling.SampleElevation(model, query, k, power)
	if err != nil {
		log.Error(ctx, "interpolate_elevation failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("interpolate_elevation", start, failureOutcome)
		return nil
	}
	c.metrics.ObserveOp("interpolate_elevation", start, successOutcome)
	c.metrics.ObserveInterpolation(numPoints)
	return out
}

// CurrentTime returns the model's tNow, or -1.0 for a dead handle.
func (c *Context) CurrentTime(ctx context.Context, h Handle) float64 {
	ctx, log, span, start := c.startOp(ctx, "get_current_time")
	defer span.End()

	model, err := c.registry.Get(h)
	if err != nil {
		log.Warn(ctx, "get_current_time failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("get_current_time", start, failureOutcome)
		return FailureFloat
	}
	c.metrics.ObserveOp("get_current_time", start, successOutcome)
	return model.CurrentTime()
}

// TimeStep returns the model's native dt, or -1.0 for a dead handle.
func (c *Context) TimeStep(ctx context.Context, h Handle) float64 {
	ctx, log, span, start := c.startOp(ctx, "get_time_step")
	defer span.End()

	model, err := c.registry.Get(h)
	if err != nil {
		log.Warn(ctx, "get_time_step failed", logging.String("error", err.Error()))
		c.metrics.ObserveOp("get_time_step", start, failureOutcome)
		return FailureFloat
	}
	c.metrics.ObserveOp("get_time_step", start, successOutcome)
	return model.TimeStep()
}

// unpackVelocityField decodes the two flat triplet arrays into a validated
// velocity field.
func unpackVelocityField(coords, velocities []float64, n int) (mesh.VelocityField, error) {
	pts, err := mesh.UnpackTriplets(coords, n)
	if err != nil {
		return mesh.VelocityField{}, err
	}
	vels, err := mesh.UnpackTriplets(velocities, n)
	if err != nil {
		return mesh.VelocityField{}, err
	}
	return mesh.NewVelocityField(pts, []mesh.Vec3(vels))
}

// sanitizeDt maps the boundary's "negative or zero means default" timer
// convention onto the controller's "zero means default".
func sanitizeDt(dt float64) float64 {
	if dt <= 0 || math.IsNaN(dt) {
		return 0
	}
	return dt
}
