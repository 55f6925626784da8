// Package timectrl drives the external simulation's native step primitive
// with finer granularity than the simulation itself offers: one step of an
// exact size, N steps, or stepping until a target time. The controller
// temporarily overrides the simulation's dt and tEnd configuration and
// restores both on every exit path, so only tNow advances across a call.
package timectrl

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/orogenlab/landcoupler/internal/logging"
	"github.com/orogenlab/landcoupler/internal/observability"
	"github.com/orogenlab/landcoupler/mesh"
)

// Stepper is the time-keeping capability set the controller needs from the
// simulation. Step runs the simulation's own bounded-run primitive: it
// advances tNow in increments of the configured dt until tEnd is reached.
type Stepper interface {
	CurrentTime() float64
	TimeStep() float64
	EndTime() float64
	SetTimeStep(dt float64)
	SetEndTime(t float64)
	Step(ctx context.Context) error
}

// Controller wraps a Stepper. Calls on one controller must be serialized by
// the caller; there is at most one in-flight operation per simulation.
type Controller struct {
	Sim     Stepper
	Log     logging.Logger
	Metrics *observability.CouplerCollector
}

// NewController constructs a controller for sim. A nil logger is replaced
// with the noop logger; metrics may be nil.
func NewController(sim Stepper, log logging.Logger, metrics *observability.CouplerCollector) *Controller {
	if log == nil {
		log = logging.Noop()
	}
	return &Controller{Sim: sim, Log: log, Metrics: metrics}
}

// resolveDt maps the caller's dt to the effective step size: zero means
// "use the simulation's own dt", negative is rejected outright.
func (c *Controller) resolveDt(dt float64) (float64, error) {
	if dt < 0 {
		return 0, fmt.Errorf("%w: dt must be positive, got %g", mesh.ErrInvalidInput, dt)
	}
	if dt == 0 {
		dt = c.Sim.TimeStep()
	}
	if dt <= 0 {
		return 0, fmt.Errorf("%w: simulation dt %g is not positive", mesh.ErrInvalidInput, dt)
	}
	return dt, nil
}

// RunForDt runs exactly one simulation step of size dt (zero selects the
// simulation's current dt) and returns the wall-clock seconds the step
// took. The simulation's dt and tEnd are saved before the step and restored
// whether the step succeeds or fails; only tNow moves.
func (c *Controller) RunForDt(ctx context.Context, dt float64, verbose bool) (float64, error) {
	dt, err := c.resolveDt(dt)
	if err != nil {
		return -1, err
	}

	savedDt := c.Sim.TimeStep()
	savedEnd := c.Sim.EndTime()
	defer func() {
		c.Sim.SetTimeStep(savedDt)
		c.Sim.SetEndTime(savedEnd)
	}()

	tNow := c.Sim.CurrentTime()
	c.Sim.SetTimeStep(dt)
	c.Sim.SetEndTime(tNow + dt)

	if verbose {
		c.Log.Info(ctx, "running step",
			logging.Any("t_now", tNow), logging.Any("dt", dt))
	}

	start := time.Now()
	if err := c.Sim.Step(ctx); err != nil {
		c.Metrics.ObserveStepFailure()
		return -1, fmt.Errorf("step from t=%g with dt=%g: %w", tNow, dt, err)
	}
	elapsed := time.Since(start).Seconds()
	c.Metrics.ObserveStep(elapsed)

	if verbose {
		c.Log.Info(ctx, "step complete",
			logging.Any("t_now", c.Sim.CurrentTime()),
			logging.Any("elapsed_s", elapsed))
	}
	return elapsed, nil
}

// RunForSteps invokes RunForDt numSteps times sequentially, aborting on the
// first failure. The returned slice holds the wall-clock elapsed time of
// every completed step, so on failure its length reports how many steps
// finished before the error.
func (c *Controller) RunForSteps(ctx context.Context, numSteps int, dt float64, verbose bool) ([]float64, error) {
	if numSteps < 1 {
		return nil, fmt.Errorf("%w: numSteps must be >= 1, got %d", mesh.ErrInvalidInput, numSteps)
	}

	elapsed := make([]float64, 0, numSteps)
	for i := 0; i < numSteps; i++ {
		e, err := c.RunForDt(ctx, dt, verbose)
		if err != nil {
			return elapsed, fmt.Errorf("step %d of %d: %w", i+1, numSteps, err)
		}
		elapsed = append(elapsed, e)
	}
	return elapsed, nil
}

// RunUntilTime steps the simulation until tNow reaches targetTime exactly,
// using dt-sized increments with the final increment clamped to the
// remaining interval so the simulation never overshoots. A target at or
// before the current time is a no-op, not an error.
func (c *Controller) RunUntilTime(ctx context.Context, targetTime, dt float64, verbose bool) ([]float64, error) {
	dt, err := c.resolveDt(dt)
	if err != nil {
		return nil, err
	}

	if targetTime <= c.Sim.CurrentTime() {
		if verbose {
			c.Log.Info(ctx, "target time already reached",
				logging.Any("target", targetTime),
				logging.Any("t_now", c.Sim.CurrentTime()))
		}
		return []float64{}, nil
	}

	var elapsed []float64
	for {
		tNow := c.Sim.CurrentTime()
		remaining := targetTime - tNow
		if remaining <= 0 {
			return elapsed, nil
		}
		stepDt := math.Min(dt, remaining)

		e, err := c.RunForDt(ctx, stepDt, verbose)
		if err != nil {
			return elapsed, fmt.Errorf("step %d towards t=%g: %w", len(elapsed)+1, targetTime, err)
		}
		elapsed = append(elapsed, e)

		if c.Sim.CurrentTime() <= tNow {
			return elapsed, fmt.Errorf("simulation time did not advance past t=%g", tNow)
		}
	}
}
