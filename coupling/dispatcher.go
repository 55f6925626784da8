package coupling

import (
	"context"
	"fmt"

	"github.com/orogenlab/landcoupler/interp"
	"github.com/orogenlab/landcoupler/internal/logging"
	"github.com/orogenlab/landcoupler/internal/observability"
	"github.com/orogenlab/landcoupler/mesh"
)

// Interpolation defaults matching the external data format's conventions.
const (
	DefaultK     = 3
	DefaultPower = 1.0
)

// ApplyOptions tunes one ApplyVelocityData call.
type ApplyOptions struct {
	// Timer is the interval the velocities act over when staging
	// semi-Lagrangian advection. Zero or negative means "use the
	// simulation's current dt".
	Timer float64
	// K is the number of nearest neighbours used for interpolation,
	// clamped to the sample count.
	K int
	// Power is the inverse-distance weighting exponent.
	Power float64
}

// DefaultApplyOptions returns the options used when the caller has no
// opinion: timer deferred to the simulation dt, k=3, power=1.
func DefaultApplyOptions() ApplyOptions {
	return ApplyOptions{K: DefaultK, Power: DefaultPower}
}

// Dispatcher interpolates external velocity samples onto the simulation
// mesh and routes the result through the advection scheme the simulation is
// currently configured with.
type Dispatcher struct {
	Log     logging.Logger
	Metrics *observability.CouplerCollector
}

// NewDispatcher constructs a dispatcher. A nil logger is replaced with the
// noop logger; metrics may be nil.
func NewDispatcher(log logging.Logger, metrics *observability.CouplerCollector) *Dispatcher {
	if log == nil {
		log = logging.Noop()
	}
	return &Dispatcher{Log: log, Metrics: metrics}
}

// ApplyVelocityData applies an external velocity field to sim after IDW
// interpolation onto the mesh nodes.
//
// Interpolation always runs over the global sample and mesh arrays so every
// partition derives identical weights; the local rows are then extracted
// through the simulation's Partition. With advection scheme 0 the departure
// points are staged for the next step boundary; any other scheme computes
// face velocities and advects immediately.
//
// All validation happens before any simulation state is touched.
func (d *Dispatcher) ApplyVelocityData(ctx context.Context, sim Simulation, data mesh.VelocityField, opts ApplyOptions) error {
	if len(data.Coords) == 0 {
		return fmt.Errorf("%w: velocity data contains no samples", mesh.ErrInvalidInput)
	}
	if len(data.Coords) != len(data.Vel) {
		return fmt.Errorf("%w: %d sample coordinates but %d velocities",
			mesh.ErrInvalidInput, len(data.Coords), len(data.Vel))
	}
	if opts.K < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", mesh.ErrInvalidInput, opts.K)
	}
	if opts.Power < 0 {
		return fmt.Errorf("%w: power must be >= 0, got %g", mesh.ErrInvalidInput, opts.Power)
	}

	nodes := sim.MeshCoords()
	global, err := interp.InterpolateVectors(data.Coords, data.Vel, nodes, opts.K, opts.Power)
	if err != nil {
		return fmt.Errorf("interpolate velocity data: %w", err)
	}
	d.Metrics.ObserveInterpolation(len(nodes))

	part := sim.Partition()
	local, err := part.ExtractVec3(global)
	if err != nil {
		return fmt.Errorf("extract local velocities: %w", err)
	}
	uplift := make([]float64, len(local))
	for i, v := range local {
		uplift[i] = v.Z
	}
	sim.SetDataDrivenDisplacement(local, uplift)

	timer := opts.Timer
	if timer <= 0 {
		timer = sim.TimeStep()
	}

	scheme := sim.AdvectionScheme()
	if scheme == SchemeSemiLagrangian {
		recv, ok := sim.(SemiLagrangianReceiver)
		if !ok {
			return fmt.Errorf("%w: semi-Lagrangian advection receiver", ErrMissingCapability)
		}
		applyAt := sim.CurrentTime() + timer
		departures := departurePoints(nodes, global, timer, sim.FlatMesh())
		if err := recv.StageAdvection(departures, applyAt); err != nil {
			return fmt.Errorf("stage advection: %w", err)
		}
		d.Log.Debug(ctx, "staged semi-Lagrangian advection",
			logging.Int("samples", len(data.Coords)),
			logging.Int("nodes", len(nodes)),
			logging.Any("apply_at", applyAt),
		)
		return nil
	}

	fv, ok := sim.(FaceVelocityComputer)
	if !ok {
		return fmt.Errorf("%w: face-velocity primitive", ErrMissingCapability)
	}
	adv, ok := sim.(ImmediateAdvector)
	if !ok {
		return fmt.Errorf("%w: immediate advection primitive", ErrMissingCapability)
	}

	nodeVel := local
	if sim.FlatMesh() {
		nodeVel = make([]mesh.Vec3, len(local))
		for i, v := range local {
			nodeVel[i] = mesh.Vec3{X: v.X, Y: v.Y}
		}
	}
	if err := fv.SetFaceVelocities(nodeVel); err != nil {
		return fmt.Errorf("set face velocities: %w", err)
	}
	if err := adv.AdvectFields(); err != nil {
		return fmt.Errorf("advect fields: %w", err)
	}
	d.Log.Debug(ctx, "applied finite-volume advection",
		logging.Int("samples", len(data.Coords)),
		logging.Int("nodes", len(nodes)),
		logging.Int("scheme", scheme),
	)
	return nil
}

// departurePoints traces each node back along its velocity over timer.
// Flat meshes advect only in the horizontal plane, so the node keeps its
// vertical coordinate; spherical meshes displace along the full vector.
func departurePoints(nodes mesh.PointSet, vel []mesh.Vec3, timer float64, flat bool) mesh.PointSet {
	dep := make(mesh.PointSet, len(nodes))
	for i, p := range nodes {
		d := p.Sub(vel[i].Scale(timer))
		if flat {
			d.Z = p.Z
		}
		dep[i] = d
	}
	return dep
}
