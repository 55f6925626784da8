// Package coupling maps externally sampled velocity and elevation data onto
// a mesh-based landscape-evolution simulation. It owns the advection
// dispatch policy (semi-Lagrangian vs finite-volume) and the reverse-path
// elevation sampler, but none of the simulation physics.
package coupling

import (
	"errors"

	"github.com/orogenlab/landcoupler/mesh"
)

// SchemeSemiLagrangian is the advection-scheme id for the semi-Lagrangian
// solver; any id greater than zero selects the finite-volume path.
const SchemeSemiLagrangian = 0

// ErrMissingCapability reports that the simulation build lacks a primitive
// the requested operation needs. It is distinct from the input-validation
// class so callers can tell "bad input" from "unsupported build".
var ErrMissingCapability = errors.New("simulation missing required capability")

// Simulation is the capability set the coupling layer requires from the
// external landscape model. The dispatcher reads the advection-scheme id
// and mesh layout; it never configures them.
type Simulation interface {
	// CurrentTime returns the simulation's current time tNow.
	CurrentTime() float64
	// TimeStep returns the simulation's native step size dt.
	TimeStep() float64
	// AdvectionScheme returns the active advection-scheme id.
	AdvectionScheme() int
	// MeshCoords returns the global mesh node coordinates, assembled
	// across all partitions.
	MeshCoords() mesh.PointSet
	// FlatMesh reports whether the mesh is planar. Flat models advect only
	// in the horizontal plane; spherical models use the full 3-D vector.
	FlatMesh() bool
	// Partition returns the local view of the global mesh.
	Partition() *mesh.Partition
	// Elevation returns the global elevation field, one value per mesh node.
	Elevation() []float64
	// SetDataDrivenDisplacement stores the interpolated local horizontal
	// displacement and its vertical (uplift/subsidence) component.
	SetDataDrivenDisplacement(local []mesh.Vec3, uplift []float64)
}

// SemiLagrangianReceiver is implemented by simulations that can accept
// departure points for deferred application at the next step boundary.
type SemiLagrangianReceiver interface {
	// StageAdvection records global departure positions to be resolved at
	// simulation time applyAt. Nothing is mutated until that boundary.
	StageAdvection(departures mesh.PointSet, applyAt float64) error
}

// FaceVelocityComputer is implemented by simulation builds that carry the
// face-velocity primitive required by the finite-volume path.
type FaceVelocityComputer interface {
	SetFaceVelocities(local []mesh.Vec3) error
}

// ImmediateAdvector advects the simulation's fields right away using the
// face velocities most recently set.
type ImmediateAdvector interface {
	AdvectFields() error
}
