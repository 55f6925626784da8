package engine

import (
	"fmt"

	"github.com/orogenlab/landcoupler/mesh"
)

// SetFaceVelocities averages the local node velocities onto the mesh edges.
// This is the face-velocity primitive the finite-volume advection path
// requires. Edges with a non-local endpoint keep a zero face velocity; the
// owning partition contributes them.
func (m *Model) SetFaceVelocities(local []mesh.Vec3) error {
	if len(local) != m.part.LocalSize() {
		return fmt.Errorf("%w: %d node velocities for %d local nodes",
			mesh.ErrInvalidInput, len(local), m.part.LocalSize())
	}

	// Scatter local rows back to global positions.
	global := make([]mesh.Vec3, len(m.layout.coords))
	owned := make([]bool, len(m.layout.coords))
	for li, gid := range m.part.LocalIDs() {
		global[gid] = local[li]
		owned[gid] = true
	}

	faceVel := make([]mesh.Vec3, len(m.layout.edges))
	for ei, e := range m.layout.edges {
		if !owned[e.a] || !owned[e.b] {
			continue
		}
		faceVel[ei] = global[e.a].Add(global[e.b]).Scale(0.5)
	}
	m.faceVel = faceVel
	return nil
}

// AdvectFields applies one immediate first-order upwind advection pass over
// the model's native dt, moving elevation along the face velocities set by
// SetFaceVelocities.
func (m *Model) AdvectFields() error {
	if m.faceVel == nil {
		return fmt.Errorf("%w: face velocities have not been set", mesh.ErrInvalidInput)
	}

	h := m.layout.h
	next := append([]float64(nil), m.elev...)
	for ei, e := range m.layout.edges {
		v := m.faceVel[ei]
		if v.X == 0 && v.Y == 0 && v.Z == 0 {
			continue
		}
		dir := m.layout.coords[e.b].Sub(m.layout.coords[e.a])
		dirNorm := dir.Norm()
		if dirNorm == 0 {
			continue
		}
		// Signed face speed from node a towards node b.
		u := v.Dot(dir) / dirNorm

		// Upwind donor cell.
		donor := e.a
		if u < 0 {
			donor = e.b
		}
		flux := u * m.elev[donor] * m.dt / h
		next[e.a] -= flux
		next[e.b] += flux
	}
	m.elev = next
	return nil
}
