package engine

import (
	"fmt"
	"math"

	"github.com/orogenlab/landcoupler/interp"
	"github.com/orogenlab/landcoupler/mesh"
)

// edge connects two global node indices. Face velocities live on edges.
type edge struct {
	a, b int
}

// meshLayout is the static geometry of a model: node coordinates, the
// neighbour graph used by diffusion and upwind advection, and a
// characteristic length scale.
type meshLayout struct {
	coords    mesh.PointSet
	flat      bool
	neighbors [][]int
	edges     []edge
	// h is the characteristic node spacing used to scale fluxes.
	h float64
}

// buildGrid lays out an nx-by-ny flat grid in the z=0 plane with 4-connected
// neighbours.
func buildGrid(nx, ny int, spacing float64) *meshLayout {
	n := nx * ny
	coords := make(mesh.PointSet, n)
	neighbors := make([][]int, n)
	var edges []edge

	id := func(i, j int) int { return j*nx + i }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			coords[id(i, j)] = mesh.Vec3{X: float64(i) * spacing, Y: float64(j) * spacing}
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			u := id(i, j)
			if i+1 < nx {
				v := id(i+1, j)
				neighbors[u] = append(neighbors[u], v)
				neighbors[v] = append(neighbors[v], u)
				edges = append(edges, edge{a: u, b: v})
			}
			if j+1 < ny {
				v := id(i, j+1)
				neighbors[u] = append(neighbors[u], v)
				neighbors[v] = append(neighbors[v], u)
				edges = append(edges, edge{a: u, b: v})
			}
		}
	}
	return &meshLayout{coords: coords, flat: true, neighbors: neighbors, edges: edges, h: spacing}
}

// buildSphere distributes n nodes on a sphere with a Fibonacci lattice and
// links each node to its six nearest neighbours. The lattice is deterministic,
// so every partition derives the same global mesh.
func buildSphere(n int, radius float64) (*meshLayout, error) {
	coords := make(mesh.PointSet, n)
	golden := math.Pi * (3.0 - math.Sqrt(5.0))
	for i := 0; i < n; i++ {
		y := 1.0 - 2.0*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1.0 - y*y)
		theta := golden * float64(i)
		coords[i] = mesh.Vec3{
			X: radius * r * math.Cos(theta),
			Y: radius * y,
			Z: radius * r * math.Sin(theta),
		}
	}

	ix, err := interp.NewIndex(coords)
	if err != nil {
		return nil, fmt.Errorf("build sphere mesh: %w", err)
	}

	const kNeigh = 7 // self plus six nearest
	neighbors := make([][]int, n)
	edgeSeen := make(map[edge]bool)
	var edges []edge
	var sumDist float64
	var nDist int
	for i, p := range coords {
		found, err := ix.Nearest(p, kNeigh)
		if err != nil {
			return nil, fmt.Errorf("build sphere mesh: %w", err)
		}
		for _, nb := range found {
			if nb.Row == i {
				continue
			}
			neighbors[i] = append(neighbors[i], nb.Row)
			e := edge{a: nb.Row, b: i}
			if nb.Row > i {
				e = edge{a: i, b: nb.Row}
			}
			if !edgeSeen[e] {
				edgeSeen[e] = true
				edges = append(edges, e)
				sumDist += nb.Dist
				nDist++
			}
		}
	}

	h := radius
	if nDist > 0 {
		h = sumDist / float64(nDist)
	}
	return &meshLayout{coords: coords, flat: false, neighbors: neighbors, edges: edges, h: h}, nil
}

func buildMesh(cfg MeshConfig) (*meshLayout, error) {
	switch cfg.Type {
	case "grid":
		return buildGrid(cfg.Nx, cfg.Ny, cfg.Spacing), nil
	case "sphere":
		return buildSphere(cfg.Points, cfg.Radius)
	default:
		return nil, fmt.Errorf("%w: unknown mesh type %q", mesh.ErrInvalidInput, cfg.Type)
	}
}
