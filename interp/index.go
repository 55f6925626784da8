// Package interp implements k-nearest-neighbour inverse-distance-weighting
// interpolation over 3-D point sets. It is the spatial engine shared by the
// velocity-data coupling and the elevation sampler.
package interp

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/orogenlab/landcoupler/mesh"
)

// refPoint is a reference coordinate tagged with its row in the source
// arrays so field values can be looked up after a tree query.
type refPoint struct {
	pos mesh.Vec3
	row int
}

// Compare implements kdtree.Comparable.
func (p refPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(refPoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	case 2:
		return p.pos.Z - q.pos.Z
	default:
		panic("interp: illegal dimension")
	}
}

// Dims implements kdtree.Comparable.
func (p refPoint) Dims() int { return 3 }

// Distance implements kdtree.Comparable. It returns the squared Euclidean
// distance, which is the metric the kd-tree machinery expects.
func (p refPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(refPoint)
	dx := p.pos.X - q.pos.X
	dy := p.pos.Y - q.pos.Y
	dz := p.pos.Z - q.pos.Z
	return dx*dx + dy*dy + dz*dz
}

// refPoints satisfies kdtree.Interface.
type refPoints []refPoint

func (p refPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p refPoints) Len() int                              { return len(p) }
func (p refPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p refPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(refPlane{refPoints: p, Dim: d}, kdtree.MedianOfRandoms(refPlane{refPoints: p, Dim: d}, 100))
}

// refPlane implements sort.Interface and kdtree.SortSlicer for refPoints.
type refPlane struct {
	refPoints
	kdtree.Dim
}

func (p refPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.refPoints[i].pos.X < p.refPoints[j].pos.X
	case 1:
		return p.refPoints[i].pos.Y < p.refPoints[j].pos.Y
	case 2:
		return p.refPoints[i].pos.Z < p.refPoints[j].pos.Z
	default:
		panic("interp: illegal dimension")
	}
}

func (p refPlane) Slice(start, end int) kdtree.SortSlicer {
	return refPlane{refPoints: p.refPoints[start:end], Dim: p.Dim}
}

func (p refPlane) Swap(i, j int) {
	p.refPoints[i], p.refPoints[j] = p.refPoints[j], p.refPoints[i]
}

// Neighbor is one result of a k-nearest query: the row of the reference
// point in the original set and its Euclidean distance from the query.
type Neighbor struct {
	Row  int
	Dist float64
}

// Index is a nearest-neighbour index over a fixed reference PointSet.
// It is read-only after construction and safe for concurrent queries.
type Index struct {
	tree *kdtree.Tree
	size int
}

// NewIndex builds a kd-tree over the reference set. An empty reference set
// is an input-validation error: there is nothing to interpolate from.
func NewIndex(ref mesh.PointSet) (*Index, error) {
	if len(ref) == 0 {
		return nil, fmt.Errorf("%w: empty reference point set", mesh.ErrInvalidInput)
	}
	pts := make(refPoints, len(ref))
	for i, p := range ref {
		pts[i] = refPoint{pos: p, row: i}
	}
	return &Index{tree: kdtree.New(pts, true), size: len(ref)}, nil
}

// Size returns the number of reference points in the index.
func (ix *Index) Size() int { return ix.size }

// Nearest returns the k nearest reference points to q, sorted by ascending
// distance. k is clamped to the reference set size; k < 1 is an error.
func (ix *Index) Nearest(q mesh.Vec3, k int) ([]Neighbor, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", mesh.ErrInvalidInput, k)
	}
	if k > ix.size {
		k = ix.size
	}

	keeper := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(keeper, refPoint{pos: q})

	neighbors := make([]Neighbor, 0, k)
	for keeper.Len() > 0 {
		item := heap.Pop(keeper).(kdtree.ComparableDist)
		p, ok := item.Comparable.(refPoint)
		if !ok {
			// The keeper seeds itself with an infinite-distance sentinel
			// that survives when the tree holds fewer than k points.
			continue
		}
		neighbors = append(neighbors, Neighbor{Row: p.row, Dist: math.Sqrt(item.Dist)})
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Dist < neighbors[j].Dist })
	return neighbors, nil
}
