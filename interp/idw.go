package interp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/orogenlab/landcoupler/mesh"
)

// coincidentEps is the distance below which a query point is treated as
// coincident with its nearest reference point. Coincident queries take the
// neighbour's value directly, which avoids a division by zero and avoids
// blending near-duplicate nodes.
const coincidentEps = 1.0e-20

func validateRequest(refLen, valLen, k int, power float64) error {
	if refLen == 0 {
		return fmt.Errorf("%w: empty reference point set", mesh.ErrInvalidInput)
	}
	if valLen != refLen {
		return fmt.Errorf("%w: %d reference points but %d field values",
			mesh.ErrInvalidInput, refLen, valLen)
	}
	if k < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", mesh.ErrInvalidInput, k)
	}
	if power < 0 {
		return fmt.Errorf("%w: power must be >= 0, got %g", mesh.ErrInvalidInput, power)
	}
	return nil
}

// idwWeights fills w with the inverse-distance weights for the neighbour
// set and reports whether the nearest neighbour is coincident with the query.
func idwWeights(neighbors []Neighbor, power float64, w []float64) (coincident bool) {
	if neighbors[0].Dist < coincidentEps {
		return true
	}
	for i, nb := range neighbors {
		d := math.Max(nb.Dist, coincidentEps)
		if power == 1.0 {
			w[i] = 1.0 / d
		} else {
			w[i] = 1.0 / math.Pow(d, power)
		}
	}
	return false
}

// IDWVectors interpolates a vector field known at the index's reference
// points onto the query points using k-nearest-neighbour inverse-distance
// weighting. The result always has exactly len(query) rows; an empty query
// yields an empty result and no error.
func (ix *Index) IDWVectors(vals []mesh.Vec3, query mesh.PointSet, k int, power float64) ([]mesh.Vec3, error) {
	if err := validateRequest(ix.size, len(vals), k, power); err != nil {
		return nil, err
	}
	if k > ix.size {
		k = ix.size
	}

	out := make([]mesh.Vec3, len(query))
	w := make([]float64, k)
	for qi, q := range query {
		neighbors, err := ix.Nearest(q, k)
		if err != nil {
			return nil, err
		}
		if idwWeights(neighbors, power, w[:len(neighbors)]) {
			out[qi] = vals[neighbors[0].Row]
			continue
		}
		wsum := floats.Sum(w[:len(neighbors)])
		var acc mesh.Vec3
		for i, nb := range neighbors {
			acc = acc.Add(vals[nb.Row].Scale(w[i]))
		}
		out[qi] = acc.Scale(1.0 / math.Max(wsum, coincidentEps))
	}
	return out, nil
}

// IDWScalars is the scalar-field analogue of IDWVectors.
func (ix *Index) IDWScalars(vals []float64, query mesh.PointSet, k int, power float64) ([]float64, error) {
	if err := validateRequest(ix.size, len(vals), k, power); err != nil {
		return nil, err
	}
	if k > ix.size {
		k = ix.size
	}

	out := make([]float64, len(query))
	w := make([]float64, k)
	for qi, q := range query {
		neighbors, err := ix.Nearest(q, k)
		if err != nil {
			return nil, err
		}
		if idwWeights(neighbors, power, w[:len(neighbors)]) {
			out[qi] = vals[neighbors[0].Row]
			continue
		}
		var acc float64
		for i, nb := range neighbors {
			acc += w[i] * vals[nb.Row]
		}
		out[qi] = acc / math.Max(floats.Sum(w[:len(neighbors)]), coincidentEps)
	}
	return out, nil
}

// InterpolateVectors builds a one-shot index over ref and interpolates vals
// onto the query points.
func InterpolateVectors(ref mesh.PointSet, vals []mesh.Vec3, query mesh.PointSet, k int, power float64) ([]mesh.Vec3, error) {
	if err := validateRequest(len(ref), len(vals), k, power); err != nil {
		return nil, err
	}
	ix, err := NewIndex(ref)
	if err != nil {
		return nil, err
	}
	return ix.IDWVectors(vals, query, k, power)
}

// InterpolateScalars builds a one-shot index over ref and interpolates vals
// onto the query points.
func InterpolateScalars(ref mesh.PointSet, vals []float64, query mesh.PointSet, k int, power float64) ([]float64, error) {
	if err := validateRequest(len(ref), len(vals), k, power); err != nil {
		return nil, err
	}
	ix, err := NewIndex(ref)
	if err != nil {
		return nil, err
	}
	return ix.IDWScalars(vals, query, k, power)
}
