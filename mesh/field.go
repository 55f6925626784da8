package mesh

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the root of the input-validation error class. All shape,
// range, and emptiness failures across the coupling layer wrap it, so callers
// can separate "bad input" from other failure modes with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// PointSet is an ordered sequence of 3-D coordinates. Duplicate coordinates
// are permitted; near-duplicates are handled by the interpolator's
// coincident-point rule rather than rejected here.
type PointSet []Vec3

// VelocityField pairs a PointSet with one velocity vector per point.
type VelocityField struct {
	Coords PointSet
	Vel    []Vec3
}

// NewVelocityField validates the alignment invariant between coordinates and
// velocities before any of the field is consumed.
func NewVelocityField(coords PointSet, vel []Vec3) (VelocityField, error) {
	if len(coords) != len(vel) {
		return VelocityField{}, fmt.Errorf("%w: %d coordinates but %d velocities",
			ErrInvalidInput, len(coords), len(vel))
	}
	return VelocityField{Coords: coords, Vel: vel}, nil
}

// ScalarField pairs a PointSet with one scalar value per point.
type ScalarField struct {
	Coords PointSet
	Values []float64
}

// NewScalarField validates the alignment invariant between coordinates and
// values.
func NewScalarField(coords PointSet, values []float64) (ScalarField, error) {
	if len(coords) != len(values) {
		return ScalarField{}, fmt.Errorf("%w: %d coordinates but %d values",
			ErrInvalidInput, len(coords), len(values))
	}
	return ScalarField{Coords: coords, Values: values}, nil
}

// UnpackTriplets converts a flat [x0 y0 z0 x1 y1 z1 ...] array of n points
// into a PointSet. This is the wire format used at the handle boundary.
func UnpackTriplets(flat []float64, n int) (PointSet, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative point count %d", ErrInvalidInput, n)
	}
	if len(flat) != 3*n {
		return nil, fmt.Errorf("%w: flat array has %d values, want %d for %d points",
			ErrInvalidInput, len(flat), 3*n, n)
	}
	pts := make(PointSet, n)
	for i := 0; i < n; i++ {
		pts[i] = Vec3{X: flat[3*i], Y: flat[3*i+1], Z: flat[3*i+2]}
	}
	return pts, nil
}

// PackTriplets flattens a PointSet into the [x0 y0 z0 ...] wire format.
func PackTriplets(pts PointSet) []float64 {
	flat := make([]float64, 3*len(pts))
	for i, p := range pts {
		flat[3*i] = p.X
		flat[3*i+1] = p.Y
		flat[3*i+2] = p.Z
	}
	return flat
}
