package coupling

import (
	"fmt"

	"github.com/orogenlab/landcoupler/interp"
	"github.com/orogenlab/landcoupler/mesh"
)

// SampleElevation samples the simulation's current global elevation field
// at arbitrary external query points, using the same k-nearest IDW scheme
// and coincident-point rule as ApplyVelocityData. It never mutates the
// simulation; an empty query returns an empty result.
func SampleElevation(sim Simulation, query mesh.PointSet, k int, power float64) ([]float64, error) {
	field, err := mesh.NewScalarField(sim.MeshCoords(), sim.Elevation())
	if err != nil {
		return nil, fmt.Errorf("sample elevation: %w", err)
	}
	out, err := interp.InterpolateScalars(field.Coords, field.Values, query, k, power)
	if err != nil {
		return nil, fmt.Errorf("sample elevation: %w", err)
	}
	return out, nil
}
