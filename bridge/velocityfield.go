package bridge

import "math"

// RotationalFieldPoints is the number of samples RotationalField generates.
const RotationalFieldPoints = 100

// RotationalField generates a synthetic time-dependent rotational velocity
// field on a 10x10 grid over [0,10]x[0,10], in the flat triplet wire
// format. It is a demo and test utility: the angular velocity oscillates
// with t and a small vertical component varies along x.
func RotationalField(t, centerX, centerY, amplitude float64) (coords, velocities []float64) {
	const gridSize = 10
	coords = make([]float64, 3*RotationalFieldPoints)
	velocities = make([]float64, 3*RotationalFieldPoints)

	omega := 0.1 * math.Sin(t*0.1)
	for i := 0; i < gridSize; i++ {
		for j := 0; j < gridSize; j++ {
			idx := i*gridSize + j
			x := float64(i) * 10.0 / float64(gridSize-1)
			y := float64(j) * 10.0 / float64(gridSize-1)

			coords[idx*3+0] = x
			coords[idx*3+1] = y
			coords[idx*3+2] = 0

			dx := x - centerX
			dy := y - centerY
			velocities[idx*3+0] = -dy * omega * amplitude
			velocities[idx*3+1] = dx * omega * amplitude
			velocities[idx*3+2] = 0.01 * math.Sin(x+t*0.05) * amplitude
		}
	}
	return coords, velocities
}
