package bridge

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
name: bridge-test
mesh:
  type: grid
  nx: 5
  ny: 5
  spacing: 1.0
time:
  start: 0
  end: 100
  dt: 0.5
elevation:
  base: 0
  ramp_x: 1.0
advection_scheme: 0
diffusion: 0
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newTestContext(t *testing.T) (*Context, Handle) {
	t.Helper()
	bc := NewContext(Config{})
	h := bc.Create(context.Background(), writeTestConfig(t))
	if h == FailureHandle {
		t.Fatalf("Create returned the failure handle")
	}
	return bc, h
}

// sampleVelocityData returns four sample points bracketing the 5x5 test
// grid, each with a uniform velocity, in the flat triplet wire format.
func sampleVelocityData(vx, vz float64) (coords, velocities []float64, n int) {
	pts := [][3]float64{{0, 0, 0}, {4, 0, 0}, {0, 4, 0}, {4, 4, 0}}
	for _, p := range pts {
		coords = append(coords, p[0], p[1], p[2])
		velocities = append(velocities, vx, 0, vz)
	}
	return coords, velocities, len(pts)
}

func TestCreateFailsOnBadConfig(t *testing.T) {
	bc := NewContext(Config{})
	if h := bc.Create(context.Background(), filepath.Join(t.TempDir(), "absent.yaml")); h != FailureHandle {
		t.Fatalf("Create on a missing config = %d, want FailureHandle", h)
	}
}

func TestTimeGetters(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	if got := bc.CurrentTime(ctx, h); got != 0 {
		t.Fatalf("CurrentTime = %v, want 0", got)
	}
	if got := bc.TimeStep(ctx, h); got != 0.5 {
		t.Fatalf("TimeStep = %v, want 0.5", got)
	}
}

func TestRunForDtAdvancesAndRestores(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	elapsed := bc.RunForDt(ctx, h, 2.0, false)
	if elapsed < 0 {
		t.Fatalf("RunForDt = %v, want non-negative wall-clock seconds", elapsed)
	}
	if got := bc.CurrentTime(ctx, h); got != 2.0 {
		t.Fatalf("CurrentTime after RunForDt = %v, want 2.0", got)
	}
	// The override dt must not stick.
	if got := bc.TimeStep(ctx, h); got != 0.5 {
		t.Fatalf("TimeStep after RunForDt = %v, want restored 0.5", got)
	}
}

func TestRunForDtDefaultsToModelDt(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	if elapsed := bc.RunForDt(ctx, h, 0, false); elapsed < 0 {
		t.Fatalf("RunForDt = %v, want non-negative", elapsed)
	}
	if got := bc.CurrentTime(ctx, h); got != 0.5 {
		t.Fatalf("CurrentTime = %v, want the native dt 0.5", got)
	}
}

func TestRunForSteps(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	if got := bc.RunForSteps(ctx, h, 3, 1.0, false); got != 3 {
		t.Fatalf("RunForSteps = %d, want 3", got)
	}
	if got := bc.CurrentTime(ctx, h); got != 3.0 {
		t.Fatalf("CurrentTime after 3 steps of 1.0 = %v, want 3.0", got)
	}
	if got := bc.RunForSteps(ctx, h, 0, 1.0, false); got != StatusFailure {
		t.Fatalf("RunForSteps with zero steps = %d, want StatusFailure", got)
	}
}

func TestRunUntilTime(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	if got := bc.RunUntilTime(ctx, h, 2.0, 1.0, false); got != 2 {
		t.Fatalf("RunUntilTime = %d steps, want 2", got)
	}
	if got := bc.CurrentTime(ctx, h); got != 2.0 {
		t.Fatalf("CurrentTime = %v, want 2.0", got)
	}
	// A target in the past is a completed no-op, never a failure.
	if got := bc.RunUntilTime(ctx, h, 1.0, 1.0, false); got != 0 {
		t.Fatalf("RunUntilTime into the past = %d, want 0", got)
	}
}

func TestApplyVelocityData(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	coords, velocities, n := sampleVelocityData(0.1, 0.05)
	if got := bc.ApplyVelocityData(ctx, h, coords, velocities, n, 0, 3, 1.0); got != StatusOK {
		t.Fatalf("ApplyVelocityData = %d, want StatusOK", got)
	}
}

func TestApplyVelocityDataRejectsMismatchedArrays(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	coords, velocities, n := sampleVelocityData(0.1, 0.05)
	if got := bc.ApplyVelocityData(ctx, h, coords, velocities[:len(velocities)-3], n, 0, 3, 1.0); got != StatusFailure {
		t.Fatalf("ApplyVelocityData with short velocity array = %d, want StatusFailure", got)
	}
	// Rejected input must not have advanced or perturbed the model.
	if got := bc.CurrentTime(ctx, h); got != 0 {
		t.Fatalf("CurrentTime after rejected apply = %v, want 0", got)
	}
}

func TestInterpolateElevationToPoints(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	// Queries landing exactly on mesh nodes recover the ramp exactly.
	query := []float64{2, 0, 0, 3, 1, 0}
	out := bc.InterpolateElevationToPoints(ctx, h, query, 2, 3, 1.0)
	if len(out) != 2 {
		t.Fatalf("output length = %d, want 2", len(out))
	}
	if math.Abs(out[0]-2) > 1e-12 || math.Abs(out[1]-3) > 1e-12 {
		t.Fatalf("interpolated elevations = %v, want [2 3]", out)
	}

	if out := bc.InterpolateElevationToPoints(ctx, h, query, 2, 0, 1.0); out != nil {
		t.Fatalf("invalid k produced %v, want nil", out)
	}
	if out := bc.InterpolateElevationToPoints(ctx, h, query, 5, 3, 1.0); out != nil {
		t.Fatalf("mismatched point count produced %v, want nil", out)
	}
}

func TestDestroyInvalidatesHandle(t *testing.T) {
	bc, h := newTestContext(t)
	ctx := context.Background()

	if got := bc.Destroy(ctx, h); got != StatusOK {
		t.Fatalf("Destroy = %d, want StatusOK", got)
	}
	if got := bc.Destroy(ctx, h); got != StatusFailure {
		t.Fatalf("second Destroy = %d, want StatusFailure", got)
	}
	if got := bc.CurrentTime(ctx, h); got != FailureFloat {
		t.Fatalf("CurrentTime on a destroyed handle = %v, want FailureFloat", got)
	}
	if got := bc.RunForDt(ctx, h, 1.0, false); got != FailureFloat {
		t.Fatalf("RunForDt on a destroyed handle = %v, want FailureFloat", got)
	}
	if got := bc.RunForSteps(ctx, h, 1, 1.0, false); got != StatusFailure {
		t.Fatalf("RunForSteps on a destroyed handle = %d, want StatusFailure", got)
	}
}
