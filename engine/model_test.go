package engine

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/orogenlab/landcoupler/mesh"
)

func gridConfig(nx, ny int) Config {
	cfg := DefaultConfig()
	cfg.Mesh = MeshConfig{Type: "grid", Nx: nx, Ny: ny, Spacing: 1}
	cfg.Time = TimeConfig{Start: 0, End: 100, Dt: 1}
	cfg.Diffusion = 0
	return cfg
}

func TestNewModelBuildsGridMesh(t *testing.T) {
	cfg := gridConfig(4, 3)
	cfg.Elevation = ElevationConfig{Base: 10, RampX: 2}

	m, err := NewModel(cfg, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if got := len(m.MeshCoords()); got != 12 {
		t.Fatalf("node count = %d, want 12", got)
	}
	if !m.FlatMesh() {
		t.Fatalf("grid mesh must report flat")
	}
	// Node (2, y) sits at x=2, so elevation = 10 + 2*2.
	if got := m.Elevation()[2]; got != 14 {
		t.Fatalf("elevation at x=2 is %v, want 14", got)
	}
}

func TestNewModelBuildsSphereMesh(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mesh = MeshConfig{Type: "sphere", Points: 64, Radius: 100}

	m, err := NewModel(cfg, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if got := len(m.MeshCoords()); got != 64 {
		t.Fatalf("node count = %d, want 64", got)
	}
	if m.FlatMesh() {
		t.Fatalf("sphere mesh must not report flat")
	}
	for i, p := range m.MeshCoords() {
		if r := p.Norm(); math.Abs(r-100) > 1e-9 {
			t.Fatalf("node %d radius = %v, want 100", i, r)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny grid", func(c *Config) { c.Mesh.Nx = 1 }},
		{"zero spacing", func(c *Config) { c.Mesh.Spacing = 0 }},
		{"unknown mesh type", func(c *Config) { c.Mesh.Type = "torus" }},
		{"non-positive dt", func(c *Config) { c.Time.Dt = 0 }},
		{"end before start", func(c *Config) { c.Time.Start = 10; c.Time.End = 5 }},
		{"negative scheme", func(c *Config) { c.AdvectionScheme = -1 }},
		{"negative diffusion", func(c *Config) { c.Diffusion = -0.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := gridConfig(5, 5)
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, mesh.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	raw := `
name: test-model
mesh:
  type: grid
  nx: 6
  ny: 6
  spacing: 2.0
time:
  start: 0
  end: 50
  dt: 0.5
advection_scheme: 1
diffusion: 0.25
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "test-model" || cfg.Mesh.Nx != 6 || cfg.Time.Dt != 0.5 {
		t.Fatalf("config not parsed: %+v", cfg)
	}
	if cfg.AdvectionScheme != 1 || cfg.Diffusion != 0.25 {
		t.Fatalf("scheme/diffusion not parsed: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, mesh.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing file, got %v", err)
	}
}

func TestStepAdvancesToEndTime(t *testing.T) {
	cfg := gridConfig(4, 4)
	cfg.Time = TimeConfig{Start: 0, End: 3.5, Dt: 1}
	m, err := NewModel(cfg, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := m.CurrentTime(); got != 3.5 {
		t.Fatalf("tNow = %v, want tEnd 3.5 (final increment clamped)", got)
	}
}

func TestStepNotifiesListeners(t *testing.T) {
	cfg := gridConfig(3, 3)
	cfg.Time = TimeConfig{Start: 0, End: 3, Dt: 1}
	m, err := NewModel(cfg, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	var ticks []float64
	m.RegisterStepListener(func(tNow float64) { ticks = append(ticks, tNow) })

	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(ticks) != 3 || ticks[2] != 3 {
		t.Fatalf("listener ticks = %v, want [1 2 3]", ticks)
	}
}

func TestStagedAdvectionAppliesAtStepBoundary(t *testing.T) {
	cfg := gridConfig(11, 11)
	cfg.Elevation = ElevationConfig{Base: 0, RampX: 1}
	m, err := NewModel(cfg, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	// Departures one unit to the left: after application, every interior
	// node takes the elevation its left neighbour had.
	coords := m.MeshCoords()
	departures := make(mesh.PointSet, len(coords))
	for i, p := range coords {
		departures[i] = mesh.Vec3{X: p.X - 1, Y: p.Y, Z: p.Z}
	}
	if err := m.StageAdvection(departures, m.CurrentTime()+cfg.Time.Dt); err != nil {
		t.Fatalf("StageAdvection: %v", err)
	}

	// Observable only after the step boundary, not before.
	nodeAtX5 := 5 // row 0, x=5
	if got := m.Elevation()[nodeAtX5]; got != 5 {
		t.Fatalf("elevation mutated before step boundary: %v", got)
	}
	if !m.PendingAdvection() {
		t.Fatalf("advection not pending after staging")
	}

	m.SetEndTime(m.CurrentTime() + cfg.Time.Dt)
	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if m.PendingAdvection() {
		t.Fatalf("advection still pending after its boundary")
	}
	// Departure of the x=5 node lands exactly on the x=4 node, so the
	// coincident rule copies its value.
	if got := m.Elevation()[nodeAtX5]; math.Abs(got-4) > 1e-12 {
		t.Fatalf("elevation after staged advection = %v, want 4", got)
	}
}

func TestUpliftAccumulatesOverStep(t *testing.T) {
	cfg := gridConfig(3, 3)
	cfg.Time = TimeConfig{Start: 0, End: 10, Dt: 2}
	m, err := NewModel(cfg, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	local := make([]mesh.Vec3, 9)
	uplift := make([]float64, 9)
	for i := range uplift {
		uplift[i] = 0.5
	}
	m.SetDataDrivenDisplacement(local, uplift)

	m.SetEndTime(4)
	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// Two increments of dt=2 at rate 0.5 -> +2 elevation.
	if got := m.Elevation()[4]; math.Abs(got-2) > 1e-12 {
		t.Fatalf("elevation after uplift = %v, want 2", got)
	}
}

func TestAdvectFieldsRequiresFaceVelocities(t *testing.T) {
	m, err := NewModel(gridConfig(3, 3), nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if err := m.AdvectFields(); !errors.Is(err, mesh.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without face velocities, got %v", err)
	}
}

func TestSetFaceVelocitiesRejectsWrongLength(t *testing.T) {
	m, err := NewModel(gridConfig(3, 3), nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if err := m.SetFaceVelocities(make([]mesh.Vec3, 4)); !errors.Is(err, mesh.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for wrong-length node velocities, got %v", err)
	}
}

func TestFiniteVolumeAdvectionMutatesImmediately(t *testing.T) {
	cfg := gridConfig(5, 5)
	cfg.Elevation = ElevationConfig{Base: 0, RampX: 1}
	cfg.AdvectionScheme = 1
	m, err := NewModel(cfg, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	vel := make([]mesh.Vec3, 25)
	for i := range vel {
		vel[i] = mesh.Vec3{X: 0.1}
	}
	if err := m.SetFaceVelocities(vel); err != nil {
		t.Fatalf("SetFaceVelocities: %v", err)
	}

	before := append([]float64(nil), m.Elevation()...)
	if err := m.AdvectFields(); err != nil {
		t.Fatalf("AdvectFields: %v", err)
	}

	changed := false
	for i, e := range m.Elevation() {
		if e != before[i] {
			changed = true
			break
		}
	}
	if !changed {
		t.Fatalf("finite-volume advection left the field untouched")
	}
}

func TestAdvectionRateIndependentOfSpacing(t *testing.T) {
	// Upwind advection of a slope-1 ramp with uniform horizontal speed u
	// lowers every interior node by u*slope*dt per pass, whatever the grid
	// spacing. A spacing-dependent rate would make results change with the
	// choice of units.
	const u, dt = 0.1, 1.0
	for _, spacing := range []float64{1, 2, 500} {
		cfg := gridConfig(5, 5)
		cfg.Mesh.Spacing = spacing
		cfg.Time.Dt = dt
		cfg.Elevation = ElevationConfig{Base: 0, RampX: 1}
		cfg.AdvectionScheme = 1
		m, err := NewModel(cfg, nil)
		if err != nil {
			t.Fatalf("NewModel: %v", err)
		}

		vel := make([]mesh.Vec3, 25)
		for i := range vel {
			vel[i] = mesh.Vec3{X: u}
		}
		if err := m.SetFaceVelocities(vel); err != nil {
			t.Fatalf("SetFaceVelocities: %v", err)
		}

		interior := 12 // node (2,2)
		before := m.Elevation()[interior]
		if err := m.AdvectFields(); err != nil {
			t.Fatalf("AdvectFields: %v", err)
		}
		delta := m.Elevation()[interior] - before
		if want := -u * dt; math.Abs(delta-want) > 1e-12 {
			t.Fatalf("spacing %g: interior update = %v, want %v", spacing, delta, want)
		}
	}
}

func TestUsePartitionRestrictsUplift(t *testing.T) {
	cfg := gridConfig(3, 3)
	m, err := NewModel(cfg, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if err := m.UsePartition([]int{0, 8}); err != nil {
		t.Fatalf("UsePartition: %v", err)
	}

	m.SetDataDrivenDisplacement(make([]mesh.Vec3, 2), []float64{1, 1})
	m.SetEndTime(1)
	if err := m.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if got := m.Elevation()[0]; got != 1 {
		t.Fatalf("local node 0 elevation = %v, want 1", got)
	}
	if got := m.Elevation()[4]; got != 0 {
		t.Fatalf("non-local node elevation = %v, want untouched 0", got)
	}
}
