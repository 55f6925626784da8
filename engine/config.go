package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orogenlab/landcoupler/mesh"
)

// MeshConfig selects the mesh layout the model is built on.
type MeshConfig struct {
	// Type is "grid" for a flat regular grid or "sphere" for nodes
	// embedded on a sphere.
	Type string `yaml:"type"`

	// Grid parameters.
	Nx      int     `yaml:"nx"`
	Ny      int     `yaml:"ny"`
	Spacing float64 `yaml:"spacing"`

	// Sphere parameters.
	Points int     `yaml:"points"`
	Radius float64 `yaml:"radius"`
}

// TimeConfig holds the model's native temporal configuration.
type TimeConfig struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Dt    float64 `yaml:"dt"`
}

// ElevationConfig describes the initial elevation field: a uniform base
// value plus an optional linear ramp along x (per metre).
type ElevationConfig struct {
	Base  float64 `yaml:"base"`
	RampX float64 `yaml:"ramp_x"`
}

// Config is the YAML model configuration.
type Config struct {
	Name            string          `yaml:"name"`
	Mesh            MeshConfig      `yaml:"mesh"`
	Time            TimeConfig      `yaml:"time"`
	Elevation       ElevationConfig `yaml:"elevation"`
	AdvectionScheme int             `yaml:"advection_scheme"`
	// Diffusion is the hillslope diffusion coefficient (m^2/yr).
	Diffusion float64 `yaml:"diffusion"`
}

// DefaultConfig returns the configuration used when a field is left unset:
// a modest flat grid with semi-Lagrangian advection.
func DefaultConfig() Config {
	return Config{
		Name: "landcoupler-model",
		Mesh: MeshConfig{
			Type:    "grid",
			Nx:      50,
			Ny:      50,
			Spacing: 1000,
			Points:  1000,
			Radius:  6.371e6,
		},
		Time: TimeConfig{
			Start: 0,
			End:   1e6,
			Dt:    1e4,
		},
		Elevation:       ElevationConfig{Base: 0, RampX: 0},
		AdvectionScheme: 0,
		Diffusion:       0,
	}
}

// LoadConfig reads and validates a YAML model configuration. Unset fields
// fall back to DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read config %s: %v", mesh.ErrInvalidInput, path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config %s: %v", mesh.ErrInvalidInput, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the structural invariants of the configuration.
func (c Config) Validate() error {
	switch c.Mesh.Type {
	case "grid":
		if c.Mesh.Nx < 2 || c.Mesh.Ny < 2 {
			return fmt.Errorf("%w: grid mesh needs nx,ny >= 2, got %dx%d",
				mesh.ErrInvalidInput, c.Mesh.Nx, c.Mesh.Ny)
		}
		if c.Mesh.Spacing <= 0 {
			return fmt.Errorf("%w: grid spacing must be positive, got %g",
				mesh.ErrInvalidInput, c.Mesh.Spacing)
		}
	case "sphere":
		if c.Mesh.Points < 4 {
			return fmt.Errorf("%w: sphere mesh needs >= 4 points, got %d",
				mesh.ErrInvalidInput, c.Mesh.Points)
		}
		if c.Mesh.Radius <= 0 {
			return fmt.Errorf("%w: sphere radius must be positive, got %g",
				mesh.ErrInvalidInput, c.Mesh.Radius)
		}
	default:
		return fmt.Errorf("%w: unknown mesh type %q", mesh.ErrInvalidInput, c.Mesh.Type)
	}

	if c.Time.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", mesh.ErrInvalidInput, c.Time.Dt)
	}
	if c.Time.End < c.Time.Start {
		return fmt.Errorf("%w: end time %g before start time %g",
			mesh.ErrInvalidInput, c.Time.End, c.Time.Start)
	}
	if c.AdvectionScheme < 0 {
		return fmt.Errorf("%w: advection scheme must be >= 0, got %d",
			mesh.ErrInvalidInput, c.AdvectionScheme)
	}
	if c.Diffusion < 0 {
		return fmt.Errorf("%w: diffusion coefficient must be >= 0, got %g",
			mesh.ErrInvalidInput, c.Diffusion)
	}
	return nil
}
