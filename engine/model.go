// Package engine provides the reference landscape-evolution model driven by
// the coupling layer: a mesh elevation field advanced by hillslope
// diffusion, data-driven uplift, and either staged semi-Lagrangian or
// immediate finite-volume advection.
package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/orogenlab/landcoupler/interp"
	"github.com/orogenlab/landcoupler/internal/logging"
	"github.com/orogenlab/landcoupler/mesh"
)

// stagedAdvection holds departure points waiting for their step boundary.
type stagedAdvection struct {
	departures mesh.PointSet
	applyAt    float64
}

// Model is a live simulation instance. It owns its time state (tNow, dt,
// tEnd, advection scheme); the coupling layer temporarily overrides dt and
// tEnd but must restore them. Calls on one model must be serialized by the
// caller.
type Model struct {
	cfg    Config
	layout *meshLayout
	part   *mesh.Partition
	elev   []float64

	tNow, dt, tEnd float64
	scheme         int

	// Data-driven displacement, local rows only.
	hdisp  []mesh.Vec3
	uplift []float64

	staged  *stagedAdvection
	faceVel []mesh.Vec3

	stepListeners []func(tNow float64)
	log           logging.Logger
}

// NewModel builds a model from a validated configuration with the full
// single-worker partition. A nil logger is replaced with the noop logger.
func NewModel(cfg Config, log logging.Logger) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}
	layout, err := buildMesh(cfg.Mesh)
	if err != nil {
		return nil, err
	}

	elev := make([]float64, len(layout.coords))
	for i, p := range layout.coords {
		elev[i] = cfg.Elevation.Base + cfg.Elevation.RampX*p.X
	}

	return &Model{
		cfg:    cfg,
		layout: layout,
		part:   mesh.FullPartition(len(layout.coords)),
		elev:   elev,
		tNow:   cfg.Time.Start,
		dt:     cfg.Time.Dt,
		tEnd:   cfg.Time.End,
		scheme: cfg.AdvectionScheme,
		log:    log,
	}, nil
}

// LoadModel builds a model from a YAML configuration file.
func LoadModel(path string, log logging.Logger) (*Model, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewModel(cfg, log)
}

// UsePartition restricts the model's locally owned nodes to the given global
// index set. Any previously stored data-driven displacement is discarded
// since its rows no longer align.
func (m *Model) UsePartition(localIDs []int) error {
	part, err := mesh.NewPartition(len(m.layout.coords), localIDs)
	if err != nil {
		return err
	}
	m.part = part
	m.hdisp = nil
	m.uplift = nil
	return nil
}

// RegisterStepListener registers a callback invoked after every native
// increment with the new simulation time.
func (m *Model) RegisterStepListener(fn func(tNow float64)) {
	m.stepListeners = append(m.stepListeners, fn)
}

// Time-state accessors and mutators; these are the fields the time-step
// controller saves, overrides, and restores.

func (m *Model) CurrentTime() float64 { return m.tNow }
func (m *Model) TimeStep() float64    { return m.dt }
func (m *Model) EndTime() float64     { return m.tEnd }

func (m *Model) SetTimeStep(dt float64) { m.dt = dt }
func (m *Model) SetEndTime(t float64)   { m.tEnd = t }

// AdvectionScheme returns the configured advection-scheme id. The coupling
// layer reads this; it is fixed at model construction.
func (m *Model) AdvectionScheme() int { return m.scheme }

// MeshCoords returns the global mesh node coordinates. The slice is shared
// and must not be mutated.
func (m *Model) MeshCoords() mesh.PointSet { return m.layout.coords }

// FlatMesh reports whether the mesh is planar.
func (m *Model) FlatMesh() bool { return m.layout.flat }

// Partition returns the model's local view of the global mesh.
func (m *Model) Partition() *mesh.Partition { return m.part }

// Elevation returns the global elevation field. The slice is shared and
// must not be mutated by callers.
func (m *Model) Elevation() []float64 { return m.elev }

// SetDataDrivenDisplacement stores the interpolated local displacement and
// its vertical component, which Step consumes as an uplift/subsidence rate.
func (m *Model) SetDataDrivenDisplacement(local []mesh.Vec3, uplift []float64) {
	m.hdisp = append([]mesh.Vec3(nil), local...)
	m.uplift = append([]float64(nil), uplift...)
}

// StageAdvection records departure positions for deferred semi-Lagrangian
// application once simulation time reaches applyAt.
func (m *Model) StageAdvection(departures mesh.PointSet, applyAt float64) error {
	if len(departures) != len(m.layout.coords) {
		return fmt.Errorf("%w: %d departure points for %d mesh nodes",
			mesh.ErrInvalidInput, len(departures), len(m.layout.coords))
	}
	m.staged = &stagedAdvection{
		departures: append(mesh.PointSet(nil), departures...),
		applyAt:    applyAt,
	}
	return nil
}

// PendingAdvection reports whether staged semi-Lagrangian advection is
// waiting for its step boundary.
func (m *Model) PendingAdvection() bool { return m.staged != nil }

// Step is the model's bounded-run primitive: it advances tNow towards tEnd
// in increments of dt, applying staged advection, uplift, and diffusion at
// each increment. It is a no-op when tNow has already reached tEnd.
func (m *Model) Step(ctx context.Context) error {
	for m.tNow < m.tEnd {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dtEff := math.Min(m.dt, m.tEnd-m.tNow)
		if dtEff <= 0 {
			break
		}
		m.tNow += dtEff

		if m.staged != nil && m.tNow+timeEps >= m.staged.applyAt {
			if err := m.applyStagedAdvection(); err != nil {
				return err
			}
		}
		m.applyUplift(dtEff)
		m.applyDiffusion(dtEff)

		for _, fn := range m.stepListeners {
			fn(m.tNow)
		}
	}
	return nil
}

// timeEps absorbs float rounding when comparing simulation times.
const timeEps = 1e-9

// applyStagedAdvection resamples the elevation field at the staged
// departure points: the value a node takes is the value found where it was
// advected from.
func (m *Model) applyStagedAdvection() error {
	ix, err := interp.NewIndex(m.layout.coords)
	if err != nil {
		return fmt.Errorf("apply staged advection: %w", err)
	}
	resampled, err := ix.IDWScalars(m.elev, m.staged.departures, 3, 1.0)
	if err != nil {
		return fmt.Errorf("apply staged advection: %w", err)
	}
	m.elev = resampled
	m.staged = nil
	m.log.Debug(context.Background(), "applied staged advection",
		logging.Float64("t_now", m.tNow))
	return nil
}

func (m *Model) applyUplift(dtEff float64) {
	if m.uplift == nil {
		return
	}
	for li, gid := range m.part.LocalIDs() {
		m.elev[gid] += m.uplift[li] * dtEff
	}
}

// applyDiffusion runs one explicit step of linear hillslope diffusion over
// the neighbour graph.
func (m *Model) applyDiffusion(dtEff float64) {
	kappa := m.cfg.Diffusion
	if kappa == 0 {
		return
	}
	h2 := m.layout.h * m.layout.h
	next := make([]float64, len(m.elev))
	for i, e := range m.elev {
		var lap float64
		for _, nb := range m.layout.neighbors[i] {
			lap += m.elev[nb] - e
		}
		next[i] = e + kappa*dtEff*lap/h2
	}
	m.elev = next
}
