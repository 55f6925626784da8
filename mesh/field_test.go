package mesh

import (
	"errors"
	"testing"
)

func TestNewVelocityFieldValidatesAlignment(t *testing.T) {
	coords := PointSet{{X: 0}, {X: 1}, {X: 2}}
	vel := []Vec3{{X: 0.1}, {X: 0.2}, {X: 0.3}}

	field, err := NewVelocityField(coords, vel)
	if err != nil {
		t.Fatalf("NewVelocityField: %v", err)
	}
	if len(field.Coords) != 3 || len(field.Vel) != 3 {
		t.Fatalf("field lengths = (%d, %d), want 3 each", len(field.Coords), len(field.Vel))
	}

	if _, err := NewVelocityField(coords, vel[:2]); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("misaligned velocities = %v, want ErrInvalidInput", err)
	}
}

func TestNewScalarFieldValidatesAlignment(t *testing.T) {
	coords := PointSet{{X: 0}, {X: 1}}

	if _, err := NewScalarField(coords, []float64{1, 2}); err != nil {
		t.Fatalf("NewScalarField: %v", err)
	}
	if _, err := NewScalarField(coords, []float64{1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("misaligned values = %v, want ErrInvalidInput", err)
	}
}

func TestUnpackTripletsValidatesShape(t *testing.T) {
	flat := []float64{1, 2, 3, 4, 5, 6}

	pts, err := UnpackTriplets(flat, 2)
	if err != nil {
		t.Fatalf("UnpackTriplets: %v", err)
	}
	if pts[1] != (Vec3{X: 4, Y: 5, Z: 6}) {
		t.Fatalf("pts[1] = %+v, want {4 5 6}", pts[1])
	}

	if _, err := UnpackTriplets(flat, 3); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short flat array = %v, want ErrInvalidInput", err)
	}
	if _, err := UnpackTriplets(flat, -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative count = %v, want ErrInvalidInput", err)
	}
}
