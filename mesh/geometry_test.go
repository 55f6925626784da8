package mesh

import (
	"math"
	"testing"
)

func TestVec3DistanceTo(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: 6, Z: 3}

	if got := a.DistanceTo(b); got != 5 {
		t.Fatalf("DistanceTo = %v, want 5", got)
	}
}

func TestVec3ScaleAndAdd(t *testing.T) {
	v := Vec3{X: 1, Y: -2, Z: 0.5}
	got := v.Scale(2).Add(Vec3{X: 1, Y: 1, Z: 1})

	want := Vec3{X: 3, Y: -3, Z: 2}
	if got != want {
		t.Fatalf("Scale+Add = %+v, want %+v", got, want)
	}
}

func TestVec3Norm(t *testing.T) {
	v := Vec3{X: 3, Y: 4, Z: 0}
	if got := v.Norm(); math.Abs(got-5) > 1e-15 {
		t.Fatalf("Norm = %v, want 5", got)
	}
}
