package integrators

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/scene"
)

func TestBoxDistance(t *testing.T) {
	half := mgl64.Vec3{1, 1, 1}
	tests := []struct {
		name   string
		p      mgl64.Vec3
		dist   float64
		normal mgl64.Vec3
	}{
		{"above face", mgl64.Vec3{0, 3, 0}, 2, mgl64.Vec3{0, 1, 0}},
		{"inside near side", mgl64.Vec3{0.9, 0, 0}, -0.1, mgl64.Vec3{1, 0, 0}},
		{"below", mgl64.Vec3{0, -1.5, 0}, 0.5, mgl64.Vec3{0, -1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, n := boxDistance(half, tt.p)
			if math.Abs(d-tt.dist) > 1e-12 {
				t.Errorf("distance = %v, want %v", d, tt.dist)
			}
			if !near(n, tt.normal, 1e-9) {
				t.Errorf("normal = %v, want %v", n, tt.normal)
			}
		})
	}
}

func TestMeshDistance(t *testing.T) {
	mesh, err := scene.NewMesh(
		[]mgl64.Vec3{{-1, 0, -1}, {1, 0, -1}, {1, 0, 1}, {-1, 0, 1}},
		[]int{0, 2, 1, 0, 3, 2},
	)
	if err != nil {
		t.Fatal(err)
	}
	d, n := meshDistance(mesh, mgl64.Vec3{2, 1, 2}, mgl64.Vec3{0.5, 0.25, 0.5})
	if math.Abs(d-0.25) > 1e-12 {
		t.Errorf("distance above = %v, want 0.25", d)
	}
	if !near(n, mgl64.Vec3{0, 1, 0}, 1e-9) {
		t.Errorf("normal = %v", n)
	}

	d, _ = meshDistance(mesh, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{0, -0.1, 0})
	if math.Abs(d+0.1) > 1e-12 {
		t.Errorf("distance below = %v, want -0.1", d)
	}
}

func TestPenaltyForceFrictionIsBounded(t *testing.T) {
	c := scene.ContactParams{Ke: 100, Kd: 0, Kf: 1e6, Mu: 0.5}
	f := penaltyForce(c, 0.1, up, mgl64.Vec3{3, 0, 0})
	if math.Abs(f[1]-10) > 1e-12 {
		t.Errorf("normal force = %v, want 10", f[1])
	}
	if math.Abs(f[0]+5) > 1e-12 {
		t.Errorf("friction = %v, want -5", f[0])
	}
}

func TestSpringForceIsEqualAndOpposite(t *testing.T) {
	q := []mgl64.Vec3{{0, 0, 0}, {2, 0, 0}}
	qd := []mgl64.Vec3{{}, {}}
	s := scene.Spring{I: 0, J: 1, Ke: 10, Rest: 1}
	fi := springForceOn(&s, 0, q, qd)
	fj := springForceOn(&s, 1, q, qd)
	if fi != fj.Mul(-1) {
		t.Errorf("forces %v and %v are not opposite", fi, fj)
	}
	if !near(fi, mgl64.Vec3{10, 0, 0}, 1e-9) {
		t.Errorf("stretched spring pulls I with %v, want (10, 0, 0)", fi)
	}
}
