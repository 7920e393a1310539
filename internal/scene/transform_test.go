package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTransformCompose(t *testing.T) {
	a := NewTransform(mgl64.Vec3{1, 0, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))
	b := Translation(1, 0, 0)
	p := mgl64.Vec3{0, 1, 0}

	got := a.Mul(b).Point(p)
	want := a.Point(b.Point(p))
	if !near(got, want, 1e-12) {
		t.Errorf("compose = %v, want %v", got, want)
	}
	if !near(want, mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("point = %v", want)
	}
}

func TestTransformInverse(t *testing.T) {
	tf := NewTransform(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(0.7, mgl64.Vec3{1, 1, 0}.Normalize()))
	p := mgl64.Vec3{-2, 0.5, 4}
	if got := tf.Inverse().Point(tf.Point(p)); !near(got, p, 1e-12) {
		t.Errorf("round trip = %v, want %v", got, p)
	}
}

// near compares by absolute distance; ApproxEqualThreshold turns into a
// squared-epsilon test whenever a component is exactly zero.
func near(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() < tol
}

func TestTransformComposeRotation(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
		axis  mgl64.Vec3
		p     mgl64.Vec3
		want  mgl64.Vec3
	}{
		{"quarter turn about z", math.Pi / 2, mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}},
		{"half turn about y", math.Pi, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0}},
		{"quarter turn about x", math.Pi / 2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf := NewTransform(mgl64.Vec3{}, mgl64.QuatRotate(tt.angle, tt.axis))
			got := tf.Point(tt.p)
			if !near(got, tt.want, 1e-12) {
				t.Errorf("point = %v, want %v", got, tt.want)
			}
		})
	}
}
