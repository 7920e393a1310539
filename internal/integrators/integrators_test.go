package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// near compares by absolute distance; ApproxEqualThreshold turns into a
// squared-epsilon test whenever a component is exactly zero.
func near(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() < tol
}

func buildChain(t testing.TB, dev device.Device, n int, ke, kd float64) *scene.Model {
	t.Helper()
	b := scene.NewBuilder()
	spacing := 10.0 / float64(n-1)
	for i := 0; i < n; i++ {
		mass := 1.0
		if i == 0 {
			mass = 0
		}
		if _, err := b.AddParticle(mgl64.Vec3{float64(i) * spacing, 1, 0}, mgl64.Vec3{}, mass, scene.WithRadius(0.2)); err != nil {
			t.Fatal(err)
		}
		if i > 0 {
			if _, err := b.AddSpring(i-1, i, ke, kd, 0); err != nil {
				t.Fatal(err)
			}
		}
	}
	m, err := b.Finalize(dev)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func buildCloth(t testing.TB, dev device.Device, springs bool) *scene.Model {
	t.Helper()
	b := scene.NewBuilder()
	_, err := b.AddClothGrid(scene.ClothGrid{
		Placement:  scene.NewTransform(mgl64.Vec3{0, 4, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})),
		DimX:       8,
		DimY:       12,
		CellX:      0.1,
		CellY:      0.1,
		Mass:       0.1,
		FixLeft:    true,
		TriKe:      1e3,
		TriKa:      1e3,
		TriKd:      10,
		AddSprings: springs,
		SpringKe:   1e3,
	})
	if err != nil {
		t.Fatal(err)
	}
	b.SetGround(true)
	m, err := b.Finalize(dev)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func run(t testing.TB, m *scene.Model, integ sim.Integrator, fps float64, substeps, frames int) *sim.Scheduler {
	t.Helper()
	s, err := sim.NewScheduler(m, integ, sim.Config{FPS: fps, Substeps: substeps})
	if err != nil {
		t.Fatal(err)
	}
	for f := 0; f < frames; f++ {
		if err := s.AdvanceFrame(); err != nil {
			t.Fatalf("frame %d: %v", f, err)
		}
	}
	return s
}

func TestChainRegression(t *testing.T) {
	m := buildChain(t, device.NewCPU(), 11, 1e6, 1)
	initial := append([]mgl64.Vec3(nil), m.ParticleQ0...)

	s := run(t, m, NewSemiImplicit(), 60, 2, 1)
	dt := s.Dt()
	q := s.Current().ParticleQ

	if q[0] != initial[0] {
		t.Errorf("anchor moved from %v to %v", initial[0], q[0])
	}

	g := -m.Gravity[1]
	lo, hi := 2.5*g*dt*dt, 3.5*g*dt*dt
	for i := 1; i < 11; i++ {
		drop := initial[i][1] - q[i][1]
		if drop < lo || drop > hi {
			t.Errorf("particle %d dropped %.6g, want within [%.6g, %.6g]", i, drop, lo, hi)
		}
		if math.Abs(q[i][0]-initial[i][0]) > 1e-4 {
			t.Errorf("particle %d drifted sideways to x=%v", i, q[i][0])
		}
	}
}

func TestAnchorInvariance(t *testing.T) {
	tests := []struct {
		name  string
		integ func() sim.Integrator
	}{
		{"semi_implicit", func() sim.Integrator { return NewSemiImplicit() }},
		{"xpbd", func() sim.Integrator { return NewXPBD(4) }},
		{"featherstone", func() sim.Integrator { return NewFeatherstone() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := buildChain(t, device.NewCPU(), 11, 1e2, 1)
			anchor := m.ParticleQ0[0]
			s := run(t, m, tt.integ(), 60, 4, 30)

			for _, st := range s.Buffers() {
				if st.ParticleQ[0] != anchor {
					t.Errorf("anchor moved to %v", st.ParticleQ[0])
				}
			}
			if s.Current().ParticleQ[10][1] >= 1 {
				t.Errorf("free end did not fall: y=%v", s.Current().ParticleQ[10][1])
			}
		})
	}
}

func TestRejectDegenerateSpring(t *testing.T) {
	b := scene.NewBuilder()
	b.AddParticle(mgl64.Vec3{}, mgl64.Vec3{}, 1)
	b.AddSpring(0, 0, 10, 1, 0)
	m, err := b.Finalize(device.NewCPU())
	if err != nil {
		t.Fatalf("builder must not validate physics: %v", err)
	}

	for _, integ := range []sim.Validator{NewSemiImplicit(), NewXPBD(2), NewFeatherstone()} {
		if err := integ.Validate(m); !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("%T: err = %v, want configuration error", integ, err)
		}
	}
}

func TestParticleVariantsRejectJoints(t *testing.T) {
	m := buildRigidChain(t, device.NewCPU(), 2, 0, 0)
	for _, integ := range []sim.Validator{NewSemiImplicit(), NewXPBD(2)} {
		if err := integ.Validate(m); !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("%T: err = %v, want configuration error", integ, err)
		}
	}
	if err := NewFeatherstone().Validate(m); err != nil {
		t.Errorf("featherstone rejected articulation: %v", err)
	}
}

func TestXPBDSatisfiesSpring(t *testing.T) {
	b := scene.NewBuilder()
	b.SetGravity(mgl64.Vec3{})
	b.AddParticle(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{}, 1)
	b.AddParticle(mgl64.Vec3{1, 1, 0}, mgl64.Vec3{1, 0, 0}, 1)
	b.AddSpring(0, 1, 1e6, 0, 0)
	m, err := b.Finalize(device.NewCPU())
	if err != nil {
		t.Fatal(err)
	}

	s := run(t, m, NewXPBD(10), 60, 1, 1)
	q, qd := s.Current().ParticleQ, s.Current().ParticleQd

	if l := q[1].Sub(q[0]).Len(); math.Abs(l-1) > 1e-4 {
		t.Errorf("spring length = %v, want 1", l)
	}
	if p := qd[0].Add(qd[1]); !near(p, mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("momentum = %v, want (1, 0, 0)", p)
	}
}

func TestGroundContact(t *testing.T) {
	tests := []struct {
		name  string
		integ sim.Integrator
		floor float64
	}{
		{"penalty", NewSemiImplicit(), 0.05},
		{"projection", NewXPBD(2), 0.1 - 1e-9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := scene.NewBuilder()
			b.SetGround(true)
			b.AddParticle(mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{}, 1)
			m, err := b.Finalize(device.NewCPU())
			if err != nil {
				t.Fatal(err)
			}
			s := run(t, m, tt.integ, 60, 10, 120)
			if y := s.Current().ParticleQ[0][1]; y < tt.floor {
				t.Errorf("particle sank to y=%v, floor %v", y, tt.floor)
			}
		})
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	serial := buildCloth(t, device.NewCPU(device.WithWorkers(1)), true)
	wide := buildCloth(t, device.NewCPU(device.WithWorkers(8), device.WithMinChunk(1)), true)

	a := run(t, serial, NewXPBD(2), 60, 10, 5)
	b := run(t, wide, NewXPBD(2), 60, 10, 5)

	for i := range a.Current().ParticleQ {
		if a.Current().ParticleQ[i] != b.Current().ParticleQ[i] {
			t.Fatalf("particle %d: %v != %v", i, a.Current().ParticleQ[i], b.Current().ParticleQ[i])
		}
	}
}

func TestClothStaysFinite(t *testing.T) {
	for _, integ := range []sim.Integrator{NewSemiImplicit(), NewXPBD(1)} {
		t.Run(integ.Name(), func(t *testing.T) {
			m := buildCloth(t, device.NewCPU(), integ.Name() == "xpbd")
			s := run(t, m, integ, 60, 10, 20)
			if s.Current().ParticleQ[0] != m.ParticleQ0[0] {
				t.Error("fixed edge moved")
			}
		})
	}
}

func BenchmarkSemiImplicitCloth(b *testing.B) {
	m := buildCloth(b, device.NewCPU(), false)
	s, err := sim.NewScheduler(m, NewSemiImplicit(), sim.Config{FPS: 60, Substeps: 10})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.AdvanceFrame(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkXPBDCloth(b *testing.B) {
	m := buildCloth(b, device.NewCPU(), true)
	s, err := sim.NewScheduler(m, NewXPBD(2), sim.Config{FPS: 60, Substeps: 10})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.AdvanceFrame(); err != nil {
			b.Fatal(err)
		}
	}
}
