package metrics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// KineticEnergy sums particle and rigid body kinetic energy.
func KineticEnergy(m *scene.Model, s *sim.State) float64 {
	var e float64
	for i, v := range s.ParticleQd {
		e += 0.5 * m.ParticleMass[i] * v.Dot(v)
	}
	for i, b := range m.Bodies {
		if i >= len(s.BodyQd) {
			break
		}
		tw := s.BodyQd[i]
		r := s.BodyQ[i].RotationMatrix()
		iw := r.Mul3(b.Inertia).Mul3(r.Transpose())
		e += 0.5*b.Mass*tw.V.Dot(tw.V) + 0.5*tw.W.Dot(iw.Mul3x1(tw.W))
	}
	return e
}

// PotentialEnergy is gravitational energy relative to the origin plus the
// elastic energy stored in springs.
func PotentialEnergy(m *scene.Model, s *sim.State) float64 {
	var e float64
	for i, x := range s.ParticleQ {
		e -= m.ParticleMass[i] * m.Gravity.Dot(x)
	}
	for i, b := range m.Bodies {
		if i >= len(s.BodyQ) {
			break
		}
		com := s.BodyQ[i].Point(b.Com)
		e -= b.Mass * m.Gravity.Dot(com)
	}
	for _, sp := range m.Springs {
		d := s.ParticleQ[sp.J].Sub(s.ParticleQ[sp.I]).Len() - sp.Rest*(1+sp.Control)
		e += 0.5 * sp.Ke * d * d
	}
	return e
}

func TotalEnergy(m *scene.Model, s *sim.State) float64 {
	return KineticEnergy(m, s) + PotentialEnergy(m, s)
}

type Energy struct {
	name        string
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(m *scene.Model, s *sim.State, t float64) {
	e.totalEnergy += TotalEnergy(m, s)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative change of total energy from the
// first observed frame.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(m *scene.Model, s *sim.State, t float64) {
	energy := TotalEnergy(m, s)
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// LowestPoint tracks the minimum height reached by any particle or body
// origin.
type LowestPoint struct {
	name string
	min  float64
}

func NewLowestPoint() *LowestPoint {
	return &LowestPoint{name: "lowest_point", min: math.Inf(1)}
}

func (l *LowestPoint) Name() string { return l.name }

func (l *LowestPoint) Observe(m *scene.Model, s *sim.State, t float64) {
	lo, _ := Extent(s)
	l.min = math.Min(l.min, lo[1])
}

func (l *LowestPoint) Value() float64 {
	if math.IsInf(l.min, 1) {
		return 0
	}
	return l.min
}

func (l *LowestPoint) Reset() { l.min = math.Inf(1) }

// Extent returns the bounding box of particle positions and body origins.
func Extent(s *sim.State) (lo, hi mgl64.Vec3) {
	first := true
	grow := func(p mgl64.Vec3) {
		if first {
			lo, hi, first = p, p, false
			return
		}
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], p[k])
			hi[k] = math.Max(hi[k], p[k])
		}
	}
	for _, p := range s.ParticleQ {
		grow(p)
	}
	for _, q := range s.BodyQ {
		grow(q.Position)
	}
	return lo, hi
}
