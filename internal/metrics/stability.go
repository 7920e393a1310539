package metrics

import (
	"math"

	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// Stability is the fraction of frames in which every speed stayed below
// threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(m *scene.Model, st *sim.State, t float64) {
	s.samples++
	for _, v := range st.ParticleQd {
		if l := v.Len(); l > s.threshold || math.IsNaN(l) {
			s.violations++
			return
		}
	}
	for _, tw := range st.BodyQd {
		if l := tw.V.Len(); l > s.threshold || math.IsNaN(l) {
			s.violations++
			return
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Strain is the mean relative spring elongation over all observed frames.
type Strain struct {
	name    string
	sum     float64
	samples int
}

func NewStrain() *Strain {
	return &Strain{name: "strain"}
}

func (c *Strain) Name() string {
	return c.name
}

func (c *Strain) Observe(m *scene.Model, s *sim.State, t float64) {
	if len(m.Springs) == 0 {
		return
	}
	var sum float64
	for _, sp := range m.Springs {
		rest := sp.Rest * (1 + sp.Control)
		if rest == 0 {
			continue
		}
		l := s.ParticleQ[sp.J].Sub(s.ParticleQ[sp.I]).Len()
		sum += math.Abs(l-rest) / rest
	}
	c.sum += sum / float64(len(m.Springs))
	c.samples++
}

func (c *Strain) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *Strain) Reset() {
	c.sum = 0
	c.samples = 0
}
