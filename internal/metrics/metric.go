package metrics

import (
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// Metric accumulates a scalar over the frames of a run.
type Metric interface {
	Name() string
	Observe(m *scene.Model, s *sim.State, t float64)
	Value() float64
	Reset()
}

// Standard returns the metrics recorded with every run.
func Standard() []Metric {
	return []Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewStability(1e3),
		NewStrain(),
		NewLowestPoint(),
	}
}

// Collect observes every metric and returns their values by name.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
