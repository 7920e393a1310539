package integrators

import (
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// SemiImplicit is the single-pass explicit variant: forces from the
// incoming state, then v += a*dt and x += v*dt.
type SemiImplicit struct{}

func NewSemiImplicit() *SemiImplicit {
	return &SemiImplicit{}
}

func (e *SemiImplicit) Name() string { return "semi_implicit" }

func (e *SemiImplicit) Validate(m *scene.Model) error {
	return validateParticleModel("semi_implicit", m)
}

func (e *SemiImplicit) Integrate(m *scene.Model, in, out *sim.State, dt float64) error {
	if err := launchParticleForces(m, in, true); err != nil {
		return err
	}
	if err := launchIntegrateParticles(m, in, out, dt); err != nil {
		return err
	}
	return launchIntegrateBodies(m, in, out, dt)
}
