package sim

import "github.com/san-kum/framesim/internal/scene"

// Integrator advances in into out over dt. Implementations launch their work
// on model.Device and must not keep references to either state after
// returning.
type Integrator interface {
	Name() string
	Integrate(model *scene.Model, in, out *State, dt float64) error
}

// Validator is implemented by integrators that reject models they cannot
// advance.
type Validator interface {
	Validate(model *scene.Model) error
}

// Seeder is implemented by integrators whose state must be derived before
// the first step, such as forward kinematics from joint coordinates.
type Seeder interface {
	Seed(model *scene.Model, s *State) error
}

// Observer sees the work a scheduler issues. Callbacks run on the control
// thread when kernels are issued, which during a capture is recording time.
type Observer interface {
	OnReset(s *State)
	OnSubstep(step int64, in, out *State)
}

// Signature identifies everything a recorded frame depends on.
type Signature struct {
	Model      *scene.Model
	Integrator string
	Substeps   int
	Dt         float64
	// Revision changes whenever the scheduler is reconfigured.
	Revision uint64
}
