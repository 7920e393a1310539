package sim

import (
	"fmt"

	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/scene"
)

type Config struct {
	FPS      float64
	Substeps int
}

func (c Config) FrameDt() float64   { return 1 / c.FPS }
func (c Config) SubstepDt() float64 { return c.FrameDt() / float64(c.Substeps) }

func (c Config) Validate() error {
	if c.FPS <= 0 {
		return dynamo.Configf("sim.Config", "fps", "must be positive, got %v", c.FPS)
	}
	if c.Substeps < 1 {
		return dynamo.Configf("sim.Config", "substeps", "must be at least 1, got %d", c.Substeps)
	}
	return nil
}

// Scheduler advances a model frame by frame. It exclusively owns the two
// state buffers; cur indexes the one in the current role.
type Scheduler struct {
	model      *scene.Model
	integrator Integrator
	states     [2]*State
	cur        int

	fps      float64
	substeps int
	dt       float64
	revision uint64

	step  int64
	frame int64
	time  float64

	observers []Observer
}

func NewScheduler(model *scene.Model, integrator Integrator, cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if integrator == nil {
		return nil, dynamo.Configf("sim.NewScheduler", "integrator", "no integrator")
	}
	if err := validate(integrator, model); err != nil {
		return nil, err
	}

	s := &Scheduler{
		model:      model,
		integrator: integrator,
		fps:        cfg.FPS,
		substeps:   cfg.Substeps,
		dt:         cfg.SubstepDt(),
	}
	for i := range s.states {
		st, err := NewState(model)
		if err != nil {
			return nil, err
		}
		if seeder, ok := integrator.(Seeder); ok {
			if err := seeder.Seed(model, st); err != nil {
				return nil, fmt.Errorf("seed %s: %w", integrator.Name(), err)
			}
		}
		s.states[i] = st
	}
	return s, nil
}

func validate(integrator Integrator, model *scene.Model) error {
	if model == nil {
		return dynamo.Configf("sim.NewScheduler", "model", "no model")
	}
	if v, ok := integrator.(Validator); ok {
		return v.Validate(model)
	}
	return nil
}

func (s *Scheduler) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Scheduler) Model() *scene.Model     { return s.model }
func (s *Scheduler) Integrator() Integrator  { return s.integrator }
func (s *Scheduler) Substeps() int           { return s.substeps }
func (s *Scheduler) Dt() float64             { return s.dt }
func (s *Scheduler) FrameDt() float64        { return 1 / s.fps }
func (s *Scheduler) Time() float64           { return s.time }
func (s *Scheduler) Steps() int64            { return s.step }
func (s *Scheduler) Frames() int64           { return s.frame }
func (s *Scheduler) Parity() int             { return s.cur }
func (s *Scheduler) Current() *State         { return s.states[s.cur] }
func (s *Scheduler) Next() *State            { return s.states[1-s.cur] }
func (s *Scheduler) Buffers() [2]*State      { return s.states }
func (s *Scheduler) State(parity int) *State { return s.states[parity&1] }

func (s *Scheduler) Signature() Signature {
	return Signature{
		Model:      s.model,
		Integrator: s.integrator.Name(),
		Substeps:   s.substeps,
		Dt:         s.dt,
		Revision:   s.revision,
	}
}

// SetSubsteps changes the substep count. Recordings made before the call no
// longer match the scheduler.
func (s *Scheduler) SetSubsteps(n int) error {
	cfg := Config{FPS: s.fps, Substeps: n}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.substeps = n
	s.dt = cfg.SubstepDt()
	s.revision++
	return nil
}

func (s *Scheduler) SetIntegrator(integrator Integrator) error {
	if integrator == nil {
		return dynamo.Configf("sim.Scheduler", "integrator", "no integrator")
	}
	if err := validate(integrator, s.model); err != nil {
		return err
	}
	s.integrator = integrator
	s.revision++
	return nil
}

// AdvanceFrame runs one frame of substeps and returns a *DivergenceError if
// any substep produced a non-finite value. Integration errors are returned
// unchanged.
func (s *Scheduler) AdvanceFrame() error {
	if err := s.Issue(s.cur); err != nil {
		return err
	}
	return s.Commit(s.substeps)
}

// Issue launches one frame of kernels starting with the buffer at parity in
// the current role. It does not change the scheduler; Commit does. On a
// capturing device the kernels are recorded rather than run.
func (s *Scheduler) Issue(parity int) error {
	cur := parity & 1
	for k := 0; k < s.substeps; k++ {
		in, out := s.states[cur], s.states[1-cur]

		for _, st := range [2]*State{in, out} {
			if err := st.ResetForces(); err != nil {
				return err
			}
			for _, o := range s.observers {
				o.OnReset(st)
			}
		}

		if err := s.integrator.Integrate(s.model, in, out, s.dt); err != nil {
			return fmt.Errorf("%s substep %d: %w", s.integrator.Name(), s.step+int64(k), err)
		}
		if err := out.CheckFinite(k); err != nil {
			return err
		}
		for _, o := range s.observers {
			o.OnSubstep(s.step+int64(k), in, out)
		}

		cur = 1 - cur
	}
	return nil
}

// Commit accounts for n substeps that have run on the device: it flips the
// buffer roles n times, advances the clocks, and reports divergence.
func (s *Scheduler) Commit(n int) error {
	if err := s.model.Device.Synchronize(); err != nil {
		return err
	}
	start, t0 := s.step, s.time

	s.cur = (s.cur + n) & 1
	s.step += int64(n)
	s.time += float64(n) * s.dt
	s.frame++

	return s.checkStatus(start, t0)
}

func (s *Scheduler) checkStatus(start int64, t0 float64) error {
	first := -1
	index := 0
	for _, st := range s.states {
		if k, idx, ok := st.Diverged(); ok && (first < 0 || k < first) {
			first, index = k, idx
		}
	}
	if first < 0 {
		return nil
	}
	return &dynamo.DivergenceError{
		Integrator: s.integrator.Name(),
		Substep:    start + int64(first),
		Time:       t0 + float64(first+1)*s.dt,
		Index:      index,
	}
}

// Reset restores both buffers from src and rewinds the clocks.
func (s *Scheduler) Reset(src *State) error {
	for _, st := range s.states {
		if err := st.CopyFrom(src); err != nil {
			return err
		}
	}
	s.cur = 0
	s.step, s.frame, s.time = 0, 0, 0
	return nil
}
