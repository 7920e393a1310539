package sim

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/scene"
)

// State is a snapshot of every dynamic quantity of a Model. Buffers are
// allocated from the device arena once and never resized.
type State struct {
	ParticleQ  []mgl64.Vec3
	ParticleQd []mgl64.Vec3
	ParticleF  []mgl64.Vec3
	// ParticleDelta is scratch space for position corrections.
	ParticleDelta []mgl64.Vec3

	BodyQ  []scene.Transform
	BodyQd []scene.Twist
	// BodyF holds torque in W and force in V.
	BodyF []scene.Twist

	JointQ  []float64
	JointQd []float64

	dev    device.Device
	status status
}

type status struct {
	mu      sync.Mutex
	set     bool
	substep int
	index   int
}

// NewState allocates a state sized to m and seeds it with the model's
// initial positions and velocities.
func NewState(m *scene.Model) (*State, error) {
	if m == nil || m.Device == nil {
		return nil, dynamo.Configf("sim.NewState", "model", "model is not finalized on a device")
	}
	arena := m.Device.Arena()
	np, nb, nq := m.ParticleCount(), m.BodyCount(), m.JointCoordCount

	s := &State{
		ParticleQ:     device.Alloc[mgl64.Vec3](arena, np),
		ParticleQd:    device.Alloc[mgl64.Vec3](arena, np),
		ParticleF:     device.Alloc[mgl64.Vec3](arena, np),
		ParticleDelta: device.Alloc[mgl64.Vec3](arena, np),
		BodyQ:         device.Alloc[scene.Transform](arena, nb),
		BodyQd:        device.Alloc[scene.Twist](arena, nb),
		BodyF:         device.Alloc[scene.Twist](arena, nb),
		JointQ:        device.Alloc[float64](arena, nq),
		JointQd:       device.Alloc[float64](arena, nq),
		dev:           m.Device,
	}
	copy(s.ParticleQ, m.ParticleQ0)
	copy(s.ParticleQd, m.ParticleQd0)
	copy(s.BodyQ, m.BodyQ0)
	copy(s.BodyQd, m.BodyQd0)
	copy(s.JointQ, m.JointQ0)
	copy(s.JointQd, m.JointQd0)
	return s, nil
}

func (s *State) ParticleCount() int { return len(s.ParticleQ) }
func (s *State) BodyCount() int     { return len(s.BodyQ) }

// ResetForces zeroes the particle and body force accumulators on the device.
func (s *State) ResetForces() error {
	np := len(s.ParticleF)
	return s.dev.Launch(device.Kernel{
		Name: "reset_forces",
		Dim:  np + len(s.BodyF),
		Fn: func(start, end int) {
			for i := start; i < end; i++ {
				if i < np {
					s.ParticleF[i] = mgl64.Vec3{}
				} else {
					s.BodyF[i-np] = scene.Twist{}
				}
			}
		},
	})
}

// CheckFinite launches a kernel that flags the first non-finite position,
// velocity or joint coordinate. substep is the frame-local substep number
// recorded with the flag.
func (s *State) CheckFinite(substep int) error {
	np, nb := len(s.ParticleQ), len(s.BodyQ)
	return s.dev.Launch(device.Kernel{
		Name: "check_finite",
		Dim:  np + nb + len(s.JointQ),
		Fn: func(start, end int) {
			for i := start; i < end; i++ {
				switch {
				case i < np:
					if !finiteVec(s.ParticleQ[i]) || !finiteVec(s.ParticleQd[i]) {
						s.flag(substep, i)
						return
					}
				case i < np+nb:
					b := i - np
					q := s.BodyQ[b]
					if !finiteVec(q.Position) || !finiteVec(q.Rotation.V) || !finite(q.Rotation.W) ||
						!finiteVec(s.BodyQd[b].W) || !finiteVec(s.BodyQd[b].V) {
						s.flag(substep, -1)
						return
					}
				default:
					j := i - np - nb
					if !finite(s.JointQ[j]) || !finite(s.JointQd[j]) {
						s.flag(substep, -1)
						return
					}
				}
			}
		},
	})
}

func (s *State) flag(substep, index int) {
	s.status.mu.Lock()
	defer s.status.mu.Unlock()
	if s.status.set {
		return
	}
	s.status.set = true
	s.status.substep = substep
	s.status.index = index
}

// Diverged reports the flag left by CheckFinite. index is a particle index,
// or -1 for body and joint coordinates.
func (s *State) Diverged() (substep, index int, ok bool) {
	s.status.mu.Lock()
	defer s.status.mu.Unlock()
	return s.status.substep, s.status.index, s.status.set
}

func (s *State) ClearStatus() {
	s.status.mu.Lock()
	s.status.set = false
	s.status.mu.Unlock()
}

// CopyFrom overwrites s with the contents of o. Both must belong to the same
// model layout. It runs on the host and is not allowed during a capture.
func (s *State) CopyFrom(o *State) error {
	if s.dev.Capturing() {
		return dynamo.Usagef("sim.State.CopyFrom", "host copy during device capture")
	}
	if len(s.ParticleQ) != len(o.ParticleQ) || len(s.BodyQ) != len(o.BodyQ) || len(s.JointQ) != len(o.JointQ) {
		return dynamo.Usagef("sim.State.CopyFrom", "state layouts differ")
	}
	copy(s.ParticleQ, o.ParticleQ)
	copy(s.ParticleQd, o.ParticleQd)
	copy(s.ParticleF, o.ParticleF)
	copy(s.ParticleDelta, o.ParticleDelta)
	copy(s.BodyQ, o.BodyQ)
	copy(s.BodyQd, o.BodyQd)
	copy(s.BodyF, o.BodyF)
	copy(s.JointQ, o.JointQ)
	copy(s.JointQd, o.JointQd)
	s.ClearStatus()
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteVec(v mgl64.Vec3) bool { return finite(v[0]) && finite(v[1]) && finite(v[2]) }
