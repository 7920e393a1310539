package integrators

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

const (
	DefaultIterations = 2
	DefaultRelaxation = 0.9
)

// XPBD predicts positions from external forces, then projects spring and
// contact constraints for a fixed number of Jacobi iterations and derives
// velocities from the corrected positions.
type XPBD struct {
	Iterations int
	Relaxation float64

	// per-spring scratch, sized on first use for a model
	model      *scene.Model
	lambda     []float64
	correction []mgl64.Vec3
}

func NewXPBD(iterations int) *XPBD {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &XPBD{Iterations: iterations, Relaxation: DefaultRelaxation}
}

func (x *XPBD) Name() string { return "xpbd" }

func (x *XPBD) Validate(m *scene.Model) error {
	if x.Iterations < 1 {
		return dynamo.Configf("xpbd", "iterations", "must be at least 1, got %d", x.Iterations)
	}
	if x.Relaxation <= 0 || x.Relaxation > 1 {
		return dynamo.Configf("xpbd", "relaxation", "must be in (0, 1], got %v", x.Relaxation)
	}
	for i, s := range m.Springs {
		if s.Ke == 0 {
			return dynamo.Configf("xpbd", "springs", "spring %d has zero stiffness", i)
		}
	}
	return validateParticleModel("xpbd", m)
}

// ensureScratch keeps the scratch buffers at fixed addresses for as long as
// the model is the same, so recorded frames stay valid.
func (x *XPBD) ensureScratch(m *scene.Model) {
	if x.model == m {
		return
	}
	arena := m.Device.Arena()
	x.model = m
	x.lambda = device.Alloc[float64](arena, len(m.Springs))
	x.correction = device.Alloc[mgl64.Vec3](arena, len(m.Springs))
}

func (x *XPBD) Integrate(m *scene.Model, in, out *sim.State, dt float64) error {
	x.ensureScratch(m)
	lambda, corr := x.lambda, x.correction
	relax := x.Relaxation

	// triangles stay force based; springs become constraints
	launches := []device.Kernel{
		{
			Name: "xpbd_triangle_forces",
			Dim:  m.ParticleCount(),
			Fn: func(start, end int) {
				for p := start; p < end; p++ {
					var f mgl64.Vec3
					for _, ti := range m.ParticleTris[m.ParticleTriStart[p]:m.ParticleTriStart[p+1]] {
						f = f.Add(triangleForceOn(&m.Triangles[ti], p, in.ParticleQ, in.ParticleQd))
					}
					in.ParticleF[p] = in.ParticleF[p].Add(f)
				}
			},
		},
		{
			Name: "xpbd_predict",
			Dim:  m.ParticleCount(),
			Fn: func(start, end int) {
				for p := start; p < end; p++ {
					w := m.ParticleInvMass[p]
					if w == 0 {
						out.ParticleQ[p] = in.ParticleQ[p]
						out.ParticleQd[p] = in.ParticleQd[p]
						continue
					}
					v := in.ParticleQd[p].Add(in.ParticleF[p].Mul(w).Add(m.Gravity).Mul(dt))
					out.ParticleQ[p] = in.ParticleQ[p].Add(v.Mul(dt))
				}
			},
		},
		{
			Name: "xpbd_reset_lambda",
			Dim:  len(lambda),
			Fn: func(start, end int) {
				for s := start; s < end; s++ {
					lambda[s] = 0
				}
			},
		},
	}

	for it := 0; it < x.Iterations; it++ {
		launches = append(launches,
			device.Kernel{
				Name: "xpbd_contacts",
				Dim:  m.ParticleCount(),
				Fn: func(start, end int) {
					for p := start; p < end; p++ {
						if m.ParticleInvMass[p] == 0 {
							continue
						}
						out.ParticleQ[p] = projectContacts(m, p, out.ParticleQ[p], in.ParticleQ[p])
					}
				},
			},
			device.Kernel{
				Name: "xpbd_solve_springs",
				Dim:  len(m.Springs),
				Fn: func(start, end int) {
					for s := start; s < end; s++ {
						corr[s] = springCorrection(m, &m.Springs[s], &lambda[s], in.ParticleQ, out.ParticleQ, dt)
					}
				},
			},
			device.Kernel{
				Name: "xpbd_apply_corrections",
				Dim:  m.ParticleCount(),
				Fn: func(start, end int) {
					for p := start; p < end; p++ {
						w := m.ParticleInvMass[p]
						if w == 0 {
							continue
						}
						var delta mgl64.Vec3
						for _, si := range m.ParticleSprings[m.ParticleSpringStart[p]:m.ParticleSpringStart[p+1]] {
							if m.Springs[si].I == p {
								delta = delta.Add(corr[si])
							} else {
								delta = delta.Sub(corr[si])
							}
						}
						out.ParticleDelta[p] = delta.Mul(w * relax)
						out.ParticleQ[p] = out.ParticleQ[p].Add(out.ParticleDelta[p])
					}
				},
			},
		)
	}

	launches = append(launches, device.Kernel{
		Name: "xpbd_update_velocities",
		Dim:  m.ParticleCount(),
		Fn: func(start, end int) {
			for p := start; p < end; p++ {
				if m.ParticleInvMass[p] == 0 {
					continue
				}
				out.ParticleQd[p] = out.ParticleQ[p].Sub(in.ParticleQ[p]).Mul(1 / dt)
			}
		},
	})

	for _, k := range launches {
		if err := m.Device.Launch(k); err != nil {
			return err
		}
	}
	return launchIntegrateBodies(m, in, out, dt)
}

// springCorrection solves one compliant distance constraint and returns the
// position change direction scaled by the multiplier increment. Endpoint I
// moves by +corr*w_i and J by -corr*w_j.
func springCorrection(m *scene.Model, s *scene.Spring, lambda *float64, prev, q []mgl64.Vec3, dt float64) mgl64.Vec3 {
	wi, wj := m.ParticleInvMass[s.I], m.ParticleInvMass[s.J]
	if wi+wj == 0 {
		return mgl64.Vec3{}
	}
	d := q[s.I].Sub(q[s.J])
	l := d.Len()
	if l < 1e-12 {
		return mgl64.Vec3{}
	}
	grad := d.Mul(1 / l)
	c := l - springRest(s)

	alpha := 1 / (s.Ke * dt * dt)
	gamma := s.Kd / (s.Ke * dt)
	moved := grad.Dot(q[s.I].Sub(prev[s.I]).Sub(q[s.J].Sub(prev[s.J])))

	dl := -(c + alpha*(*lambda) + gamma*moved) / ((1+gamma)*(wi+wj) + alpha)
	*lambda += dl
	return grad.Mul(dl)
}
