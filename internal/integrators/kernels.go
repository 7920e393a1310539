package integrators

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// launchParticleForces accumulates spring, triangle and contact forces into
// in.ParticleF.
func launchParticleForces(m *scene.Model, in *sim.State, contacts bool) error {
	return m.Device.Launch(device.Kernel{
		Name: "eval_particle_forces",
		Dim:  m.ParticleCount(),
		Fn: func(start, end int) {
			for p := start; p < end; p++ {
				in.ParticleF[p] = in.ParticleF[p].Add(particleForce(m, p, in.ParticleQ, in.ParticleQd, contacts))
			}
		},
	})
}

// launchIntegrateParticles advances particles explicitly in velocity and
// implicitly in position. Anchors are copied through unchanged.
func launchIntegrateParticles(m *scene.Model, in, out *sim.State, dt float64) error {
	return m.Device.Launch(device.Kernel{
		Name: "integrate_particles",
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
				out.ParticleQd[p] = v
				out.ParticleQ[p] = in.ParticleQ[p].Add(v.Mul(dt))
			}
		},
	})
}

// launchIntegrateBodies advances bodies without a joint under gravity and
// their accumulated wrench. Massless bodies are held in place.
func launchIntegrateBodies(m *scene.Model, in, out *sim.State, dt float64) error {
	return m.Device.Launch(device.Kernel{
		Name: "integrate_bodies",
		Dim:  len(m.FreeBodies),
		Fn: func(start, end int) {
			for _, b := range m.FreeBodies[start:end] {
				out.BodyQ[b], out.BodyQd[b] = integrateBody(&m.Bodies[b], in.BodyQ[b], in.BodyQd[b], in.BodyF[b], m.Gravity, dt)
			}
		},
	})
}

func integrateBody(body *scene.Body, q scene.Transform, qd scene.Twist, f scene.Twist, g mgl64.Vec3, dt float64) (scene.Transform, scene.Twist) {
	if body.Mass == 0 {
		return q, qd
	}

	com := q.Point(body.Com)
	v := qd.V.Add(f.V.Mul(1 / body.Mass).Add(g).Mul(dt))

	r := q.RotationMatrix()
	inertia := r.Mul3(body.Inertia.Add(mgl64.Ident3().Mul(body.Armature))).Mul3(r.Transpose())
	w := qd.W
	gyro := w.Cross(inertia.Mul3x1(w))
	w = w.Add(inertia.Inv().Mul3x1(f.W.Sub(gyro)).Mul(dt))

	spin := mgl64.Quat{W: 0, V: w}.Mul(q.Rotation).Scale(0.5)
	rot := q.Rotation.Add(spin.Scale(dt)).Normalize()

	com = com.Add(v.Mul(dt))
	origin := com.Sub(rot.Rotate(body.Com))
	return scene.NewTransform(origin, rot), scene.Twist{W: w, V: v}
}

// validateParticleModel rejects topology the particle variants cannot
// advance.
func validateParticleModel(op string, m *scene.Model) error {
	if m.HasJoints() {
		return dynamo.Configf(op, "joints", "model has %d joints; use the featherstone integrator", m.JointCount())
	}
	return validateSprings(op, m)
}

func validateSprings(op string, m *scene.Model) error {
	for i, s := range m.Springs {
		if s.I == s.J {
			return dynamo.Configf(op, "springs", "spring %d connects particle %d to itself", i, s.I)
		}
		if s.Ke < 0 || s.Kd < 0 {
			return dynamo.Configf(op, "springs", "spring %d has negative stiffness or damping", i)
		}
	}
	return nil
}
