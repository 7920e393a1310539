package integrators

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/scene"
)

// springRest is the rest length after actuation. Control scales the rest
// length; zero leaves the spring passive.
func springRest(s *scene.Spring) float64 {
	return s.Rest * (1 + s.Control)
}

// springForceOn returns the force spring s exerts on particle p, which must
// be one of its endpoints.
func springForceOn(s *scene.Spring, p int, q, qd []mgl64.Vec3) mgl64.Vec3 {
	d := q[s.I].Sub(q[s.J])
	l := d.Len()
	if l < 1e-12 {
		return mgl64.Vec3{}
	}
	dir := d.Mul(1 / l)
	c := l - springRest(s)
	dcdt := dir.Dot(qd[s.I].Sub(qd[s.J]))
	fs := dir.Mul(s.Ke*c + s.Kd*dcdt)
	if p == s.I {
		return fs.Mul(-1)
	}
	return fs
}

// triangleForceOn returns the elastic force triangle t exerts on vertex p.
// Edges resist stretch with Ke, the face resists area change with Ka, and
// Kd damps both. Interior edges belong to two triangles, so each triangle
// contributes half of the edge response.
func triangleForceOn(t *scene.Triangle, p int, q, qd []mgl64.Vec3) mgl64.Vec3 {
	idx := [3]int{t.I, t.J, t.K}
	var f mgl64.Vec3

	for e := 0; e < 3; e++ {
		a, b := idx[e], idx[(e+1)%3]
		if p != a && p != b {
			continue
		}
		d := q[a].Sub(q[b])
		l := d.Len()
		if l < 1e-12 {
			continue
		}
		dir := d.Mul(1 / l)
		fs := dir.Mul(0.5 * (t.Ke*(l-t.RestEdges[e]) + t.Kd*dir.Dot(qd[a].Sub(qd[b]))))
		if p == a {
			f = f.Sub(fs)
		} else {
			f = f.Add(fs)
		}
	}

	x0, x1, x2 := q[t.I], q[t.J], q[t.K]
	cross := x1.Sub(x0).Cross(x2.Sub(x0))
	twice := cross.Len()
	if twice < 1e-12 {
		return f
	}
	n := cross.Mul(1 / twice)

	// dA/dx for each vertex is n x (opposite edge) / 2
	grads := [3]mgl64.Vec3{
		n.Cross(x2.Sub(x1)).Mul(0.5),
		n.Cross(x0.Sub(x2)).Mul(0.5),
		n.Cross(x1.Sub(x0)).Mul(0.5),
	}
	var dAdt float64
	for k := 0; k < 3; k++ {
		dAdt += grads[k].Dot(qd[idx[k]])
	}
	scale := -(t.Ka*(0.5*twice-t.RestArea) + t.Kd*dAdt)
	for k := 0; k < 3; k++ {
		if idx[k] == p {
			f = f.Add(grads[k].Mul(scale))
		}
	}
	return f
}

// contactForce sums ground and static shape penalty forces on particle p.
func contactForce(m *scene.Model, p int, x, v mgl64.Vec3) mgl64.Vec3 {
	var f mgl64.Vec3
	r := m.ParticleRadius[p] + m.Contact.Margin

	if m.Ground {
		if depth := r - x[1]; depth > 0 {
			f = f.Add(penaltyForce(m.Contact, depth, up, v))
		}
	}
	for _, si := range m.StaticShapes {
		s := &m.Shapes[si]
		d, n := shapeDistance(s, x)
		if depth := r - d; depth > 0 {
			f = f.Add(penaltyForce(contactCoeffs(m.Contact, s.Material), depth, n, v))
		}
	}
	return f
}

// particleForce gathers every internal and contact force on p from the
// given positions and velocities.
func particleForce(m *scene.Model, p int, q, qd []mgl64.Vec3, withContacts bool) mgl64.Vec3 {
	var f mgl64.Vec3
	for _, si := range m.ParticleSprings[m.ParticleSpringStart[p]:m.ParticleSpringStart[p+1]] {
		f = f.Add(springForceOn(&m.Springs[si], p, q, qd))
	}
	for _, ti := range m.ParticleTris[m.ParticleTriStart[p]:m.ParticleTriStart[p+1]] {
		f = f.Add(triangleForceOn(&m.Triangles[ti], p, q, qd))
	}
	if withContacts {
		f = f.Add(contactForce(m, p, q[p], qd[p]))
	}
	return f
}

// projectContacts moves x out of the ground and static shapes and returns
// the corrected position. prev is the position at the start of the substep
// and is used for Coulomb friction.
func projectContacts(m *scene.Model, p int, x, prev mgl64.Vec3) mgl64.Vec3 {
	r := m.ParticleRadius[p] + m.Contact.Margin

	resolve := func(x mgl64.Vec3, depth float64, n mgl64.Vec3, mu float64) mgl64.Vec3 {
		x = x.Add(n.Mul(depth))
		dx := x.Sub(prev)
		dt := dx.Sub(n.Mul(dx.Dot(n)))
		if l := dt.Len(); l > 1e-12 {
			x = x.Sub(dt.Mul(math.Min(1, mu*depth/l)))
		}
		return x
	}

	if m.Ground {
		if depth := r - x[1]; depth > 0 {
			x = resolve(x, depth, up, m.Contact.Mu)
		}
	}
	for _, si := range m.StaticShapes {
		s := &m.Shapes[si]
		d, n := shapeDistance(s, x)
		if depth := r - d; depth > 0 {
			x = resolve(x, depth, n, contactCoeffs(m.Contact, s.Material).Mu)
		}
	}
	return x
}
