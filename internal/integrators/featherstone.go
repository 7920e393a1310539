package integrators

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// Featherstone advances articulations in joint coordinates. Each substep
// builds the joint-space mass matrix with the composite rigid body
// algorithm, the bias forces with recursive Newton-Euler, solves for joint
// accelerations and updates the bodies by forward kinematics. Particles in
// the same model are advanced like SemiImplicit.
type Featherstone struct {
	model *scene.Model
	work  []*articulation
}

type articulation struct {
	start, n   int
	dofStart   int
	dofs       int
	parent     []int
	x          []scene.Transform
	s          []spatialVec
	v, a, f    []spatialVec
	inertia    []spatialInertia
	composite  []spatialInertia
	h          *mat.SymDense
	rhs, qdd   *mat.VecDense
	chol       mat.Cholesky
	coordIndex []int
}

func NewFeatherstone() *Featherstone {
	return &Featherstone{}
}

func (f *Featherstone) Name() string { return "featherstone" }

func (f *Featherstone) Validate(m *scene.Model) error {
	const op = "featherstone"
	if len(m.FreeBodies) > 0 {
		return dynamo.Configf(op, "bodies", "body %d has no joint", m.FreeBodies[0])
	}
	for ji, j := range m.Joints {
		if j.Type.DoF() == 0 {
			continue
		}
		b := m.Bodies[j.Child]
		if b.Mass <= 0 && b.Armature <= 0 {
			return dynamo.Configf(op, "bodies", "joint %d moves body %d which has neither mass nor armature", ji, j.Child)
		}
	}
	return validateSprings(op, m)
}

func (f *Featherstone) ensureScratch(m *scene.Model) {
	if f.model == m {
		return
	}
	f.model = m
	f.work = make([]*articulation, len(m.Articulations))
	for i, art := range m.Articulations {
		f.work[i] = newArticulation(m, art)
	}
}

func newArticulation(m *scene.Model, art scene.Articulation) *articulation {
	n := art.JointEnd - art.JointStart
	w := &articulation{
		start:      art.JointStart,
		n:          n,
		dofStart:   -1,
		parent:     make([]int, n),
		x:          make([]scene.Transform, n),
		s:          make([]spatialVec, n),
		v:          make([]spatialVec, n),
		a:          make([]spatialVec, n),
		f:          make([]spatialVec, n),
		inertia:    make([]spatialInertia, n),
		composite:  make([]spatialInertia, n),
		coordIndex: make([]int, n),
	}
	for k := 0; k < n; k++ {
		j := &m.Joints[art.JointStart+k]
		w.parent[k] = -1
		if j.Parent != scene.World {
			w.parent[k] = m.BodyJoint[j.Parent] - art.JointStart
		}
		w.coordIndex[k] = -1
		if j.QIndex >= 0 {
			if w.dofStart < 0 {
				w.dofStart = j.QIndex
			}
			w.coordIndex[k] = j.QIndex - w.dofStart
			w.dofs++
		}
	}
	if w.dofs > 0 {
		w.h = mat.NewSymDense(w.dofs, nil)
		w.rhs = mat.NewVecDense(w.dofs, nil)
		w.qdd = mat.NewVecDense(w.dofs, nil)
	}
	return w
}

// Seed runs forward kinematics so body poses match the joint coordinates.
func (f *Featherstone) Seed(m *scene.Model, s *sim.State) error {
	f.ensureScratch(m)
	return m.Device.Launch(device.Kernel{
		Name: "eval_fk",
		Dim:  len(f.work),
		Fn: func(start, end int) {
			for _, w := range f.work[start:end] {
				w.forwardKinematics(m, s.JointQ, s.JointQd)
				w.writeBodies(m, s)
			}
		},
	})
}

func (f *Featherstone) Integrate(m *scene.Model, in, out *sim.State, dt float64) error {
	f.ensureScratch(m)
	if m.ParticleCount() > 0 {
		if err := launchParticleForces(m, in, true); err != nil {
			return err
		}
		if err := launchIntegrateParticles(m, in, out, dt); err != nil {
			return err
		}
	}
	return m.Device.Launch(device.Kernel{
		Name: "featherstone_step",
		Dim:  len(f.work),
		Fn: func(start, end int) {
			for _, w := range f.work[start:end] {
				w.step(m, in, out, dt)
			}
		},
	})
}

func (w *articulation) joint(m *scene.Model, k int) *scene.Joint {
	return &m.Joints[w.start+k]
}

// forwardKinematics fills x, s and v from joint coordinates.
func (w *articulation) forwardKinematics(m *scene.Model, q, qd []float64) {
	for k := 0; k < w.n; k++ {
		j := w.joint(m, k)
		parentX := scene.Identity()
		var parentV spatialVec
		if p := w.parent[k]; p >= 0 {
			parentX, parentV = w.x[p], w.v[p]
		}
		frame := parentX.Mul(j.ParentXform)

		var qv, qdv float64
		if j.QIndex >= 0 {
			qv, qdv = q[j.QIndex], qd[j.QIndex]
		}

		motion := scene.Identity()
		var s spatialVec
		switch j.Type {
		case scene.JointRevolute:
			motion.Rotation = mgl64.QuatRotate(qv, j.Axis)
			axis := frame.Vector(j.Axis)
			s = spatialVec{axis, frame.Position.Cross(axis)}
		case scene.JointPrismatic:
			motion.Position = j.Axis.Mul(qv)
			s = spatialVec{v: frame.Vector(j.Axis)}
		}

		w.x[k] = frame.Mul(motion).Mul(j.ChildXform.Inverse())
		w.s[k] = s
		w.v[k] = parentV.add(s.scale(qdv))
	}
}

func (w *articulation) writeBodies(m *scene.Model, s *sim.State) {
	for k := 0; k < w.n; k++ {
		b := w.joint(m, k).Child
		s.BodyQ[b] = w.x[k]
		s.BodyQd[b] = toTwist(w.v[k], w.x[k].Point(m.Bodies[b].Com))
	}
}

func (w *articulation) step(m *scene.Model, in, out *sim.State, dt float64) {
	w.forwardKinematics(m, in.JointQ, in.JointQd)
	if w.dofs == 0 {
		w.writeBodies(m, out)
		return
	}

	w.biasForces(m, in)
	w.massMatrix()
	w.drives(m, in.JointQ, in.JointQd, dt)

	q0 := w.dofStart
	if !w.chol.Factorize(w.h) || w.chol.SolveVecTo(w.qdd, w.rhs) != nil {
		for i := 0; i < w.dofs; i++ {
			out.JointQ[q0+i] = math.NaN()
			out.JointQd[q0+i] = math.NaN()
		}
		return
	}

	for i := 0; i < w.dofs; i++ {
		qd := in.JointQd[q0+i] + w.qdd.AtVec(i)*dt
		out.JointQd[q0+i] = qd
		out.JointQ[q0+i] = in.JointQ[q0+i] + qd*dt
	}
	w.forwardKinematics(m, out.JointQ, out.JointQd)
	w.writeBodies(m, out)
}

// biasForces runs recursive Newton-Euler with zero joint accelerations.
// Gravity enters as a fictitious base acceleration. The result, negated,
// seeds rhs.
func (w *articulation) biasForces(m *scene.Model, in *sim.State) {
	base := spatialVec{v: m.Gravity.Mul(-1)}

	for k := 0; k < w.n; k++ {
		j := w.joint(m, k)
		body := &m.Bodies[j.Child]
		x := w.x[k]
		com := x.Point(body.Com)
		r := x.RotationMatrix()
		ic := r.Mul3(body.Inertia.Add(mgl64.Ident3().Mul(body.Armature))).Mul3(r.Transpose())
		w.inertia[k] = rigidInertia(body.Mass, com, ic)
		w.composite[k] = w.inertia[k]

		acc := base
		if p := w.parent[k]; p >= 0 {
			acc = w.a[p]
		}
		if j.QIndex >= 0 {
			acc = acc.add(w.v[k].crossMotion(w.s[k].scale(in.JointQd[j.QIndex])))
		}
		w.a[k] = acc

		iv := w.inertia[k].mul(w.v[k])
		ext := wrenchAtOrigin(in.BodyF[j.Child], com)
		w.f[k] = w.inertia[k].mul(acc).add(w.v[k].crossForce(iv)).add(ext.scale(-1))
	}

	for k := w.n - 1; k >= 0; k-- {
		if i := w.coordIndex[k]; i >= 0 {
			w.rhs.SetVec(i, -w.s[k].dot(w.f[k]))
		}
		if p := w.parent[k]; p >= 0 {
			w.f[p] = w.f[p].add(w.f[k])
			w.composite[p] = w.composite[p].add(w.composite[k])
		}
	}
}

// massMatrix fills h with the composite rigid body algorithm. All
// quantities are in world frame so no transforms are needed between links.
func (w *articulation) massMatrix() {
	for i := 0; i < w.dofs; i++ {
		for j := i; j < w.dofs; j++ {
			w.h.SetSym(i, j, 0)
		}
	}
	for k := 0; k < w.n; k++ {
		i := w.coordIndex[k]
		if i < 0 {
			continue
		}
		fk := w.composite[k].mul(w.s[k])
		w.h.SetSym(i, i, w.s[k].dot(fk))
		for p := w.parent[k]; p >= 0; p = w.parent[p] {
			if ip := w.coordIndex[p]; ip >= 0 {
				w.h.SetSym(i, ip, w.s[p].dot(fk))
			}
		}
	}
}

// drives adds target and limit springs. Their stiffness and damping are
// also folded into the diagonal so the drive is integrated implicitly.
func (w *articulation) drives(m *scene.Model, q, qd []float64, dt float64) {
	for k := 0; k < w.n; k++ {
		i := w.coordIndex[k]
		if i < 0 {
			continue
		}
		j := w.joint(m, k)
		qv, qdv := q[j.QIndex], qd[j.QIndex]

		ke, kd := j.TargetKe, j.TargetKd
		tau := j.TargetKe*(j.Target-qv) - j.TargetKd*qdv
		switch {
		case qv < j.LimitLower:
			tau += j.LimitKe*(j.LimitLower-qv) - j.LimitKd*qdv
			ke, kd = ke+j.LimitKe, kd+j.LimitKd
		case qv > j.LimitUpper:
			tau += j.LimitKe*(j.LimitUpper-qv) - j.LimitKd*qdv
			ke, kd = ke+j.LimitKe, kd+j.LimitKd
		}

		w.rhs.SetVec(i, w.rhs.AtVec(i)+tau-ke*dt*qdv)
		w.h.SetSym(i, i, w.h.At(i, i)+dt*kd+dt*dt*ke)
	}
}
