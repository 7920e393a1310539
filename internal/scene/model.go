package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
)

// Twist is a body velocity: angular velocity and the linear velocity of the
// centre of mass, both in world frame.
type Twist struct {
	W mgl64.Vec3
	V mgl64.Vec3
}

// Articulation is a contiguous, topologically ordered run of joints.
type Articulation struct {
	JointStart, JointEnd int
}

// Model is the immutable description produced by Builder.Finalize. Fields
// are exported for integrators and must be treated as read-only.
type Model struct {
	Device device.Device

	Gravity mgl64.Vec3
	Ground  bool
	Contact ContactParams

	ParticleQ0      []mgl64.Vec3
	ParticleQd0     []mgl64.Vec3
	ParticleMass    []float64
	ParticleInvMass []float64
	ParticleRadius  []float64

	Springs   []Spring
	Triangles []Triangle

	// CSR adjacency: the springs touching particle p are
	// ParticleSprings[ParticleSpringStart[p]:ParticleSpringStart[p+1]].
	ParticleSpringStart []int
	ParticleSprings     []int
	ParticleTriStart    []int
	ParticleTris        []int

	Bodies        []Body
	BodyQ0        []Transform
	BodyQd0       []Twist
	Joints        []Joint
	Articulations []Articulation
	// BodyJoint maps a body to the joint that attaches it, or -1.
	BodyJoint []int
	// FreeBodies lists bodies without a joint.
	FreeBodies []int

	JointCoordCount int
	JointQ0         []float64
	JointQd0        []float64

	Shapes       []Shape
	StaticShapes []int
}

func (m *Model) ParticleCount() int { return len(m.ParticleQ0) }
func (m *Model) BodyCount() int     { return len(m.Bodies) }
func (m *Model) JointCount() int    { return len(m.Joints) }

// HasJoints reports whether any body is attached by a joint.
func (m *Model) HasJoints() bool { return len(m.Joints) > 0 }

// Finalize freezes the builder into a Model bound to dev. It may be called
// once; later mutations fail with a usage error.
func (b *Builder) Finalize(dev device.Device) (*Model, error) {
	const op = "finalize"
	if b.finalized {
		return nil, dynamo.Usagef(op, "builder already finalized")
	}
	if dev == nil {
		return nil, dynamo.Configf(op, "device", "no device")
	}

	m := &Model{
		Device:    dev,
		Gravity:   b.gravity,
		Ground:    b.ground,
		Contact:   b.contact,
		Springs:   append([]Spring(nil), b.springs...),
		Triangles: append([]Triangle(nil), b.triangles...),
		Bodies:    append([]Body(nil), b.bodies...),
		Joints:    append([]Joint(nil), b.joints...),
		Shapes:    append([]Shape(nil), b.shapes...),
		BodyJoint: append([]int(nil), b.bodyJoint...),
	}

	n := len(b.particles)
	m.ParticleQ0 = make([]mgl64.Vec3, n)
	m.ParticleQd0 = make([]mgl64.Vec3, n)
	m.ParticleMass = make([]float64, n)
	m.ParticleInvMass = make([]float64, n)
	m.ParticleRadius = make([]float64, n)
	for i, p := range b.particles {
		m.ParticleQ0[i] = p.Position
		m.ParticleQd0[i] = p.Velocity
		m.ParticleMass[i] = p.Mass
		m.ParticleRadius[i] = p.Radius
		if p.Mass > 0 {
			m.ParticleInvMass[i] = 1 / p.Mass
		}
	}

	m.ParticleSpringStart, m.ParticleSprings = buildAdjacency(n, len(m.Springs), func(e int) []int {
		s := m.Springs[e]
		return []int{s.I, s.J}
	})
	m.ParticleTriStart, m.ParticleTris = buildAdjacency(n, len(m.Triangles), func(e int) []int {
		t := m.Triangles[e]
		return []int{t.I, t.J, t.K}
	})

	if err := b.finalizeJoints(m); err != nil {
		return nil, err
	}

	m.BodyQ0 = make([]Transform, len(m.Bodies))
	m.BodyQd0 = make([]Twist, len(m.Bodies))
	for i, body := range m.Bodies {
		m.BodyQ0[i] = body.Origin
		if m.BodyJoint[i] < 0 {
			m.FreeBodies = append(m.FreeBodies, i)
		}
	}
	for i, s := range m.Shapes {
		if s.Body == World {
			m.StaticShapes = append(m.StaticShapes, i)
		}
	}

	b.finalized = true
	return m, nil
}

// finalizeJoints checks that every articulation is topologically ordered and
// assigns coordinate offsets.
func (b *Builder) finalizeJoints(m *Model) error {
	const op = "finalize"
	for a, start := range b.articulations {
		end := len(b.joints)
		if a+1 < len(b.articulations) {
			end = b.articulations[a+1]
		}
		if start == end {
			continue
		}
		m.Articulations = append(m.Articulations, Articulation{JointStart: start, JointEnd: end})
	}

	q := 0
	for ji := range m.Joints {
		j := &m.Joints[ji]
		if j.Parent != World {
			pj := m.BodyJoint[j.Parent]
			if pj < 0 {
				return dynamo.Configf(op, "joints", "joint %d: parent body %d has no joint of its own", ji, j.Parent)
			}
			if pj > ji || m.Joints[pj].Articulation != j.Articulation {
				return dynamo.Configf(op, "joints", "joint %d: parent joint %d must precede it in the same articulation", ji, pj)
			}
		}
		if j.Type.DoF() > 0 {
			j.QIndex = q
			q += j.Type.DoF()
		}
	}
	m.JointCoordCount = q
	m.JointQ0 = make([]float64, q)
	m.JointQd0 = make([]float64, q)
	return nil
}

func buildAdjacency(n, elems int, nodes func(e int) []int) (start, list []int) {
	start = make([]int, n+1)
	for e := 0; e < elems; e++ {
		for _, p := range nodes(e) {
			start[p+1]++
		}
	}
	for p := 0; p < n; p++ {
		start[p+1] += start[p]
	}
	list = make([]int, start[n])
	fill := append([]int(nil), start[:n]...)
	for e := 0; e < elems; e++ {
		for _, p := range nodes(e) {
			list[fill[p]] = e
			fill[p]++
		}
	}
	return start, list
}
