package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/dynamo"
)

// Builder accumulates entities for a Model. It is not safe for concurrent use.
type Builder struct {
	particles     []Particle
	springs       []Spring
	triangles     []Triangle
	bodies        []Body
	joints        []Joint
	shapes        []Shape
	articulations []int
	bodyJoint     []int

	gravity   mgl64.Vec3
	ground    bool
	contact   ContactParams
	finalized bool
}

func NewBuilder() *Builder {
	return &Builder{
		gravity: mgl64.Vec3{0, DefaultGravity, 0},
		contact: DefaultContactParams(),
	}
}

// ParticleOption customizes AddParticle.
type ParticleOption func(p *Particle)

func WithRadius(r float64) ParticleOption {
	return func(p *Particle) { p.Radius = r }
}

func (b *Builder) ParticleCount() int { return len(b.particles) }
func (b *Builder) SpringCount() int   { return len(b.springs) }
func (b *Builder) BodyCount() int     { return len(b.bodies) }
func (b *Builder) JointCount() int    { return len(b.joints) }
func (b *Builder) ShapeCount() int    { return len(b.shapes) }
func (b *Builder) Finalized() bool    { return b.finalized }

func (b *Builder) mutable(op string) error {
	if b.finalized {
		return dynamo.Usagef(op, "builder already finalized")
	}
	return nil
}

func (b *Builder) checkParticle(op, field string, i int) error {
	if i < 0 || i >= len(b.particles) {
		return dynamo.Configf(op, field, "particle index %d out of range [0,%d)", i, len(b.particles))
	}
	return nil
}

func (b *Builder) checkBody(op, field string, i int, allowWorld bool) error {
	if allowWorld && i == World {
		return nil
	}
	if i < 0 || i >= len(b.bodies) {
		return dynamo.Configf(op, field, "body index %d out of range [0,%d)", i, len(b.bodies))
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AddParticle adds a particle and returns its index. A mass of zero makes
// the particle a kinematic anchor.
func (b *Builder) AddParticle(pos, vel mgl64.Vec3, mass float64, opts ...ParticleOption) (int, error) {
	const op = "add_particle"
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	if mass < 0 || !finite(mass) {
		return -1, dynamo.Configf(op, "mass", "must be a finite non-negative value, got %v", mass)
	}
	if !finite(pos[0], pos[1], pos[2], vel[0], vel[1], vel[2]) {
		return -1, dynamo.Configf(op, "position", "non-finite position or velocity")
	}

	p := Particle{Position: pos, Velocity: vel, Mass: mass, Radius: DefaultParticleRadius}
	for _, opt := range opts {
		opt(&p)
	}
	if p.Radius < 0 {
		return -1, dynamo.Configf(op, "radius", "must be non-negative, got %v", p.Radius)
	}

	b.particles = append(b.particles, p)
	return len(b.particles) - 1, nil
}

// AddSpring connects particles i and j. The rest length is their current
// distance.
func (b *Builder) AddSpring(i, j int, ke, kd, control float64) (int, error) {
	const op = "add_spring"
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	if err := b.checkParticle(op, "i", i); err != nil {
		return -1, err
	}
	if err := b.checkParticle(op, "j", j); err != nil {
		return -1, err
	}

	rest := b.particles[i].Position.Sub(b.particles[j].Position).Len()
	b.springs = append(b.springs, Spring{I: i, J: j, Ke: ke, Kd: kd, Rest: rest, Control: control})
	return len(b.springs) - 1, nil
}

// AddTriangle adds an elastic triangle over three particles.
func (b *Builder) AddTriangle(i, j, k int, ke, ka, kd float64) (int, error) {
	const op = "add_triangle"
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	for _, idx := range []struct {
		field string
		v     int
	}{{"i", i}, {"j", j}, {"k", k}} {
		if err := b.checkParticle(op, idx.field, idx.v); err != nil {
			return -1, err
		}
	}

	pi, pj, pk := b.particles[i].Position, b.particles[j].Position, b.particles[k].Position
	tri := Triangle{
		I: i, J: j, K: k,
		Ke: ke, Ka: ka, Kd: kd,
		RestArea:  0.5 * pj.Sub(pi).Cross(pk.Sub(pi)).Len(),
		RestEdges: [3]float64{pj.Sub(pi).Len(), pk.Sub(pj).Len(), pi.Sub(pk).Len()},
	}
	b.triangles = append(b.triangles, tri)
	return len(b.triangles) - 1, nil
}

// AddBody adds a rigid body with no mass; shapes attached to it add mass
// from their density.
func (b *Builder) AddBody(origin Transform, armature float64) (int, error) {
	const op = "add_body"
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	if armature < 0 {
		return -1, dynamo.Configf(op, "armature", "must be non-negative, got %v", armature)
	}
	if origin.Rotation.Len() == 0 {
		origin.Rotation = mgl64.QuatIdent()
	}

	b.bodies = append(b.bodies, Body{Origin: origin, Armature: armature})
	b.bodyJoint = append(b.bodyJoint, -1)
	return len(b.bodies) - 1, nil
}

// AddArticulation starts a new articulation. Joints added afterwards belong
// to it.
func (b *Builder) AddArticulation() (int, error) {
	if err := b.mutable("add_articulation"); err != nil {
		return -1, err
	}
	b.articulations = append(b.articulations, len(b.joints))
	return len(b.articulations) - 1, nil
}

func (b *Builder) addJoint(op string, typ JointType, p JointParams) (int, error) {
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	if err := b.checkBody(op, "child", p.Child, false); err != nil {
		return -1, err
	}
	if err := b.checkBody(op, "parent", p.Parent, true); err != nil {
		return -1, err
	}
	if p.Parent == p.Child {
		return -1, dynamo.Configf(op, "parent", "body %d cannot be its own parent", p.Child)
	}
	if existing := b.bodyJoint[p.Child]; existing >= 0 {
		return -1, dynamo.Configf(op, "child", "body %d already attached by joint %d", p.Child, existing)
	}
	if typ.DoF() > 0 && p.Axis.Len() == 0 {
		return -1, dynamo.Configf(op, "axis", "zero-length axis")
	}
	if p.Limit != nil && p.Limit.Lower > p.Limit.Upper {
		return -1, dynamo.Configf(op, "limit", "lower %v exceeds upper %v", p.Limit.Lower, p.Limit.Upper)
	}
	if p.ParentXform.Rotation.Len() == 0 {
		p.ParentXform.Rotation = mgl64.QuatIdent()
	}
	if p.ChildXform.Rotation.Len() == 0 {
		p.ChildXform.Rotation = mgl64.QuatIdent()
	}

	if len(b.articulations) == 0 {
		b.articulations = append(b.articulations, len(b.joints))
	}

	j := newJoint(typ, p)
	j.Articulation = len(b.articulations) - 1
	b.joints = append(b.joints, j)
	b.bodyJoint[p.Child] = len(b.joints) - 1
	return len(b.joints) - 1, nil
}

func (b *Builder) AddJointRevolute(p JointParams) (int, error) {
	return b.addJoint("add_joint_revolute", JointRevolute, p)
}

func (b *Builder) AddJointPrismatic(p JointParams) (int, error) {
	return b.addJoint("add_joint_prismatic", JointPrismatic, p)
}

func (b *Builder) AddJointFixed(parent, child int, parentXform, childXform Transform) (int, error) {
	return b.addJoint("add_joint_fixed", JointFixed, JointParams{
		Parent:      parent,
		Child:       child,
		ParentXform: parentXform,
		ChildXform:  childXform,
	})
}

// AddShapeBox attaches a box with the given half extents to body (or World).
func (b *Builder) AddShapeBox(body int, xform Transform, half mgl64.Vec3, mat Material) (int, error) {
	const op = "add_shape_box"
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	if half[0] <= 0 || half[1] <= 0 || half[2] <= 0 {
		return -1, dynamo.Configf(op, "half", "extents must be positive, got %v", half)
	}
	mass := mat.Density * 8 * half[0] * half[1] * half[2]
	inertia := mgl64.Diag3(mgl64.Vec3{
		mass / 3 * (half[1]*half[1] + half[2]*half[2]),
		mass / 3 * (half[0]*half[0] + half[2]*half[2]),
		mass / 3 * (half[0]*half[0] + half[1]*half[1]),
	})
	return b.addShape(op, Shape{Kind: ShapeBox, Body: body, Xform: xform, Half: half, Material: mat}, mass, inertia)
}

func (b *Builder) AddShapeSphere(body int, xform Transform, radius float64, mat Material) (int, error) {
	const op = "add_shape_sphere"
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	if radius <= 0 {
		return -1, dynamo.Configf(op, "radius", "must be positive, got %v", radius)
	}
	mass := mat.Density * 4.0 / 3.0 * math.Pi * radius * radius * radius
	i := 0.4 * mass * radius * radius
	return b.addShape(op, Shape{Kind: ShapeSphere, Body: body, Xform: xform, Radius: radius, Material: mat}, mass, mgl64.Diag3(mgl64.Vec3{i, i, i}))
}

// AddShapeMesh attaches triangle geometry. Mesh shapes contribute no mass.
func (b *Builder) AddShapeMesh(body int, xform Transform, mesh *Mesh, scale mgl64.Vec3, mat Material) (int, error) {
	const op = "add_shape_mesh"
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	if mesh == nil || mesh.NumTriangles() == 0 {
		return -1, dynamo.Configf(op, "mesh", "missing or empty mesh")
	}
	if scale == (mgl64.Vec3{}) {
		scale = mgl64.Vec3{1, 1, 1}
	}
	return b.addShape(op, Shape{Kind: ShapeMesh, Body: body, Xform: xform, Mesh: mesh, Scale: scale, Material: mat}, 0, mgl64.Mat3{})
}

func (b *Builder) addShape(op string, s Shape, mass float64, inertia mgl64.Mat3) (int, error) {
	if err := b.checkBody(op, "body", s.Body, true); err != nil {
		return -1, err
	}
	if s.Xform.Rotation.Len() == 0 {
		s.Xform.Rotation = mgl64.QuatIdent()
	}

	if s.Body != World && mass > 0 {
		b.bodies[s.Body].addMass(mass, s.Xform, inertia)
	}
	b.shapes = append(b.shapes, s)
	return len(b.shapes) - 1, nil
}

// addMass accumulates a shape's mass properties about the body origin and
// refreshes the centre of mass and central inertia.
func (body *Body) addMass(m float64, xf Transform, shapeInertia mgl64.Mat3) {
	r := xf.RotationMatrix()
	rotated := r.Mul3(shapeInertia).Mul3(r.Transpose())
	body.inertiaOrigin = body.inertiaOrigin.Add(rotated).Add(parallelAxis(m, xf.Position))
	body.moment = body.moment.Add(xf.Position.Mul(m))
	body.Mass += m

	body.Com = body.moment.Mul(1 / body.Mass)
	body.Inertia = body.inertiaOrigin.Sub(parallelAxis(body.Mass, body.Com))
}

// parallelAxis returns m(|d|^2 E - d d^T).
func parallelAxis(m float64, d mgl64.Vec3) mgl64.Mat3 {
	dd := d.Dot(d)
	return mgl64.Ident3().Mul(dd).Sub(d.OuterProd3(d)).Mul(m)
}

// SetGravity overrides the default (0, -9.80665, 0).
func (b *Builder) SetGravity(g mgl64.Vec3) error {
	if err := b.mutable("set_gravity"); err != nil {
		return err
	}
	b.gravity = g
	return nil
}

// SetGround enables the y=0 ground plane for particle contacts.
func (b *Builder) SetGround(enabled bool) error {
	if err := b.mutable("set_ground"); err != nil {
		return err
	}
	b.ground = enabled
	return nil
}

func (b *Builder) SetSoftContact(c ContactParams) error {
	if err := b.mutable("set_soft_contact"); err != nil {
		return err
	}
	if c.Ke < 0 || c.Kd < 0 || c.Kf < 0 || c.Mu < 0 {
		return dynamo.Configf("set_soft_contact", "contact", "coefficients must be non-negative")
	}
	b.contact = c
	return nil
}
