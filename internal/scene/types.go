package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// World is the body index of the static environment.
const World = -1

const (
	DefaultParticleRadius = 0.1
	DefaultGravity        = -9.80665
)

type Particle struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	// Mass of zero marks a kinematic anchor.
	Mass   float64
	Radius float64
}

type Spring struct {
	I, J int
	Ke   float64
	Kd   float64
	// Rest is the endpoint distance when the spring was added.
	Rest float64
	// Control is the actuation channel; 0 is a passive spring.
	Control float64
}

type Triangle struct {
	I, J, K  int
	Ke       float64 // edge stretch stiffness
	Ka       float64 // area stiffness
	Kd       float64
	RestArea float64
	// RestEdges holds |J-I|, |K-J|, |I-K| at build time.
	RestEdges [3]float64
}

type Body struct {
	Origin Transform
	Mass   float64
	// Com is the centre of mass in the body frame.
	Com mgl64.Vec3
	// Inertia is taken about Com, in the body frame.
	Inertia  mgl64.Mat3
	Armature float64

	inertiaOrigin mgl64.Mat3
	moment        mgl64.Vec3
}

// InvMass returns 0 for massless bodies.
func (b Body) InvMass() float64 {
	if b.Mass == 0 {
		return 0
	}
	return 1 / b.Mass
}

type JointType int

const (
	JointRevolute JointType = iota
	JointPrismatic
	JointFixed
)

func (t JointType) String() string {
	switch t {
	case JointRevolute:
		return "revolute"
	case JointPrismatic:
		return "prismatic"
	case JointFixed:
		return "fixed"
	}
	return "unknown"
}

// DoF returns the number of generalized coordinates the joint contributes.
func (t JointType) DoF() int {
	if t == JointFixed {
		return 0
	}
	return 1
}

// JointLimit bounds a joint coordinate. A nil limit means unlimited.
type JointLimit struct {
	Lower, Upper float64
}

// JointParams describes a single-axis joint between Parent (or World) and Child.
type JointParams struct {
	Parent, Child int
	Axis          mgl64.Vec3
	ParentXform   Transform
	ChildXform    Transform

	Target   float64
	TargetKe float64
	TargetKd float64

	Limit   *JointLimit
	LimitKe float64
	LimitKd float64
}

type Joint struct {
	Type         JointType
	Parent       int
	Child        int
	Axis         mgl64.Vec3
	ParentXform  Transform
	ChildXform   Transform
	Target       float64
	TargetKe     float64
	TargetKd     float64
	LimitLower   float64
	LimitUpper   float64
	LimitKe      float64
	LimitKd      float64
	Articulation int
	// QIndex is the offset of this joint's coordinate in the joint state
	// vectors, or -1 for joints without a degree of freedom.
	QIndex int
}

func newJoint(typ JointType, p JointParams) Joint {
	j := Joint{
		Type:        typ,
		Parent:      p.Parent,
		Child:       p.Child,
		Axis:        p.Axis,
		ParentXform: p.ParentXform,
		ChildXform:  p.ChildXform,
		Target:      p.Target,
		TargetKe:    p.TargetKe,
		TargetKd:    p.TargetKd,
		LimitLower:  math.Inf(-1),
		LimitUpper:  math.Inf(1),
		LimitKe:     p.LimitKe,
		LimitKd:     p.LimitKd,
		QIndex:      -1,
	}
	if p.Limit != nil {
		j.LimitLower, j.LimitUpper = p.Limit.Lower, p.Limit.Upper
	}
	if j.Axis.Len() > 0 {
		j.Axis = j.Axis.Normalize()
	}
	return j
}

type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeMesh
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeMesh:
		return "mesh"
	}
	return "unknown"
}

// Material holds contact and mass coefficients of a shape.
type Material struct {
	Density float64
	Ke      float64 // contact stiffness
	Kd      float64 // contact damping
	Kf      float64 // friction stiffness
	Mu      float64 // friction coefficient
}

type Shape struct {
	Kind     ShapeKind
	Body     int
	Xform    Transform
	Half     mgl64.Vec3 // box half extents
	Radius   float64    // sphere radius
	Mesh     *Mesh
	Scale    mgl64.Vec3
	Material Material
}

// ContactParams are the soft-contact coefficients used for particle contacts
// against the ground and static shapes.
type ContactParams struct {
	Ke, Kd, Kf, Mu float64
	// Margin is added to every particle radius.
	Margin float64
}

func DefaultContactParams() ContactParams {
	return ContactParams{Ke: 1.0e3, Kd: 10.0, Kf: 1.0e3, Mu: 0.5}
}
