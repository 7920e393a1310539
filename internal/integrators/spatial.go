package integrators

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/scene"
)

// spatialVec is a 6D motion (angular, linear) or force (torque, force)
// vector, expressed in world frame about the world origin.
type spatialVec struct {
	w, v mgl64.Vec3
}

func (a spatialVec) add(b spatialVec) spatialVec {
	return spatialVec{a.w.Add(b.w), a.v.Add(b.v)}
}

func (a spatialVec) scale(s float64) spatialVec {
	return spatialVec{a.w.Mul(s), a.v.Mul(s)}
}

// dot pairs a motion vector with a force vector.
func (a spatialVec) dot(f spatialVec) float64 {
	return a.w.Dot(f.w) + a.v.Dot(f.v)
}

// crossMotion is the motion cross product a x m.
func (a spatialVec) crossMotion(m spatialVec) spatialVec {
	return spatialVec{a.w.Cross(m.w), a.w.Cross(m.v).Add(a.v.Cross(m.w))}
}

// crossForce is the force cross product a x* f.
func (a spatialVec) crossForce(f spatialVec) spatialVec {
	return spatialVec{a.w.Cross(f.w).Add(a.v.Cross(f.v)), a.w.Cross(f.v)}
}

// spatialInertia maps motion (w, v) to momentum (a*w + b*v, c*w + d*v).
type spatialInertia struct {
	a, b, c, d mgl64.Mat3
}

// rigidInertia builds the spatial inertia about the world origin of a body
// with mass m, world centre of mass com and world inertia ic about com.
func rigidInertia(m float64, com mgl64.Vec3, ic mgl64.Mat3) spatialInertia {
	cx := skew(com)
	return spatialInertia{
		a: ic.Sub(cx.Mul3(cx).Mul(m)),
		b: cx.Mul(m),
		c: cx.Mul(-m),
		d: mgl64.Ident3().Mul(m),
	}
}

func (in spatialInertia) mul(m spatialVec) spatialVec {
	return spatialVec{
		in.a.Mul3x1(m.w).Add(in.b.Mul3x1(m.v)),
		in.c.Mul3x1(m.w).Add(in.d.Mul3x1(m.v)),
	}
}

func (in spatialInertia) add(o spatialInertia) spatialInertia {
	return spatialInertia{in.a.Add(o.a), in.b.Add(o.b), in.c.Add(o.c), in.d.Add(o.d)}
}

func skew(v mgl64.Vec3) mgl64.Mat3 {
	// column-major
	return mgl64.Mat3{0, v[2], -v[1], -v[2], 0, v[0], v[1], -v[0], 0}
}

// toTwist converts an origin-referenced body velocity into angular velocity
// and centre-of-mass velocity.
func toTwist(v spatialVec, com mgl64.Vec3) scene.Twist {
	return scene.Twist{W: v.w, V: v.v.Add(v.w.Cross(com))}
}

// wrenchAtOrigin moves a (torque about com, force) pair to the world origin.
func wrenchAtOrigin(f scene.Twist, com mgl64.Vec3) spatialVec {
	return spatialVec{f.W.Add(com.Cross(f.V)), f.V}
}
