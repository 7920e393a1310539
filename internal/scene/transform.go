package scene

import "github.com/go-gl/mathgl/mgl64"

// Transform is a rigid placement: rotate, then translate.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

func NewTransform(pos mgl64.Vec3, rot mgl64.Quat) Transform {
	return Transform{Position: pos, Rotation: rot}
}

// Translation is a transform with identity rotation.
func Translation(x, y, z float64) Transform {
	return Transform{Position: mgl64.Vec3{x, y, z}, Rotation: mgl64.QuatIdent()}
}

// Mul composes t and o so that t.Mul(o).Point(p) == t.Point(o.Point(p)).
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Position: t.Position.Add(t.Rotation.Rotate(o.Position)),
		Rotation: t.Rotation.Mul(o.Rotation).Normalize(),
	}
}

func (t Transform) Inverse() Transform {
	inv := t.Rotation.Conjugate()
	return Transform{
		Position: inv.Rotate(t.Position).Mul(-1),
		Rotation: inv,
	}
}

func (t Transform) Point(p mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(t.Rotation.Rotate(p))
}

func (t Transform) Vector(v mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(v)
}

// RotationMatrix returns the 3x3 rotation of t.
func (t Transform) RotationMatrix() mgl64.Mat3 {
	return t.Rotation.Mat4().Mat3()
}
