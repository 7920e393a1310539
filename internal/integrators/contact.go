package integrators

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/scene"
)

var up = mgl64.Vec3{0, 1, 0}

// contactCoeffs blends the model's soft-contact settings with a shape
// material. A zero material coefficient falls back to the model's.
func contactCoeffs(c scene.ContactParams, mat scene.Material) scene.ContactParams {
	blend := func(a, b float64) float64 {
		if b == 0 {
			return a
		}
		return 0.5 * (a + b)
	}
	return scene.ContactParams{
		Ke:     blend(c.Ke, mat.Ke),
		Kd:     blend(c.Kd, mat.Kd),
		Kf:     blend(c.Kf, mat.Kf),
		Mu:     blend(c.Mu, mat.Mu),
		Margin: c.Margin,
	}
}

// penaltyForce is the soft contact response for a particle penetrating a
// surface by depth along n.
func penaltyForce(c scene.ContactParams, depth float64, n, v mgl64.Vec3) mgl64.Vec3 {
	vn := v.Dot(n)
	fn := c.Ke*depth + c.Kd*math.Max(-vn, 0)
	f := n.Mul(fn)

	vt := v.Sub(n.Mul(vn))
	if speed := vt.Len(); speed > 1e-12 {
		ft := math.Min(c.Kf*speed, c.Mu*fn)
		f = f.Sub(vt.Mul(ft / speed))
	}
	return f
}

// shapeDistance returns the signed distance from world point p to a static
// shape and the outward surface normal at the closest point.
func shapeDistance(s *scene.Shape, p mgl64.Vec3) (float64, mgl64.Vec3) {
	inv := s.Xform.Inverse()
	local := inv.Point(p)

	var d float64
	var n mgl64.Vec3
	switch s.Kind {
	case scene.ShapeSphere:
		d, n = sphereDistance(s.Radius, local)
	case scene.ShapeBox:
		d, n = boxDistance(s.Half, local)
	case scene.ShapeMesh:
		d, n = meshDistance(s.Mesh, s.Scale, local)
	default:
		return math.Inf(1), up
	}
	return d, s.Xform.Vector(n)
}

func sphereDistance(r float64, p mgl64.Vec3) (float64, mgl64.Vec3) {
	l := p.Len()
	if l < 1e-12 {
		return -r, up
	}
	return l - r, p.Mul(1 / l)
}

func boxDistance(half, p mgl64.Vec3) (float64, mgl64.Vec3) {
	var q mgl64.Vec3
	for k := 0; k < 3; k++ {
		q[k] = math.Abs(p[k]) - half[k]
	}

	if q[0] > 0 || q[1] > 0 || q[2] > 0 {
		var out mgl64.Vec3
		for k := 0; k < 3; k++ {
			out[k] = math.Max(q[k], 0) * sign(p[k])
		}
		l := out.Len()
		return l, out.Mul(1 / l)
	}

	// inside: push out through the nearest face
	axis := 0
	for k := 1; k < 3; k++ {
		if q[k] > q[axis] {
			axis = k
		}
	}
	var n mgl64.Vec3
	n[axis] = sign(p[axis])
	return q[axis], n
}

func meshDistance(m *scene.Mesh, scale mgl64.Vec3, p mgl64.Vec3) (float64, mgl64.Vec3) {
	best := math.Inf(1)
	var bestN mgl64.Vec3
	bestSign := 1.0

	for f := 0; f < m.NumTriangles(); f++ {
		a, b, c := m.Triangle(f)
		a, b, c = mul(a, scale), mul(b, scale), mul(c, scale)
		cp := closestPointTriangle(p, a, b, c)
		diff := p.Sub(cp)
		dist := diff.Len()
		if dist >= best {
			continue
		}
		best = dist
		face := b.Sub(a).Cross(c.Sub(a))
		if fl := face.Len(); fl > 0 {
			face = face.Mul(1 / fl)
		}
		bestSign = 1
		if diff.Dot(face) < 0 {
			bestSign = -1
		}
		if dist > 1e-12 {
			bestN = diff.Mul(bestSign / dist)
		} else {
			bestN = face
		}
	}
	return bestSign * best, bestN
}

func closestPointTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	denom := 1 / (va + vb + vc)
	return a.Add(ab.Mul(vb * denom)).Add(ac.Mul(vc * denom))
}

func mul(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
