package viz

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// Camera orbits a target. Yaw turns about world y, Pitch tilts toward the
// viewer.
type Camera struct {
	Target     mgl64.Vec3
	Radius     float64
	Yaw, Pitch float64
	Zoom       float64
	// Distance of the eye from the target in units of Radius.
	Distance float64
}

func NewCamera() *Camera {
	return &Camera{Radius: 1, Pitch: 0.3, Zoom: 1, Distance: 4}
}

func (c *Camera) RotateYaw(a float64) { c.Yaw += a }
func (c *Camera) RotatePitch(a float64) {
	c.Pitch = math.Max(-math.Pi/2, math.Min(math.Pi/2, c.Pitch+a))
}
func (c *Camera) ZoomIn()  { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// Fit centres the camera on a bounding box.
func (c *Camera) Fit(lo, hi mgl64.Vec3) {
	c.Target = lo.Add(hi).Mul(0.5)
	c.Radius = math.Max(hi.Sub(lo).Len()/2, 0.5)
}

func (c *Camera) view(p mgl64.Vec3) mgl64.Vec3 {
	q := p.Sub(c.Target)
	rot := mgl64.QuatRotate(c.Pitch, mgl64.Vec3{1, 0, 0}).Mul(mgl64.QuatRotate(-c.Yaw, mgl64.Vec3{0, 1, 0}))
	return rot.Rotate(q)
}

// Project maps p to dot coordinates on a sw x sh canvas. Depth grows away
// from the viewer.
func (c *Camera) Project(p mgl64.Vec3, sw, sh int) (int, int, float64, bool) {
	v := c.view(p)
	eye := c.Distance * c.Radius
	depth := eye - v[2]
	if depth <= 1e-3*c.Radius {
		return 0, 0, 0, false
	}
	scale := c.Zoom * float64(min(sw, sh)) / (2.2 * c.Radius) * eye / depth
	sx := int(math.Round(v[0]*scale)) + sw/2
	sy := int(math.Round(-v[1]*scale)) + sh/2
	return sx, sy, depth, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End mgl64.Vec3
}

type Wireframe struct{ Edges []Edge }

func (w *Wireframe) AddEdge(a, b mgl64.Vec3) { w.Edges = append(w.Edges, Edge{a, b}) }
func (w *Wireframe) AddPoint(p mgl64.Vec3)   { w.Edges = append(w.Edges, Edge{p, p}) }
func (w *Wireframe) Clear()                  { w.Edges = w.Edges[:0] }

type projectedEdge struct {
	x1, y1, x2, y2 int
	depth          float64
}

// Render3D draws the wireframe to the canvas back to front.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	cw, ch := c.Pixels()
	proj := make([]projectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, cw, ch)
		x2, y2, d2, v2 := cam.Project(e.End, cw, ch)
		if (v1 || v2) && d1 > 0 && d2 > 0 {
			proj = append(proj, projectedEdge{x1, y1, x2, y2, (d1 + d2) / 2})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth > proj[j].depth })
	for _, e := range proj {
		if e.x1 == e.x2 && e.y1 == e.y2 {
			c.Set(e.x1, e.y1)
		} else {
			c.DrawLine(e.x1, e.y1, e.x2, e.y2)
		}
	}
}

var boxEdges = [12][2]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {0, 2}, {1, 3}, {4, 6}, {5, 7}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}

func addBox(w *Wireframe, xf scene.Transform, half mgl64.Vec3) {
	var v [8]mgl64.Vec3
	for i := range v {
		v[i] = xf.Point(mgl64.Vec3{
			half[0] * float64(2*(i&1)-1),
			half[1] * float64(2*(i>>1&1)-1),
			half[2] * float64(2*(i>>2&1)-1),
		})
	}
	for _, e := range boxEdges {
		w.AddEdge(v[e[0]], v[e[1]])
	}
}

// StaticWireframe holds the parts of a model that never move: static
// collider meshes and the ground grid.
func StaticWireframe(m *scene.Model) *Wireframe {
	w := &Wireframe{}
	for _, si := range m.StaticShapes {
		sh := m.Shapes[si]
		switch sh.Kind {
		case scene.ShapeBox:
			addBox(w, sh.Xform, sh.Half)
		case scene.ShapeSphere:
			for k := 0; k < 3; k++ {
				addCircle(w, sh.Xform.Position, sh.Radius, k)
			}
		case scene.ShapeMesh:
			seen := map[[2]int]bool{}
			idx := sh.Mesh.Indices
			for f := 0; f+2 < len(idx); f += 3 {
				for e := 0; e < 3; e++ {
					a, b := idx[f+e], idx[f+(e+1)%3]
					key := [2]int{min(a, b), max(a, b)}
					if seen[key] {
						continue
					}
					seen[key] = true
					pa := sh.Xform.Point(mul(sh.Mesh.Points[a], sh.Scale))
					pb := sh.Xform.Point(mul(sh.Mesh.Points[b], sh.Scale))
					w.AddEdge(pa, pb)
				}
			}
		}
	}
	if m.Ground {
		const n, step = 8, 1.0
		for i := -n; i <= n; i++ {
			f := float64(i) * step
			w.AddEdge(mgl64.Vec3{f, 0, -n * step}, mgl64.Vec3{f, 0, n * step})
			w.AddEdge(mgl64.Vec3{-n * step, 0, f}, mgl64.Vec3{n * step, 0, f})
		}
	}
	return w
}

func addCircle(w *Wireframe, c mgl64.Vec3, r float64, axis int) {
	const segs = 16
	point := func(i int) mgl64.Vec3 {
		a := 2 * math.Pi * float64(i) / segs
		var p mgl64.Vec3
		p[(axis+1)%3] = r * math.Cos(a)
		p[(axis+2)%3] = r * math.Sin(a)
		return c.Add(p)
	}
	for i := 0; i < segs; i++ {
		w.AddEdge(point(i), point(i+1))
	}
}

func mul(a, b mgl64.Vec3) mgl64.Vec3 { return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }

// DynamicWireframe appends the moving parts of s: springs, triangle edges,
// lone particles and the shapes attached to bodies.
func DynamicWireframe(w *Wireframe, m *scene.Model, s *sim.State) {
	for _, sp := range m.Springs {
		w.AddEdge(s.ParticleQ[sp.I], s.ParticleQ[sp.J])
	}
	for _, tri := range m.Triangles {
		a, b, c := s.ParticleQ[tri.I], s.ParticleQ[tri.J], s.ParticleQ[tri.K]
		w.AddEdge(a, b)
		w.AddEdge(b, c)
		w.AddEdge(c, a)
	}
	for p, x := range s.ParticleQ {
		if m.ParticleSpringStart[p] == m.ParticleSpringStart[p+1] && m.ParticleTriStart[p] == m.ParticleTriStart[p+1] {
			w.AddPoint(x)
		}
	}
	for _, sh := range m.Shapes {
		if sh.Body == scene.World || sh.Body >= len(s.BodyQ) {
			continue
		}
		xf := s.BodyQ[sh.Body].Mul(sh.Xform)
		switch sh.Kind {
		case scene.ShapeBox:
			addBox(w, xf, sh.Half)
		case scene.ShapeSphere:
			addCircle(w, xf.Position, sh.Radius, 2)
		default:
			w.AddPoint(xf.Position)
		}
	}
}
