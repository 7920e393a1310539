package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/dynamo"
)

// Mesh is immutable triangle geometry supplied by an asset loader.
type Mesh struct {
	Points  []mgl64.Vec3
	Indices []int
}

// NewMesh validates that indices form whole triangles referencing points.
func NewMesh(points []mgl64.Vec3, indices []int) (*Mesh, error) {
	if len(indices)%3 != 0 {
		return nil, dynamo.Configf("scene.NewMesh", "indices", "count %d is not a multiple of 3", len(indices))
	}
	for i, idx := range indices {
		if idx < 0 || idx >= len(points) {
			return nil, dynamo.Configf("scene.NewMesh", "indices", "indices[%d]=%d out of range [0,%d)", i, idx, len(points))
		}
	}
	m := &Mesh{
		Points:  make([]mgl64.Vec3, len(points)),
		Indices: make([]int, len(indices)),
	}
	copy(m.Points, points)
	copy(m.Indices, indices)
	return m, nil
}

func (m *Mesh) NumTriangles() int { return len(m.Indices) / 3 }

// Triangle returns the vertices of face f.
func (m *Mesh) Triangle(f int) (a, b, c mgl64.Vec3) {
	return m.Points[m.Indices[3*f]], m.Points[m.Indices[3*f+1]], m.Points[m.Indices[3*f+2]]
}

// Bounds returns the axis-aligned bounding box of the mesh points.
func (m *Mesh) Bounds() (lo, hi mgl64.Vec3) {
	if len(m.Points) == 0 {
		return
	}
	lo, hi = m.Points[0], m.Points[0]
	for _, p := range m.Points[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return lo, hi
}
