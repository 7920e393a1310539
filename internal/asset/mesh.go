package asset

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/scene"
	"gopkg.in/yaml.v3"
)

// File is the on-disk mesh layout.
type File struct {
	Name    string       `yaml:"name,omitempty"`
	Points  [][3]float64 `yaml:"points"`
	Indices []int        `yaml:"indices"`
}

type generator func(subdivisions int) *scene.Mesh

var builtins = map[string]generator{
	"icosphere": Icosphere,
	"box":       func(int) *scene.Mesh { return Box(mgl64.Vec3{0.5, 0.5, 0.5}) },
	"bunny":     Bunny,
}

// Builtins lists the procedural mesh names accepted by Resolve.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns a built-in mesh by name or loads a mesh file from path.
func Resolve(nameOrPath string, subdivisions int) (*scene.Mesh, error) {
	if gen, ok := builtins[nameOrPath]; ok {
		return gen(subdivisions), nil
	}
	return Load(nameOrPath)
}

func Load(path string) (*scene.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load mesh: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*scene.Mesh, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, dynamo.Configf("asset.Parse", "mesh", "%v", err)
	}
	if len(f.Points) == 0 {
		return nil, dynamo.Configf("asset.Parse", "points", "mesh has no points")
	}
	pts := make([]mgl64.Vec3, len(f.Points))
	for i, p := range f.Points {
		pts[i] = mgl64.Vec3(p)
	}
	return scene.NewMesh(pts, f.Indices)
}

func Save(path string, m *scene.Mesh) error {
	f := File{Indices: m.Indices, Points: make([][3]float64, len(m.Points))}
	for i, p := range m.Points {
		f.Points[i] = [3]float64(p)
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Box is an axis-aligned box centred at the origin with outward winding.
func Box(half mgl64.Vec3) *scene.Mesh {
	pts := make([]mgl64.Vec3, 0, 8)
	for i := 0; i < 8; i++ {
		pts = append(pts, mgl64.Vec3{
			half[0] * float64(2*(i&1)-1),
			half[1] * float64(2*(i>>1&1)-1),
			half[2] * float64(2*(i>>2&1)-1),
		})
	}
	idx := []int{
		0, 2, 1, 1, 2, 3, // -z
		4, 5, 6, 5, 7, 6, // +z
		0, 1, 4, 1, 5, 4, // -y
		2, 6, 3, 3, 6, 7, // +y
		0, 4, 2, 2, 4, 6, // -x
		1, 3, 5, 3, 7, 5, // +x
	}
	m, _ := scene.NewMesh(pts, idx)
	return m
}

// Icosphere is a unit sphere built by subdividing an icosahedron.
func Icosphere(subdivisions int) *scene.Mesh {
	t := (1 + math.Sqrt(5)) / 2
	pts := []mgl64.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range pts {
		pts[i] = pts[i].Normalize()
	}
	idx := []int{
		0, 11, 5, 0, 5, 1, 0, 1, 7, 0, 7, 10, 0, 10, 11,
		1, 5, 9, 5, 11, 4, 11, 10, 2, 10, 7, 6, 7, 1, 8,
		3, 9, 4, 3, 4, 2, 3, 2, 6, 3, 6, 8, 3, 8, 9,
		4, 9, 5, 2, 4, 11, 6, 2, 10, 8, 6, 7, 9, 8, 1,
	}

	for s := 0; s < subdivisions; s++ {
		mid := map[[2]int]int{}
		midpoint := func(a, b int) int {
			key := [2]int{min(a, b), max(a, b)}
			if i, ok := mid[key]; ok {
				return i
			}
			pts = append(pts, pts[a].Add(pts[b]).Normalize())
			mid[key] = len(pts) - 1
			return len(pts) - 1
		}
		next := make([]int, 0, len(idx)*4)
		for f := 0; f < len(idx); f += 3 {
			a, b, c := idx[f], idx[f+1], idx[f+2]
			ab, bc, ca := midpoint(a, b), midpoint(b, c), midpoint(c, a)
			next = append(next, a, ab, ca, b, bc, ab, c, ca, bc, ab, bc, ca)
		}
		idx = next
	}

	m, _ := scene.NewMesh(pts, idx)
	return m
}

// Bunny is a procedural stand-in for the reference bunny collider: a
// flattened body sphere with a head sphere, resting on y=0 and about one
// unit long before scaling.
func Bunny(subdivisions int) *scene.Mesh {
	if subdivisions <= 0 {
		subdivisions = 2
	}
	body := Icosphere(subdivisions)
	head := Icosphere(subdivisions - 1)

	pts := make([]mgl64.Vec3, 0, len(body.Points)+len(head.Points))
	for _, p := range body.Points {
		pts = append(pts, mgl64.Vec3{p[0] * 0.5, p[1]*0.35 + 0.35, p[2] * 0.35})
	}
	for _, p := range head.Points {
		pts = append(pts, mgl64.Vec3{p[0]*0.2 + 0.4, p[1]*0.2 + 0.7, p[2] * 0.2})
	}
	idx := append([]int(nil), body.Indices...)
	off := len(body.Points)
	for _, i := range head.Indices {
		idx = append(idx, i+off)
	}

	m, _ := scene.NewMesh(pts, idx)
	return m
}
