package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/dynamo"
)

// ClothGrid describes a rectangular sheet of particles joined by triangles
// and, optionally, structural and shear springs.
type ClothGrid struct {
	Placement    Transform
	Velocity     mgl64.Vec3
	DimX, DimY   int
	CellX, CellY float64
	// Mass per particle.
	Mass   float64
	Radius float64

	FixLeft, FixRight, FixTop, FixBottom bool

	TriKe, TriKa, TriKd float64

	AddSprings bool
	SpringKe   float64
	SpringKd   float64
}

// AddClothGrid adds (DimX+1)*(DimY+1) particles and returns the index of the
// first one. Particle (x, y) is at first + y*(DimX+1) + x.
func (b *Builder) AddClothGrid(g ClothGrid) (int, error) {
	const op = "add_cloth_grid"
	if err := b.mutable(op); err != nil {
		return -1, err
	}
	if g.DimX <= 0 || g.DimY <= 0 {
		return -1, dynamo.Configf(op, "dim", "dimensions must be positive, got %dx%d", g.DimX, g.DimY)
	}
	if g.CellX <= 0 || g.CellY <= 0 {
		return -1, dynamo.Configf(op, "cell", "cell size must be positive")
	}
	if g.Mass < 0 {
		return -1, dynamo.Configf(op, "mass", "must be non-negative, got %v", g.Mass)
	}
	if g.Placement.Rotation.Len() == 0 {
		g.Placement.Rotation = mgl64.QuatIdent()
	}
	radius := g.Radius
	if radius == 0 {
		radius = DefaultParticleRadius
	}

	first := len(b.particles)
	idx := func(x, y int) int { return first + y*(g.DimX+1) + x }

	for y := 0; y <= g.DimY; y++ {
		for x := 0; x <= g.DimX; x++ {
			mass := g.Mass
			if (g.FixLeft && x == 0) || (g.FixRight && x == g.DimX) ||
				(g.FixBottom && y == 0) || (g.FixTop && y == g.DimY) {
				mass = 0
			}
			pos := g.Placement.Point(mgl64.Vec3{float64(x) * g.CellX, float64(y) * g.CellY, 0})
			b.particles = append(b.particles, Particle{Position: pos, Velocity: g.Velocity, Mass: mass, Radius: radius})
		}
	}

	for y := 0; y < g.DimY; y++ {
		for x := 0; x < g.DimX; x++ {
			v0, v1, v2, v3 := idx(x, y), idx(x+1, y), idx(x+1, y+1), idx(x, y+1)
			// alternate the diagonal so the sheet has no preferred shear direction
			if (x+y)&1 == 1 {
				b.mustTriangle(v0, v1, v2, g)
				b.mustTriangle(v0, v2, v3, g)
			} else {
				b.mustTriangle(v1, v2, v3, g)
				b.mustTriangle(v0, v1, v3, g)
			}
		}
	}

	if g.AddSprings {
		for y := 0; y <= g.DimY; y++ {
			for x := 0; x <= g.DimX; x++ {
				if x < g.DimX {
					b.mustSpring(idx(x, y), idx(x+1, y), g)
				}
				if y < g.DimY {
					b.mustSpring(idx(x, y), idx(x, y+1), g)
				}
				if x < g.DimX && y < g.DimY {
					b.mustSpring(idx(x, y), idx(x+1, y+1), g)
					b.mustSpring(idx(x+1, y), idx(x, y+1), g)
				}
			}
		}
	}
	return first, nil
}

// indices are generated in range, so these cannot fail
func (b *Builder) mustTriangle(i, j, k int, g ClothGrid) {
	if _, err := b.AddTriangle(i, j, k, g.TriKe, g.TriKa, g.TriKd); err != nil {
		panic(err)
	}
}

func (b *Builder) mustSpring(i, j int, g ClothGrid) {
	if _, err := b.AddSpring(i, j, g.SpringKe, g.SpringKd, 0); err != nil {
		panic(err)
	}
}
