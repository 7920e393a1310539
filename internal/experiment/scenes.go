package experiment

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/framesim/internal/asset"
	"github.com/san-kum/framesim/internal/config"
	"github.com/san-kum/framesim/internal/scene"
)

// BuildChain anchors particle 0 at (0, h, 0) and hangs the rest along +x,
// each joined to its predecessor by a spring.
func BuildChain(cfg *config.Config) (*scene.Builder, error) {
	c := cfg.Chain
	b := scene.NewBuilder()
	if err := b.SetGround(cfg.Ground); err != nil {
		return nil, err
	}
	if _, err := b.AddParticle(mgl64.Vec3{0, c.Height, 0}, mgl64.Vec3{}, 0, scene.WithRadius(c.Radius)); err != nil {
		return nil, err
	}
	sep := c.Length / float64(c.NumParticles-1)
	for i := 1; i < c.NumParticles; i++ {
		if _, err := b.AddParticle(mgl64.Vec3{float64(i) * sep, c.Height, 0}, mgl64.Vec3{}, c.Mass, scene.WithRadius(c.Radius)); err != nil {
			return nil, err
		}
		if _, err := b.AddSpring(i-1, i, c.SpringKe, c.SpringKd, 0); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// BuildCloth hangs a grid rotated a quarter turn about x, pinned on its
// left edge, above an optional static collider mesh.
func BuildCloth(cfg *config.Config) (*scene.Builder, error) {
	c := cfg.Cloth
	b := scene.NewBuilder()
	if err := b.SetGround(cfg.Ground); err != nil {
		return nil, err
	}
	contact := scene.DefaultContactParams()
	contact.Ke, contact.Kd = c.ContactKe, c.ContactKd
	if err := b.SetSoftContact(contact); err != nil {
		return nil, err
	}

	_, err := b.AddClothGrid(scene.ClothGrid{
		Placement:  scene.NewTransform(mgl64.Vec3{0, c.Height, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})),
		DimX:       c.DimX,
		DimY:       c.DimY,
		CellX:      c.Cell,
		CellY:      c.Cell,
		Mass:       c.Mass,
		FixLeft:    c.FixLeft,
		TriKe:      c.TriKe,
		TriKa:      c.TriKa,
		TriKd:      c.TriKd,
		AddSprings: c.Springs,
		SpringKe:   c.SpringKe,
		SpringKd:   c.SpringKd,
	})
	if err != nil {
		return nil, err
	}

	if col := c.Collider; col.Mesh != "" {
		mesh, err := asset.Resolve(col.Mesh, col.Subdivisions)
		if err != nil {
			return nil, err
		}
		xf := scene.NewTransform(mgl64.Vec3(col.Position), mgl64.QuatRotate(mgl64.DegToRad(col.YawDeg), mgl64.Vec3{0, 1, 0}))
		scale := mgl64.Vec3{col.Scale, col.Scale, col.Scale}
		if _, err := b.AddShapeMesh(scene.World, xf, mesh, scale, scene.Material{Ke: col.Ke, Kd: col.Kd, Kf: col.Kf}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// BuildRigidChain links boxes end to end with revolute joints about z,
// driven toward a common target angle. Link i starts at (i*width, 0, 1).
func BuildRigidChain(cfg *config.Config) (*scene.Builder, error) {
	c := cfg.RigidChain
	b := scene.NewBuilder()
	if err := b.SetGround(cfg.Ground); err != nil {
		return nil, err
	}
	if _, err := b.AddArticulation(); err != nil {
		return nil, err
	}

	target := mgl64.DegToRad(c.TargetDeg)
	parent := scene.World
	for i := 0; i < c.Links; i++ {
		parentXform := scene.Translation(c.Width, 0, 0)
		if i == 0 {
			parentXform = scene.Translation(0, 0, 1)
		}

		body, err := b.AddBody(scene.Translation(float64(i)*c.Width, 0, 1), c.Armature)
		if err != nil {
			return nil, err
		}
		half := mgl64.Vec3{c.Width / 2, 0.1, 0.1}
		if _, err := b.AddShapeBox(body, scene.Translation(c.Width/2, 0, 0), half, scene.Material{Density: c.Density}); err != nil {
			return nil, err
		}
		_, err = b.AddJointRevolute(scene.JointParams{
			Parent:      parent,
			Child:       body,
			Axis:        mgl64.Vec3{0, 0, 1},
			ParentXform: parentXform,
			ChildXform:  scene.Identity(),
			Target:      target,
			TargetKe:    c.TargetKe,
			TargetKd:    c.TargetKd,
			Limit:       &scene.JointLimit{Lower: -2 * math.Pi, Upper: 2 * math.Pi},
			LimitKe:     c.LimitKe,
			LimitKd:     c.LimitKd,
		})
		if err != nil {
			return nil, err
		}
		parent = body
	}
	return b, nil
}
