// Package scene accumulates simulation entities into a finalized, read-only
// [Model].
//
// A [Builder] collects particles, springs, triangles, rigid bodies, joints and
// collision shapes. Every Add call validates the indices it references against
// entities already added and fails with a [dynamo.ConfigurationError] without
// mutating the builder. [Builder.Finalize] may be called once; afterwards all
// mutation attempts fail with a [dynamo.UsageError].
//
//	b := scene.NewBuilder()
//	anchor, _ := b.AddParticle(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{}, 0)
//	p, _ := b.AddParticle(mgl64.Vec3{1, 1, 0}, mgl64.Vec3{}, 1, scene.WithRadius(0.2))
//	b.AddSpring(anchor, p, 1e6, 1, 0)
//	model, err := b.Finalize(dev)
//
// The builder performs no physics validation; degenerate springs and similar
// problems are reported by the integrator that consumes the model.
package scene
