// Package asset supplies triangle meshes for static colliders: a YAML mesh
// format and a few procedural shapes addressable by name.
package asset
