// Package integrators implements the time-stepping variants the scheduler
// can hold: SemiImplicit for particle systems, XPBD for stiff springs and
// cloth, and Featherstone for articulated rigid chains.
//
// Every variant issues its work as device kernels so that a frame can be
// recorded and replayed. Per-particle quantities are gathered over the
// model's adjacency lists, so kernels never write to a shared slot and
// results do not depend on how the device splits a launch.
package integrators
