// Package viz draws a running simulation in the terminal.
//
// [Window] is a Bubble Tea program that implements the session renderer
// contract. Frames are projected as wireframes onto a Braille [Canvas]:
// springs, triangle edges, rigid body boxes, static collider meshes and
// the ground plane.
//
// # Key Bindings
//
//	Space - Pause/Resume stepping
//	←→↑↓  - Orbit the camera
//	+/-   - Zoom
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
//	Q     - Close the window and end the run
package viz
