// Package sim owns the double-buffered simulation state and the step
// scheduler that advances it in fixed substeps.
//
// A Scheduler holds two State buffers for its whole lifetime. Each substep
// zeroes the force accumulators of both buffers, asks the Integrator to
// advance the current buffer into the next one, and flips the role index.
// After a frame the buffer in the current role holds the latest data.
package sim
