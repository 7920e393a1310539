// Package dynamo provides the primitives shared by every layer of the
// simulation stack.
//
// The package defines the error taxonomy used across the engine:
//
//   - [ConfigurationError]: invalid index references or parameters, raised at build time
//   - [UsageError]: programmer errors such as mutating a finalized scene
//   - [DivergenceError]: an integrator produced non-finite state
//   - [DeviceCapabilityError]: capture requested on a device that cannot record
//
// Each typed error unwraps to a sentinel so callers can use [errors.Is]:
//
//	if errors.Is(err, dynamo.ErrDivergence) {
//		// restart with a smaller dt or more iterations
//	}
//
// It also provides [ParallelFor], the chunked fan-out used by the CPU device.
package dynamo
