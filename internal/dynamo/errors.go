package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrConfiguration indicates an invalid scene or session configuration.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrUsage indicates a programmer error such as mutating a finalized scene.
	ErrUsage = errors.New("dynamo: usage error")

	// ErrDivergence indicates the simulation became numerically unstable.
	ErrDivergence = errors.New("dynamo: simulation diverged (NaN or Inf detected)")

	// ErrDeviceCapability indicates the device cannot capture operation graphs.
	ErrDeviceCapability = errors.New("dynamo: device lacks capture support")
)

// ConfigurationError reports an invalid index reference or a missing or
// out-of-range parameter. It is raised at build or finalize time.
type ConfigurationError struct {
	Op    string
	Field string
	Msg   string
}

func Configf(op, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Op: op, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// UsageError reports misuse of an API, e.g. mutating a finalized builder or
// replaying a recording after the scheduler configuration changed.
type UsageError struct {
	Op  string
	Msg string
}

func Usagef(op, format string, args ...any) *UsageError {
	return &UsageError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *UsageError) Unwrap() error { return ErrUsage }

// DivergenceError wraps a numerical failure with simulation context.
type DivergenceError struct {
	Integrator string
	Substep    int64
	Time       float64
	// Index of the first non-finite particle, or -1 if the failure was in
	// body or joint coordinates.
	Index int
}

func (e *DivergenceError) Error() string {
	where := "body/joint coordinates"
	if e.Index >= 0 {
		where = fmt.Sprintf("particle %d", e.Index)
	}
	return fmt.Sprintf("%s: substep %d (t=%.4f): %s non-finite", e.Integrator, e.Substep, e.Time, where)
}

func (e *DivergenceError) Unwrap() error { return ErrDivergence }

// DeviceCapabilityError explains why capture is unavailable on a device.
// It is informational: callers fall back to direct dispatch.
type DeviceCapabilityError struct {
	Device  string
	Missing string
}

func (e *DeviceCapabilityError) Error() string {
	return fmt.Sprintf("device %s: capture unavailable: %s", e.Device, e.Missing)
}

func (e *DeviceCapabilityError) Unwrap() error { return ErrDeviceCapability }
