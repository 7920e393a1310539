package device

import (
	"fmt"
	"sort"

	"github.com/san-kum/framesim/internal/dynamo"
)

// Kernel is one batched data-parallel operation. Fn is invoked over
// disjoint sub-ranges of [0, Dim) and must not retain its closure state
// beyond the launch except through the buffers it captured.
type Kernel struct {
	Name string
	Dim  int
	Fn   func(start, end int)
}

// Caps describes what a device can do beyond direct dispatch.
type Caps struct {
	Graphs  bool // deferred operation graphs
	MemPool bool // pooled allocation at fixed addresses
}

type Device interface {
	Name() string
	Caps() Caps
	Launch(k Kernel) error
	BeginCapture() error
	EndCapture() (*Graph, error)
	LaunchGraph(g *Graph) error
	Capturing() bool
	Arena() *Arena
	Synchronize() error
}

// CheckCapture reports why d cannot record graphs, or nil if it can.
func CheckCapture(d Device) error {
	caps := d.Caps()
	switch {
	case !caps.Graphs:
		return &dynamo.DeviceCapabilityError{Device: d.Name(), Missing: "deferred operation graphs"}
	case !caps.MemPool:
		return &dynamo.DeviceCapabilityError{Device: d.Name(), Missing: "pooled memory"}
	}
	return nil
}

func SupportsCapture(d Device) bool {
	return CheckCapture(d) == nil
}

var registry = map[string]func(opts ...Option) Device{
	"cpu": func(opts ...Option) Device { return NewCPU(opts...) },
	"cpu-eager": func(opts ...Option) Device {
		return NewCPU(append(opts, WithName("cpu-eager"), WithGraphs(false))...)
	},
}

// Open returns the named device.
func Open(name string, opts ...Option) (Device, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, dynamo.Configf("device.Open", "device", "unknown device: %s (available: %v)", name, Names())
	}
	return fn(opts...), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Caps) String() string {
	return fmt.Sprintf("graphs=%t mempool=%t", c.Graphs, c.MemPool)
}
