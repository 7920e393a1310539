package device

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/san-kum/framesim/internal/dynamo"
)

const defaultMinChunk = 64

type CPU struct {
	name     string
	workers  int
	minChunk int
	caps     Caps
	arena    *Arena

	mu        sync.Mutex
	recording *Graph

	launches      atomic.Int64
	graphLaunches atomic.Int64
}

type Option func(*CPU)

func WithName(name string) Option {
	return func(c *CPU) { c.name = name }
}

// WithWorkers sets the goroutine fan-out per kernel (minimum 1).
func WithWorkers(n int) Option {
	return func(c *CPU) { c.workers = max(1, n) }
}

func WithMinChunk(n int) Option {
	return func(c *CPU) { c.minChunk = max(1, n) }
}

func WithGraphs(enabled bool) Option {
	return func(c *CPU) { c.caps.Graphs = enabled }
}

func WithMemPool(enabled bool) Option {
	return func(c *CPU) { c.caps.MemPool = enabled }
}

func NewCPU(opts ...Option) *CPU {
	c := &CPU{
		name:     "cpu",
		workers:  runtime.NumCPU(),
		minChunk: defaultMinChunk,
		caps:     Caps{Graphs: true, MemPool: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.arena = newArena(c.caps.MemPool)
	return c
}

func (c *CPU) Name() string         { return c.name }
func (c *CPU) Caps() Caps           { return c.caps }
func (c *CPU) Arena() *Arena        { return c.arena }
func (c *CPU) Synchronize() error   { return nil }
func (c *CPU) Workers() int         { return c.workers }
func (c *CPU) Launches() int64      { return c.launches.Load() }
func (c *CPU) GraphLaunches() int64 { return c.graphLaunches.Load() }

func (c *CPU) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording != nil
}

// Launch executes k, or appends it to the open recording.
func (c *CPU) Launch(k Kernel) error {
	if k.Fn == nil {
		return dynamo.Usagef("device.Launch", "kernel %q has no body", k.Name)
	}

	c.mu.Lock()
	if c.recording != nil {
		c.recording.kernels = append(c.recording.kernels, k)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.execute(k)
	c.launches.Add(1)
	return nil
}

func (c *CPU) BeginCapture() error {
	if err := CheckCapture(c); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording != nil {
		return dynamo.Usagef("device.BeginCapture", "capture already in progress on %s", c.name)
	}
	c.recording = &Graph{device: c, generation: c.arena.Generation()}
	return nil
}

func (c *CPU) EndCapture() (*Graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording == nil {
		return nil, dynamo.Usagef("device.EndCapture", "no capture in progress on %s", c.name)
	}
	g := c.recording
	c.recording = nil
	return g, nil
}

// AbortCapture discards an open recording, if any.
func (c *CPU) AbortCapture() {
	c.mu.Lock()
	c.recording = nil
	c.mu.Unlock()
}

func (c *CPU) LaunchGraph(g *Graph) error {
	if g == nil {
		return dynamo.Usagef("device.LaunchGraph", "nil graph")
	}
	if g.device != c {
		return dynamo.Usagef("device.LaunchGraph", "graph was recorded on a different device")
	}
	if gen := c.arena.Generation(); g.generation != gen {
		return dynamo.Usagef("device.LaunchGraph", "arena reset since capture (generation %d, now %d)", g.generation, gen)
	}
	if c.Capturing() {
		return dynamo.Usagef("device.LaunchGraph", "cannot launch a graph while capturing")
	}

	for _, k := range g.kernels {
		c.execute(k)
	}
	c.graphLaunches.Add(1)
	return nil
}

func (c *CPU) execute(k Kernel) {
	dynamo.ParallelFor(k.Dim, c.workers, c.minChunk, k.Fn)
}
