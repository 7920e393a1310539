// Package capture records the kernels of one scheduler frame into a device
// graph and replays that graph on later frames instead of issuing the
// kernels again. Replay is only an optimization: a replayed frame produces
// the same state, bit for bit, as a directly dispatched one.
package capture

import (
	"github.com/charmbracelet/log"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/sim"
)

// Handle is a recorded frame. It is bound to the scheduler signature and the
// device arena generation at capture time.
type Handle struct {
	sig        sim.Signature
	generation uint64
	// graphs holds one recording per starting buffer parity. With an odd
	// substep count the parity alternates between frames.
	graphs [2]*device.Graph
}

func (h *Handle) Signature() sim.Signature { return h.sig }

// Ops returns the number of kernels in one replayed frame.
func (h *Handle) Ops() int {
	for _, g := range h.graphs {
		if g != nil {
			return g.Len()
		}
	}
	return 0
}

type Accelerator struct {
	sched  *sim.Scheduler
	dev    device.Device
	logger *log.Logger

	handle  *Handle
	reason  error
	replays int64
}

type Option func(*Accelerator)

func WithLogger(l *log.Logger) Option {
	return func(a *Accelerator) { a.logger = l }
}

func New(s *sim.Scheduler, opts ...Option) *Accelerator {
	a := &Accelerator{
		sched:  s,
		dev:    s.Model().Device,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaybeCapture records the scheduler's frame if the device supports
// deferred graphs and pooled memory. On other devices it returns a nil
// handle and no error; Reason reports why. Recording does not advance the
// simulation.
func (a *Accelerator) MaybeCapture() (*Handle, error) {
	if a.handle != nil {
		return a.handle, nil
	}
	if err := device.CheckCapture(a.dev); err != nil {
		a.reason = err
		a.logger.Warn("capture unavailable, using direct dispatch", "device", a.dev.Name(), "err", err)
		return nil, nil
	}

	h := &Handle{
		sig:        a.sched.Signature(),
		generation: a.dev.Arena().Generation(),
	}
	parity := a.sched.Parity()
	g, err := a.record(parity)
	if err != nil {
		return nil, err
	}
	h.graphs[parity] = g
	a.handle = h

	a.logger.Info("captured frame", "device", a.dev.Name(), "substeps", h.sig.Substeps, "ops", g.Len())
	return h, nil
}

func (a *Accelerator) record(parity int) (*device.Graph, error) {
	if err := a.dev.BeginCapture(); err != nil {
		return nil, err
	}
	issueErr := a.sched.Issue(parity)
	g, err := a.dev.EndCapture()
	if issueErr != nil {
		return nil, issueErr
	}
	return g, err
}

// Replay runs h as one frame and commits it on the scheduler. It fails with
// a usage error if the scheduler was reconfigured or the arena was reset
// since h was recorded.
func (a *Accelerator) Replay(h *Handle) error {
	const op = "capture.Replay"
	if h == nil {
		return dynamo.Usagef(op, "nil handle")
	}
	if sig := a.sched.Signature(); sig != h.sig {
		return dynamo.Usagef(op, "scheduler changed since capture (recorded %s/%d substeps/dt=%g, now %s/%d substeps/dt=%g)",
			h.sig.Integrator, h.sig.Substeps, h.sig.Dt, sig.Integrator, sig.Substeps, sig.Dt)
	}
	if gen := a.dev.Arena().Generation(); gen != h.generation {
		return dynamo.Usagef(op, "device memory reallocated since capture (generation %d, now %d)", h.generation, gen)
	}

	parity := a.sched.Parity()
	if h.graphs[parity] == nil {
		g, err := a.record(parity)
		if err != nil {
			return err
		}
		h.graphs[parity] = g
		a.logger.Debug("captured opposite parity", "parity", parity, "ops", g.Len())
	}

	if err := a.dev.LaunchGraph(h.graphs[parity]); err != nil {
		return err
	}
	a.replays++
	return a.sched.Commit(h.sig.Substeps)
}

// Step advances one frame, replaying the captured handle when there is one.
func (a *Accelerator) Step() error {
	if a.handle != nil {
		return a.Replay(a.handle)
	}
	return a.sched.AdvanceFrame()
}

// Invalidate drops the current handle so the next MaybeCapture records
// afresh.
func (a *Accelerator) Invalidate() {
	a.handle = nil
}

func (a *Accelerator) Handle() *Handle { return a.handle }
func (a *Accelerator) Captured() bool  { return a.handle != nil }
func (a *Accelerator) Replays() int64  { return a.replays }

// Reason is the capability error that prevented capture, if any.
func (a *Accelerator) Reason() error { return a.reason }
