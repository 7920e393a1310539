package experiment

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/framesim/internal/capture"
	"github.com/san-kum/framesim/internal/config"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/metrics"
	"github.com/san-kum/framesim/internal/render"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
	"github.com/san-kum/framesim/internal/storage"
	"github.com/san-kum/framesim/internal/viz"
)

// Pauser is implemented by renderers that let the user hold stepping.
type Pauser interface {
	Paused() bool
}

type Option func(*Session)

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRenderer replaces the renderer derived from the configuration.
func WithRenderer(r render.Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

func WithRegistry(r *Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithPreset records the preset name in run metadata.
func WithPreset(name string) Option {
	return func(s *Session) { s.preset = name }
}

// Session owns one simulation from setup to save: the model on its device,
// the scheduler, the optional captured frame and the renderer.
type Session struct {
	cfg      *config.Config
	preset   string
	logger   *log.Logger
	registry *Registry

	model    *scene.Model
	sched    *sim.Scheduler
	accel    *capture.Accelerator
	renderer render.Renderer
	recorder *render.Recorder

	stepTime   time.Duration
	renderTime time.Duration
	saved      bool
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Frames     int64
	Steps      int64
	SimTime    float64
	StepTime   time.Duration
	RenderTime time.Duration
	Captured   bool
	Replays    int64
	Metrics    map[string]float64
}

// NewSession validates cfg, builds the scene on the configured device and,
// when enabled and supported, captures one frame for replay. Capture runs
// before the first step.
func NewSession(cfg *config.Config, opts ...Option) (*Session, error) {
	c := *cfg
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s := &Session{cfg: &c, logger: log.Default(), registry: NewRegistry()}
	for _, opt := range opts {
		opt(s)
	}

	var devOpts []device.Option
	if c.Workers > 0 {
		devOpts = append(devOpts, device.WithWorkers(c.Workers))
	}
	devOpts = append(devOpts, device.WithMemPool(c.MemPool))
	dev, err := device.Open(c.Device, devOpts...)
	if err != nil {
		return nil, err
	}

	builder, err := s.registry.BuildScene(&c)
	if err != nil {
		return nil, err
	}
	s.model, err = builder.Finalize(dev)
	if err != nil {
		return nil, err
	}
	integ, err := s.registry.GetIntegrator(&c)
	if err != nil {
		return nil, err
	}
	s.sched, err = sim.NewScheduler(s.model, integ, sim.Config{FPS: c.FPS, Substeps: c.Substeps})
	if err != nil {
		return nil, err
	}
	s.logger.Info("scene ready",
		"scene", c.Scene,
		"particles", s.model.ParticleCount(),
		"springs", len(s.model.Springs),
		"triangles", len(s.model.Triangles),
		"bodies", s.model.BodyCount(),
		"integrator", integ.Name(),
		"device", dev.Name())

	s.accel = capture.New(s.sched, capture.WithLogger(s.logger))
	if c.Capture {
		if _, err := s.accel.MaybeCapture(); err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
	}

	if s.renderer == nil {
		if err := s.openRenderer(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) openRenderer() error {
	var rs render.Multi
	if s.cfg.Output != "" {
		store := storage.New(s.cfg.Output)
		if err := store.Init(); err != nil {
			return err
		}
		run, err := store.Create(storage.RunMetadata{
			Scene:      s.cfg.Scene,
			Preset:     s.preset,
			Integrator: s.sched.Integrator().Name(),
			Device:     s.model.Device.Name(),
			Captured:   s.accel.Captured(),
			FPS:        s.cfg.FPS,
			Substeps:   s.cfg.Substeps,
			Particles:  s.model.ParticleCount(),
			Bodies:     s.model.BodyCount(),
		})
		if err != nil {
			return err
		}
		s.recorder = render.NewRecorder(run, s.model, metrics.Standard()...)
		rs = append(rs, s.recorder)
	}
	if !s.cfg.Headless {
		opts := []viz.WindowOption{}
		if s.cfg.Frames > 0 {
			opts = append(opts, viz.WithMaxFrames(s.cfg.Frames))
		}
		if s.recorder != nil {
			opts = append(opts, viz.WithGIF(filepath.Join(s.recorder.Dir(), "capture.gif")))
		}
		rs = append(rs, viz.NewWindow(s.model, s.cfg.Scene, opts...))
	}

	switch len(rs) {
	case 0:
		s.renderer = render.Null{}
	case 1:
		s.renderer = rs[0]
	default:
		s.renderer = rs
	}
	return nil
}

func (s *Session) Model() *scene.Model               { return s.model }
func (s *Session) Scheduler() *sim.Scheduler         { return s.sched }
func (s *Session) Accelerator() *capture.Accelerator { return s.accel }
func (s *Session) Renderer() render.Renderer         { return s.renderer }
func (s *Session) Config() config.Config             { return *s.cfg }

// Step advances one frame, replaying the captured frame when there is one.
func (s *Session) Step() error {
	start := time.Now()
	err := s.accel.Step()
	elapsed := time.Since(start)
	s.stepTime += elapsed
	s.logger.Debug("step", "frame", s.sched.Frames(), "elapsed", elapsed, "replay", s.accel.Captured())
	return err
}

// Render draws the current state.
func (s *Session) Render() error {
	start := time.Now()
	err := s.render()
	elapsed := time.Since(start)
	s.renderTime += elapsed
	s.logger.Debug("render", "frame", s.sched.Frames(), "elapsed", elapsed)
	return err
}

func (s *Session) render() error {
	if err := s.renderer.BeginFrame(s.sched.Time()); err != nil {
		return err
	}
	if err := s.renderer.Render(s.sched.Current()); err != nil {
		return err
	}
	return s.renderer.EndFrame()
}

// Run steps and renders until the frame budget is spent, the renderer
// exits, ctx is cancelled or a step fails. The renderer is saved in every
// case. Windowed runs are paced to real time.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	var pace <-chan time.Time
	if !s.cfg.Headless {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.FPS))
		defer ticker.Stop()
		pace = ticker.C
	}
	pauser, _ := s.renderer.(Pauser)

	runErr := s.loop(ctx, pace, pauser)
	saveErr := s.Save()
	if runErr != nil {
		return s.Summary(), runErr
	}
	return s.Summary(), saveErr
}

func (s *Session) loop(ctx context.Context, pace <-chan time.Time, pauser Pauser) error {
	for frame := 0; s.cfg.Unbounded() || frame < s.cfg.Frames; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if s.renderer.HasExit() {
			return nil
		}

		if pauser == nil || !pauser.Paused() {
			if err := s.Step(); err != nil {
				s.logger.Error("step failed", "frame", s.sched.Frames(), "err", err)
				return err
			}
			frame++
		}
		if err := s.Render(); err != nil {
			return err
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		}
	}
	return nil
}

// Save finalizes the renderer once.
func (s *Session) Save() error {
	if s.saved {
		return nil
	}
	s.saved = true
	sum := s.Summary()
	s.logger.Info("run complete",
		"frames", sum.Frames,
		"sim_time", fmt.Sprintf("%.3fs", sum.SimTime),
		"step_time", sum.StepTime,
		"render_time", sum.RenderTime,
		"captured", sum.Captured,
		"replays", sum.Replays)
	return s.renderer.Save()
}

func (s *Session) Summary() *Summary {
	sum := &Summary{
		Frames:     s.sched.Frames(),
		Steps:      s.sched.Steps(),
		SimTime:    s.sched.Time(),
		StepTime:   s.stepTime,
		RenderTime: s.renderTime,
		Captured:   s.accel.Captured(),
		Replays:    s.accel.Replays(),
	}
	if s.recorder != nil {
		sum.RunID = s.recorder.RunID()
		sum.Metrics = s.recorder.Metrics()
	}
	return sum
}
