// Package render defines the frame sink a session draws into and the
// headless implementations of it.
package render

import (
	"errors"

	"github.com/san-kum/framesim/internal/metrics"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
	"github.com/san-kum/framesim/internal/storage"
)

// Renderer receives one BeginFrame, Render, EndFrame sequence per displayed
// frame. HasExit reports that the user closed the output; Save finalizes it.
type Renderer interface {
	BeginFrame(t float64) error
	Render(s *sim.State) error
	EndFrame() error
	HasExit() bool
	Save() error
}

// Null discards frames.
type Null struct{}

func (Null) BeginFrame(float64) error { return nil }
func (Null) Render(*sim.State) error  { return nil }
func (Null) EndFrame() error          { return nil }
func (Null) HasExit() bool            { return false }
func (Null) Save() error              { return nil }

// Recorder writes every rendered frame to a storage run and observes the
// given metrics on it. Save closes the run with the metric values.
type Recorder struct {
	run     *storage.Run
	model   *scene.Model
	metrics []metrics.Metric
	t       float64
	saved   bool
}

func NewRecorder(run *storage.Run, model *scene.Model, ms ...metrics.Metric) *Recorder {
	return &Recorder{run: run, model: model, metrics: ms}
}

func (r *Recorder) RunID() string { return r.run.ID() }
func (r *Recorder) Dir() string   { return r.run.Dir() }

func (r *Recorder) BeginFrame(t float64) error {
	r.t = t
	return nil
}

func (r *Recorder) Render(s *sim.State) error {
	for _, m := range r.metrics {
		m.Observe(r.model, s, r.t)
	}
	return r.run.WriteFrame(r.t, s)
}

func (r *Recorder) EndFrame() error { return nil }
func (r *Recorder) HasExit() bool   { return false }

// Metrics returns the current metric values.
func (r *Recorder) Metrics() map[string]float64 { return metrics.Collect(r.metrics) }

func (r *Recorder) Save() error {
	if r.saved {
		return nil
	}
	r.saved = true
	return r.run.Close(r.Metrics())
}

// Multi fans frames out to several renderers. It exits when any of them
// does.
type Multi []Renderer

func (m Multi) BeginFrame(t float64) error {
	return m.each(func(r Renderer) error { return r.BeginFrame(t) })
}

func (m Multi) Render(s *sim.State) error {
	return m.each(func(r Renderer) error { return r.Render(s) })
}

func (m Multi) EndFrame() error {
	return m.each(func(r Renderer) error { return r.EndFrame() })
}

func (m Multi) HasExit() bool {
	for _, r := range m {
		if r.HasExit() {
			return true
		}
	}
	return false
}

// Save saves every renderer even if one fails.
func (m Multi) Save() error {
	var errs []error
	for _, r := range m {
		if err := r.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) each(fn func(Renderer) error) error {
	for _, r := range m {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
