package optim

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/san-kum/framesim/internal/config"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/experiment"
)

func quiet() Option { return WithLogger(log.New(io.Discard)) }

func TestParseParam(t *testing.T) {
	p, err := ParseParam("chain.spring_ke = 1e3, 1e4,1e5")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "chain.spring_ke" || len(p.Values) != 3 || p.Values[1] != 1e4 {
		t.Errorf("unexpected param: %+v", p)
	}

	for _, bad := range []string{"substeps", "=1,2", "substeps=", "substeps=1,x"} {
		if _, err := ParseParam(bad); !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("ParseParam(%q): expected configuration error, got %v", bad, err)
		}
	}
}

func TestGridSearchFindsMinimum(t *testing.T) {
	var seen int
	run := func(ctx context.Context, cfg *config.Config) (*experiment.Summary, error) {
		seen++
		v := math.Abs(float64(cfg.Substeps)-4) + math.Abs(cfg.FPS-30)/10
		return &experiment.Summary{Metrics: map[string]float64{"energy_drift": v}}, nil
	}

	g := NewGridSearch([]Param{
		{Name: "substeps", Values: []float64{1, 2, 4, 8}},
		{Name: "fps", Values: []float64{30, 60}},
	}, WithRunner(run), quiet())

	if g.Size() != 8 {
		t.Fatalf("expected 8 grid points, got %d", g.Size())
	}
	res, err := g.Search(context.Background(), config.DefaultConfig(), "energy_drift")
	if err != nil {
		t.Fatal(err)
	}
	if seen != 8 || len(res.Trials) != 8 {
		t.Errorf("expected 8 trials, ran %d and recorded %d", seen, len(res.Trials))
	}
	if res.Best["substeps"] != 4 || res.Best["fps"] != 30 || res.BestValue != 0 {
		t.Errorf("wrong optimum: %v = %v", res.Best, res.BestValue)
	}
}

func TestGridSearchSkipsFailedTrials(t *testing.T) {
	run := func(ctx context.Context, cfg *config.Config) (*experiment.Summary, error) {
		if cfg.Substeps < 4 {
			return &experiment.Summary{}, &dynamo.DivergenceError{Integrator: "semi_implicit", Substep: 3, Index: 3}
		}
		return &experiment.Summary{Metrics: map[string]float64{"strain": float64(cfg.Substeps)}}, nil
	}

	g := NewGridSearch([]Param{{Name: "substeps", Values: []float64{1, 2, 8, 4}}}, WithRunner(run), quiet())
	res, err := g.Search(context.Background(), config.DefaultConfig(), "strain")
	if err != nil {
		t.Fatal(err)
	}
	if res.Best["substeps"] != 4 {
		t.Errorf("expected substeps 4, got %v", res.Best)
	}
	failed := 0
	for _, tr := range res.Trials {
		if errors.Is(tr.Err, dynamo.ErrDivergence) {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("expected 2 diverged trials, got %d", failed)
	}
}

func TestGridSearchAllFail(t *testing.T) {
	run := func(ctx context.Context, cfg *config.Config) (*experiment.Summary, error) {
		return &experiment.Summary{}, nil
	}
	g := NewGridSearch([]Param{{Name: "fps", Values: []float64{30}}}, WithRunner(run), quiet())
	if _, err := g.Search(context.Background(), config.DefaultConfig(), "energy"); err == nil {
		t.Error("expected error when no trial records the metric")
	}
}

func TestGridSearchRejectsUnknownParam(t *testing.T) {
	g := NewGridSearch([]Param{{Name: "gravity", Values: []float64{1}}}, quiet())
	_, err := g.Search(context.Background(), config.DefaultConfig(), "energy")
	if !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestGridSearchCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	run := func(ctx context.Context, cfg *config.Config) (*experiment.Summary, error) {
		cancel()
		return &experiment.Summary{}, ctx.Err()
	}
	g := NewGridSearch([]Param{{Name: "substeps", Values: []float64{1, 2, 3}}}, WithRunner(run), quiet())
	res, err := g.Search(ctx, config.DefaultConfig(), "energy")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(res.Trials) != 1 {
		t.Errorf("expected the search to stop after 1 trial, got %d", len(res.Trials))
	}
}

func TestGridSearchRunsSessions(t *testing.T) {
	base := config.GetPreset("chain", "explicit")
	base.Frames = 5
	base.Output = t.TempDir()

	g := NewGridSearch([]Param{{Name: "substeps", Values: []float64{16, 32}}}, quiet())
	res, err := g.Search(context.Background(), base, "energy")
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range res.Trials {
		if tr.Err != nil {
			t.Errorf("trial %v: %v", tr.Params, tr.Err)
		}
		if tr.RunID == "" {
			t.Errorf("trial %v was not recorded", tr.Params)
		}
	}
}
