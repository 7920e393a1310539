package automation

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/san-kum/framesim/internal/config"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/experiment"
	"github.com/san-kum/framesim/internal/storage"
)

const scenarioYAML = `name: smoke
description: one short run per scene
steps:
  - scene: chain
    preset: explicit
    frames: 4
  - scene: cloth
    frames: 2
    substeps: 10
    params:
      cloth.dim_x: 6
      cloth.dim_y: 6
  - scene: rigid_chain
    preset: swing
    frames: 3
    no_capture: true
`

func quiet() *log.Logger { return log.New(io.Discard) }

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "smoke" || len(sc.Steps) != 3 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}
	if sc.Steps[1].Params["cloth.dim_x"] != 6 || !sc.Steps[2].NoCapture {
		t.Errorf("step fields not parsed: %+v", sc.Steps)
	}

	if _, err := LoadScenario(writeScenario(t, "name: empty\n")); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error for empty scenario, got %v", err)
	}
}

func TestStepConfig(t *testing.T) {
	step := ScenarioStep{Scene: "chain", Preset: "mass_spring", Params: map[string]float64{"chain.spring_kd": 3}}
	cfg, err := step.Config("out")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Headless || cfg.Frames != config.DefaultFrames {
		t.Errorf("expected a bounded headless run, got headless=%v frames=%d", cfg.Headless, cfg.Frames)
	}
	if cfg.Integrator != "xpbd" || cfg.Chain.SpringKd != 3 || cfg.Output != "out" {
		t.Errorf("preset and overrides not applied: %+v", cfg)
	}

	bad := []ScenarioStep{
		{Scene: "chain", Preset: "nope"},
		{Scene: "chain", Params: map[string]float64{"chain.colour": 1}},
		{Scene: "chain", Substeps: -1},
		{Scene: "warp"},
	}
	for _, s := range bad {
		if _, err := s.Config(""); !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("%+v: expected configuration error, got %v", s, err)
		}
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	results, err := RunScenario(context.Background(), sc, dir, RunSession(quiet()), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantFrames := []int64{4, 2, 3}
	for i, r := range results {
		if r.Frames != wantFrames[i] {
			t.Errorf("step %d: expected %d frames, got %d", i+1, wantFrames[i], r.Frames)
		}
	}
	if results[2].Captured {
		t.Error("step 3 disabled capture")
	}

	runs, err := storage.New(dir).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 recorded runs, got %d", len(runs))
	}
}

func TestRunScenarioStopsOnFailure(t *testing.T) {
	sc := &Scenario{Steps: []ScenarioStep{{Scene: "chain"}, {Scene: "chain"}, {Scene: "chain"}}}
	calls := 0
	run := func(ctx context.Context, cfg *config.Config, preset string) (*experiment.Summary, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("boom")
		}
		return &experiment.Summary{Frames: 1}, nil
	}
	results, err := RunScenario(context.Background(), sc, "", run, quiet())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(results) != 1 || calls != 2 {
		t.Errorf("expected to stop after step 2, got %d results and %d calls", len(results), calls)
	}
}

func TestMonteCarlo(t *testing.T) {
	run := func(ctx context.Context, cfg *config.Config, preset string) (*experiment.Summary, error) {
		if cfg.Chain.SpringKe > 1e3 {
			return &experiment.Summary{Frames: 2}, &dynamo.DivergenceError{Integrator: "semi_implicit", Index: 1}
		}
		return &experiment.Summary{Frames: 10}, nil
	}
	mc := &MonteCarloConfig{
		Base:         config.DefaultConfig(),
		Params:       map[string]float64{"chain.spring_ke": 1e3},
		Perturbation: 0.5,
		NumTrials:    40,
		Seed:         7,
	}

	results, err := RunMonteCarlo(context.Background(), mc, run, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 40 {
		t.Fatalf("expected 40 results, got %d", len(results))
	}
	stable, unstable := MonteCarloStats(results)
	if stable == 0 || unstable == 0 || stable+unstable != 40 {
		t.Errorf("expected a mix of outcomes, got %d stable and %d unstable", stable, unstable)
	}
	for _, r := range results {
		ke := r.Params["chain.spring_ke"]
		if ke < 500 || ke > 1500 {
			t.Errorf("trial %d: perturbed value %v outside ±50%%", r.TrialID, ke)
		}
		if r.Stable != (ke <= 1e3) {
			t.Errorf("trial %d: stable=%v for ke=%v", r.TrialID, r.Stable, ke)
		}
	}

	again, _ := RunMonteCarlo(context.Background(), mc, run, quiet())
	if again[0].Params["chain.spring_ke"] != results[0].Params["chain.spring_ke"] {
		t.Error("same seed should reproduce the same perturbations")
	}
}

func TestMonteCarloAbortsOnOtherErrors(t *testing.T) {
	run := func(ctx context.Context, cfg *config.Config, preset string) (*experiment.Summary, error) {
		return nil, dynamo.Configf("scene", "x", "bad")
	}
	mc := &MonteCarloConfig{Base: config.DefaultConfig(), NumTrials: 3, Seed: 1}
	if _, err := RunMonteCarlo(context.Background(), mc, run, quiet()); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
