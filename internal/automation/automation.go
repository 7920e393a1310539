package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/framesim/internal/config"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/experiment"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted sequence of runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run in a scenario. Zero fields keep the value
// from the preset, or from the defaults when no preset is named.
type ScenarioStep struct {
	Scene      string             `yaml:"scene"`
	Preset     string             `yaml:"preset"`
	Integrator string             `yaml:"integrator"`
	Device     string             `yaml:"device"`
	Frames     int                `yaml:"frames"`
	Substeps   int                `yaml:"substeps"`
	NoCapture  bool               `yaml:"no_capture"`
	Params     map[string]float64 `yaml:"params"`
}

// RunFunc runs one configuration to completion.
type RunFunc func(ctx context.Context, cfg *config.Config, preset string) (*experiment.Summary, error)

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, dynamo.Configf("load_scenario", path, "%v", err)
	}
	if len(scenario.Steps) == 0 {
		return nil, dynamo.Configf("load_scenario", "steps", "scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Config resolves a step into a run configuration writing to output.
func (s ScenarioStep) Config(output string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		if cfg = config.GetPreset(s.Scene, s.Preset); cfg == nil {
			return nil, dynamo.Configf("scenario", "preset", "unknown preset %q for scene %q", s.Preset, s.Scene)
		}
	}
	if s.Scene != "" {
		cfg.Scene = s.Scene
	}
	if s.Integrator != "" {
		cfg.Integrator = s.Integrator
	}
	if s.Device != "" {
		cfg.Device = s.Device
	}
	if s.Frames != 0 {
		cfg.Frames = s.Frames
	}
	if s.Substeps != 0 {
		cfg.Substeps = s.Substeps
	}
	if s.NoCapture {
		cfg.Capture = false
	}
	if err := cfg.SetAll(s.Params); err != nil {
		return nil, err
	}
	// scenarios are batch runs
	cfg.Headless = true
	if cfg.Unbounded() {
		cfg.Frames = config.DefaultFrames
	}
	cfg.Output = output
	return cfg, cfg.Validate()
}

// RunSession runs cfg headless with logger.
func RunSession(logger *log.Logger) RunFunc {
	return func(ctx context.Context, cfg *config.Config, preset string) (*experiment.Summary, error) {
		sess, err := experiment.NewSession(cfg, experiment.WithLogger(logger), experiment.WithPreset(preset))
		if err != nil {
			return nil, err
		}
		return sess.Run(ctx)
	}
}

// RunScenario executes all steps in a scenario and stops at the first
// failure.
func RunScenario(ctx context.Context, scenario *Scenario, output string, run RunFunc, logger *log.Logger) ([]experiment.Summary, error) {
	results := make([]experiment.Summary, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.Config(output)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		logger.Info("scenario step", "step", i+1, "of", len(scenario.Steps), "scene", cfg.Scene, "preset", step.Preset)

		sum, err := run(ctx, cfg, step.Preset)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, *sum)
	}

	return results, nil
}

// MonteCarloConfig perturbs parameters of a base configuration uniformly
// by up to Perturbation times their base value.
type MonteCarloConfig struct {
	Base         *config.Config
	Params       map[string]float64
	Perturbation float64
	NumTrials    int
	Seed         int64
}

// MonteCarloResult is the outcome of one perturbed run.
type MonteCarloResult struct {
	TrialID int
	Params  map[string]float64
	Frames  int64
	Stable  bool // ran every frame without diverging
	Err     error
}

// RunMonteCarlo executes trials with random parameter perturbations. A
// diverged trial is unstable; any other failure aborts.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, run RunFunc, logger *log.Logger) ([]MonteCarloResult, error) {
	results := make([]MonteCarloResult, 0, mc.NumTrials)

	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for trial := 0; trial < mc.NumTrials; trial++ {
		params := make(map[string]float64, len(mc.Params))
		for k, v := range mc.Params {
			params[k] = v * (1 + (rng.Float64()-0.5)*2*mc.Perturbation)
		}

		cfg := *mc.Base
		if err := cfg.SetAll(params); err != nil {
			return results, err
		}

		res := MonteCarloResult{TrialID: trial, Params: params, Stable: true}
		sum, err := run(ctx, &cfg, "")
		if sum != nil {
			res.Frames = sum.Frames
		}
		switch {
		case errors.Is(err, dynamo.ErrDivergence):
			res.Stable = false
			res.Err = err
		case err != nil:
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}
		results = append(results, res)

		if (trial+1)%10 == 0 {
			logger.Info("monte carlo", "done", trial+1, "of", mc.NumTrials)
		}
	}

	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
