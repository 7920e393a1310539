package experiment

import (
	"sort"

	"github.com/san-kum/framesim/internal/config"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/integrators"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// SceneFactory populates a builder from a run configuration.
type SceneFactory func(cfg *config.Config) (*scene.Builder, error)

type Registry struct {
	scenes      map[string]SceneFactory
	integrators map[string]func(cfg *config.Config) sim.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		scenes:      make(map[string]SceneFactory),
		integrators: make(map[string]func(cfg *config.Config) sim.Integrator),
	}

	r.scenes["chain"] = BuildChain
	r.scenes["cloth"] = BuildCloth
	r.scenes["rigid_chain"] = BuildRigidChain

	semi := func(*config.Config) sim.Integrator { return integrators.NewSemiImplicit() }
	r.integrators["semi_implicit"] = semi
	r.integrators["euler"] = semi
	r.integrators["xpbd"] = func(cfg *config.Config) sim.Integrator { return integrators.NewXPBD(cfg.Iterations) }
	r.integrators["featherstone"] = func(*config.Config) sim.Integrator { return integrators.NewFeatherstone() }

	return r
}

// RegisterScene adds or replaces a scene factory.
func (r *Registry) RegisterScene(name string, fn SceneFactory) {
	r.scenes[name] = fn
}

func (r *Registry) BuildScene(cfg *config.Config) (*scene.Builder, error) {
	fn, ok := r.scenes[cfg.Scene]
	if !ok {
		return nil, dynamo.Configf("experiment", "scene", "unknown scene: %s", cfg.Scene)
	}
	return fn(cfg)
}

func (r *Registry) GetIntegrator(cfg *config.Config) (sim.Integrator, error) {
	fn, ok := r.integrators[cfg.Integrator]
	if !ok {
		return nil, dynamo.Configf("experiment", "integrator", "unknown integrator: %s", cfg.Integrator)
	}
	return fn(cfg), nil
}

func (r *Registry) ListScenes() []string {
	return sortedKeys(r.scenes)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
