package config

import (
	"fmt"
	"os"

	"github.com/san-kum/framesim/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFPS      = 60.0
	DefaultSubsteps = 2
	DefaultFrames   = 600
	DefaultDevice   = "cpu"
	DefaultOutput   = "runs"

	// Unbounded runs until the renderer reports an exit.
	Unbounded = -1
)

// Config is the run configuration of one session. Exactly one of the scene
// sections is used, selected by Scene.
type Config struct {
	Scene      string  `yaml:"scene"`
	Integrator string  `yaml:"integrator"`
	Iterations int     `yaml:"iterations,omitempty"`
	FPS        float64 `yaml:"fps"`
	Substeps   int     `yaml:"substeps"`
	Frames     int     `yaml:"frames"`
	Headless   bool    `yaml:"headless"`
	Ground     bool    `yaml:"ground"`
	Device     string  `yaml:"device"`
	MemPool    bool    `yaml:"mempool"`
	Capture    bool    `yaml:"capture"`
	Workers    int     `yaml:"workers,omitempty"`
	Output     string  `yaml:"output"`

	Chain      ChainConfig      `yaml:"chain"`
	Cloth      ClothConfig      `yaml:"cloth"`
	RigidChain RigidChainConfig `yaml:"rigid_chain"`
}

// ChainConfig is an anchored chain of particles along +x.
type ChainConfig struct {
	NumParticles int     `yaml:"num_particles"`
	Length       float64 `yaml:"length"`
	Height       float64 `yaml:"height"`
	Radius       float64 `yaml:"radius"`
	Mass         float64 `yaml:"mass"`
	SpringKe     float64 `yaml:"spring_ke"`
	SpringKd     float64 `yaml:"spring_kd"`
}

type ClothConfig struct {
	DimX     int     `yaml:"dim_x"`
	DimY     int     `yaml:"dim_y"`
	Cell     float64 `yaml:"cell"`
	Mass     float64 `yaml:"mass"`
	Height   float64 `yaml:"height"`
	FixLeft  bool    `yaml:"fix_left"`
	TriKe    float64 `yaml:"tri_ke"`
	TriKa    float64 `yaml:"tri_ka"`
	TriKd    float64 `yaml:"tri_kd"`
	Springs  bool    `yaml:"springs"`
	SpringKe float64 `yaml:"spring_ke"`
	SpringKd float64 `yaml:"spring_kd"`

	ContactKe float64        `yaml:"contact_ke"`
	ContactKd float64        `yaml:"contact_kd"`
	Collider  ColliderConfig `yaml:"collider"`
}

// ColliderConfig places a static mesh under the cloth. Mesh is either the
// name of a built-in mesh or a path to a YAML mesh file; empty disables the
// collider.
type ColliderConfig struct {
	Mesh         string     `yaml:"mesh"`
	Subdivisions int        `yaml:"subdivisions,omitempty"`
	Position     [3]float64 `yaml:"position"`
	YawDeg       float64    `yaml:"yaw_deg"`
	Scale        float64    `yaml:"scale"`
	Ke           float64    `yaml:"ke"`
	Kd           float64    `yaml:"kd"`
	Kf           float64    `yaml:"kf"`
}

// RigidChainConfig is a chain of boxes joined by revolute joints about z.
type RigidChainConfig struct {
	Links     int     `yaml:"links"`
	Width     float64 `yaml:"width"`
	Armature  float64 `yaml:"armature"`
	Density   float64 `yaml:"density"`
	TargetDeg float64 `yaml:"target_deg"`
	TargetKe  float64 `yaml:"target_ke"`
	TargetKd  float64 `yaml:"target_kd"`
	LimitKe   float64 `yaml:"limit_ke"`
	LimitKd   float64 `yaml:"limit_kd"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene:      "chain",
		Integrator: "semi_implicit",
		FPS:        DefaultFPS,
		Substeps:   DefaultSubsteps,
		Frames:     DefaultFrames,
		Headless:   true,
		Device:     DefaultDevice,
		MemPool:    true,
		Capture:    true,
		Output:     DefaultOutput,
		Chain:      DefaultChain(),
		Cloth:      DefaultCloth(),
		RigidChain: DefaultRigidChain(),
	}
}

func DefaultChain() ChainConfig {
	return ChainConfig{
		NumParticles: 11,
		Length:       10,
		Height:       1,
		Radius:       0.2,
		Mass:         1,
		SpringKe:     1e6,
		SpringKd:     1,
	}
}

func DefaultCloth() ClothConfig {
	return ClothConfig{
		DimX:      32,
		DimY:      64,
		Cell:      0.1,
		Mass:      0.1,
		Height:    4,
		FixLeft:   true,
		TriKe:     1e3,
		TriKa:     1e3,
		TriKd:     10,
		ContactKe: 1e4,
		ContactKd: 1e2,
		Collider: ColliderConfig{
			Mesh:     "bunny",
			Position: [3]float64{1, 0, 1},
			YawDeg:   90,
			Scale:    2,
			Ke:       1e2,
			Kd:       1e2,
			Kf:       10,
		},
	}
}

func DefaultRigidChain() RigidChainConfig {
	return RigidChainConfig{
		Links:     8,
		Width:     1,
		Armature:  0.1,
		Density:   10,
		TargetDeg: 180,
		TargetKe:  1e5,
		TargetKd:  1e2,
		LimitKe:   1e5,
		LimitKd:   1,
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Normalize applies rules that tie fields together: an unbounded run needs
// a window to close, so it is never headless.
func (c *Config) Normalize() {
	if c.Frames == Unbounded {
		c.Headless = false
	}
}

func (c *Config) Unbounded() bool { return c.Frames == Unbounded }

// Validate is the single check of a configuration before a session is
// built. Errors name the offending field.
func (c *Config) Validate() error {
	const op = "config"
	switch {
	case c.FPS <= 0:
		return dynamo.Configf(op, "fps", "must be positive, got %v", c.FPS)
	case c.Substeps < 1:
		return dynamo.Configf(op, "substeps", "must be at least 1, got %d", c.Substeps)
	case c.Frames < 1 && c.Frames != Unbounded:
		return dynamo.Configf(op, "frames", "must be positive or %d, got %d", Unbounded, c.Frames)
	case c.Iterations < 0:
		return dynamo.Configf(op, "iterations", "must not be negative, got %d", c.Iterations)
	case c.Device == "":
		return dynamo.Configf(op, "device", "missing")
	case c.Integrator == "":
		return dynamo.Configf(op, "integrator", "missing")
	}

	switch c.Scene {
	case "chain":
		return c.Chain.validate()
	case "cloth":
		return c.Cloth.validate()
	case "rigid_chain":
		return c.RigidChain.validate()
	case "":
		return dynamo.Configf(op, "scene", "missing")
	}
	return dynamo.Configf(op, "scene", "unknown scene: %s", c.Scene)
}

func (c ChainConfig) validate() error {
	const op = "config.chain"
	switch {
	case c.NumParticles < 2:
		return dynamo.Configf(op, "num_particles", "need at least 2, got %d", c.NumParticles)
	case c.Length <= 0:
		return dynamo.Configf(op, "length", "must be positive, got %v", c.Length)
	case c.Mass <= 0:
		return dynamo.Configf(op, "mass", "must be positive, got %v", c.Mass)
	case c.Radius < 0:
		return dynamo.Configf(op, "radius", "must not be negative, got %v", c.Radius)
	case c.SpringKe <= 0 || c.SpringKd < 0:
		return dynamo.Configf(op, "spring_ke", "stiffness must be positive and damping non-negative")
	}
	return nil
}

func (c ClothConfig) validate() error {
	const op = "config.cloth"
	switch {
	case c.DimX < 1 || c.DimY < 1:
		return dynamo.Configf(op, "dim_x", "grid must be at least 1x1, got %dx%d", c.DimX, c.DimY)
	case c.Cell <= 0:
		return dynamo.Configf(op, "cell", "must be positive, got %v", c.Cell)
	case c.Mass <= 0:
		return dynamo.Configf(op, "mass", "must be positive, got %v", c.Mass)
	case c.Springs && c.SpringKe <= 0:
		return dynamo.Configf(op, "spring_ke", "must be positive when springs are enabled")
	case c.Collider.Mesh != "" && c.Collider.Scale <= 0:
		return dynamo.Configf(op, "collider.scale", "must be positive, got %v", c.Collider.Scale)
	}
	return nil
}

func (c RigidChainConfig) validate() error {
	const op = "config.rigid_chain"
	switch {
	case c.Links < 1:
		return dynamo.Configf(op, "links", "need at least 1, got %d", c.Links)
	case c.Width <= 0:
		return dynamo.Configf(op, "width", "must be positive, got %v", c.Width)
	case c.Density <= 0:
		return dynamo.Configf(op, "density", "must be positive, got %v", c.Density)
	case c.Armature < 0:
		return dynamo.Configf(op, "armature", "must not be negative, got %v", c.Armature)
	}
	return nil
}
