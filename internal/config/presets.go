package config

import "sort"

// Presets reproduce the reference scenes. Each entry is a complete config.
var Presets = map[string]map[string]*Config{
	"chain": {
		"mass_spring": withScene("chain", func(c *Config) {
			c.Integrator = "xpbd"
			c.Substeps = 2
			c.Frames = Unbounded
			c.Headless = false
		}),
		"explicit": withScene("chain", func(c *Config) {
			c.Integrator = "semi_implicit"
			c.Substeps = 16
		}),
		"regression": withScene("chain", func(c *Config) {
			c.Integrator = "semi_implicit"
			c.Substeps = 2
			c.Frames = 1
		}),
	},
	"cloth": {
		"euler": withScene("cloth", func(c *Config) {
			c.Integrator = "semi_implicit"
			c.Substeps = 10
			c.Ground = true
		}),
		"xpbd": withScene("cloth", func(c *Config) {
			c.Integrator = "xpbd"
			c.Iterations = 1
			c.Substeps = 10
			c.Ground = true
			c.Cloth.TriKe, c.Cloth.TriKa, c.Cloth.TriKd = 1e2, 1e2, 10
			c.Cloth.Springs = true
			c.Cloth.SpringKe, c.Cloth.SpringKd = 1e3, 0
		}),
	},
	"rigid_chain": {
		"rigid_chains": withScene("rigid_chain", func(c *Config) {
			c.Integrator = "featherstone"
			c.Substeps = 10
		}),
		"swing": withScene("rigid_chain", func(c *Config) {
			c.Integrator = "featherstone"
			c.Substeps = 10
			c.RigidChain.TargetKe, c.RigidChain.TargetKd = 0, 0
		}),
	},
}

func withScene(scene string, fn func(*Config)) *Config {
	c := DefaultConfig()
	c.Scene = scene
	fn(c)
	return c
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(scene, preset string) *Config {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	cfg, ok := scenePresets[preset]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets(scene string) []string {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenePresets))
	for name := range scenePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Scenes() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
