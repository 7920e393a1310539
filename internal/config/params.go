package config

import (
	"math"
	"sort"

	"github.com/san-kum/framesim/internal/dynamo"
)

// setters maps dotted yaml paths to the numeric fields a sweep or scenario
// may override.
var setters = map[string]func(c *Config, v float64){
	"fps":        func(c *Config, v float64) { c.FPS = v },
	"substeps":   func(c *Config, v float64) { c.Substeps = int(math.Round(v)) },
	"iterations": func(c *Config, v float64) { c.Iterations = int(math.Round(v)) },
	"frames":     func(c *Config, v float64) { c.Frames = int(math.Round(v)) },
	"workers":    func(c *Config, v float64) { c.Workers = int(math.Round(v)) },

	"chain.num_particles": func(c *Config, v float64) { c.Chain.NumParticles = int(math.Round(v)) },
	"chain.length":        func(c *Config, v float64) { c.Chain.Length = v },
	"chain.mass":          func(c *Config, v float64) { c.Chain.Mass = v },
	"chain.spring_ke":     func(c *Config, v float64) { c.Chain.SpringKe = v },
	"chain.spring_kd":     func(c *Config, v float64) { c.Chain.SpringKd = v },

	"cloth.dim_x":      func(c *Config, v float64) { c.Cloth.DimX = int(math.Round(v)) },
	"cloth.dim_y":      func(c *Config, v float64) { c.Cloth.DimY = int(math.Round(v)) },
	"cloth.mass":       func(c *Config, v float64) { c.Cloth.Mass = v },
	"cloth.tri_ke":     func(c *Config, v float64) { c.Cloth.TriKe = v },
	"cloth.tri_ka":     func(c *Config, v float64) { c.Cloth.TriKa = v },
	"cloth.tri_kd":     func(c *Config, v float64) { c.Cloth.TriKd = v },
	"cloth.spring_ke":  func(c *Config, v float64) { c.Cloth.SpringKe = v },
	"cloth.spring_kd":  func(c *Config, v float64) { c.Cloth.SpringKd = v },
	"cloth.contact_ke": func(c *Config, v float64) { c.Cloth.ContactKe = v },
	"cloth.contact_kd": func(c *Config, v float64) { c.Cloth.ContactKd = v },

	"rigid_chain.links":      func(c *Config, v float64) { c.RigidChain.Links = int(math.Round(v)) },
	"rigid_chain.armature":   func(c *Config, v float64) { c.RigidChain.Armature = v },
	"rigid_chain.density":    func(c *Config, v float64) { c.RigidChain.Density = v },
	"rigid_chain.target_deg": func(c *Config, v float64) { c.RigidChain.TargetDeg = v },
	"rigid_chain.target_ke":  func(c *Config, v float64) { c.RigidChain.TargetKe = v },
	"rigid_chain.target_kd":  func(c *Config, v float64) { c.RigidChain.TargetKd = v },
}

// Set overrides a numeric field by its dotted yaml path, e.g.
// "chain.spring_ke". Integer fields are rounded.
func (c *Config) Set(name string, v float64) error {
	fn, ok := setters[name]
	if !ok {
		return dynamo.Configf("set", name, "unknown parameter")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return dynamo.Configf("set", name, "value must be finite, got %v", v)
	}
	fn(c, v)
	return nil
}

// SetAll applies every override in sorted key order.
func (c *Config) SetAll(params map[string]float64) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.Set(k, params[k]); err != nil {
			return err
		}
	}
	return nil
}

// Params lists the names Set accepts.
func Params() []string {
	names := make([]string, 0, len(setters))
	for k := range setters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
