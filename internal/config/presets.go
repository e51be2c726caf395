package config

func preset(mut func(*Config)) *Config {
	c := DefaultConfig()
	mut(c)
	return c
}

var Presets = map[string]map[string]*Config{
	"polynomial": {
		"line": preset(func(c *Config) {
			c.Model = "polynomial"
			c.Shape.Degree = 1
			c.Engine.Lambda = 0
		}),
		"quadratic": preset(func(c *Config) {
			c.Model = "polynomial"
			c.Shape.Degree = 2
			c.Engine.Lambda = 0
		}),
		"smooth-cubic": preset(func(c *Config) {
			c.Model = "polynomial"
			c.Shape.Degree = 3
			c.Policy = "cooling"
			c.Engine.Lambda = 50
			c.Engine.ConstraintOrder = 2
			c.Engine.MaxIterations = 40
		}),
	},
	"expdecay": {
		"single": preset(func(c *Config) {
			c.Model = "expdecay"
			c.Shape.Terms = 1
			c.Transform = "log"
			c.Policy = "marquardt"
			c.Engine.Lambda = 1
			c.Engine.MaxIterations = 50
		}),
		"double": preset(func(c *Config) {
			c.Model = "expdecay"
			c.Shape.Terms = 2
			c.Transform = "log"
			c.Policy = "marquardt"
			c.Engine.Lambda = 1
			c.Engine.MaxIterations = 80
			c.Starts = 4
			c.Spread = 0.4
		}),
	},
	"gaussians": {
		"one-peak": preset(func(c *Config) {
			c.Model = "gaussians"
			c.Shape.Peaks = 1
			c.Policy = "marquardt"
			c.Engine.Lambda = 1
			c.Engine.Scheme = "central"
			c.Engine.MaxIterations = 60
		}),
		"two-peak": preset(func(c *Config) {
			c.Model = "gaussians"
			c.Shape.Peaks = 2
			c.Policy = "marquardt"
			c.Engine.Lambda = 1
			c.Engine.Scheme = "central"
			c.Engine.MaxIterations = 80
			c.Starts = 6
			c.Spread = 0.5
		}),
	},
	"dampedsine": {
		"ringdown": preset(func(c *Config) {
			c.Model = "dampedsine"
			c.Policy = "marquardt"
			c.Engine.Lambda = 1
			c.Engine.MaxIterations = 80
			c.Starts = 8
			c.Spread = 0.6
		}),
	},
}

func GetPreset(model, name string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	return names
}
