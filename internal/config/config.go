package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/invlab/internal/invert"
)

const (
	DefaultLambda      = 20.0
	DefaultMaxIter     = 20
	DefaultTargetChiSq = 1.0
	DefaultChiSqTol    = 0.1
	DefaultMinDecrease = 0.01
	DefaultEps         = 1e-6
	DefaultMaxStepCuts = 6
	DefaultStartValue  = 1.0
	DefaultNoiseAbs    = 0.01
	DefaultNoiseRel    = 0.03
	DefaultSpread      = 0.5
)

type Config struct {
	Model      string       `yaml:"model"`
	Shape      ShapeConfig  `yaml:"shape"`
	Transform  string       `yaml:"transform"`
	Lo         float64      `yaml:"lo"`
	Up         float64      `yaml:"up"`
	Policy     string       `yaml:"policy"`
	CoolFactor float64      `yaml:"cool_factor"`
	Engine     EngineConfig `yaml:"engine"`
	Noise      NoiseConfig  `yaml:"noise"`
	Seed       int64        `yaml:"seed"`
	Starts     int          `yaml:"starts"`
	Spread     float64      `yaml:"spread"`
}

type ShapeConfig struct {
	Degree int `yaml:"degree"`
	Terms  int `yaml:"terms"`
	Peaks  int `yaml:"peaks"`
}

type EngineConfig struct {
	Lambda          float64   `yaml:"lambda"`
	MaxIterations   int       `yaml:"max_iterations"`
	TargetChiSq     float64   `yaml:"target_chi2"`
	ChiSqTolerance  float64   `yaml:"chi2_tolerance"`
	MinDecrease     float64   `yaml:"min_decrease"`
	Scheme          string    `yaml:"scheme"`
	EpsRel          float64   `yaml:"eps_rel"`
	EpsAbs          float64   `yaml:"eps_abs"`
	Workers         int       `yaml:"workers"`
	StepPolicy      string    `yaml:"step_policy"`
	MaxStepCuts     int       `yaml:"max_step_cuts"`
	ConstraintOrder int       `yaml:"constraint_order"`
	Reference       string    `yaml:"reference"`
	Start           []float64 `yaml:"start"`
	StartValue      float64   `yaml:"start_value"`
}

// NoiseConfig is the error model applied to synthetic data and to
// observation files that carry no error column: e_i = abs + rel*|d_i|.
type NoiseConfig struct {
	Abs float64 `yaml:"abs"`
	Rel float64 `yaml:"rel"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "polynomial",
		Shape:      ShapeConfig{Degree: 1, Terms: 1, Peaks: 1},
		Transform:  "none",
		Policy:     "fixed",
		CoolFactor: 0.8,
		Engine: EngineConfig{
			Lambda:         DefaultLambda,
			MaxIterations:  DefaultMaxIter,
			TargetChiSq:    DefaultTargetChiSq,
			ChiSqTolerance: DefaultChiSqTol,
			MinDecrease:    DefaultMinDecrease,
			Scheme:         "forward",
			EpsRel:         DefaultEps,
			EpsAbs:         DefaultEps,
			Workers:        1,
			StepPolicy:     "linesearch",
			MaxStepCuts:    DefaultMaxStepCuts,
			Reference:      "zero",
			StartValue:     DefaultStartValue,
		},
		Noise:  NoiseConfig{Abs: DefaultNoiseAbs, Rel: DefaultNoiseRel},
		Starts: 1,
		Spread: DefaultSpread,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
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

// EngineSettings converts the yaml engine block to engine options,
// resolving the scheme, step policy and reference names.
func (c *Config) EngineSettings() (invert.Config, error) {
	ec := invert.Config{
		Lambda:          c.Engine.Lambda,
		MaxIterations:   c.Engine.MaxIterations,
		TargetChiSq:     c.Engine.TargetChiSq,
		ChiSqTolerance:  c.Engine.ChiSqTolerance,
		MinDecrease:     c.Engine.MinDecrease,
		EpsRel:          c.Engine.EpsRel,
		EpsAbs:          c.Engine.EpsAbs,
		Workers:         c.Engine.Workers,
		MaxStepCuts:     c.Engine.MaxStepCuts,
		ConstraintOrder: c.Engine.ConstraintOrder,
		StartValue:      c.Engine.StartValue,
	}

	switch c.Engine.Scheme {
	case "", "forward":
		ec.Scheme = invert.Forward
	case "central":
		ec.Scheme = invert.Central
	default:
		return ec, fmt.Errorf("unknown scheme: %s", c.Engine.Scheme)
	}

	switch c.Engine.StepPolicy {
	case "", "linesearch":
		ec.StepPolicy = invert.LineSearch
	case "fixed":
		ec.StepPolicy = invert.FixedStep
	default:
		return ec, fmt.Errorf("unknown step policy: %s", c.Engine.StepPolicy)
	}

	switch c.Engine.Reference {
	case "", "zero":
		ec.Reference = invert.ReferenceZero
	case "start":
		ec.Reference = invert.ReferenceStart
	default:
		return ec, fmt.Errorf("unknown reference: %s", c.Engine.Reference)
	}

	if len(c.Engine.Start) > 0 {
		ec.Start = invert.Vector(c.Engine.Start)
	}
	return ec, nil
}

// PolicyArgs returns the lambda policy parameters for the registry.
func (c *Config) PolicyArgs() map[string]float64 {
	return map[string]float64{
		"factor": c.CoolFactor,
	}
}
