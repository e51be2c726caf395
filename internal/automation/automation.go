// Package automation scripts batches of fits and noise studies.
package automation

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/invlab/internal/config"
	"github.com/san-kum/invlab/internal/dataio"
	"github.com/san-kum/invlab/internal/experiment"
	"github.com/san-kum/invlab/internal/invert"
	"github.com/san-kum/invlab/internal/storage"
)

// Step is one scripted fit: an observation file and how to invert it.
// A step starts from the defaults, then a preset, then a config file,
// then its own overrides, in that order.
type Step struct {
	Name      string  `yaml:"name"`
	Data      string  `yaml:"data"`
	Model     string  `yaml:"model"`
	Preset    string  `yaml:"preset"`
	Config    string  `yaml:"config"`
	Transform string  `yaml:"transform"`
	Lambda    float64 `yaml:"lambda"`
	MaxIter   int     `yaml:"max_iterations"`
	Degree    int     `yaml:"degree"`
	Terms     int     `yaml:"terms"`
	Peaks     int     `yaml:"peaks"`
	SaveAs    string  `yaml:"save_as"`
}

// Scenario defines a scripted fit sequence.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}

	return &scenario, nil
}

// StepResult records one finished step.
type StepResult struct {
	Name   string
	Model  string
	ChiSq  float64
	Status invert.Status
	Stop   invert.StopReason
	RunID  string
}

func (st Step) label() string {
	if st.Name != "" {
		return st.Name
	}
	return st.Data
}

func (st Step) resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()

	if st.Preset != "" {
		if st.Model == "" {
			return nil, fmt.Errorf("preset %q needs a model", st.Preset)
		}
		p := config.GetPreset(st.Model, st.Preset)
		if p == nil {
			return nil, fmt.Errorf("no preset %q for model %q", st.Preset, st.Model)
		}
		c := *p
		cfg = &c
	}
	if st.Config != "" {
		var err error
		cfg, err = config.Load(st.Config)
		if err != nil {
			return nil, err
		}
	}

	if st.Model != "" {
		cfg.Model = st.Model
	}
	if st.Transform != "" {
		cfg.Transform = st.Transform
	}
	if st.Lambda > 0 {
		cfg.Engine.Lambda = st.Lambda
	}
	if st.MaxIter > 0 {
		cfg.Engine.MaxIterations = st.MaxIter
	}
	if st.Degree > 0 {
		cfg.Shape.Degree = st.Degree
	}
	if st.Terms > 0 {
		cfg.Shape.Terms = st.Terms
	}
	if st.Peaks > 0 {
		cfg.Shape.Peaks = st.Peaks
	}
	return cfg, nil
}

// RunScenario executes all steps in order. Steps with a save_as label
// persist their run to the store; a nil store skips saving everywhere.
// Observation files without an error column get the config error model.
func RunScenario(ctx context.Context, scenario *Scenario, store *storage.Store) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, st := range scenario.Steps {
		fmt.Printf("Running step %d/%d: %s\n", i+1, len(scenario.Steps), st.label())

		cfg, err := st.resolve()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		x, y, e, err := dataio.LoadColumns(st.Data)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		if e == nil {
			e, err = invert.ErrorModel(y, cfg.Noise.Abs, cfg.Noise.Rel)
			if err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
		}

		ec, err := cfg.EngineSettings()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp := experiment.New(experiment.Config{
			Model: cfg.Model,
			Params: experiment.ModelParams{
				X:      x,
				Degree: cfg.Shape.Degree,
				Terms:  cfg.Shape.Terms,
				Peaks:  cfg.Shape.Peaks,
			},
			Transform:  cfg.Transform,
			Lo:         cfg.Lo,
			Up:         cfg.Up,
			Policy:     cfg.Policy,
			PolicyArgs: cfg.PolicyArgs(),
			Engine:     ec,
			Starts:     cfg.Starts,
			Spread:     cfg.Spread,
			Seed:       cfg.Seed,
		})
		if err := exp.Setup(y, e); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		fit, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{
			Name:   st.label(),
			Model:  cfg.Model,
			ChiSq:  fit.Result.FinalChiSq(),
			Status: fit.Result.Status,
			Stop:   fit.Result.Stop,
		}

		if store != nil && st.SaveAs != "" {
			runID, err := store.Save(storage.RunMetadata{
				Model:     cfg.Model,
				Seed:      cfg.Seed,
				Lambda:    cfg.Engine.Lambda,
				Transform: cfg.Transform,
				Policy:    cfg.Policy,
				Metrics:   fit.Summary.Map(),
			}, fit.Result, x, y, e)
			if err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
			sr.RunID = runID
		}

		results = append(results, sr)
	}

	return results, nil
}
