package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/invlab/internal/invert"
	"github.com/san-kum/invlab/internal/models"
)

// ModelParams carries everything a forward-model factory needs: the
// abscissa the model is sampled at plus the family-specific shape knobs.
type ModelParams struct {
	X      []float64
	Degree int // polynomial
	Terms  int // expdecay
	Peaks  int // gaussians
}

type Registry struct {
	models     map[string]func(ModelParams) (invert.ForwardModel, error)
	transforms map[string]func(lo, up float64) (invert.Transform, error)
	policies   map[string]func(params map[string]float64) invert.LambdaPolicy
}

func NewRegistry() *Registry {
	r := &Registry{
		models:     make(map[string]func(ModelParams) (invert.ForwardModel, error)),
		transforms: make(map[string]func(lo, up float64) (invert.Transform, error)),
		policies:   make(map[string]func(params map[string]float64) invert.LambdaPolicy),
	}

	r.models["polynomial"] = func(p ModelParams) (invert.ForwardModel, error) {
		if p.Degree < 0 {
			return nil, fmt.Errorf("polynomial degree %d, must be >= 0", p.Degree)
		}
		return models.NewPolynomial(p.X, p.Degree), nil
	}
	r.models["expdecay"] = func(p ModelParams) (invert.ForwardModel, error) {
		terms := p.Terms
		if terms == 0 {
			terms = 1
		}
		if terms < 0 {
			return nil, fmt.Errorf("expdecay terms %d, must be >= 1", terms)
		}
		return models.NewExpDecay(p.X, terms), nil
	}
	r.models["gaussians"] = func(p ModelParams) (invert.ForwardModel, error) {
		peaks := p.Peaks
		if peaks == 0 {
			peaks = 1
		}
		if peaks < 0 {
			return nil, fmt.Errorf("gaussians peaks %d, must be >= 1", peaks)
		}
		return models.NewGaussians(p.X, peaks), nil
	}
	r.models["dampedsine"] = func(p ModelParams) (invert.ForwardModel, error) {
		return models.NewDampedSine(p.X), nil
	}

	r.transforms["none"] = func(lo, up float64) (invert.Transform, error) {
		return invert.IdentityTransform{}, nil
	}
	r.transforms["log"] = func(lo, up float64) (invert.Transform, error) {
		return invert.LogTransform{}, nil
	}
	r.transforms["loglu"] = func(lo, up float64) (invert.Transform, error) {
		if lo >= up {
			return nil, fmt.Errorf("loglu bounds [%g, %g], need lo < up", lo, up)
		}
		return invert.LogLUTransform{Lo: lo, Up: up}, nil
	}

	r.policies["fixed"] = func(params map[string]float64) invert.LambdaPolicy {
		return invert.FixedLambda{}
	}
	r.policies["cooling"] = func(params map[string]float64) invert.LambdaPolicy {
		return invert.NewCoolingLambda(params["factor"])
	}
	r.policies["marquardt"] = func(params map[string]float64) invert.LambdaPolicy {
		return invert.NewMarquardtLambda()
	}

	return r
}

func (r *Registry) GetModel(name string, params ModelParams) (invert.ForwardModel, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	if len(params.X) == 0 {
		return nil, fmt.Errorf("model %s: empty abscissa", name)
	}
	return fn(params)
}

func (r *Registry) GetTransform(name string, lo, up float64) (invert.Transform, error) {
	fn, ok := r.transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform: %s", name)
	}
	return fn(lo, up)
}

func (r *Registry) GetPolicy(name string, params map[string]float64) (invert.LambdaPolicy, error) {
	fn, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown lambda policy: %s", name)
	}
	return fn(params), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListPolicies() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
