package invert

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// Ensemble runs one inversion per start model and keeps the best result by
// final chi-square. Runs execute in parallel, so the shared forward model
// must tolerate concurrent Response calls.
type Ensemble struct {
	fop    ForwardModel
	data   Vector
	errs   Vector
	cfg    Config
	space  *Space
	policy LambdaPolicy
	starts []Vector
}

func NewEnsemble(fop ForwardModel, data, errs Vector, cfg Config, starts []Vector) *Ensemble {
	return &Ensemble{fop: fop, data: data, errs: errs, cfg: cfg, starts: starts}
}

func (e *Ensemble) SetSpace(s *Space) { e.space = s }

func (e *Ensemble) SetPolicy(p LambdaPolicy) { e.policy = p }

// Run returns the best run plus every run's result indexed by start. A
// failed run does not abort the others; Run errors only when no start
// produced a usable result.
func (e *Ensemble) Run(ctx context.Context) (*Result, []*Result, error) {
	if len(e.starts) == 0 {
		return nil, nil, fmt.Errorf("%w: ensemble without start models", ErrConfig)
	}

	results := make([]*Result, len(e.starts))

	var wg sync.WaitGroup
	for i := range e.starts {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			cfg := e.cfg
			cfg.Start = e.starts[idx].Clone()

			eng := New(e.fop, e.data, e.errs, cfg)
			if e.space != nil {
				eng.SetSpace(e.space)
			}
			if e.policy != nil {
				eng.SetPolicy(e.policy)
			}
			results[idx], _ = eng.Run(ctx)
		}(i)
	}
	wg.Wait()

	var best *Result
	for _, r := range results {
		if r == nil || r.Status == Failed || len(r.ChiSq) == 0 {
			continue
		}
		if best == nil || r.FinalChiSq() < best.FinalChiSq() {
			best = r
		}
	}
	if best == nil {
		for _, r := range results {
			if r != nil && r.Err != nil {
				return nil, results, fmt.Errorf("invert: all %d starts failed: %w", len(e.starts), r.Err)
			}
		}
		return nil, results, fmt.Errorf("%w: all %d starts failed", ErrConfig, len(e.starts))
	}
	return best, results, nil
}

// PerturbedStarts builds count start vectors by jittering base with relative
// Gaussian noise of the given spread. The first start is the unperturbed
// base; output is deterministic for a given seed.
func PerturbedStarts(base Vector, count int, spread float64, seed int64) []Vector {
	rng := rand.New(rand.NewSource(seed))
	starts := make([]Vector, count)
	for i := range starts {
		if i == 0 {
			starts[i] = base.Clone()
			continue
		}
		s := make(Vector, len(base))
		for j, v := range base {
			if v == 0 {
				s[j] = spread * rng.NormFloat64()
			} else {
				s[j] = v * (1 + spread*rng.NormFloat64())
			}
		}
		starts[i] = s
	}
	return starts
}
