package automation

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/invlab/internal/experiment"
	"github.com/san-kum/invlab/internal/invert"
)

// NoiseStudy measures parameter recovery: many synthetic data sets are
// drawn from one truth with fresh noise, and each is inverted from
// scratch. Trials that fail or stop short of convergence are counted
// but excluded from the parameter statistics.
type NoiseStudy struct {
	Config experiment.Config
	Truth  invert.Vector
	Abs    float64
	Rel    float64
	Trials int
	Seed   int64
}

// StudyStats aggregates a finished study. Mean, Std and Bias run per
// parameter over the converged trials.
type StudyStats struct {
	Trials    int
	Converged int
	MeanChiSq float64
	Mean      []float64
	Std       []float64
	Bias      []float64
}

// Run executes all trials. Trial t uses seed Seed+t for both the noise
// draw and the multi-start spread, so a study replays exactly.
func (ns *NoiseStudy) Run(ctx context.Context) (*StudyStats, error) {
	if ns.Trials < 1 {
		return nil, fmt.Errorf("study needs at least one trial")
	}

	reg := experiment.NewRegistry()
	fop, err := reg.GetModel(ns.Config.Model, ns.Config.Params)
	if err != nil {
		return nil, err
	}
	if len(ns.Truth) != fop.ParameterCount() {
		return nil, fmt.Errorf("truth has %d parameters, model %q wants %d",
			len(ns.Truth), ns.Config.Model, fop.ParameterCount())
	}

	nParam := fop.ParameterCount()
	samples := make([][]float64, nParam)
	var chis []float64
	converged := 0

	for trial := 0; trial < ns.Trials; trial++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		seed := ns.Seed + int64(trial)
		data, errs, err := experiment.Synthesize(fop, ns.Truth, ns.Abs, ns.Rel, seed)
		if err != nil {
			return nil, err
		}

		cfg := ns.Config
		cfg.Seed = seed
		exp := experiment.New(cfg)
		if err := exp.Setup(data, errs); err != nil {
			return nil, err
		}

		// A diverged trial is a data point, not a study failure.
		fit, err := exp.Run(ctx)
		if err != nil {
			continue
		}
		if fit.Result.Status != invert.Converged {
			continue
		}

		converged++
		chis = append(chis, fit.Result.FinalChiSq())
		for j, v := range fit.Result.Model {
			if j < nParam {
				samples[j] = append(samples[j], v)
			}
		}

		if (trial+1)%10 == 0 {
			fmt.Printf("Study: %d/%d trials complete\n", trial+1, ns.Trials)
		}
	}

	if converged == 0 {
		return nil, fmt.Errorf("no trial converged in %d attempts", ns.Trials)
	}

	stats := &StudyStats{
		Trials:    ns.Trials,
		Converged: converged,
		MeanChiSq: stat.Mean(chis, nil),
		Mean:      make([]float64, nParam),
		Std:       make([]float64, nParam),
		Bias:      make([]float64, nParam),
	}
	for j := 0; j < nParam; j++ {
		stats.Mean[j] = stat.Mean(samples[j], nil)
		if len(samples[j]) > 1 {
			stats.Std[j] = stat.StdDev(samples[j], nil)
		}
		stats.Bias[j] = stats.Mean[j] - ns.Truth[j]
	}
	return stats, nil
}
