package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/invlab/internal/experiment"
	"github.com/san-kum/invlab/internal/invert"
)

// ScanPoint is one probe of the regularization trade-off: the misfit and
// model roughness a fit reached at a given lambda.
type ScanPoint struct {
	Lambda    float64
	ChiSq     float64
	Roughness float64
	Model     invert.Vector
	Status    invert.Status
}

// BuildFunc constructs a ready-to-run experiment for one lambda. The
// returned experiment must already carry its data and errors; every call
// should differ only in the regularization strength.
type BuildFunc func(lambda float64) (*experiment.Experiment, error)

// ScanLambda runs one full inversion per lambda and returns the trade-off
// curve between data misfit and model roughness (the L-curve). order picks
// the roughness operator the Roughness column is evaluated with and should
// match the constraint order the experiments solve with. Probes whose run
// fails are skipped; ScanLambda errors only when no probe succeeded.
func ScanLambda(ctx context.Context, lambdas []float64, order int, build BuildFunc) ([]ScanPoint, error) {
	if len(lambdas) == 0 {
		return nil, fmt.Errorf("optim: no lambda values to scan")
	}

	points := make([]ScanPoint, 0, len(lambdas))
	var lastErr error
	for _, lam := range lambdas {
		if err := ctx.Err(); err != nil {
			return points, err
		}
		if lam < 0 {
			return points, fmt.Errorf("optim: negative lambda %g", lam)
		}

		exp, err := build(lam)
		if err != nil {
			return points, err
		}
		fr, err := exp.Run(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		pt := ScanPoint{
			Lambda: lam,
			ChiSq:  fr.Result.FinalChiSq(),
			Model:  fr.Result.Model,
			Status: fr.Result.Status,
		}
		if c, err := invert.ConstraintByOrder(order, len(pt.Model)); err == nil {
			pt.Roughness = invert.Roughness(c, pt.Model)
		}
		points = append(points, pt)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("optim: every lambda probe failed: %w", lastErr)
	}
	return points, nil
}

// LogSpace returns n logarithmically spaced values from lo to hi inclusive.
func LogSpace(lo, hi float64, n int) ([]float64, error) {
	if lo <= 0 || hi <= lo {
		return nil, fmt.Errorf("optim: log range [%g, %g], need 0 < lo < hi", lo, hi)
	}
	if n < 2 {
		return nil, fmt.Errorf("optim: log spacing needs at least 2 points, got %d", n)
	}
	out := make([]float64, n)
	step := (math.Log(hi) - math.Log(lo)) / float64(n-1)
	for i := range out {
		out[i] = math.Exp(math.Log(lo) + float64(i)*step)
	}
	out[0] = lo
	out[n-1] = hi
	return out, nil
}
