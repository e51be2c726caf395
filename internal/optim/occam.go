package optim

import (
	"context"
	"fmt"
	"math"
)

// OccamSearch bisects the regularization strength for the largest lambda
// whose fit still reaches the target chi-square: the smoothest model that
// remains consistent with the data errors. Misfit grows with lambda, so the
// search brackets the target between Lo and Hi and halves the bracket in
// log space.
type OccamSearch struct {
	Target    float64
	Tol       float64
	Lo, Hi    float64
	MaxProbes int
}

func NewOccamSearch(target float64) *OccamSearch {
	if target <= 0 {
		target = 1.0
	}
	return &OccamSearch{
		Target:    target,
		Tol:       0.05,
		Lo:        1e-4,
		Hi:        1e4,
		MaxProbes: 24,
	}
}

// Run probes the bracket ends first: a Lo probe that misses the target
// means no damping level can reach it, and a Hi probe that hits it is
// already the smoothest answer. Otherwise the bracket narrows until a
// probe lands within Tol of the target or MaxProbes is spent, and the
// largest fitting lambda wins. It returns the chosen point plus every
// probe in the order taken.
func (o *OccamSearch) Run(ctx context.Context, order int, build BuildFunc) (*ScanPoint, []ScanPoint, error) {
	if o.Lo <= 0 || o.Hi <= o.Lo {
		return nil, nil, fmt.Errorf("optim: occam bracket [%g, %g], need 0 < lo < hi", o.Lo, o.Hi)
	}
	if o.Tol < 0 {
		return nil, nil, fmt.Errorf("optim: negative tolerance %g", o.Tol)
	}

	var probes []ScanPoint
	probe := func(lam float64) (*ScanPoint, error) {
		pts, err := ScanLambda(ctx, []float64{lam}, order, build)
		if err != nil {
			return nil, err
		}
		probes = append(probes, pts[0])
		return &pts[0], nil
	}
	fits := func(p *ScanPoint) bool { return p.ChiSq <= o.Target+o.Tol }

	low, err := probe(o.Lo)
	if err != nil {
		return nil, probes, err
	}
	if !fits(low) {
		return nil, probes, fmt.Errorf("optim: target chi-square %g unreachable, chi-square %g at lambda %g",
			o.Target, low.ChiSq, o.Lo)
	}

	high, err := probe(o.Hi)
	if err != nil {
		return nil, probes, err
	}
	if fits(high) {
		return high, probes, nil
	}

	best := low
	lo, hi := o.Lo, o.Hi
	for i := 0; i < o.MaxProbes; i++ {
		mid := math.Sqrt(lo * hi)
		p, err := probe(mid)
		if err != nil {
			return nil, probes, err
		}
		if fits(p) {
			best = p
			lo = mid
			if math.Abs(p.ChiSq-o.Target) <= o.Tol {
				return p, probes, nil
			}
		} else {
			hi = mid
		}
		if hi/lo < 1.01 {
			break
		}
	}
	return best, probes, nil
}
