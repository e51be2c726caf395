package invert

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// JacobianEngine computes model sensitivities. Models implementing
// [Differentiable] are asked for their analytic Jacobian; everything else is
// differenced numerically with per-parameter step h_j = max(EpsRel*|p_j|,
// EpsAbs). Numeric differencing costs one (forward) or two (central) model
// evaluations per parameter, which dominates the run time for expensive
// models.
//
// Workers > 1 evaluates perturbed columns concurrently; the forward model
// must then tolerate concurrent Response calls.
type JacobianEngine struct {
	Scheme  Scheme
	EpsRel  float64
	EpsAbs  float64
	Workers int
}

func NewJacobianEngine(cfg Config) *JacobianEngine {
	return &JacobianEngine{
		Scheme:  cfg.Scheme,
		EpsRel:  cfg.EpsRel,
		EpsAbs:  cfg.EpsAbs,
		Workers: cfg.Workers,
	}
}

// Compute returns the N-by-M sensitivity matrix at p. base must hold the
// response already evaluated at p; forward differencing reuses it.
func (j *JacobianEngine) Compute(ctx context.Context, fop ForwardModel, p, base Vector) (*mat.Dense, error) {
	if d, ok := fop.(Differentiable); ok {
		return j.analytic(d, p, len(base))
	}
	return j.numeric(ctx, fop, p, base)
}

func (j *JacobianEngine) analytic(d Differentiable, p Vector, n int) (*mat.Dense, error) {
	jac, err := d.Jacobian(p)
	if err != nil {
		return nil, err
	}
	rows, cols := jac.Dims()
	if rows != n || cols != len(p) {
		return nil, fmt.Errorf("%w: jacobian %dx%d, want %dx%d", ErrShapeMismatch, rows, cols, n, len(p))
	}
	for i := 0; i < rows; i++ {
		for k := 0; k < cols; k++ {
			if v := jac.At(i, k); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: jacobian entry (%d,%d)", ErrNonFinite, i, k)
			}
		}
	}
	return jac, nil
}

func (j *JacobianEngine) numeric(ctx context.Context, fop ForwardModel, p, base Vector) (*mat.Dense, error) {
	n, m := len(base), len(p)
	jac := mat.NewDense(n, m, nil)

	workers := j.Workers
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for col := 0; col < m; col++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrCanceled, err)
			}
			h := j.step(p[col])
			if j.Scheme == Central {
				return j.centralColumn(fop, p, jac, col, h)
			}
			return j.forwardColumn(fop, p, base, jac, col, h)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return jac, nil
}

func (j *JacobianEngine) step(v float64) float64 {
	h := j.EpsRel * math.Abs(v)
	if h < j.EpsAbs {
		h = j.EpsAbs
	}
	return h
}

func (j *JacobianEngine) forwardColumn(fop ForwardModel, p, base Vector, jac *mat.Dense, col int, h float64) error {
	q := p.Clone()
	q[col] += h
	f, err := j.eval(fop, q, len(base))
	if err != nil {
		return err
	}
	inv := 1 / h
	for i := range f {
		d := (f[i] - base[i]) * inv
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: jacobian column %d", ErrNonFinite, col)
		}
		jac.Set(i, col, d)
	}
	return nil
}

func (j *JacobianEngine) centralColumn(fop ForwardModel, p Vector, jac *mat.Dense, col int, h float64) error {
	hi := p.Clone()
	hi[col] += h
	lo := p.Clone()
	lo[col] -= h

	n, _ := jac.Dims()
	fHi, err := j.eval(fop, hi, n)
	if err != nil {
		return err
	}
	fLo, err := j.eval(fop, lo, n)
	if err != nil {
		return err
	}
	inv := 1 / (2 * h)
	for i := range fHi {
		d := (fHi[i] - fLo[i]) * inv
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: jacobian column %d", ErrNonFinite, col)
		}
		jac.Set(i, col, d)
	}
	return nil
}

func (j *JacobianEngine) eval(fop ForwardModel, p Vector, want int) (Vector, error) {
	f, err := fop.Response(p)
	if err != nil {
		return nil, err
	}
	if len(f) != want {
		return nil, fmt.Errorf("%w: response length %d, want %d", ErrShapeMismatch, len(f), want)
	}
	if !f.IsValid() {
		return nil, fmt.Errorf("%w: perturbed response", ErrNonFinite)
	}
	return f, nil
}
