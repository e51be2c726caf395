package invert

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxCondition is the conditioning ceiling for undamped solves. Systems that
// factorize but sit above it are reported as ill-posed when lambda == 0.
const MaxCondition = 1e12

// Solver produces model updates from the damped, error-weighted normal
// equations
//
//	(J'WJ + lambda C'C) dp = J'W r - lambda C'C dev
//
// where W is the diagonal of inverse squared data errors, r the residual and
// dev the departure of the current model from the reference model.
type Solver struct {
	MaxCond float64
}

func NewSolver() *Solver {
	return &Solver{MaxCond: MaxCondition}
}

// Solve assembles and factorizes the normal equations and returns the update
// dp. weights must hold 1/e_i^2 per datum. dev may be nil to drop the
// reference pull from the right-hand side.
func (s *Solver) Solve(jac *mat.Dense, residual, weights Vector, c *mat.Dense, lambda float64, dev Vector) (Vector, error) {
	n, m := jac.Dims()
	if len(residual) != n || len(weights) != n {
		return nil, fmt.Errorf("%w: residual %d, weights %d, want %d", ErrShapeMismatch, len(residual), len(weights), n)
	}
	if lambda < 0 {
		return nil, fmt.Errorf("%w: negative lambda %g", ErrConfig, lambda)
	}

	// Row-scale J and r by sqrt(w) so J'WJ and J'Wr reduce to plain products.
	jw := mat.NewDense(n, m, nil)
	rw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(weights[i])
		rw.SetVec(i, sw*residual[i])
		for k := 0; k < m; k++ {
			jw.Set(i, k, sw*jac.At(i, k))
		}
	}

	var a mat.SymDense
	a.SymOuterK(1, jw.T())

	b := mat.NewVecDense(m, nil)
	b.MulVec(jw.T(), rw)

	if lambda > 0 {
		if c == nil {
			return nil, fmt.Errorf("%w: nil constraint with lambda > 0", ErrConfig)
		}
		crows, ccols := c.Dims()
		if ccols != m {
			return nil, fmt.Errorf("%w: constraint %dx%d for %d parameters", ErrShapeMismatch, crows, ccols, m)
		}
		var reg mat.SymDense
		reg.SymOuterK(lambda, c.T())
		a.AddSym(&a, &reg)

		if dev != nil {
			if len(dev) != m {
				return nil, fmt.Errorf("%w: deviation length %d, want %d", ErrShapeMismatch, len(dev), m)
			}
			cd := mat.NewVecDense(crows, nil)
			cd.MulVec(c, mat.NewVecDense(m, dev))
			pull := mat.NewVecDense(m, nil)
			pull.MulVec(c.T(), cd)
			b.AddScaledVec(b, -lambda, pull)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		if lambda == 0 {
			return nil, fmt.Errorf("%w: normal equations not positive definite", ErrIllPosed)
		}
		return nil, fmt.Errorf("%w: factorization failed at lambda=%g", ErrSingularSystem, lambda)
	}
	if lambda == 0 {
		if cond := chol.Cond(); cond > s.MaxCond {
			return nil, fmt.Errorf("%w: condition %.3g above %.3g", ErrIllPosed, cond, s.MaxCond)
		}
	}

	dp := mat.NewVecDense(m, nil)
	if err := chol.SolveVecTo(dp, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularSystem, err)
	}

	out := make(Vector, m)
	for k := 0; k < m; k++ {
		v := dp.AtVec(k)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: update component %d", ErrNonFinite, k)
		}
		out[k] = v
	}
	return out, nil
}
