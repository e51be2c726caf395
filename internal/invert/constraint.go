package invert

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// IdentityConstraint returns the m-by-m identity operator: zeroth-order
// Tikhonov damping that penalizes model amplitude.
func IdentityConstraint(m int) *mat.Dense {
	c := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		c.Set(i, i, 1)
	}
	return c
}

// FirstDifference returns the (m-1)-by-m operator whose rows penalize steps
// between neighboring parameters.
func FirstDifference(m int) *mat.Dense {
	c := mat.NewDense(m-1, m, nil)
	for i := 0; i < m-1; i++ {
		c.Set(i, i, -1)
		c.Set(i, i+1, 1)
	}
	return c
}

// SecondDifference returns the (m-2)-by-m operator whose rows penalize
// curvature across parameter triples.
func SecondDifference(m int) *mat.Dense {
	c := mat.NewDense(m-2, m, nil)
	for i := 0; i < m-2; i++ {
		c.Set(i, i, 1)
		c.Set(i, i+1, -2)
		c.Set(i, i+2, 1)
	}
	return c
}

// ConstraintByOrder builds the constraint operator for orders 0, 1 or 2.
// Orders whose difference operator would come out empty for small m fall
// back to the next lower order.
func ConstraintByOrder(order, m int) (*mat.Dense, error) {
	if m <= 0 {
		return nil, fmt.Errorf("%w: constraint for %d parameters", ErrConfig, m)
	}
	switch order {
	case 0:
		return IdentityConstraint(m), nil
	case 1:
		if m < 2 {
			return IdentityConstraint(m), nil
		}
		return FirstDifference(m), nil
	case 2:
		if m < 3 {
			return ConstraintByOrder(1, m)
		}
		return SecondDifference(m), nil
	}
	return nil, fmt.Errorf("%w: constraint order %d (want 0, 1 or 2)", ErrConfig, order)
}

// Roughness evaluates the constraint norm ||C m||.
func Roughness(c *mat.Dense, m Vector) float64 {
	rows, cols := c.Dims()
	if cols != len(m) {
		return 0
	}
	cm := mat.NewVecDense(rows, nil)
	cm.MulVec(c, mat.NewVecDense(cols, m))
	return mat.Norm(cm, 2)
}
