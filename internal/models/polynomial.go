package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/invlab/internal/invert"
)

// Polynomial predicts y_i = sum_j p_j * x_i^j for coefficients p_0..p_d.
// The model is linear in its parameters, so one undamped Gauss-Newton step
// solves it exactly.
type Polynomial struct {
	X      []float64
	Degree int
}

func NewPolynomial(x []float64, degree int) *Polynomial {
	return &Polynomial{X: x, Degree: degree}
}

func (m *Polynomial) ParameterCount() int { return m.Degree + 1 }

func (m *Polynomial) Response(p invert.Vector) (invert.Vector, error) {
	if len(p) != m.ParameterCount() {
		return nil, fmt.Errorf("%w: got %d coefficients, want %d", ErrParamCount, len(p), m.ParameterCount())
	}
	out := make(invert.Vector, len(m.X))
	for i, xv := range m.X {
		acc := p[len(p)-1]
		for j := len(p) - 2; j >= 0; j-- {
			acc = acc*xv + p[j]
		}
		out[i] = acc
	}
	return out, nil
}

// Jacobian is the Vandermonde matrix of the abscissa; it does not depend on
// the coefficients.
func (m *Polynomial) Jacobian(p invert.Vector) (*mat.Dense, error) {
	if len(p) != m.ParameterCount() {
		return nil, fmt.Errorf("%w: got %d coefficients, want %d", ErrParamCount, len(p), m.ParameterCount())
	}
	jac := mat.NewDense(len(m.X), len(p), nil)
	for i, xv := range m.X {
		pow := 1.0
		for j := 0; j < len(p); j++ {
			jac.Set(i, j, pow)
			pow *= xv
		}
	}
	return jac, nil
}

func (m *Polynomial) StartModel() invert.Vector {
	return make(invert.Vector, m.ParameterCount())
}
