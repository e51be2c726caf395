package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/invlab/internal/invert"
)

// ExpDecay predicts a sum of decaying exponentials
//
//	y_i = sum_k a_k * exp(-b_k * x_i)
//
// with parameters laid out as [a_1, b_1, a_2, b_2, ...]. Rates b_k are
// naturally positive; pair the model with a log transform to enforce that.
type ExpDecay struct {
	X     []float64
	Terms int
}

func NewExpDecay(x []float64, terms int) *ExpDecay {
	if terms < 1 {
		terms = 1
	}
	return &ExpDecay{X: x, Terms: terms}
}

func (m *ExpDecay) ParameterCount() int { return 2 * m.Terms }

func (m *ExpDecay) Response(p invert.Vector) (invert.Vector, error) {
	if len(p) != m.ParameterCount() {
		return nil, fmt.Errorf("%w: got %d parameters, want %d", ErrParamCount, len(p), m.ParameterCount())
	}
	out := make(invert.Vector, len(m.X))
	for i, xv := range m.X {
		sum := 0.0
		for k := 0; k < m.Terms; k++ {
			sum += p[2*k] * math.Exp(-p[2*k+1]*xv)
		}
		out[i] = sum
	}
	return out, nil
}

func (m *ExpDecay) Jacobian(p invert.Vector) (*mat.Dense, error) {
	if len(p) != m.ParameterCount() {
		return nil, fmt.Errorf("%w: got %d parameters, want %d", ErrParamCount, len(p), m.ParameterCount())
	}
	jac := mat.NewDense(len(m.X), len(p), nil)
	for i, xv := range m.X {
		for k := 0; k < m.Terms; k++ {
			e := math.Exp(-p[2*k+1] * xv)
			jac.Set(i, 2*k, e)
			jac.Set(i, 2*k+1, -p[2*k]*xv*e)
		}
	}
	return jac, nil
}

// StartModel proposes unit amplitudes with staggered rates so that multiple
// terms do not start degenerate.
func (m *ExpDecay) StartModel() invert.Vector {
	start := make(invert.Vector, m.ParameterCount())
	for k := 0; k < m.Terms; k++ {
		start[2*k] = 1
		start[2*k+1] = 1 / float64(k+1)
	}
	return start
}
