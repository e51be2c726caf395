package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/invlab/internal/invert"
)

// DampedSine predicts an exponentially damped sinusoid
//
//	y_i = A * exp(-g*x_i) * sin(w*x_i + phi)
//
// with parameters [A, g, w, phi]. The misfit surface is multimodal in the
// frequency w, so fits far from the true frequency benefit from a
// multi-start ensemble.
type DampedSine struct {
	X []float64
}

func NewDampedSine(x []float64) *DampedSine {
	return &DampedSine{X: x}
}

func (m *DampedSine) ParameterCount() int { return 4 }

func (m *DampedSine) Response(p invert.Vector) (invert.Vector, error) {
	if len(p) != m.ParameterCount() {
		return nil, fmt.Errorf("%w: got %d parameters, want 4", ErrParamCount, len(p))
	}
	amp, damp, freq, phase := p[0], p[1], p[2], p[3]
	out := make(invert.Vector, len(m.X))
	for i, xv := range m.X {
		out[i] = amp * math.Exp(-damp*xv) * math.Sin(freq*xv+phase)
	}
	return out, nil
}

func (m *DampedSine) Jacobian(p invert.Vector) (*mat.Dense, error) {
	if len(p) != m.ParameterCount() {
		return nil, fmt.Errorf("%w: got %d parameters, want 4", ErrParamCount, len(p))
	}
	amp, damp, freq, phase := p[0], p[1], p[2], p[3]
	jac := mat.NewDense(len(m.X), 4, nil)
	for i, xv := range m.X {
		e := math.Exp(-damp * xv)
		s := math.Sin(freq*xv + phase)
		c := math.Cos(freq*xv + phase)
		jac.Set(i, 0, e*s)
		jac.Set(i, 1, -amp*xv*e*s)
		jac.Set(i, 2, amp*xv*e*c)
		jac.Set(i, 3, amp*e*c)
	}
	return jac, nil
}

func (m *DampedSine) StartModel() invert.Vector {
	return invert.Vector{1, 0.5, 1, 0}
}
