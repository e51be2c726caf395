package models

import (
	"fmt"

	"math"

	"github.com/san-kum/invlab/internal/invert"
)

// Gaussians predicts a sum of Gaussian peaks
//
//	y_i = sum_k A_k * exp(-(x_i - c_k)^2 / (2 w_k^2))
//
// with parameters laid out as [A_1, c_1, w_1, A_2, c_2, w_2, ...]. The model
// deliberately carries no analytic Jacobian and exercises the engine's
// finite-difference path. Widths must be nonzero; a log transform on the
// width columns keeps them positive during inversion.
type Gaussians struct {
	X     []float64
	Peaks int
}

func NewGaussians(x []float64, peaks int) *Gaussians {
	if peaks < 1 {
		peaks = 1
	}
	return &Gaussians{X: x, Peaks: peaks}
}

func (m *Gaussians) ParameterCount() int { return 3 * m.Peaks }

func (m *Gaussians) Response(p invert.Vector) (invert.Vector, error) {
	if len(p) != m.ParameterCount() {
		return nil, fmt.Errorf("%w: got %d parameters, want %d", ErrParamCount, len(p), m.ParameterCount())
	}
	for k := 0; k < m.Peaks; k++ {
		if p[3*k+2] == 0 {
			return nil, fmt.Errorf("%w: peak %d has zero width", ErrParamDomain, k)
		}
	}
	out := make(invert.Vector, len(m.X))
	for i, xv := range m.X {
		sum := 0.0
		for k := 0; k < m.Peaks; k++ {
			amp, center, width := p[3*k], p[3*k+1], p[3*k+2]
			d := (xv - center) / width
			sum += amp * math.Exp(-0.5*d*d)
		}
		out[i] = sum
	}
	return out, nil
}

// StartModel spreads unit peaks evenly across the abscissa with widths a
// quarter of the peak spacing.
func (m *Gaussians) StartModel() invert.Vector {
	lo, hi := m.xRange()
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	start := make(invert.Vector, m.ParameterCount())
	for k := 0; k < m.Peaks; k++ {
		start[3*k] = 1
		start[3*k+1] = lo + span*(float64(k)+0.5)/float64(m.Peaks)
		start[3*k+2] = span / (4 * float64(m.Peaks))
	}
	return start
}

func (m *Gaussians) xRange() (float64, float64) {
	if len(m.X) == 0 {
		return 0, 0
	}
	lo, hi := m.X[0], m.X[0]
	for _, v := range m.X[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
