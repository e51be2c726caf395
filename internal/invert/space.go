package invert

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Transform maps one parameter between its natural value m and the internal
// coordinate t the engine iterates in. Fwd and Inv must invert each other on
// the transform domain; Deriv reports dm/dt at the natural value m, the
// inner derivative used to chain-rule Jacobian columns.
type Transform interface {
	Fwd(m float64) float64
	Inv(t float64) float64
	Deriv(m float64) float64
	Contains(m float64) bool
}

// IdentityTransform leaves values untouched.
type IdentityTransform struct{}

func (IdentityTransform) Fwd(m float64) float64   { return m }
func (IdentityTransform) Inv(t float64) float64   { return t }
func (IdentityTransform) Deriv(m float64) float64 { return 1 }
func (IdentityTransform) Contains(m float64) bool { return true }

// LogTransform iterates in ln(m), keeping the natural value strictly
// positive.
type LogTransform struct{}

func (LogTransform) Fwd(m float64) float64   { return math.Log(m) }
func (LogTransform) Inv(t float64) float64   { return math.Exp(t) }
func (LogTransform) Deriv(m float64) float64 { return m }
func (LogTransform) Contains(m float64) bool { return m > 0 }

// LogLUTransform iterates in ln((m-lo)/(up-m)), keeping the natural value
// inside the open interval (lo, up).
type LogLUTransform struct {
	Lo float64
	Up float64
}

func (tr LogLUTransform) Fwd(m float64) float64 {
	return math.Log((m - tr.Lo) / (tr.Up - m))
}

func (tr LogLUTransform) Inv(t float64) float64 {
	e := math.Exp(t)
	if math.IsInf(e, 1) {
		// limit of (lo+up*e)/(1+e) for large e
		return tr.Up
	}
	return (tr.Lo + tr.Up*e) / (1 + e)
}

func (tr LogLUTransform) Deriv(m float64) float64 {
	return (m - tr.Lo) * (tr.Up - m) / (tr.Up - tr.Lo)
}

func (tr LogLUTransform) Contains(m float64) bool {
	return m > tr.Lo && m < tr.Up
}

// Space assigns a Transform to each parameter and applies them vector-wise.
// NewSpace starts every parameter on the identity transform.
type Space struct {
	trans []Transform
}

func NewSpace(n int) *Space {
	s := &Space{trans: make([]Transform, n)}
	for i := range s.trans {
		s.trans[i] = IdentityTransform{}
	}
	return s
}

func (s *Space) Size() int { return len(s.trans) }

func (s *Space) SetTransform(i int, tr Transform) error {
	if i < 0 || i >= len(s.trans) {
		return fmt.Errorf("%w: transform index %d out of range", ErrConfig, i)
	}
	if tr == nil {
		return fmt.Errorf("%w: nil transform", ErrConfig)
	}
	s.trans[i] = tr
	return nil
}

func (s *Space) SetAll(tr Transform) {
	for i := range s.trans {
		s.trans[i] = tr
	}
}

// Fwd maps a natural model into internal coordinates.
func (s *Space) Fwd(m Vector) Vector {
	t := make(Vector, len(m))
	for i, v := range m {
		t[i] = s.trans[i].Fwd(v)
	}
	return t
}

// Inv maps internal coordinates back to a natural model.
func (s *Space) Inv(t Vector) Vector {
	m := make(Vector, len(t))
	for i, v := range t {
		m[i] = s.trans[i].Inv(v)
	}
	return m
}

// Validate reports the first component outside its transform domain.
func (s *Space) Validate(m Vector) error {
	if len(m) != len(s.trans) {
		return fmt.Errorf("%w: model length %d, space size %d", ErrShapeMismatch, len(m), len(s.trans))
	}
	for i, v := range m {
		if !s.trans[i].Contains(v) {
			return fmt.Errorf("%w: parameter %d = %g", ErrTransformDomain, i, v)
		}
	}
	return nil
}

// ScaleColumns rescales Jacobian columns by dm/dt so sensitivities refer to
// internal coordinates. m is the natural model the Jacobian was evaluated at.
func (s *Space) ScaleColumns(jac *mat.Dense, m Vector) {
	rows, cols := jac.Dims()
	for j := 0; j < cols && j < len(m); j++ {
		d := s.trans[j].Deriv(m[j])
		if d == 1 {
			continue
		}
		for i := 0; i < rows; i++ {
			jac.Set(i, j, jac.At(i, j)*d)
		}
	}
}
