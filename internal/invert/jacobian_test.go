package invert

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// quadModel mixes a linear and a nonlinear parameter: y_i = p0*x_i + p1^2.
type quadModel struct {
	x []float64
}

func (m *quadModel) Response(p Vector) (Vector, error) {
	out := make(Vector, len(m.x))
	for i, xv := range m.x {
		out[i] = p[0]*xv + p[1]*p[1]
	}
	return out, nil
}

func (m *quadModel) ParameterCount() int { return 2 }

type analyticStub struct {
	jac *mat.Dense
	n   int
}

func (s *analyticStub) Response(p Vector) (Vector, error) {
	return make(Vector, s.n), nil
}

func (s *analyticStub) ParameterCount() int { return 2 }

func (s *analyticStub) Jacobian(p Vector) (*mat.Dense, error) {
	return s.jac, nil
}

type failingModel struct {
	err error
}

func (m *failingModel) Response(p Vector) (Vector, error) { return nil, m.err }
func (m *failingModel) ParameterCount() int               { return 1 }

func jacobianAt(t *testing.T, je *JacobianEngine, fop ForwardModel, p Vector) *mat.Dense {
	t.Helper()
	base, err := fop.Response(p)
	if err != nil {
		t.Fatalf("base response failed: %v", err)
	}
	jac, err := je.Compute(context.Background(), fop, p, base)
	if err != nil {
		t.Fatalf("jacobian failed: %v", err)
	}
	return jac
}

func TestForwardDifferenceAccuracy(t *testing.T) {
	fop := &quadModel{x: []float64{0, 1, 2}}
	je := &JacobianEngine{Scheme: Forward, EpsRel: 1e-6, EpsAbs: 1e-6, Workers: 1}

	p := Vector{2, 3}
	jac := jacobianAt(t, je, fop, p)

	for i, xv := range fop.x {
		if math.Abs(jac.At(i, 0)-xv) > 1e-4 {
			t.Errorf("row %d: expected d/dp0 = %f, got %f", i, xv, jac.At(i, 0))
		}
		if math.Abs(jac.At(i, 1)-6) > 1e-4 {
			t.Errorf("row %d: expected d/dp1 = 6, got %f", i, jac.At(i, 1))
		}
	}
}

func TestCentralDifferenceAccuracy(t *testing.T) {
	fop := &quadModel{x: []float64{0, 1, 2}}
	je := &JacobianEngine{Scheme: Central, EpsRel: 1e-6, EpsAbs: 1e-6, Workers: 1}

	jac := jacobianAt(t, je, fop, Vector{2, 3})

	// the response is quadratic in p1, so the central stencil is exact up
	// to rounding
	for i := range fop.x {
		if math.Abs(jac.At(i, 1)-6) > 1e-8 {
			t.Errorf("row %d: expected d/dp1 = 6, got %.12f", i, jac.At(i, 1))
		}
	}
}

func TestZeroParameterUsesAbsoluteStep(t *testing.T) {
	fop := &quadModel{x: []float64{0, 1, 2}}
	je := &JacobianEngine{Scheme: Forward, EpsRel: 1e-6, EpsAbs: 1e-6, Workers: 1}

	jac := jacobianAt(t, je, fop, Vector{0, 3})

	for i, xv := range fop.x {
		if math.Abs(jac.At(i, 0)-xv) > 1e-4 {
			t.Errorf("row %d: expected d/dp0 = %f at p0 = 0, got %f", i, xv, jac.At(i, 0))
		}
	}
}

func TestParallelColumnsMatchSerial(t *testing.T) {
	fop := &quadModel{x: []float64{0, 0.5, 1, 1.5, 2}}
	p := Vector{2, 3}

	serial := jacobianAt(t, &JacobianEngine{Scheme: Forward, EpsRel: 1e-6, EpsAbs: 1e-6, Workers: 1}, fop, p)
	parallel := jacobianAt(t, &JacobianEngine{Scheme: Forward, EpsRel: 1e-6, EpsAbs: 1e-6, Workers: 4}, fop, p)

	if !mat.Equal(serial, parallel) {
		t.Error("expected identical jacobians from serial and parallel evaluation")
	}
}

func TestAnalyticJacobianPreferred(t *testing.T) {
	want := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	fop := &analyticStub{jac: want, n: 3}
	je := NewJacobianEngine(DefaultConfig())

	jac, err := je.Compute(context.Background(), fop, Vector{1, 1}, make(Vector, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mat.Equal(jac, want) {
		t.Error("expected analytic jacobian to be returned unchanged")
	}
}

func TestAnalyticJacobianShapeChecked(t *testing.T) {
	fop := &analyticStub{jac: mat.NewDense(2, 2, nil), n: 3}
	je := NewJacobianEngine(DefaultConfig())

	_, err := je.Compute(context.Background(), fop, Vector{1, 1}, make(Vector, 3))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestAnalyticJacobianFiniteChecked(t *testing.T) {
	bad := mat.NewDense(3, 2, nil)
	bad.Set(1, 1, math.NaN())
	fop := &analyticStub{jac: bad, n: 3}
	je := NewJacobianEngine(DefaultConfig())

	_, err := je.Compute(context.Background(), fop, Vector{1, 1}, make(Vector, 3))
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("expected ErrNonFinite, got %v", err)
	}
}

func TestNumericJacobianPropagatesModelError(t *testing.T) {
	boom := errors.New("model exploded")
	je := NewJacobianEngine(DefaultConfig())

	_, err := je.Compute(context.Background(), &failingModel{err: boom}, Vector{1}, Vector{0})
	if !errors.Is(err, boom) {
		t.Errorf("expected model error to propagate, got %v", err)
	}
}

func TestNumericJacobianCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fop := &quadModel{x: []float64{0, 1}}
	je := NewJacobianEngine(DefaultConfig())

	_, err := je.Compute(ctx, fop, Vector{1, 1}, Vector{1, 2})
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", err)
	}
}
