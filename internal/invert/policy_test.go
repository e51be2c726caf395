package invert

import (
	"math"
	"testing"
)

func TestFixedLambda(t *testing.T) {
	p := FixedLambda{}

	if l := p.Advance(2.5, 3); l != 2.5 {
		t.Errorf("expected lambda unchanged, got %f", l)
	}
	if _, ok := p.Reject(2.5); ok {
		t.Error("expected fixed policy to offer no retry")
	}
}

func TestCoolingLambda(t *testing.T) {
	p := NewCoolingLambda(0.5)

	l := 8.0
	for i := 0; i < 3; i++ {
		l = p.Advance(l, i)
	}
	if math.Abs(l-1) > 1e-12 {
		t.Errorf("expected 8 * 0.5^3 = 1, got %f", l)
	}
	if _, ok := p.Reject(l); ok {
		t.Error("expected cooling policy to offer no retry")
	}
}

func TestCoolingLambdaFloor(t *testing.T) {
	p := NewCoolingLambda(0.5)

	l := p.Floor * 1.5
	l = p.Advance(l, 0)
	if l < p.Floor {
		t.Errorf("expected cooling to stop at floor %g, got %g", p.Floor, l)
	}
}

func TestCoolingLambdaRejectsBadFactor(t *testing.T) {
	if p := NewCoolingLambda(0); p.Factor != 0.8 {
		t.Errorf("expected default factor 0.8, got %f", p.Factor)
	}
	if p := NewCoolingLambda(1.5); p.Factor != 0.8 {
		t.Errorf("expected default factor 0.8, got %f", p.Factor)
	}
}

func TestMarquardtLambda(t *testing.T) {
	p := NewMarquardtLambda()

	if l := p.Advance(1, 0); math.Abs(l-0.5) > 1e-12 {
		t.Errorf("expected lambda halved after accepted step, got %f", l)
	}

	l, ok := p.Reject(1)
	if !ok || math.Abs(l-10) > 1e-12 {
		t.Errorf("expected lambda raised to 10 on rejection, got %f (%v)", l, ok)
	}
}

func TestMarquardtLambdaCeiling(t *testing.T) {
	p := NewMarquardtLambda()

	if _, ok := p.Reject(p.Ceiling); ok {
		t.Error("expected no retry above ceiling")
	}
}

func TestMarquardtLambdaSeedsFromZero(t *testing.T) {
	p := NewMarquardtLambda()

	l, ok := p.Reject(0)
	if !ok || l != p.Seed {
		t.Errorf("expected undamped rejection to seed lambda %g, got %g (%v)", p.Seed, l, ok)
	}
}

func TestMarquardtLambdaFloor(t *testing.T) {
	p := NewMarquardtLambda()

	l := p.Advance(p.Floor*1.5, 0)
	if l < p.Floor {
		t.Errorf("expected advance to stop at floor %g, got %g", p.Floor, l)
	}
}
