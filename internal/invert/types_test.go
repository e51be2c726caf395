package invert

import (
	"errors"
	"math"
	"testing"
)

func TestVectorClone(t *testing.T) {
	v := Vector{1, 2, 3}
	c := v.Clone()

	c[0] = 99

	if v[0] != 1 {
		t.Errorf("expected clone to be independent, original changed to %f", v[0])
	}
}

func TestVectorIsValid(t *testing.T) {
	if !(Vector{1, -2, 0}).IsValid() {
		t.Error("expected finite vector to be valid")
	}
	if (Vector{1, math.NaN()}).IsValid() {
		t.Error("expected NaN vector to be invalid")
	}
	if (Vector{math.Inf(1), 0}).IsValid() {
		t.Error("expected Inf vector to be invalid")
	}
}

func TestVectorNorm(t *testing.T) {
	v := Vector{3, 4}
	if math.Abs(v.Norm()-5) > 1e-12 {
		t.Errorf("expected norm 5, got %f", v.Norm())
	}
}

func TestVectorArithmetic(t *testing.T) {
	a := Vector{1, 2}
	b := Vector{3, 5}

	sum := a.Add(b)
	if sum[0] != 4 || sum[1] != 7 {
		t.Errorf("expected [4 7], got %v", sum)
	}

	diff := b.Sub(a)
	if diff[0] != 2 || diff[1] != 3 {
		t.Errorf("expected [2 3], got %v", diff)
	}

	scaled := a.Scale(2)
	if scaled[0] != 2 || scaled[1] != 4 {
		t.Errorf("expected [2 4], got %v", scaled)
	}

	if dot := a.Dot(b); dot != 13 {
		t.Errorf("expected dot 13, got %f", dot)
	}
}

func TestErrorModel(t *testing.T) {
	data := Vector{10, -20, 0}
	errs, err := ErrorModel(data, 0.5, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Vector{1.5, 2.5, 0.5}
	for i := range want {
		if math.Abs(errs[i]-want[i]) > 1e-12 {
			t.Errorf("error %d: expected %f, got %f", i, want[i], errs[i])
		}
	}
}

func TestErrorModelRejectsZero(t *testing.T) {
	if _, err := ErrorModel(Vector{1, 2}, 0, 0); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for zero error model, got %v", err)
	}
	if _, err := ErrorModel(Vector{1, 2}, -1, 0.1); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for negative absolute error, got %v", err)
	}
	// rel-only model with a zero datum yields a zero error entry
	if _, err := ErrorModel(Vector{0, 2}, 0, 0.1); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for zero entry, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TargetChiSq != 1.0 {
		t.Errorf("expected target chi-square 1.0, got %f", cfg.TargetChiSq)
	}
	if cfg.MaxIterations <= 0 {
		t.Errorf("expected positive iteration budget, got %d", cfg.MaxIterations)
	}
	if cfg.Lambda <= 0 {
		t.Errorf("expected positive default lambda, got %f", cfg.Lambda)
	}
	if cfg.StartValue == 0 {
		t.Error("expected nonzero default start value for log transforms")
	}
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		Initialized:          "initialized",
		Iterating:            "iterating",
		Converged:            "converged",
		MaxIterationsReached: "max-iterations",
		Failed:               "failed",
	}
	for st, want := range cases {
		if st.String() != want {
			t.Errorf("expected %q, got %q", want, st.String())
		}
	}
}
