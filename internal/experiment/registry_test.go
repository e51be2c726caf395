package experiment

import (
	"reflect"
	"testing"

	"github.com/san-kum/invlab/internal/invert"
)

func TestRegistryResolvesEveryModel(t *testing.T) {
	reg := NewRegistry()
	x := []float64{0, 1, 2, 3}
	params := ModelParams{X: x, Degree: 2, Terms: 2, Peaks: 2}

	wantCount := map[string]int{
		"polynomial": 3,
		"expdecay":   4,
		"gaussians":  6,
		"dampedsine": 4,
	}
	for name, want := range wantCount {
		fop, err := reg.GetModel(name, params)
		if err != nil {
			t.Fatalf("GetModel(%q): %v", name, err)
		}
		if got := fop.ParameterCount(); got != want {
			t.Errorf("%s parameter count = %d, want %d", name, got, want)
		}
	}
}

func TestRegistryUnknownModel(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.GetModel("spline", ModelParams{X: []float64{1}}); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestRegistryRejectsEmptyAbscissa(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.GetModel("polynomial", ModelParams{Degree: 1}); err == nil {
		t.Error("expected error for empty abscissa")
	}
}

func TestRegistryRejectsNegativeShapes(t *testing.T) {
	reg := NewRegistry()
	x := []float64{0, 1}
	if _, err := reg.GetModel("polynomial", ModelParams{X: x, Degree: -1}); err == nil {
		t.Error("expected error for negative degree")
	}
	if _, err := reg.GetModel("expdecay", ModelParams{X: x, Terms: -2}); err == nil {
		t.Error("expected error for negative terms")
	}
	if _, err := reg.GetModel("gaussians", ModelParams{X: x, Peaks: -1}); err == nil {
		t.Error("expected error for negative peaks")
	}
}

func TestRegistryShapeDefaults(t *testing.T) {
	reg := NewRegistry()
	x := []float64{0, 1, 2}

	fop, err := reg.GetModel("expdecay", ModelParams{X: x})
	if err != nil {
		t.Fatalf("GetModel: %v", err)
	}
	if got := fop.ParameterCount(); got != 2 {
		t.Errorf("default expdecay parameter count = %d, want 2 (one term)", got)
	}

	fop, err = reg.GetModel("gaussians", ModelParams{X: x})
	if err != nil {
		t.Fatalf("GetModel: %v", err)
	}
	if got := fop.ParameterCount(); got != 3 {
		t.Errorf("default gaussians parameter count = %d, want 3 (one peak)", got)
	}
}

func TestRegistryTransforms(t *testing.T) {
	reg := NewRegistry()

	tr, err := reg.GetTransform("none", 0, 0)
	if err != nil {
		t.Fatalf("GetTransform(none): %v", err)
	}
	if _, ok := tr.(invert.IdentityTransform); !ok {
		t.Errorf("none transform is %T, want IdentityTransform", tr)
	}

	tr, err = reg.GetTransform("log", 0, 0)
	if err != nil {
		t.Fatalf("GetTransform(log): %v", err)
	}
	if _, ok := tr.(invert.LogTransform); !ok {
		t.Errorf("log transform is %T, want LogTransform", tr)
	}

	tr, err = reg.GetTransform("loglu", 1, 10)
	if err != nil {
		t.Fatalf("GetTransform(loglu): %v", err)
	}
	lu, ok := tr.(invert.LogLUTransform)
	if !ok {
		t.Fatalf("loglu transform is %T, want LogLUTransform", tr)
	}
	if lu.Lo != 1 || lu.Up != 10 {
		t.Errorf("loglu bounds = [%g, %g], want [1, 10]", lu.Lo, lu.Up)
	}

	if _, err := reg.GetTransform("loglu", 5, 5); err == nil {
		t.Error("expected error for empty loglu interval")
	}
	if _, err := reg.GetTransform("atan", 0, 0); err == nil {
		t.Error("expected error for unknown transform")
	}
}

func TestRegistryPolicies(t *testing.T) {
	reg := NewRegistry()

	p, err := reg.GetPolicy("fixed", nil)
	if err != nil {
		t.Fatalf("GetPolicy(fixed): %v", err)
	}
	if got := p.Advance(3, 0); got != 3 {
		t.Errorf("fixed policy advanced lambda to %g", got)
	}

	p, err = reg.GetPolicy("cooling", map[string]float64{"factor": 0.5})
	if err != nil {
		t.Fatalf("GetPolicy(cooling): %v", err)
	}
	if got := p.Advance(8, 0); got != 4 {
		t.Errorf("cooling policy advanced 8 to %g, want 4", got)
	}

	if _, err := reg.GetPolicy("marquardt", nil); err != nil {
		t.Fatalf("GetPolicy(marquardt): %v", err)
	}
	if _, err := reg.GetPolicy("annealing", nil); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestRegistryLists(t *testing.T) {
	reg := NewRegistry()

	models := reg.ListModels()
	want := []string{"dampedsine", "expdecay", "gaussians", "polynomial"}
	if !reflect.DeepEqual(models, want) {
		t.Errorf("ListModels() = %v, want %v", models, want)
	}

	policies := reg.ListPolicies()
	wantP := []string{"cooling", "fixed", "marquardt"}
	if !reflect.DeepEqual(policies, wantP) {
		t.Errorf("ListPolicies() = %v, want %v", policies, wantP)
	}
}
