package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/invlab/internal/invert"
)

func TestChiSquareUnitForOneSigmaMisses(t *testing.T) {
	data := invert.Vector{1, 2, 3, 4}
	resp := invert.Vector{1.5, 1.5, 3.5, 3.5}
	errs := invert.Vector{0.5, 0.5, 0.5, 0.5}

	chi := ChiSquare(data, resp, errs)
	if math.Abs(chi-1.0) > 1e-12 {
		t.Errorf("chi^2 = %v, want 1", chi)
	}
}

func TestChiSquareZeroForExactFit(t *testing.T) {
	data := invert.Vector{2, 4, 6}
	errs := invert.Vector{0.1, 0.1, 0.1}
	if chi := ChiSquare(data, data.Clone(), errs); chi != 0 {
		t.Errorf("chi^2 = %v, want 0", chi)
	}
}

func TestChiSquareShapeMismatchIsNaN(t *testing.T) {
	if chi := ChiSquare(invert.Vector{1, 2}, invert.Vector{1}, invert.Vector{1, 1}); !math.IsNaN(chi) {
		t.Errorf("chi^2 = %v, want NaN for mismatched lengths", chi)
	}
	if chi := ChiSquare(nil, nil, nil); !math.IsNaN(chi) {
		t.Errorf("chi^2 = %v, want NaN for empty data", chi)
	}
}

func TestRMSMatchesHandComputation(t *testing.T) {
	data := invert.Vector{1, 2, 3}
	resp := invert.Vector{0, 2, 5}
	// residuals {1, 0, -2}: rms = sqrt(5/3)
	want := math.Sqrt(5.0 / 3.0)
	if got := RMS(data, resp); math.Abs(got-want) > 1e-12 {
		t.Errorf("rms = %v, want %v", got, want)
	}
}

func TestRRMSIsPercent(t *testing.T) {
	data := invert.Vector{10, 20}
	resp := invert.Vector{9, 22}
	// relative residuals {0.1, -0.1}: rrms = 10%
	if got := RRMS(data, resp); math.Abs(got-10) > 1e-9 {
		t.Errorf("rrms = %v%%, want 10%%", got)
	}
}

func TestRRMSSkipsZeroData(t *testing.T) {
	data := invert.Vector{0, 10}
	resp := invert.Vector{1, 9}
	if got := RRMS(data, resp); math.Abs(got-10) > 1e-9 {
		t.Errorf("rrms = %v%%, want 10%% ignoring the zero datum", got)
	}
	if got := RRMS(invert.Vector{0, 0}, invert.Vector{1, 1}); !math.IsNaN(got) {
		t.Errorf("rrms = %v, want NaN when every datum is zero", got)
	}
}

func TestMaxAbsResidual(t *testing.T) {
	data := invert.Vector{1, 2, 3}
	resp := invert.Vector{1.1, 1.5, 3}
	if got := MaxAbsResidual(data, resp); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("max abs residual = %v, want 0.5", got)
	}
}

func TestWeightedResidualsSquareToChiSquare(t *testing.T) {
	data := invert.Vector{1, 2, 3, 5}
	resp := invert.Vector{1.2, 1.9, 3.4, 4.5}
	errs := invert.Vector{0.2, 0.1, 0.4, 0.25}

	wr := WeightedResiduals(data, resp, errs)
	var sum float64
	for _, r := range wr {
		sum += r * r
	}
	chi := ChiSquare(data, resp, errs)
	if math.Abs(sum/float64(len(data))-chi) > 1e-12 {
		t.Errorf("mean squared weighted residual %v != chi^2 %v", sum/float64(len(data)), chi)
	}
}

func TestLag1AutocorrDetectsStructure(t *testing.T) {
	// A slow ramp is maximally self-correlated.
	ramp := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	if c := Lag1Autocorr(ramp); c < 0.9 {
		t.Errorf("ramp autocorrelation = %v, want near 1", c)
	}

	// A perfectly alternating series is maximally anti-correlated.
	alt := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	if c := Lag1Autocorr(alt); c > -0.9 {
		t.Errorf("alternating autocorrelation = %v, want near -1", c)
	}
}

func TestLag1AutocorrDegenerateSeries(t *testing.T) {
	if c := Lag1Autocorr([]float64{1, 2}); c != 0 {
		t.Errorf("autocorrelation of 2 samples = %v, want 0", c)
	}
	if c := Lag1Autocorr([]float64{3, 3, 3, 3}); c != 0 {
		t.Errorf("autocorrelation of constant series = %v, want 0", c)
	}
}

func TestSummarizeBundlesEverything(t *testing.T) {
	data := invert.Vector{1, 2, 3, 4, 5}
	resp := invert.Vector{1.1, 1.9, 3.1, 3.9, 5.1}
	errs := invert.Vector{0.1, 0.1, 0.1, 0.1, 0.1}

	s := Summarize(data, resp, errs)
	if math.Abs(s.ChiSq-1.0) > 1e-9 {
		t.Errorf("summary chi^2 = %v, want 1", s.ChiSq)
	}
	if math.Abs(s.RMS-0.1) > 1e-9 {
		t.Errorf("summary rms = %v, want 0.1", s.RMS)
	}
	if math.Abs(s.MaxAbsResidual-0.1) > 1e-9 {
		t.Errorf("summary max residual = %v, want 0.1", s.MaxAbsResidual)
	}
	if math.Abs(s.MeanResidual) > 0.03 {
		t.Errorf("summary mean residual = %v, want near 0", s.MeanResidual)
	}
	if s.StdResidual <= 0 {
		t.Errorf("summary residual std = %v, want positive", s.StdResidual)
	}
}
