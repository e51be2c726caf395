package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/invlab/internal/invert"
)

// ChiSquare returns the error-weighted mean squared misfit between the
// observed data and a model response. A value near 1 means the response
// explains the data to within the stated errors.
func ChiSquare(data, resp, errs invert.Vector) float64 {
	n := len(data)
	if n == 0 || len(resp) != n || len(errs) != n {
		return math.NaN()
	}
	var sum float64
	for i := range data {
		r := (data[i] - resp[i]) / errs[i]
		sum += r * r
	}
	return sum / float64(n)
}

// RMS returns the root mean square residual in data units.
func RMS(data, resp invert.Vector) float64 {
	n := len(data)
	if n == 0 || len(resp) != n {
		return math.NaN()
	}
	var sum float64
	for i := range data {
		r := data[i] - resp[i]
		sum += r * r
	}
	return math.Sqrt(sum / float64(n))
}

// RRMS returns the relative root mean square residual in percent. Data
// points equal to zero are skipped so the ratio stays finite.
func RRMS(data, resp invert.Vector) float64 {
	n := len(data)
	if n == 0 || len(resp) != n {
		return math.NaN()
	}
	var sum float64
	var used int
	for i := range data {
		if data[i] == 0 {
			continue
		}
		r := (data[i] - resp[i]) / data[i]
		sum += r * r
		used++
	}
	if used == 0 {
		return math.NaN()
	}
	return 100 * math.Sqrt(sum/float64(used))
}

// MaxAbsResidual returns the largest absolute residual in data units.
func MaxAbsResidual(data, resp invert.Vector) float64 {
	n := len(data)
	if n == 0 || len(resp) != n {
		return math.NaN()
	}
	var m float64
	for i := range data {
		if r := math.Abs(data[i] - resp[i]); r > m {
			m = r
		}
	}
	return m
}

// Residuals returns data minus response.
func Residuals(data, resp invert.Vector) []float64 {
	if len(resp) != len(data) {
		return nil
	}
	out := make([]float64, len(data))
	for i := range data {
		out[i] = data[i] - resp[i]
	}
	return out
}

// WeightedResiduals returns the residuals divided by the data errors.
// These are the quantities chi-square sums the squares of.
func WeightedResiduals(data, resp, errs invert.Vector) []float64 {
	if len(resp) != len(data) || len(errs) != len(data) {
		return nil
	}
	out := make([]float64, len(data))
	for i := range data {
		out[i] = (data[i] - resp[i]) / errs[i]
	}
	return out
}

// Lag1Autocorr returns the lag-1 autocorrelation of the residual series.
// Values near zero indicate the residuals look like noise; values near
// one indicate correlated structure the model failed to capture.
func Lag1Autocorr(res []float64) float64 {
	if len(res) < 3 {
		return 0
	}
	c := stat.Correlation(res[:len(res)-1], res[1:], nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// Summary bundles the misfit statistics reported after a fit.
type Summary struct {
	ChiSq          float64
	RMS            float64
	RRMS           float64
	MaxAbsResidual float64
	MeanResidual   float64
	StdResidual    float64
	Lag1Autocorr   float64
}

// Map flattens the summary for storage alongside run metadata.
func (s Summary) Map() map[string]float64 {
	return map[string]float64{
		"chi2":          s.ChiSq,
		"rms":           s.RMS,
		"rrms":          s.RRMS,
		"max_abs_res":   s.MaxAbsResidual,
		"mean_res":      s.MeanResidual,
		"std_res":       s.StdResidual,
		"lag1_autocorr": s.Lag1Autocorr,
	}
}

// Summarize computes the full misfit summary for a data and response pair.
func Summarize(data, resp, errs invert.Vector) Summary {
	res := Residuals(data, resp)
	s := Summary{
		ChiSq:          ChiSquare(data, resp, errs),
		RMS:            RMS(data, resp),
		RRMS:           RRMS(data, resp),
		MaxAbsResidual: MaxAbsResidual(data, resp),
		Lag1Autocorr:   Lag1Autocorr(res),
	}
	if len(res) > 0 {
		mean, std := stat.MeanStdDev(res, nil)
		s.MeanResidual = mean
		if !math.IsNaN(std) {
			s.StdResidual = std
		}
	}
	return s
}
