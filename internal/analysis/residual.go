package analysis

import "math"

// Periodogram returns the amplitude spectrum of a residual series. The
// series is demeaned and zero-padded to the next power of two first, so
// bin k of the result corresponds to frequency k / (N * dx) where N is the
// padded length reported by PaddedLength.
func Periodogram(res []float64) []float64 {
	if len(res) < 2 {
		return nil
	}

	mean := 0.0
	for _, v := range res {
		mean += v
	}
	mean /= float64(len(res))

	padded := make([]float64, PaddedLength(len(res)))
	for i, v := range res {
		padded[i] = v - mean
	}
	return PowerSpectrum(padded)
}

// PaddedLength returns the smallest power of two not below n.
func PaddedLength(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// DominantPeriod locates the strongest non-DC peak in the residual
// spectrum and converts it to a period in abscissa units, given the sample
// spacing dx. The second return is the peak amplitude relative to the
// spectrum mean; values well above one indicate periodic structure the
// model failed to capture. Series too short to resolve a period return
// zeros.
func DominantPeriod(res []float64, dx float64) (period, strength float64) {
	if len(res) < 4 || dx <= 0 {
		return 0, 0
	}

	ps := Periodogram(res)
	if len(ps) < 2 {
		return 0, 0
	}

	maxIdx := 1
	sum := 0.0
	for i := 1; i < len(ps); i++ {
		sum += ps[i]
		if ps[i] > ps[maxIdx] {
			maxIdx = i
		}
	}
	mean := sum / float64(len(ps)-1)
	if mean == 0 || ps[maxIdx] == 0 {
		return 0, 0
	}

	n := float64(PaddedLength(len(res)))
	period = n * dx / float64(maxIdx)
	return period, ps[maxIdx] / mean
}

// Histogram bins values into equal-width counts spanning their range and
// returns the counts with the bin edges (one more edge than bins). Flat
// input collapses to a single fully-loaded bin.
func Histogram(values []float64, bins int) ([]int, []float64) {
	if len(values) == 0 || bins < 1 {
		return nil, nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return []int{len(values)}, []float64{lo, hi}
	}

	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		idx := int(math.Floor((v - lo) / width))
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi
	return counts, edges
}
