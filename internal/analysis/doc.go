// Package analysis provides residual diagnostics for completed fits.
//
// The package helps answer whether a fit's residuals look like noise or
// still carry structure the model missed:
//
//   - [Periodogram]: amplitude spectrum of a demeaned residual series
//   - [DominantPeriod]: strongest periodic component in abscissa units
//   - [Histogram]: binned counts for residual distribution plots
//
// # Detecting Unmodeled Structure
//
// Weighted residuals of a good fit are uncorrelated with a flat spectrum.
// A dominant period with strength well above one means the data contain a
// periodic signal the forward model does not reproduce:
//
//	period, strength := analysis.DominantPeriod(residuals, dx)
//	if strength > 4 {
//	    // Consider a model with an oscillatory term
//	}
package analysis
