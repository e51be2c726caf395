// Package invert provides core primitives for regularized Gauss-Newton
// inversion of nonlinear forward models.
//
// The package defines the fundamental interfaces and types for fitting
// model parameters to error-weighted observations:
//
//   - [Vector]: parameter and data vectors
//   - [ForwardModel]: interface mapping parameters to predicted data
//   - [JacobianEngine]: analytic or finite-difference sensitivities
//   - [Solver]: damped, weighted normal-equation solves
//   - [LambdaPolicy]: regularization strength schedules
//   - [Engine]: orchestrates inversion runs
//
// # Example
//
//	fop := models.NewPolynomial(x, 2)
//	eng := invert.New(fop, data, errs, invert.DefaultConfig())
//	result, _ := eng.Run(ctx)
//
// # Thread Safety
//
// Engine instances are NOT thread-safe. For multi-start inversions, use
// the [Ensemble] type which safely manages multiple runs. When
// Config.Workers is greater than one, the forward model must tolerate
// concurrent Response calls.
package invert
