// Package models provides forward models for curve fitting and inversion.
//
// Each model implements the [invert.ForwardModel] interface, mapping a
// parameter vector to predicted data on a fixed abscissa:
//
//   - [Polynomial]: coefficients of a degree-d polynomial
//   - [ExpDecay]: sum of decaying exponentials
//   - [Gaussians]: sum of Gaussian peaks
//   - [DampedSine]: exponentially damped sinusoid
//
// Polynomial, ExpDecay and DampedSine also implement [invert.Differentiable]
// with analytic Jacobians; Gaussians is differenced numerically. All models
// implement [invert.StartModeler] to propose a starting point.
//
// Response methods are pure functions of the parameter vector, so every
// model is safe for the engine's parallel Jacobian evaluation.
package models
