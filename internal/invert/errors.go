package invert

import "errors"

// Domain errors for inversion operations.
var (
	// ErrConfig indicates an invalid engine configuration.
	ErrConfig = errors.New("invert: invalid configuration")

	// ErrShapeMismatch indicates a vector or matrix with wrong dimensions.
	ErrShapeMismatch = errors.New("invert: shape mismatch")

	// ErrNonFinite indicates NaN or Inf in a response, Jacobian, or update.
	ErrNonFinite = errors.New("invert: non-finite value")

	// ErrSingularSystem indicates the damped normal equations could not be
	// factorized.
	ErrSingularSystem = errors.New("invert: singular normal equations")

	// ErrIllPosed indicates an undamped system too ill-conditioned to
	// solve reliably.
	ErrIllPosed = errors.New("invert: ill-posed system (set lambda > 0)")

	// ErrTransformDomain indicates a model value outside its transform
	// domain.
	ErrTransformDomain = errors.New("invert: model outside transform domain")

	// ErrCanceled indicates the run was interrupted.
	ErrCanceled = errors.New("invert: run canceled by context")
)

// RunError wraps an error with inversion context: the iteration it surfaced
// in and the last accepted model.
type RunError struct {
	Iteration int
	Model     Vector
	Wrapped   error
}

func (e *RunError) Error() string {
	return e.Wrapped.Error()
}

func (e *RunError) Unwrap() error {
	return e.Wrapped
}
