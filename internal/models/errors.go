package models

import "errors"

var (
	// ErrParamCount indicates a parameter vector of the wrong length.
	ErrParamCount = errors.New("models: parameter count mismatch")

	// ErrParamDomain indicates a parameter value the model cannot
	// evaluate.
	ErrParamDomain = errors.New("models: parameter outside model domain")
)
