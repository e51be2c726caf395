package invert

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type Vector []float64

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func (v Vector) Add(other Vector) Vector {
	result := make(Vector, len(v))
	for i := range v {
		if i < len(other) {
			result[i] = v[i] + other[i]
		} else {
			result[i] = v[i]
		}
	}
	return result
}

func (v Vector) Sub(other Vector) Vector {
	result := make(Vector, len(v))
	for i := range v {
		if i < len(other) {
			result[i] = v[i] - other[i]
		} else {
			result[i] = v[i]
		}
	}
	return result
}

func (v Vector) Scale(factor float64) Vector {
	result := make(Vector, len(v))
	for i := range v {
		result[i] = v[i] * factor
	}
	return result
}

func (v Vector) Dot(other Vector) float64 {
	sum := 0.0
	for i := range v {
		if i < len(other) {
			sum += v[i] * other[i]
		}
	}
	return sum
}

// ForwardModel maps a parameter vector to a predicted data vector. Response
// must be a pure function of its argument: same parameters, same response.
type ForwardModel interface {
	Response(p Vector) (Vector, error)
	ParameterCount() int
}

// Differentiable is implemented by forward models that can supply an
// analytic N-by-M Jacobian. Models without it are differenced numerically.
type Differentiable interface {
	Jacobian(p Vector) (*mat.Dense, error)
}

// StartModeler is implemented by forward models that can propose their own
// starting parameters.
type StartModeler interface {
	StartModel() Vector
}

// Observer receives a record after every accepted iteration.
type Observer interface {
	OnIteration(it Iteration)
}

// LambdaPolicy schedules the regularization strength across iterations.
type LambdaPolicy interface {
	// Advance returns the strength for the next iteration after an
	// accepted step.
	Advance(lambda float64, iter int) float64
	// Reject proposes a new strength after a failed line search. The
	// second return is false when the policy has no retry to offer.
	Reject(lambda float64) (float64, bool)
}

// Scheme selects the finite-difference stencil for numeric Jacobians.
type Scheme int

const (
	// Forward reuses the base response and perturbs each parameter once.
	Forward Scheme = iota
	// Central perturbs each parameter both ways for second-order accuracy
	// at twice the evaluation cost.
	Central
)

func (s Scheme) String() string {
	if s == Central {
		return "central"
	}
	return "forward"
}

// StepPolicy controls how a proposed update is applied.
type StepPolicy int

const (
	// LineSearch halves the step until the misfit drops.
	LineSearch StepPolicy = iota
	// FixedStep always takes the full update.
	FixedStep
)

func (p StepPolicy) String() string {
	if p == FixedStep {
		return "fixed"
	}
	return "linesearch"
}

// Reference selects the model the damping term pulls toward.
type Reference int

const (
	// ReferenceZero damps toward the zero vector (minimum norm).
	ReferenceZero Reference = iota
	// ReferenceStart damps toward the starting model.
	ReferenceStart
)

func (r Reference) String() string {
	if r == ReferenceStart {
		return "start"
	}
	return "zero"
}

// Status is the engine lifecycle state.
type Status int

const (
	Initialized Status = iota
	Iterating
	Converged
	MaxIterationsReached
	Failed
)

func (s Status) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max-iterations"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// StopReason records why a run terminated.
type StopReason int

const (
	NotStopped StopReason = iota
	TargetReached
	Stagnation
	StepRejected
	IterationBudget
	StoppedOnError
)

func (r StopReason) String() string {
	switch r {
	case TargetReached:
		return "target chi-square reached"
	case Stagnation:
		return "chi-square decrease below threshold"
	case StepRejected:
		return "no improving step found"
	case IterationBudget:
		return "iteration budget exhausted"
	case StoppedOnError:
		return "error"
	}
	return "running"
}

type Config struct {
	Lambda          float64
	MaxIterations   int
	TargetChiSq     float64
	ChiSqTolerance  float64
	MinDecrease     float64
	Scheme          Scheme
	EpsRel          float64
	EpsAbs          float64
	Workers         int
	StepPolicy      StepPolicy
	MaxStepCuts     int
	ConstraintOrder int
	Reference       Reference
	Start           Vector
	StartValue      float64
}

func DefaultConfig() Config {
	return Config{
		Lambda:          20.0,
		MaxIterations:   20,
		TargetChiSq:     1.0,
		ChiSqTolerance:  0.1,
		MinDecrease:     0.01,
		Scheme:          Forward,
		EpsRel:          1e-6,
		EpsAbs:          1e-6,
		Workers:         1,
		StepPolicy:      LineSearch,
		MaxStepCuts:     6,
		ConstraintOrder: 0,
		Reference:       ReferenceZero,
		StartValue:      1.0,
	}
}

// Iteration is the record handed to observers after an accepted step.
type Iteration struct {
	Index     int
	ChiSq     float64
	Lambda    float64
	StepNorm  float64
	StepScale float64
	Model     Vector
}

type Result struct {
	Model      Vector
	Response   Vector
	Status     Status
	Stop       StopReason
	Iterations int
	ChiSq      []float64
	Lambdas    []float64
	StepNorms  []float64
	Err        error
}

// FinalChiSq returns the misfit at the final accepted model.
func (r *Result) FinalChiSq() float64 {
	if len(r.ChiSq) == 0 {
		return math.NaN()
	}
	return r.ChiSq[len(r.ChiSq)-1]
}

// ErrorModel builds a data-error vector e_i = abs + rel*|d_i|. Every
// resulting entry must come out positive.
func ErrorModel(data Vector, abs, rel float64) (Vector, error) {
	if abs < 0 || rel < 0 || (abs == 0 && rel == 0) {
		return nil, fmt.Errorf("%w: error model abs=%g rel=%g", ErrConfig, abs, rel)
	}
	errs := make(Vector, len(data))
	for i, d := range data {
		e := abs + rel*math.Abs(d)
		if e <= 0 || math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, fmt.Errorf("%w: datum %d yields error %g", ErrConfig, i, e)
		}
		errs[i] = e
	}
	return errs, nil
}
