package invert

import (
	"context"
	"fmt"
	"math"
)

// Engine drives a regularized Gauss-Newton inversion: it repeatedly
// linearizes the forward model, solves the damped normal equations and
// line-searches the proposed update until the data are fit to the target
// chi-square, progress stalls, or the iteration budget runs out.
//
// An Engine binds one model/data pairing and runs once. Runs are
// deterministic: repeating a run with the same inputs yields the same
// trajectory.
type Engine struct {
	fop    ForwardModel
	data   Vector
	errs   Vector
	cfg    Config
	space  *Space
	policy LambdaPolicy
	jac    *JacobianEngine
	solver *Solver
	obs    []Observer

	status  Status
	stop    StopReason
	model   Vector
	resp    Vector
	chisq   []float64
	lambdas []float64
	steps   []float64
}

func New(fop ForwardModel, data, errs Vector, cfg Config) *Engine {
	return &Engine{
		fop:    fop,
		data:   data.Clone(),
		errs:   errs.Clone(),
		cfg:    cfg,
		policy: FixedLambda{},
		jac:    NewJacobianEngine(cfg),
		solver: NewSolver(),
		status: Initialized,
	}
}

// SetSpace installs per-parameter transforms. The space size must match the
// model's parameter count.
func (e *Engine) SetSpace(s *Space) { e.space = s }

func (e *Engine) SetPolicy(p LambdaPolicy) {
	if p != nil {
		e.policy = p
	}
}

func (e *Engine) AddObserver(o Observer) { e.obs = append(e.obs, o) }

func (e *Engine) Status() Status { return e.status }

func (e *Engine) StopReason() StopReason { return e.stop }

// Model returns the last accepted model in natural coordinates.
func (e *Engine) Model() Vector { return e.model.Clone() }

// Response returns the forward response at the last accepted model.
func (e *Engine) Response() Vector { return e.resp.Clone() }

// Trajectory returns the chi-square after each accepted model, starting with
// the start model.
func (e *Engine) Trajectory() []float64 {
	return append([]float64(nil), e.chisq...)
}

// Run executes the inversion until a terminal state is reached. The returned
// error is non-nil exactly when the result status is Failed; the result then
// still carries the last accepted model and trajectory.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.status != Initialized {
		err := fmt.Errorf("%w: engine already run", ErrConfig)
		return e.result(err), err
	}
	if err := e.validate(); err != nil {
		return e.fail(0, err)
	}
	if e.space == nil {
		e.space = NewSpace(e.fop.ParameterCount())
	}

	m := e.fop.ParameterCount()
	n := len(e.data)

	cmat, err := ConstraintByOrder(e.cfg.ConstraintOrder, m)
	if err != nil {
		return e.fail(0, err)
	}

	weights := make(Vector, n)
	for i, v := range e.errs {
		weights[i] = 1 / (v * v)
	}

	e.model = e.startModel()
	if len(e.model) != m {
		return e.fail(0, fmt.Errorf("%w: start model length %d, want %d", ErrConfig, len(e.model), m))
	}
	if !e.model.IsValid() {
		return e.fail(0, fmt.Errorf("%w: start model", ErrNonFinite))
	}
	if err := e.space.Validate(e.model); err != nil {
		return e.fail(0, err)
	}

	resp, err := e.response(e.model)
	if err != nil {
		return e.fail(0, err)
	}
	e.resp = resp
	chi := e.chiSquare(resp)
	e.chisq = append(e.chisq, chi)

	// Reference model in internal coordinates: the zero vector, or the
	// start model when damping toward it.
	tref := make(Vector, m)
	if e.cfg.Reference == ReferenceStart {
		tref = e.space.Fwd(e.model)
	}

	lambda := e.cfg.Lambda
	e.status = Iterating

	for iter := 0; iter < e.cfg.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return e.fail(iter, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err()))
		default:
		}

		if e.converged(chi) {
			return e.finish(Converged, TargetReached)
		}
		if iter > 0 && e.stalled() {
			return e.finish(Converged, Stagnation)
		}

		jacN, err := e.jac.Compute(ctx, e.fop, e.model, e.resp)
		if err != nil {
			return e.fail(iter, err)
		}
		e.space.ScaleColumns(jacN, e.model)

		t := e.space.Fwd(e.model)
		residual := e.data.Sub(e.resp)
		dev := t.Sub(tref)

		var cand candidate
		accepted := false
		for {
			dp, err := e.solver.Solve(jacN, residual, weights, cmat, lambda, dev)
			if err != nil {
				return e.fail(iter, err)
			}
			cand, err = e.lineSearch(t, dp, chi)
			if err != nil {
				return e.fail(iter, err)
			}
			if cand.scale > 0 {
				accepted = true
				break
			}
			next, ok := e.policy.Reject(lambda)
			if !ok {
				break
			}
			lambda = next
		}
		if !accepted {
			return e.finish(Converged, StepRejected)
		}

		stepNorm := cand.model.Sub(e.model).Norm()
		e.model = cand.model
		e.resp = cand.resp
		chi = cand.chi
		e.chisq = append(e.chisq, chi)
		e.lambdas = append(e.lambdas, lambda)
		e.steps = append(e.steps, stepNorm)
		e.notify(Iteration{
			Index:     iter,
			ChiSq:     chi,
			Lambda:    lambda,
			StepNorm:  stepNorm,
			StepScale: cand.scale,
			Model:     e.model.Clone(),
		})

		lambda = e.policy.Advance(lambda, iter)
	}

	if e.converged(chi) {
		return e.finish(Converged, TargetReached)
	}
	return e.finish(MaxIterationsReached, IterationBudget)
}

type candidate struct {
	model Vector
	resp  Vector
	chi   float64
	scale float64
}

// lineSearch walks the update from full step down by halves until the
// misfit drops. A zero scale in the returned candidate means no tried step
// improved on chi. Under FixedStep the full update is taken unconditionally.
func (e *Engine) lineSearch(t, dp Vector, chi float64) (candidate, error) {
	cuts := e.cfg.MaxStepCuts
	if e.cfg.StepPolicy == FixedStep {
		cuts = 0
	}
	scale := 1.0
	for cut := 0; ; cut++ {
		model := e.space.Inv(t.Add(dp.Scale(scale)))
		resp, err := e.response(model)
		if err != nil {
			return candidate{}, err
		}
		c := e.chiSquare(resp)
		if e.cfg.StepPolicy == FixedStep || c < chi {
			return candidate{model: model, resp: resp, chi: c, scale: scale}, nil
		}
		if cut >= cuts {
			return candidate{}, nil
		}
		scale /= 2
	}
}

func (e *Engine) response(p Vector) (Vector, error) {
	resp, err := e.fop.Response(p)
	if err != nil {
		return nil, err
	}
	if len(resp) != len(e.data) {
		return nil, fmt.Errorf("%w: response length %d, want %d", ErrShapeMismatch, len(resp), len(e.data))
	}
	if !resp.IsValid() {
		return nil, fmt.Errorf("%w: response", ErrNonFinite)
	}
	return resp, nil
}

func (e *Engine) chiSquare(resp Vector) float64 {
	sum := 0.0
	for i := range e.data {
		r := (e.data[i] - resp[i]) / e.errs[i]
		sum += r * r
	}
	return sum / float64(len(e.data))
}

func (e *Engine) converged(chi float64) bool {
	return chi <= e.cfg.TargetChiSq+e.cfg.ChiSqTolerance
}

func (e *Engine) stalled() bool {
	k := len(e.chisq)
	if k < 2 {
		return false
	}
	prev, cur := e.chisq[k-2], e.chisq[k-1]
	if cur > prev || prev == 0 {
		return false
	}
	return (prev-cur)/prev < e.cfg.MinDecrease
}

func (e *Engine) startModel() Vector {
	return StartModelFor(e.fop, e.cfg)
}

// StartModelFor resolves the starting parameters for a model under a config:
// an explicit cfg.Start wins, then the model's own StartModel, then a
// constant vector of cfg.StartValue.
func StartModelFor(fop ForwardModel, cfg Config) Vector {
	if cfg.Start != nil {
		return cfg.Start.Clone()
	}
	if sm, ok := fop.(StartModeler); ok {
		if s := sm.StartModel(); len(s) == fop.ParameterCount() {
			return s.Clone()
		}
	}
	start := make(Vector, fop.ParameterCount())
	for i := range start {
		start[i] = cfg.StartValue
	}
	return start
}

func (e *Engine) validate() error {
	if e.fop == nil {
		return fmt.Errorf("%w: nil forward model", ErrConfig)
	}
	m := e.fop.ParameterCount()
	if m <= 0 {
		return fmt.Errorf("%w: model reports %d parameters", ErrConfig, m)
	}
	if len(e.data) == 0 {
		return fmt.Errorf("%w: empty data vector", ErrConfig)
	}
	if !e.data.IsValid() {
		return fmt.Errorf("%w: data vector", ErrNonFinite)
	}
	if len(e.errs) != len(e.data) {
		return fmt.Errorf("%w: %d errors for %d data", ErrConfig, len(e.errs), len(e.data))
	}
	for i, v := range e.errs {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: data error %d = %g, must be positive", ErrConfig, i, v)
		}
	}
	if e.cfg.Lambda < 0 {
		return fmt.Errorf("%w: negative lambda %g", ErrConfig, e.cfg.Lambda)
	}
	if e.cfg.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations %d", ErrConfig, e.cfg.MaxIterations)
	}
	if e.cfg.TargetChiSq <= 0 {
		return fmt.Errorf("%w: target chi-square %g", ErrConfig, e.cfg.TargetChiSq)
	}
	if e.cfg.ChiSqTolerance < 0 {
		return fmt.Errorf("%w: chi-square tolerance %g", ErrConfig, e.cfg.ChiSqTolerance)
	}
	if e.cfg.MinDecrease < 0 {
		return fmt.Errorf("%w: min decrease %g", ErrConfig, e.cfg.MinDecrease)
	}
	if e.cfg.Scheme != Forward && e.cfg.Scheme != Central {
		return fmt.Errorf("%w: unknown scheme %d", ErrConfig, e.cfg.Scheme)
	}
	if e.cfg.EpsRel <= 0 && e.cfg.EpsAbs <= 0 {
		return fmt.Errorf("%w: both difference steps zero", ErrConfig)
	}
	if e.cfg.MaxStepCuts < 0 {
		return fmt.Errorf("%w: negative step cuts %d", ErrConfig, e.cfg.MaxStepCuts)
	}
	if e.space != nil && e.space.Size() != m {
		return fmt.Errorf("%w: space size %d for %d parameters", ErrShapeMismatch, e.space.Size(), m)
	}
	if e.cfg.Start != nil && len(e.cfg.Start) != m {
		return fmt.Errorf("%w: start model length %d, want %d", ErrConfig, len(e.cfg.Start), m)
	}
	return nil
}

func (e *Engine) finish(st Status, reason StopReason) (*Result, error) {
	e.status = st
	e.stop = reason
	return e.result(nil), nil
}

func (e *Engine) fail(iter int, err error) (*Result, error) {
	e.status = Failed
	e.stop = StoppedOnError
	rerr := &RunError{Iteration: iter, Model: e.model.Clone(), Wrapped: err}
	return e.result(rerr), rerr
}

func (e *Engine) result(err error) *Result {
	return &Result{
		Model:      e.model.Clone(),
		Response:   e.resp.Clone(),
		Status:     e.status,
		Stop:       e.stop,
		Iterations: len(e.steps),
		ChiSq:      append([]float64(nil), e.chisq...),
		Lambdas:    append([]float64(nil), e.lambdas...),
		StepNorms:  append([]float64(nil), e.steps...),
		Err:        err,
	}
}

func (e *Engine) notify(it Iteration) {
	for _, o := range e.obs {
		o.OnIteration(it)
	}
}
