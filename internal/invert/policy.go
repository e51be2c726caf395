package invert

// FixedLambda keeps the regularization strength constant for the whole run.
type FixedLambda struct{}

func (FixedLambda) Advance(lambda float64, iter int) float64 { return lambda }

func (FixedLambda) Reject(lambda float64) (float64, bool) { return lambda, false }

// CoolingLambda multiplies lambda by Factor after each accepted iteration,
// moving from smooth toward detailed models as the fit improves. Floor stops
// the cooling from reaching zero.
type CoolingLambda struct {
	Factor float64
	Floor  float64
}

func NewCoolingLambda(factor float64) *CoolingLambda {
	if factor <= 0 || factor >= 1 {
		factor = 0.8
	}
	return &CoolingLambda{Factor: factor, Floor: 1e-8}
}

func (p *CoolingLambda) Advance(lambda float64, iter int) float64 {
	next := lambda * p.Factor
	if next < p.Floor {
		return p.Floor
	}
	return next
}

func (p *CoolingLambda) Reject(lambda float64) (float64, bool) { return lambda, false }

// MarquardtLambda lowers lambda after accepted steps and raises it when the
// line search fails, retrying the iteration until Ceiling is hit. A rejected
// undamped solve restarts from Seed.
type MarquardtLambda struct {
	Down    float64
	Up      float64
	Floor   float64
	Ceiling float64
	Seed    float64
}

func NewMarquardtLambda() *MarquardtLambda {
	return &MarquardtLambda{
		Down:    0.5,
		Up:      10,
		Floor:   1e-12,
		Ceiling: 1e8,
		Seed:    1e-3,
	}
}

func (p *MarquardtLambda) Advance(lambda float64, iter int) float64 {
	next := lambda * p.Down
	if next < p.Floor {
		return p.Floor
	}
	return next
}

func (p *MarquardtLambda) Reject(lambda float64) (float64, bool) {
	if lambda <= 0 {
		return p.Seed, true
	}
	next := lambda * p.Up
	if next > p.Ceiling {
		return lambda, false
	}
	return next, true
}
