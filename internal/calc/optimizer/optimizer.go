// Package optimizer resizes truss members to minimize compliance under a
// volume constraint with an Optimality-Criteria update.
//
// Each iteration runs a fresh analysis, scales the raw sensitivities by the
// square of the normalized compliance, and bisects the Lagrange multiplier of
// the volume constraint. The whole thickness vector is committed to the mesh
// once per iteration; the optimizer owns the mesh thickness while it runs.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"Trusslab/internal/calc/fea"
	"Trusslab/internal/calc/mesh"
)

const (
	// MinThickness stands in for a void and keeps every member stiffness > 0.
	MinThickness = 1e-3

	LambdaLow    = 1e-24
	LambdaHigh   = 1e24
	BisectionTol = 1e-4

	DefaultIterations = 200
	DefaultFraction   = 0.4
)

var (
	ErrBadFraction   = errors.New("optimizer: target fraction must be in (0,1)")
	ErrBadIterations = errors.New("optimizer: iteration budget must be > 0")
	ErrDiverged      = errors.New("optimizer: objective diverged")
	ErrSaturated     = errors.New("optimizer: saturated, every member at minimum thickness, cannot optimize further")
	ErrCanceled      = errors.New("optimizer: canceled")
)

// Step records one completed iteration.
type Step struct {
	Iteration  int     `json:"iteration"`
	Compliance float64 `json:"compliance"`
	Objective  float64 `json:"objective"`
	Volume     float64 `json:"volume"`
	Lambda     float64 `json:"lambda"`
}

type Option func(*Optimizer)

func WithIterations(n int) Option { return func(o *Optimizer) { o.iterations = n } }

func WithTargetFraction(f float64) Option { return func(o *Optimizer) { o.fraction = f } }

func WithModulus(e float64) Option { return func(o *Optimizer) { o.modulus = e } }

// WithLogger traces every iteration to l.
func WithLogger(l *log.Logger) Option { return func(o *Optimizer) { o.logger = l } }

// WithProgress calls fn after every committed iteration.
func WithProgress(fn func(Step)) Option { return func(o *Optimizer) { o.progress = fn } }

type Optimizer struct {
	mesh       *mesh.Mesh
	iterations int
	fraction   float64
	modulus    float64
	logger     *log.Logger
	progress   func(Step)

	c0, v0 float64

	success bool
	err     error
	last    *fea.Result
	history []Step
}

// New captures the baseline compliance and volume from one analysis of the
// unmodified mesh. It fails with fea.ErrNotReady on a mesh that is not ready
// and with a wrapped fea error when the baseline solve fails.
func New(m *mesh.Mesh, opts ...Option) (*Optimizer, error) {
	o := &Optimizer{
		mesh:       m,
		iterations: DefaultIterations,
		fraction:   DefaultFraction,
		modulus:    fea.DefaultModulus,
	}
	for _, opt := range opts {
		opt(o)
	}
	if !(o.fraction > 0 && o.fraction < 1) {
		return nil, fmt.Errorf("%w: got %v", ErrBadFraction, o.fraction)
	}
	if o.iterations <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadIterations, o.iterations)
	}

	base, err := fea.New(m, fea.WithModulus(o.modulus)).Compute()
	if err != nil {
		return nil, fmt.Errorf("optimizer: baseline analysis: %w", err)
	}
	o.c0, o.v0 = base.StrainEnergy, base.Volume
	o.last = base
	return o, nil
}

// Baseline returns the compliance and volume of the unmodified mesh.
func (o *Optimizer) Baseline() (c0, v0 float64) { return o.c0, o.v0 }

func (o *Optimizer) TargetVolume() float64 { return o.v0 * o.fraction }

func (o *Optimizer) Success() bool { return o.success }

func (o *Optimizer) Err() error { return o.err }

// ErrorMessage is the text of the failure that stopped Optimize, or "".
func (o *Optimizer) ErrorMessage() string {
	if o.err == nil {
		return ""
	}
	return o.err.Error()
}

// LastResult is the most recent analysis: the baseline before the first
// iteration, then the analysis each iteration started from.
func (o *Optimizer) LastResult() *fea.Result { return o.last }

func (o *Optimizer) History() []Step { return append([]Step(nil), o.history...) }

// Optimize runs Iterate until the budget is spent or an iteration fails. The
// context is checked between iterations only. Success is true only when the
// whole budget completes.
func (o *Optimizer) Optimize(ctx context.Context) bool {
	o.success, o.err = false, nil
	for it := 0; it < o.iterations; it++ {
		if err := ctx.Err(); err != nil {
			o.err = fmt.Errorf("%w after %d iterations: %v", ErrCanceled, it, err)
			return false
		}
		if err := o.Iterate(); err != nil {
			o.err = err
			o.logf("optimizer: stopped at iteration %d: %v", len(o.history)+1, err)
			return false
		}
	}
	o.success = true
	return true
}

// Iterate performs one OC update and commits the new thickness vector.
func (o *Optimizer) Iterate() error {
	res, err := fea.New(o.mesh, fea.WithModulus(o.modulus)).Compute()
	if err != nil {
		return fmt.Errorf("optimizer: analysis: %w", err)
	}
	o.last = res

	obj := res.StrainEnergy / o.c0
	if math.IsNaN(obj) {
		return fmt.Errorf("%w: normalized compliance is NaN (compliance %v, baseline %v)", ErrDiverged, res.StrainEnergy, o.c0)
	}
	penn := obj * obj

	x := o.mesh.Thickness()
	lengths := o.mesh.Lengths()
	dc := make([]float64, len(x))
	for i, s := range res.Sensitivities {
		dc[i] = penn * s
	}

	xnew, lambda, vol := bisect(x, dc, lengths, o.TargetVolume())

	saturated := true
	for i, v := range xnew {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: thickness of member %d is NaN", ErrDiverged, i)
		}
		if v != MinThickness {
			saturated = false
		}
	}
	if saturated {
		return ErrSaturated
	}

	if err := o.mesh.SetThickness(xnew); err != nil {
		return fmt.Errorf("optimizer: commit: %w", err)
	}

	step := Step{
		Iteration:  len(o.history) + 1,
		Compliance: res.StrainEnergy,
		Objective:  obj,
		Volume:     vol,
		Lambda:     lambda,
	}
	o.history = append(o.history, step)
	o.logf("optimizer: it=%d obj=%.6g vol=%.6g lambda=%.6g", step.Iteration, obj, vol, lambda)
	if o.progress != nil {
		o.progress(step)
	}
	return nil
}

// bisect searches the multiplier in [LambdaLow, LambdaHigh] until the bracket
// is narrower than BisectionTol. A larger multiplier always gives a smaller
// candidate volume.
func bisect(x, dc, lengths []float64, target float64) (xnew []float64, lambda, vol float64) {
	xnew = make([]float64, len(x))
	l1, l2 := LambdaLow, LambdaHigh
	for l2-l1 > BisectionTol {
		mid := 0.5 * (l1 + l2)
		if mid <= l1 || mid >= l2 {
			// bracket is down to float resolution at this magnitude
			break
		}
		lambda = mid
		vol = 0
		for i := range x {
			xnew[i] = clamp(x[i]*math.Sqrt(-dc[i]/lambda), MinThickness, 1)
			vol += xnew[i] * lengths[i]
		}
		if vol >= target {
			l1 = lambda
		} else {
			l2 = lambda
		}
	}
	return xnew, lambda, vol
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func (o *Optimizer) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
