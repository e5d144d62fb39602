// Package truss turns a JSON calculation request into a mesh, runs the
// analysis or the optimization on it and shapes the response.
package truss

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"Trusslab/internal/calc/fea"
	"Trusslab/internal/calc/mesh"
	"Trusslab/internal/calc/optimizer"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("truss: invalid input")
	ErrTooLarge     = errors.New("truss: mesh too large")
)

const (
	PickFixed = "fixed"
	PickLoadX = "load_x"
	PickLoadY = "load_y"
)

// Pick is a pointer click on the lattice, snapped to the closest node.
type Pick struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Kind string  `json:"kind"`
}

type Roller struct {
	Node int    `json:"node"`
	Axis string `json:"axis"`
}

type Input struct {
	mesh.Params

	DefaultSupports bool     `json:"default_supports"`
	Fixed           []int    `json:"fixed,omitempty"`
	LoadX           []int    `json:"load_x,omitempty"`
	LoadY           []int    `json:"load_y,omitempty"`
	Rollers         []Roller `json:"rollers,omitempty"`
	Picks           []Pick   `json:"picks,omitempty"`

	Modulus        float64 `json:"modulus,omitempty"`
	Iterations     int     `json:"iterations,omitempty"`
	TargetFraction float64 `json:"target_fraction,omitempty"`
}

// Limits caps the work a single request may ask for. Zero means no cap.
type Limits struct {
	MaxNodes      int
	MaxIterations int
}

type Lattice struct {
	Nodes     []mesh.Node   `json:"nodes"`
	Members   []mesh.Member `json:"members"`
	Thickness []float64     `json:"thickness"`
	Fixed     []int         `json:"fixed"`
	LoadX     []int         `json:"load_x"`
	LoadY     []int         `json:"load_y"`
}

type AnalysisResult struct {
	ID string `json:"id"`
	Lattice
	Displacements   []float64 `json:"displacements"`
	Stresses        []float64 `json:"stresses"`
	StrainEnergy    float64   `json:"strain_energy"`
	Volume          float64   `json:"volume"`
	MaxDisplacement float64   `json:"max_displacement"`
	MaxAbsStress    float64   `json:"max_abs_stress"`
}

type OptimizationResult struct {
	AnalysisResult
	Success        bool             `json:"success"`
	Error          string           `json:"error,omitempty"`
	Iterations     int              `json:"iterations"`
	TargetFraction float64          `json:"target_fraction"`
	BaselineEnergy float64          `json:"baseline_strain_energy"`
	BaselineVolume float64          `json:"baseline_volume"`
	History        []optimizer.Step `json:"history"`
	ElapsedMillis  int64            `json:"elapsed_ms"`
}

// CheckMesh validates the generation parameters of in and applies the node
// cap before any mesh is generated.
func (l Limits) CheckMesh(in Input) error {
	if err := validate(in.Params); err != nil {
		return err
	}
	if nodes := in.Params.GridNodes(); l.MaxNodes > 0 && nodes > float64(l.MaxNodes) {
		return fmt.Errorf("%w: %.0f nodes, limit %d", ErrTooLarge, nodes, l.MaxNodes)
	}
	return nil
}

// Check is CheckMesh plus the iteration cap for optimization runs. An omitted
// iteration budget counts as optimizer.DefaultIterations.
func (l Limits) Check(in Input) error {
	if err := l.CheckMesh(in); err != nil {
		return err
	}
	iterations := in.Iterations
	if iterations == 0 {
		iterations = optimizer.DefaultIterations
	}
	if l.MaxIterations > 0 && iterations > l.MaxIterations {
		return fmt.Errorf("%w: %d iterations, limit %d", ErrTooLarge, iterations, l.MaxIterations)
	}
	return nil
}

func validate(p mesh.Params) error {
	err := p.Validate()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mesh.ErrGridTooLarge):
		return fmt.Errorf("%w: %w", ErrTooLarge, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// BuildMesh generates the lattice and applies the boundary conditions of in in
// order: default case, explicit node lists, rollers, then picks.
func BuildMesh(in Input) (*mesh.Mesh, error) {
	if err := validate(in.Params); err != nil {
		return nil, err
	}
	m := mesh.New(in.Params)
	if in.DefaultSupports {
		m.AddDefaultBoundaryCase()
	}
	for _, n := range in.Fixed {
		if err := m.ToggleFixed(n); err != nil {
			return nil, fmt.Errorf("%w: fixed: %w", ErrInvalidInput, err)
		}
	}
	for _, n := range in.LoadX {
		if err := m.ToggleLoad(n, mesh.AxisX); err != nil {
			return nil, fmt.Errorf("%w: load_x: %w", ErrInvalidInput, err)
		}
	}
	for _, n := range in.LoadY {
		if err := m.ToggleLoad(n, mesh.AxisY); err != nil {
			return nil, fmt.Errorf("%w: load_y: %w", ErrInvalidInput, err)
		}
	}
	for _, r := range in.Rollers {
		axis, err := mesh.ParseAxis(r.Axis)
		if err == nil {
			err = m.ToggleRoller(r.Node, axis)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: roller: %w", ErrInvalidInput, err)
		}
	}
	for _, p := range in.Picks {
		if err := applyPick(m, p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func applyPick(m *mesh.Mesh, p Pick) error {
	n := m.FindClosestNode(p.X, p.Y)
	if n < 0 {
		return fmt.Errorf("%w: pick on a mesh without nodes", ErrInvalidInput)
	}
	var err error
	switch p.Kind {
	case PickFixed:
		err = m.ToggleFixed(n)
	case PickLoadX:
		err = m.ToggleLoad(n, mesh.AxisX)
	case PickLoadY:
		err = m.ToggleLoad(n, mesh.AxisY)
	default:
		err = fmt.Errorf("unknown pick kind %q", p.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: pick: %w", ErrInvalidInput, err)
	}
	return nil
}

func Analyze(in Input) (AnalysisResult, error) {
	m, err := BuildMesh(in)
	if err != nil {
		return AnalysisResult{}, err
	}
	res, err := fea.New(m, solverOptions(in)...).Compute()
	if err != nil {
		return AnalysisResult{}, err
	}
	return analysisResult(m, res), nil
}

// Optimize runs the sizing loop on a fresh mesh. A run that stops early is
// not an error: the result carries Success=false, the message and the last
// committed layout. Errors are returned only when the run cannot start.
// Extra options are applied after the ones derived from in.
func Optimize(ctx context.Context, in Input, extra ...optimizer.Option) (OptimizationResult, error) {
	m, err := BuildMesh(in)
	if err != nil {
		return OptimizationResult{}, err
	}

	opts := []optimizer.Option{}
	if in.Iterations != 0 {
		opts = append(opts, optimizer.WithIterations(in.Iterations))
	}
	if in.TargetFraction != 0 {
		opts = append(opts, optimizer.WithTargetFraction(in.TargetFraction))
	}
	if in.Modulus > 0 {
		opts = append(opts, optimizer.WithModulus(in.Modulus))
	}
	opt, err := optimizer.New(m, append(opts, extra...)...)
	if err != nil {
		if errors.Is(err, optimizer.ErrBadFraction) || errors.Is(err, optimizer.ErrBadIterations) {
			return OptimizationResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return OptimizationResult{}, err
	}

	start := time.Now()
	ok := opt.Optimize(ctx)
	elapsed := time.Since(start)

	out := OptimizationResult{
		Success:        ok,
		Error:          opt.ErrorMessage(),
		History:        opt.History(),
		TargetFraction: optimizer.DefaultFraction,
		ElapsedMillis:  elapsed.Milliseconds(),
	}
	if in.TargetFraction != 0 {
		out.TargetFraction = in.TargetFraction
	}
	out.BaselineEnergy, out.BaselineVolume = opt.Baseline()
	out.Iterations = len(out.History)

	// Report the committed layout. LastResult was computed before the final
	// commit, so analyze the final thickness once more when possible.
	final, ferr := fea.New(m, solverOptions(in)...).Compute()
	if ferr != nil {
		log.Printf("truss: final analysis: %v", ferr)
		final = opt.LastResult()
	}
	out.AnalysisResult = analysisResult(m, final)
	return out, nil
}

func solverOptions(in Input) []fea.Option {
	if in.Modulus > 0 {
		return []fea.Option{fea.WithModulus(in.Modulus)}
	}
	return nil
}

func analysisResult(m *mesh.Mesh, res *fea.Result) AnalysisResult {
	out := AnalysisResult{
		ID:      uuid.NewString(),
		Lattice: LatticeOf(m),
		Volume:  m.Volume(),
	}
	if res != nil {
		out.Displacements = res.Displacements
		out.Stresses = res.Stresses
		out.StrainEnergy = res.StrainEnergy
		out.MaxDisplacement = res.MaxDisplacement()
		out.MaxAbsStress = res.MaxAbsStress()
	}
	return out
}

func LatticeOf(m *mesh.Mesh) Lattice {
	return Lattice{
		Nodes:     m.Nodes(),
		Members:   m.Members(),
		Thickness: m.Thickness(),
		Fixed:     m.Fixed(),
		LoadX:     m.LoadedX(),
		LoadY:     m.LoadedY(),
	}
}
