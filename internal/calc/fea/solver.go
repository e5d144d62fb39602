// Package fea runs a linear-elastic static analysis of a pin-jointed planar
// truss with the direct stiffness method.
//
// A Solver is bound to one mesh snapshot. Compute assembles the dense global
// stiffness matrix, pins restrained degrees of freedom, applies unit nodal
// loads and solves K*U = F. A failed solve leaves the solver uncomputed with
// the failure recorded in Err; nothing panics past this package.
package fea

import (
	"errors"
	"fmt"
	"math"

	"Trusslab/internal/calc/mesh"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotReady is the configuration error: the mesh has no geometry, no
	// fixed node or no load.
	ErrNotReady = errors.New("fea: mesh is not ready for analysis")
	// ErrSingular covers singular or ill-conditioned stiffness matrices, i.e.
	// disconnected or under-constrained structures.
	ErrSingular = errors.New("fea: stiffness matrix is singular")
	// ErrUsed is returned when Compute is called twice on one Solver.
	ErrUsed = errors.New("fea: solver already ran")
)

const (
	DefaultModulus = 1.0
	DefaultLoad    = 1.0
)

type Option func(*Solver)

// WithModulus sets Young's modulus E. Non-positive values keep the default.
func WithModulus(e float64) Option {
	return func(s *Solver) {
		if e > 0 {
			s.modulus = e
		}
	}
}

// WithLoad scales every nodal load. Non-positive values keep the unit load.
func WithLoad(f float64) Option {
	return func(s *Solver) {
		if f > 0 {
			s.load = f
		}
	}
}

type Solver struct {
	mesh    *mesh.Mesh
	modulus float64
	load    float64

	ran    bool
	result *Result
	err    error
}

func New(m *mesh.Mesh, opts ...Option) *Solver {
	s := &Solver{mesh: m, modulus: DefaultModulus, load: DefaultLoad}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Modulus returns the Young's modulus the solver uses.
func (s *Solver) Modulus() float64 { return s.modulus }

// Computed reports whether the last Compute succeeded.
func (s *Solver) Computed() bool { return s.result != nil && s.result.Computed }

// Err returns the failure recorded by Compute, if any.
func (s *Solver) Err() error { return s.err }

// Result returns the computed result or nil.
func (s *Solver) Result() *Result { return s.result }

// Compute runs the analysis on the current thickness vector of the mesh.
func (s *Solver) Compute() (*Result, error) {
	if s.ran {
		return s.result, ErrUsed
	}
	s.ran = true
	res, err := s.compute()
	if err != nil {
		s.err = err
		return nil, err
	}
	s.result = res
	return res, nil
}

func (s *Solver) compute() (*Result, error) {
	m := s.mesh
	if m == nil || !m.IsReadyForAnalysis() {
		return nil, ErrNotReady
	}

	members := m.Members()
	thickness := m.Thickness()
	lengths := m.Lengths()
	cosines := m.Cosines()
	dof := 2 * m.NodeCount()

	k := s.assemble(dof, members, thickness, lengths, cosines)
	applySupports(k, m.RestrainedDOFs())
	f := s.forces(dof, m.LoadedX(), m.LoadedY())

	u, err := solve(k, f)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Displacements: u.RawVector().Data,
		Stresses:      make([]float64, len(members)),
		Sensitivities: make([]float64, len(members)),
		Computed:      true,
	}
	ud := res.Displacements
	for e, mem := range members {
		a, l := thickness[e], lengths[e]
		c, sn := cosines[e][0], cosines[e][1]
		if a > 0 {
			du := (ud[2*mem.End]-ud[2*mem.Start])*c + (ud[2*mem.End+1]-ud[2*mem.Start+1])*sn
			res.Stresses[e] = s.modulus * du / (a * l)
		}
		force := res.Stresses[e] * a * l
		res.Sensitivities[e] = -(force * force) / (2 * s.modulus * l)
		res.Volume += a * l
	}
	res.StrainEnergy = 0.5 * mat.Inner(u, k, u)
	return res, nil
}

// assemble builds the global 2N x 2N stiffness matrix from the planar truss
// element matrices
//
//	k * |  C -C |    C = | c*c  c*s |
//	    | -C  C |        | c*s  s*s |
//
// with k = E*A/L.
func (s *Solver) assemble(dof int, members []mesh.Member, thickness, lengths []float64, cosines [][2]float64) *mat.Dense {
	k := mat.NewDense(dof, dof, nil)
	for e, mem := range members {
		ke := elementStiffness(s.modulus*thickness[e]/lengths[e], cosines[e][0], cosines[e][1])
		idx := [4]int{2 * mem.Start, 2*mem.Start + 1, 2 * mem.End, 2*mem.End + 1}
		for i := range 4 {
			for j := range 4 {
				k.Set(idx[i], idx[j], k.At(idx[i], idx[j])+ke[i][j])
			}
		}
	}
	return k
}

func elementStiffness(k, c, s float64) [4][4]float64 {
	cc, cs, ss := c*c*k, c*s*k, s*s*k
	return [4][4]float64{
		{+cc, +cs, -cc, -cs},
		{+cs, +ss, -cs, -ss},
		{-cc, -cs, +cc, +cs},
		{-cs, -ss, +cs, +ss},
	}
}

// applySupports zeroes the row of every restrained DOF and puts 1 on its
// diagonal, which pins the displacement there to the load on that DOF (zero
// unless a restrained node is also loaded).
func applySupports(k *mat.Dense, restrained []int) {
	n, _ := k.Dims()
	for _, d := range restrained {
		for j := range n {
			k.Set(d, j, 0)
		}
		k.Set(d, d, 1)
	}
}

func (s *Solver) forces(dof int, loadX, loadY []int) *mat.VecDense {
	f := mat.NewVecDense(dof, nil)
	for _, n := range loadY {
		f.SetVec(2*n+1, s.load)
	}
	for _, n := range loadX {
		f.SetVec(2*n, s.load)
	}
	return f
}

func solve(k *mat.Dense, f *mat.VecDense) (*mat.VecDense, error) {
	var lu mat.LU
	lu.Factorize(k)
	u := mat.NewVecDense(f.Len(), nil)
	if err := lu.SolveVecTo(u, false, f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	for i := range u.Len() {
		if v := u.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite displacement at dof %d", ErrSingular, i)
		}
	}
	return u, nil
}
