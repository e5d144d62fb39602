// Package mesh generates rectangular truss lattices and keeps their
// boundary-condition node sets.
//
// Nodes are laid out row-major: node n = j*(nx+1) + i sits at
// (i*cellSize, j*cellSize). Member length and direction cosines are derived
// once at construction; only the thickness vector and the boundary-condition
// sets change afterwards.
package mesh

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

type Pattern string

const (
	PatternCross        Pattern = "cross"
	PatternCheckerboard Pattern = "checkerboard"
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

var (
	ErrUnknownPattern  = errors.New("mesh: unknown pattern")
	ErrUnknownAxis     = errors.New("mesh: unknown axis")
	ErrBadParams       = errors.New("mesh: invalid generation parameters")
	ErrGridTooLarge    = errors.New("mesh: grid too large")
	ErrNodeIndex       = errors.New("mesh: node index out of range")
	ErrBadMember       = errors.New("mesh: member references unknown node")
	ErrZeroLength      = errors.New("mesh: zero-length member")
	ErrThicknessLength = errors.New("mesh: thickness vector length mismatch")
)

func ParsePattern(s string) (Pattern, error) {
	switch Pattern(strings.ToLower(strings.TrimSpace(s))) {
	case PatternCross:
		return PatternCross, nil
	case PatternCheckerboard:
		return PatternCheckerboard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPattern, s)
}

func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAxis, s)
}

// Node is a lattice point in millimeters.
type Node struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Member joins two node indices.
type Member struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Params are the lattice generation parameters.
type Params struct {
	CellSize float64 `json:"cell_size_mm"`
	Width    float64 `json:"width_mm"`
	Height   float64 `json:"height_mm"`
	Pattern  Pattern `json:"pattern"`
}

// MaxGridNodes bounds the lattices New will generate. Larger grids come out
// empty.
const MaxGridNodes = 1 << 24

// Validate rejects parameters that can only produce a degenerate lattice.
// New does not call it; callers that want early rejection do.
func (p Params) Validate() error {
	if !finite(p.CellSize) || p.CellSize <= 0 {
		return fmt.Errorf("%w: cell size must be > 0, got %v", ErrBadParams, p.CellSize)
	}
	if !finite(p.Width) || !finite(p.Height) || p.Width < p.CellSize || p.Height < p.CellSize {
		return fmt.Errorf("%w: width and height must be >= cell size (%v), got %vx%v",
			ErrBadParams, p.CellSize, p.Width, p.Height)
	}
	if p.Pattern != PatternCross && p.Pattern != PatternCheckerboard {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, p.Pattern)
	}
	if n := p.GridNodes(); n > MaxGridNodes {
		return fmt.Errorf("%w: %.0f nodes, limit %d", ErrGridTooLarge, n, MaxGridNodes)
	}
	return nil
}

// GridNodes is the node count of the lattice p describes, computed in float64
// so it cannot overflow. It is 0 when p describes no grid.
func (p Params) GridNodes() float64 {
	if !finite(p.CellSize) || p.CellSize <= 0 || !finite(p.Width) || !finite(p.Height) ||
		p.Width < 0 || p.Height < 0 {
		return 0
	}
	return (math.Floor(p.Width/p.CellSize) + 1) * (math.Floor(p.Height/p.CellSize) + 1)
}

// Cells returns the number of whole cells along x and y, or -1, -1 when the
// parameters cannot describe any grid at all or the grid has more than
// MaxGridNodes nodes.
func (p Params) Cells() (nx, nz int) {
	if n := p.GridNodes(); n == 0 || n > MaxGridNodes {
		return -1, -1
	}
	return int(math.Floor(p.Width / p.CellSize)), int(math.Floor(p.Height / p.CellSize))
}

type Mesh struct {
	nodes     []Node
	members   []Member
	thickness []float64
	lengths   []float64
	cosines   [][2]float64

	fixed   map[int]struct{}
	loadX   map[int]struct{}
	loadY   map[int]struct{}
	rollerX map[int]struct{}
	rollerY map[int]struct{}
}

// New generates the lattice for p. Invalid parameters are not rejected: a
// non-positive or non-finite cell size, negative dimensions or a grid over
// MaxGridNodes give an empty mesh, and dimensions smaller than the cell size
// give nodes without members. Either way IsReadyForAnalysis reports false.
func New(p Params) *Mesh {
	m := empty()
	m.generate(p)
	m.computeLengthAndDirectionCosines()
	return m
}

// FromMembers builds a mesh from an explicit topology. Every member starts at
// thickness 1.
func FromMembers(nodes []Node, members []Member) (*Mesh, error) {
	m := empty()
	m.nodes = append([]Node(nil), nodes...)
	for k, mem := range members {
		if mem.Start < 0 || mem.Start >= len(nodes) || mem.End < 0 || mem.End >= len(nodes) {
			return nil, fmt.Errorf("%w: member %d (%d-%d) with %d nodes", ErrBadMember, k, mem.Start, mem.End, len(nodes))
		}
		m.addMember(mem.Start, mem.End)
	}
	m.computeLengthAndDirectionCosines()
	for k, l := range m.lengths {
		if l == 0 {
			return nil, fmt.Errorf("%w: member %d", ErrZeroLength, k)
		}
	}
	return m, nil
}

func empty() *Mesh {
	return &Mesh{
		fixed:   make(map[int]struct{}),
		loadX:   make(map[int]struct{}),
		loadY:   make(map[int]struct{}),
		rollerX: make(map[int]struct{}),
		rollerY: make(map[int]struct{}),
	}
}

// generate lays out the node grid and the members cell by cell. Each cell adds
// its bottom, left and top edges; the right edge only in the last column. With
// more than one row this repeats every interior horizontal edge, once as the
// top of the lower cell and once as the bottom of the upper one.
func (m *Mesh) generate(p Params) {
	nx, nz := p.Cells()
	if nx < 0 || nz < 0 {
		return
	}
	stride := nx + 1
	m.nodes = make([]Node, 0, stride*(nz+1))
	for j := 0; j <= nz; j++ {
		for i := 0; i <= nx; i++ {
			m.nodes = append(m.nodes, Node{X: float64(i) * p.CellSize, Y: float64(j) * p.CellSize})
		}
	}

	for j := 0; j < nz; j++ {
		for i := 0; i < nx; i++ {
			n1 := j*stride + i
			n2 := n1 + 1
			n3 := n1 + stride
			n4 := n3 + 1

			m.addMember(n1, n2)
			m.addMember(n1, n3)
			m.addMember(n3, n4)
			if i == nx-1 {
				m.addMember(n2, n4)
			}

			switch p.Pattern {
			case PatternCross:
				m.addMember(n1, n4)
				m.addMember(n2, n3)
			case PatternCheckerboard:
				if (i+j)%2 == 0 {
					m.addMember(n1, n4)
				} else {
					m.addMember(n2, n3)
				}
			}
		}
	}
}

func (m *Mesh) addMember(a, b int) {
	m.members = append(m.members, Member{Start: a, End: b})
	m.thickness = append(m.thickness, 1.0)
}

func (m *Mesh) computeLengthAndDirectionCosines() {
	m.lengths = make([]float64, len(m.members))
	m.cosines = make([][2]float64, len(m.members))
	for k, mem := range m.members {
		a, b := m.nodes[mem.Start], m.nodes[mem.End]
		dx, dy := b.X-a.X, b.Y-a.Y
		l := math.Hypot(dx, dy)
		m.lengths[k] = l
		if l > 0 {
			m.cosines[k] = [2]float64{dx / l, dy / l}
		}
	}
}

func (m *Mesh) NodeCount() int   { return len(m.nodes) }
func (m *Mesh) MemberCount() int { return len(m.members) }

// Nodes returns a copy of the node coordinates.
func (m *Mesh) Nodes() []Node { return append([]Node(nil), m.nodes...) }

// Members returns a copy of the member connectivity.
func (m *Mesh) Members() []Member { return append([]Member(nil), m.members...) }

// Lengths returns a copy of the member lengths.
func (m *Mesh) Lengths() []float64 { return append([]float64(nil), m.lengths...) }

// Cosines returns a copy of the per-member (c, s) direction cosines.
func (m *Mesh) Cosines() [][2]float64 { return append([][2]float64(nil), m.cosines...) }

// Thickness returns a copy of the current thickness vector.
func (m *Mesh) Thickness() []float64 { return append([]float64(nil), m.thickness...) }

// SetThickness replaces the whole thickness vector.
func (m *Mesh) SetThickness(t []float64) error {
	if len(t) != len(m.members) {
		return fmt.Errorf("%w: got %d, want %d", ErrThicknessLength, len(t), len(m.members))
	}
	m.thickness = append(m.thickness[:0], t...)
	return nil
}

// Volume is the sum of thickness*length over all members.
func (m *Mesh) Volume() float64 {
	v := 0.0
	for k, t := range m.thickness {
		v += t * m.lengths[k]
	}
	return v
}

// AddDefaultBoundaryCase marks the cantilever benchmark: every node of the
// leftmost column is fixed and the bottom-right corner carries a y load.
func (m *Mesh) AddDefaultBoundaryCase() {
	if len(m.nodes) == 0 {
		return
	}
	minX := m.nodes[0].X
	corner := 0
	for k, n := range m.nodes {
		if n.X < minX {
			minX = n.X
		}
		c := m.nodes[corner]
		if n.X > c.X || (n.X == c.X && n.Y < c.Y) {
			corner = k
		}
	}
	for k, n := range m.nodes {
		if n.X == minX {
			m.fixed[k] = struct{}{}
		}
	}
	m.loadY[corner] = struct{}{}
}

// FindClosestNode returns the index of the node nearest to (x, y), the first
// one on ties, or -1 for a mesh without nodes.
func (m *Mesh) FindClosestNode(x, y float64) int {
	best, bestDist := -1, math.Inf(1)
	for k, n := range m.nodes {
		d := math.Hypot(n.X-x, n.Y-y)
		if d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func (m *Mesh) checkNode(i int) error {
	if i < 0 || i >= len(m.nodes) {
		return fmt.Errorf("%w: %d (nodes: %d)", ErrNodeIndex, i, len(m.nodes))
	}
	return nil
}

// ToggleFixed adds node i to the fixed set, or removes it if already there.
func (m *Mesh) ToggleFixed(i int) error {
	if err := m.checkNode(i); err != nil {
		return err
	}
	toggle(m.fixed, i)
	return nil
}

// ToggleLoad flips the load on node i along axis. A node carries at most one
// load direction: loading it along one axis drops a load along the other.
func (m *Mesh) ToggleLoad(i int, axis Axis) error {
	if err := m.checkNode(i); err != nil {
		return err
	}
	switch axis {
	case AxisX:
		delete(m.loadY, i)
		toggle(m.loadX, i)
	case AxisY:
		delete(m.loadX, i)
		toggle(m.loadY, i)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownAxis, axis)
	}
	return nil
}

// CycleLoad moves node i through none -> x -> y -> none.
func (m *Mesh) CycleLoad(i int) error {
	switch {
	case m.IsLoaded(i, AxisX):
		return m.ToggleLoad(i, AxisY)
	case m.IsLoaded(i, AxisY):
		return m.ToggleLoad(i, AxisY)
	default:
		return m.ToggleLoad(i, AxisX)
	}
}

// ToggleRoller flips a single-direction restraint on node i.
func (m *Mesh) ToggleRoller(i int, axis Axis) error {
	if err := m.checkNode(i); err != nil {
		return err
	}
	switch axis {
	case AxisX:
		toggle(m.rollerX, i)
	case AxisY:
		toggle(m.rollerY, i)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownAxis, axis)
	}
	return nil
}

func (m *Mesh) IsFixed(i int) bool {
	_, ok := m.fixed[i]
	return ok
}

func (m *Mesh) IsLoaded(i int, axis Axis) bool {
	var ok bool
	if axis == AxisY {
		_, ok = m.loadY[i]
	} else {
		_, ok = m.loadX[i]
	}
	return ok
}

func (m *Mesh) Fixed() []int   { return sortedKeys(m.fixed) }
func (m *Mesh) LoadedX() []int { return sortedKeys(m.loadX) }
func (m *Mesh) LoadedY() []int { return sortedKeys(m.loadY) }

// Rollers returns the single-direction restraints, sorted by node.
func (m *Mesh) Rollers(axis Axis) []int {
	if axis == AxisY {
		return sortedKeys(m.rollerY)
	}
	return sortedKeys(m.rollerX)
}

// RestrainedDOFs lists, in ascending order, every degree of freedom pinned
// by a fixed node or a roller. DOF 2n is x and 2n+1 is y of node n.
func (m *Mesh) RestrainedDOFs() []int {
	seen := make(map[int]struct{}, 2*len(m.fixed)+len(m.rollerX)+len(m.rollerY))
	for n := range m.fixed {
		seen[2*n] = struct{}{}
		seen[2*n+1] = struct{}{}
	}
	for n := range m.rollerX {
		seen[2*n] = struct{}{}
	}
	for n := range m.rollerY {
		seen[2*n+1] = struct{}{}
	}
	return sortedKeys(seen)
}

// IsReadyForAnalysis reports whether the mesh has geometry, at least one
// fixed node and at least one load.
func (m *Mesh) IsReadyForAnalysis() bool {
	return len(m.nodes) > 0 && len(m.members) > 0 &&
		len(m.fixed) > 0 && (len(m.loadX) > 0 || len(m.loadY) > 0)
}

// Clone returns an independent deep copy.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		nodes:     append([]Node(nil), m.nodes...),
		members:   append([]Member(nil), m.members...),
		thickness: append([]float64(nil), m.thickness...),
		lengths:   append([]float64(nil), m.lengths...),
		cosines:   append([][2]float64(nil), m.cosines...),
		fixed:     cloneSet(m.fixed),
		loadX:     cloneSet(m.loadX),
		loadY:     cloneSet(m.loadY),
		rollerX:   cloneSet(m.rollerX),
		rollerY:   cloneSet(m.rollerY),
	}
	return c
}

func toggle(set map[int]struct{}, i int) {
	if _, ok := set[i]; ok {
		delete(set, i)
		return
	}
	set[i] = struct{}{}
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func cloneSet(set map[int]struct{}) map[int]struct{} {
	out := make(map[int]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
