package mesh_test

import (
	"math"
	"testing"

	"Trusslab/internal/calc/mesh"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NodeCount(t *testing.T) {
	cases := []struct {
		name string
		p    mesh.Params
		want int
	}{
		{"2x1", mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross}, 3 * 2},
		{"4x2", mesh.Params{CellSize: 10, Width: 40, Height: 20, Pattern: mesh.PatternCheckerboard}, 5 * 3},
		{"non-integral", mesh.Params{CellSize: 7, Width: 30, Height: 15, Pattern: mesh.PatternCross}, 5 * 3},
		{"zero cells", mesh.Params{CellSize: 50, Width: 20, Height: 10, Pattern: mesh.PatternCross}, 1},
		{"zero cell size", mesh.Params{CellSize: 0, Width: 20, Height: 10, Pattern: mesh.PatternCross}, 0},
		{"negative width", mesh.Params{CellSize: 5, Width: -20, Height: 10, Pattern: mesh.PatternCross}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := mesh.New(tc.p)
			assert.Equal(t, tc.want, m.NodeCount())
		})
	}
}

func TestNew_NodeLayoutRowMajor(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	nodes := m.Nodes()
	require.Len(t, nodes, 6)
	assert.Equal(t, mesh.Node{X: 0, Y: 0}, nodes[0])
	assert.Equal(t, mesh.Node{X: 20, Y: 0}, nodes[2])
	assert.Equal(t, mesh.Node{X: 0, Y: 10}, nodes[3])
	assert.Equal(t, mesh.Node{X: 20, Y: 10}, nodes[5])
}

func TestNew_SingleCellMemberCount(t *testing.T) {
	cross := mesh.New(mesh.Params{CellSize: 10, Width: 10, Height: 10, Pattern: mesh.PatternCross})
	assert.Equal(t, 6, cross.MemberCount())

	checker := mesh.New(mesh.Params{CellSize: 10, Width: 10, Height: 10, Pattern: mesh.PatternCheckerboard})
	assert.Equal(t, 5, checker.MemberCount())
}

func TestNew_MemberRule(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	want := []mesh.Member{
		// cell (0,0): n1=0 n2=1 n3=3 n4=4
		{0, 1}, {0, 3}, {3, 4}, {0, 4}, {1, 3},
		// cell (1,0): n1=1 n2=2 n3=4 n4=5, last column closes the right edge
		{1, 2}, {1, 4}, {4, 5}, {2, 5}, {1, 5}, {2, 4},
	}
	assert.Equal(t, want, m.Members())
}

func TestNew_CheckerboardAlternates(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 20, Height: 20, Pattern: mesh.PatternCheckerboard})
	members := m.Members()
	// per row: cell 0 adds 4 members, cell 1 (last column) adds 5.
	require.Len(t, members, 18)
	assert.Equal(t, mesh.Member{Start: 0, End: 4}, members[3])   // (0,0) even -> n1-n4
	assert.Equal(t, mesh.Member{Start: 2, End: 4}, members[8])   // (1,0) odd  -> n2-n3
	assert.Equal(t, mesh.Member{Start: 4, End: 6}, members[12])  // (0,1) odd  -> n2-n3
	assert.Equal(t, mesh.Member{Start: 4, End: 8}, members[17])  // (1,1) even -> n1-n4
}

func TestNew_DuplicateInteriorHorizontals(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 10, Height: 20, Pattern: mesh.PatternCheckerboard})
	count := 0
	for _, mem := range m.Members() {
		if mem == (mesh.Member{Start: 2, End: 3}) {
			count++
		}
	}
	assert.Equal(t, 2, count, "the middle horizontal is emitted by both adjacent rows")
}

func TestNew_Deterministic(t *testing.T) {
	p := mesh.Params{CellSize: 3, Width: 31, Height: 17, Pattern: mesh.PatternCheckerboard}
	a, b := mesh.New(p), mesh.New(p)
	assert.Equal(t, a.Nodes(), b.Nodes())
	assert.Equal(t, a.Members(), b.Members())
}

func TestNew_UnitDirectionCosines(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 7.5, Width: 45, Height: 30, Pattern: mesh.PatternCross})
	lengths := m.Lengths()
	for k, cs := range m.Cosines() {
		assert.InDelta(t, 1.0, cs[0]*cs[0]+cs[1]*cs[1], 1e-12, "member %d", k)
		assert.Greater(t, lengths[k], 0.0)
	}
	for _, th := range m.Thickness() {
		assert.Equal(t, 1.0, th)
	}
}

func TestFromMembers(t *testing.T) {
	m, err := mesh.FromMembers([]mesh.Node{{0, 0}, {3, 4}}, []mesh.Member{{0, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, m.Lengths()[0], 1e-12)
	assert.InDelta(t, 0.6, m.Cosines()[0][0], 1e-12)
	assert.InDelta(t, 0.8, m.Cosines()[0][1], 1e-12)

	_, err = mesh.FromMembers([]mesh.Node{{0, 0}}, []mesh.Member{{0, 1}})
	assert.ErrorIs(t, err, mesh.ErrBadMember)

	_, err = mesh.FromMembers([]mesh.Node{{0, 0}, {0, 0}}, []mesh.Member{{0, 1}})
	assert.ErrorIs(t, err, mesh.ErrZeroLength)
}

func TestAddDefaultBoundaryCase(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 30, Height: 20, Pattern: mesh.PatternCross})
	assert.False(t, m.IsReadyForAnalysis())

	m.AddDefaultBoundaryCase()
	assert.Equal(t, []int{0, 4, 8}, m.Fixed())
	assert.Equal(t, []int{3}, m.LoadedY())
	assert.Empty(t, m.LoadedX())
	assert.True(t, m.IsReadyForAnalysis())
}

func TestFindClosestNode(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	assert.Equal(t, 4, m.FindClosestNode(11, 9))
	assert.Equal(t, 4, m.FindClosestNode(11, 9), "repeated lookups agree")
	assert.Equal(t, 0, m.FindClosestNode(-100, -100))
	assert.Equal(t, 0, m.FindClosestNode(5, 0), "ties resolve to the lowest index")

	empty := mesh.New(mesh.Params{CellSize: 0, Width: 20, Height: 10})
	assert.Equal(t, -1, empty.FindClosestNode(0, 0))
}

func TestToggleFixed(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 10, Height: 10, Pattern: mesh.PatternCross})
	require.NoError(t, m.ToggleFixed(2))
	assert.True(t, m.IsFixed(2))
	require.NoError(t, m.ToggleFixed(2))
	assert.False(t, m.IsFixed(2))

	assert.ErrorIs(t, m.ToggleFixed(4), mesh.ErrNodeIndex)
	assert.ErrorIs(t, m.ToggleFixed(-1), mesh.ErrNodeIndex)
}

func TestToggleLoad(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 10, Height: 10, Pattern: mesh.PatternCross})

	require.NoError(t, m.ToggleLoad(1, mesh.AxisY))
	assert.Equal(t, []int{1}, m.LoadedY())
	require.NoError(t, m.ToggleLoad(1, mesh.AxisY))
	assert.Empty(t, m.LoadedY())

	require.NoError(t, m.ToggleLoad(1, mesh.AxisX))
	require.NoError(t, m.ToggleLoad(1, mesh.AxisY))
	assert.Empty(t, m.LoadedX(), "a node carries one load direction")
	assert.Equal(t, []int{1}, m.LoadedY())

	assert.ErrorIs(t, m.ToggleLoad(9, mesh.AxisX), mesh.ErrNodeIndex)
	assert.ErrorIs(t, m.ToggleLoad(0, mesh.Axis(7)), mesh.ErrUnknownAxis)
}

func TestCycleLoad(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 10, Height: 10, Pattern: mesh.PatternCross})
	states := [][2]bool{{true, false}, {false, true}, {false, false}, {true, false}}
	for step, want := range states {
		require.NoError(t, m.CycleLoad(3))
		assert.Equal(t, want[0], m.IsLoaded(3, mesh.AxisX), "step %d x", step)
		assert.Equal(t, want[1], m.IsLoaded(3, mesh.AxisY), "step %d y", step)
	}
}

func TestRestrainedDOFs(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	require.NoError(t, m.ToggleFixed(3))
	require.NoError(t, m.ToggleRoller(2, mesh.AxisY))
	require.NoError(t, m.ToggleRoller(0, mesh.AxisX))
	assert.Equal(t, []int{0, 5, 6, 7}, m.RestrainedDOFs())
}

func TestIsReadyForAnalysis(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	require.NoError(t, m.ToggleFixed(0))
	assert.False(t, m.IsReadyForAnalysis(), "no load yet")
	require.NoError(t, m.ToggleLoad(2, mesh.AxisX))
	assert.True(t, m.IsReadyForAnalysis())

	degenerate := mesh.New(mesh.Params{CellSize: 50, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	require.NoError(t, degenerate.ToggleFixed(0))
	require.NoError(t, degenerate.ToggleLoad(0, mesh.AxisY))
	assert.False(t, degenerate.IsReadyForAnalysis(), "no members")
}

func TestSetThicknessAndVolume(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 10, Height: 10, Pattern: mesh.PatternCheckerboard})
	want := 4*10 + 10*math.Sqrt2
	assert.InDelta(t, want, m.Volume(), 1e-9)

	th := m.Thickness()
	for k := range th {
		th[k] = 0.5
	}
	assert.InDelta(t, want, m.Volume(), 1e-9, "Thickness returns a copy")
	require.NoError(t, m.SetThickness(th))
	assert.InDelta(t, want/2, m.Volume(), 1e-9)

	assert.ErrorIs(t, m.SetThickness([]float64{1}), mesh.ErrThicknessLength)
}

func TestClone(t *testing.T) {
	m := mesh.New(mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	m.AddDefaultBoundaryCase()
	c := m.Clone()
	require.NoError(t, c.ToggleFixed(0))
	th := c.Thickness()
	th[0] = 0.25
	require.NoError(t, c.SetThickness(th))

	assert.True(t, m.IsFixed(0))
	assert.Equal(t, 1.0, m.Thickness()[0])
}

func TestParamsValidate(t *testing.T) {
	ok := mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross}
	require.NoError(t, ok.Validate())

	bad := []mesh.Params{
		{CellSize: 0, Width: 20, Height: 10, Pattern: mesh.PatternCross},
		{CellSize: -1, Width: 20, Height: 10, Pattern: mesh.PatternCross},
		{CellSize: math.NaN(), Width: 20, Height: 10, Pattern: mesh.PatternCross},
		{CellSize: 30, Width: 20, Height: 10, Pattern: mesh.PatternCross},
		{CellSize: 10, Width: 20, Height: math.Inf(1), Pattern: mesh.PatternCross},
	}
	for _, p := range bad {
		assert.ErrorIs(t, p.Validate(), mesh.ErrBadParams, "%+v", p)
	}
	assert.ErrorIs(t, mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: "hex"}.Validate(), mesh.ErrUnknownPattern)
}

func TestHugeGridIsEmpty(t *testing.T) {
	// (nx+1)*(nz+1) overflows int for these sizes
	for _, p := range []mesh.Params{
		{CellSize: 1, Width: 4294967295, Height: 2147483647, Pattern: mesh.PatternCross},
		{CellSize: 1, Width: 1e300, Height: 1e300, Pattern: mesh.PatternCheckerboard},
		{CellSize: 1, Width: mesh.MaxGridNodes, Height: 1, Pattern: mesh.PatternCross},
	} {
		assert.Greater(t, p.GridNodes(), float64(mesh.MaxGridNodes))
		assert.ErrorIs(t, p.Validate(), mesh.ErrGridTooLarge)
		nx, nz := p.Cells()
		assert.Equal(t, -1, nx)
		assert.Equal(t, -1, nz)

		var m *mesh.Mesh
		require.NotPanics(t, func() { m = mesh.New(p) })
		assert.Zero(t, m.NodeCount())
		assert.False(t, m.IsReadyForAnalysis())
	}

	fits := mesh.Params{CellSize: 10, Width: 40, Height: 20, Pattern: mesh.PatternCross}
	assert.Equal(t, 15.0, fits.GridNodes())
	assert.Zero(t, mesh.Params{CellSize: 0, Width: 40, Height: 20}.GridNodes())
}

func TestParsePatternAndAxis(t *testing.T) {
	p, err := mesh.ParsePattern(" Cross ")
	require.NoError(t, err)
	assert.Equal(t, mesh.PatternCross, p)
	_, err = mesh.ParsePattern("hex")
	assert.ErrorIs(t, err, mesh.ErrUnknownPattern)

	a, err := mesh.ParseAxis("Y")
	require.NoError(t, err)
	assert.Equal(t, mesh.AxisY, a)
	_, err = mesh.ParseAxis("z")
	assert.ErrorIs(t, err, mesh.ErrUnknownAxis)
}
