package optimizer_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"Trusslab/internal/calc/fea"
	"Trusslab/internal/calc/mesh"
	"Trusslab/internal/calc/optimizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cantilever(t *testing.T, pattern mesh.Pattern) *mesh.Mesh {
	t.Helper()
	m := mesh.New(mesh.Params{CellSize: 10, Width: 40, Height: 20, Pattern: pattern})
	m.AddDefaultBoundaryCase()
	require.True(t, m.IsReadyForAnalysis())
	return m
}

func TestOptimize_VolumeReachesTarget(t *testing.T) {
	for _, pattern := range []mesh.Pattern{mesh.PatternCross, mesh.PatternCheckerboard} {
		t.Run(string(pattern), func(t *testing.T) {
			m := cantilever(t, pattern)
			v0 := m.Volume()

			var bounds []string
			opt, err := optimizer.New(m,
				optimizer.WithIterations(30),
				optimizer.WithTargetFraction(0.4),
				optimizer.WithProgress(func(s optimizer.Step) {
					for k, x := range m.Thickness() {
						if x < optimizer.MinThickness || x > 1 {
							bounds = append(bounds, "member out of bounds")
							t.Logf("iteration %d member %d thickness %v", s.Iteration, k, x)
						}
					}
				}),
			)
			require.NoError(t, err)
			c0, base := opt.Baseline()
			assert.Greater(t, c0, 0.0)
			assert.InDelta(t, v0, base, 1e-9)

			require.True(t, opt.Optimize(context.Background()), opt.ErrorMessage())
			assert.True(t, opt.Success())
			assert.Empty(t, opt.ErrorMessage())
			assert.NoError(t, opt.Err())
			assert.Empty(t, bounds)

			final := m.Volume()
			assert.LessOrEqual(t, final, v0)
			assert.InDelta(t, 0.4*v0, final, 0.01*v0)
			assert.Len(t, opt.History(), 30)

			last := opt.LastResult()
			require.NotNil(t, last)
			assert.True(t, last.Computed)
		})
	}
}

func TestOptimize_StiffnessPerVolumeImproves(t *testing.T) {
	m := cantilever(t, mesh.PatternCross)
	opt, err := optimizer.New(m, optimizer.WithIterations(40))
	require.NoError(t, err)
	require.True(t, opt.Optimize(context.Background()), opt.ErrorMessage())

	// Uniformly thinning the baseline to the same volume would scale its
	// compliance by 1/fraction; the optimized layout must do better.
	c0, _ := opt.Baseline()
	res, err := fea.New(m).Compute()
	require.NoError(t, err)
	assert.Less(t, res.StrainEnergy, c0/optimizer.DefaultFraction)
}

func TestOptimize_Saturated(t *testing.T) {
	m := cantilever(t, mesh.PatternCross)
	before := m.Thickness()

	// Target below the volume of the all-minimum layout.
	opt, err := optimizer.New(m, optimizer.WithTargetFraction(optimizer.MinThickness/10))
	require.NoError(t, err)

	assert.False(t, opt.Optimize(context.Background()))
	assert.ErrorIs(t, opt.Err(), optimizer.ErrSaturated)
	assert.Contains(t, opt.ErrorMessage(), "saturated")
	assert.Equal(t, before, m.Thickness(), "a failed iteration does not commit")
	assert.Empty(t, opt.History())
}

func TestOptimize_DivergedObjective(t *testing.T) {
	m := cantilever(t, mesh.PatternCross)
	opt, err := optimizer.New(m, optimizer.WithIterations(5))
	require.NoError(t, err)
	optimizer.SetBaseline(opt, math.NaN(), m.Volume())

	assert.False(t, opt.Optimize(context.Background()))
	assert.ErrorIs(t, opt.Err(), optimizer.ErrDiverged)
	assert.NotErrorIs(t, opt.Err(), optimizer.ErrSaturated)
	assert.False(t, opt.Success())
}

func TestOptimize_Canceled(t *testing.T) {
	m := cantilever(t, mesh.PatternCross)
	opt, err := optimizer.New(m, optimizer.WithIterations(50))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	opt2, err := optimizer.New(cantilever(t, mesh.PatternCross),
		optimizer.WithIterations(50),
		optimizer.WithProgress(func(optimizer.Step) {
			calls++
			if calls == 3 {
				cancel()
			}
		}))
	require.NoError(t, err)

	assert.False(t, opt2.Optimize(ctx))
	assert.ErrorIs(t, opt2.Err(), optimizer.ErrCanceled)
	assert.Len(t, opt2.History(), 3, "cancellation lands between iterations")

	assert.False(t, opt.Optimize(ctx), "already-canceled context stops before the first iteration")
	assert.Empty(t, opt.History())
}

func TestNew_Errors(t *testing.T) {
	notReady := mesh.New(mesh.Params{CellSize: 10, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	_, err := optimizer.New(notReady)
	assert.ErrorIs(t, err, fea.ErrNotReady)

	degenerate := mesh.New(mesh.Params{CellSize: 50, Width: 20, Height: 10, Pattern: mesh.PatternCross})
	degenerate.AddDefaultBoundaryCase()
	require.False(t, degenerate.IsReadyForAnalysis())
	_, err = optimizer.New(degenerate)
	assert.ErrorIs(t, err, fea.ErrNotReady)

	for _, f := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err = optimizer.New(cantilever(t, mesh.PatternCross), optimizer.WithTargetFraction(f))
		assert.ErrorIs(t, err, optimizer.ErrBadFraction, "fraction %v", f)
	}
	_, err = optimizer.New(cantilever(t, mesh.PatternCross), optimizer.WithIterations(0))
	assert.ErrorIs(t, err, optimizer.ErrBadIterations)
}

func TestOptimize_IndependentMeshesConcurrently(t *testing.T) {
	const workers = 4
	thickness := make([][]float64, workers)
	meshes := make([]*mesh.Mesh, workers)
	for i := range meshes {
		meshes[i] = cantilever(t, mesh.PatternCheckerboard)
	}

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opt, err := optimizer.New(meshes[i], optimizer.WithIterations(10))
			if err != nil || !opt.Optimize(context.Background()) {
				return
			}
			thickness[i] = meshes[i].Thickness()
		}(i)
	}
	wg.Wait()

	require.NotNil(t, thickness[0])
	for i := 1; i < workers; i++ {
		assert.Equal(t, thickness[0], thickness[i])
	}
}

func TestBisect_HitsTargetVolume(t *testing.T) {
	x := []float64{1, 1, 1, 1}
	dc := []float64{-4, -1, -0.25, 0}
	lengths := []float64{1, 1, 1, 1}

	xnew, lambda, vol := optimizer.Bisect(x, dc, lengths, 1.5)
	assert.InDelta(t, 1.5, vol, 1e-3)
	assert.Greater(t, lambda, 0.0)
	assert.Equal(t, optimizer.MinThickness, xnew[3], "zero sensitivity falls to the floor")
	assert.GreaterOrEqual(t, xnew[0], xnew[1])
	assert.GreaterOrEqual(t, xnew[1], xnew[2])
	for _, v := range xnew {
		assert.GreaterOrEqual(t, v, optimizer.MinThickness)
		assert.LessOrEqual(t, v, 1.0)
	}
}
