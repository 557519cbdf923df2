package hnl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogspace(t *testing.T) {
	grid := logspace(1e-12, 1e-2, 100)
	require.Len(t, grid, 100)
	assert.InEpsilon(t, 1e-12, grid[0], 1e-12)
	assert.InEpsilon(t, 1e-2, grid[99], 1e-12)
	// uniform ratio between neighbours
	r := grid[1] / grid[0]
	for i := 2; i < len(grid); i++ {
		assert.InEpsilon(t, r, grid[i]/grid[i-1], 1e-9, "i=%d", i)
	}
}

func TestRefineCrossing(t *testing.T) {
	grid := []Real{1e-8, 1e-7, 1e-6}

	t.Run("rising crossing between points", func(t *testing.T) {
		counts := []Real{1, 5, 9}
		// threshold 3 sits halfway between counts 1 and 5
		got := refineCrossing(grid, counts, 1, 3, true)
		assert.InEpsilon(t, logLerp(1e-8, 1e-7, 0.5), got, 1e-12)
		assert.Greater(t, got, grid[0])
		assert.Less(t, got, grid[1])
	})

	t.Run("falling crossing between points", func(t *testing.T) {
		counts := []Real{9, 5, 1}
		got := refineCrossing(grid, counts, 1, 3, false)
		assert.InEpsilon(t, logLerp(1e-7, 1e-6, 0.5), got, 1e-12)
	})

	t.Run("crossing at the grid edge returns the edge", func(t *testing.T) {
		counts := []Real{5, 9, 5}
		assert.Equal(t, grid[0], refineCrossing(grid, counts, 0, 3, true))
		assert.Equal(t, grid[2], refineCrossing(grid, counts, 2, 3, false))
	})

	t.Run("flat counts fall back to the excluded point", func(t *testing.T) {
		counts := []Real{5, 5, 5}
		assert.Equal(t, grid[1], refineCrossing(grid, counts, 1, 3, true))
	})
}

func scanFixture(n int) (*Batch, []Acceptance, []bool) {
	return syntheticBatch(n, 24, 5, 10, 5)
}

func TestScannerScan(t *testing.T) {
	batch, recs, vis := scanFixture(200)
	// modest luminosity keeps both threshold crossings strictly inside
	// the default coupling grid
	scanner := &Scanner{
		Model:  AnalyticModel{},
		Kernel: &YieldKernel{Log: zap.NewNop()},
		Params: YieldParams{LumiFb: 3, RecoEfficiency: 1},
		Log:    zap.NewNop(),
	}
	opts := DefaultScanOptions()
	ctx := context.Background()

	t.Run("finds a two-sided exclusion band", func(t *testing.T) {
		res, err := scanner.Scan(ctx, 1.0, FlavourMuon, batch, recs, vis, opts)
		require.NoError(t, err)
		require.True(t, res.Valid)
		assert.Greater(t, res.Eps2Min, opts.Eps2Min)
		assert.Less(t, res.Eps2Max, opts.Eps2Max)
		assert.Less(t, res.Eps2Min, res.Eps2Max)
		assert.GreaterOrEqual(t, res.PeakEvents, ExclusionThreshold)
		assert.Equal(t, FlavourMuon, res.Flavour)
	})

	t.Run("fast and per-point paths agree", func(t *testing.T) {
		fast, err := scanner.Scan(ctx, 1.0, FlavourMuon, batch, recs, vis, opts)
		require.NoError(t, err)

		slowOpts := opts
		slowOpts.PerPointModel = true
		slow, err := scanner.Scan(ctx, 1.0, FlavourMuon, batch, recs, vis, slowOpts)
		require.NoError(t, err)

		require.Equal(t, fast.Valid, slow.Valid)
		assert.InEpsilon(t, slow.Eps2Min, fast.Eps2Min, 5e-4)
		assert.InEpsilon(t, slow.Eps2Max, fast.Eps2Max, 5e-4)
		assert.InEpsilon(t, slow.PeakEvents, fast.PeakEvents, 5e-4)
	})

	t.Run("no sensitivity yields an invalid result", func(t *testing.T) {
		// a single quiet trajectory cannot reach the threshold
		tiny, tinyRecs, tinyVis := syntheticBatch(1, 24, 5, 10, 5)
		tiny.Trajectories[0].Weight = 1
		quiet := &Scanner{
			Model:  AnalyticModel{},
			Kernel: &YieldKernel{Log: zap.NewNop()},
			Params: YieldParams{LumiFb: 1e-12, RecoEfficiency: 1},
			Log:    zap.NewNop(),
		}
		res, err := quiet.Scan(ctx, 1.0, FlavourMuon, tiny, tinyRecs, tinyVis, opts)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Zero(t, res.Eps2Min)
		assert.Zero(t, res.Eps2Max)
		assert.Greater(t, res.PeakEvents, 0.0)
		assert.Less(t, res.PeakEvents, ExclusionThreshold)
	})

	t.Run("option validation", func(t *testing.T) {
		bad := opts
		bad.Points = 1
		_, err := scanner.Scan(ctx, 1.0, FlavourMuon, batch, recs, vis, bad)
		require.Error(t, err)

		bad = opts
		bad.Eps2Min = 0
		_, err = scanner.Scan(ctx, 1.0, FlavourMuon, batch, recs, vis, bad)
		require.Error(t, err)

		bad = opts
		bad.Eps2Max = bad.Eps2Min
		_, err = scanner.Scan(ctx, 1.0, FlavourMuon, batch, recs, vis, bad)
		require.Error(t, err)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := scanner.Scan(cancelled, 1.0, FlavourMuon, batch, recs, vis, opts)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("model error aborts the mass point", func(t *testing.T) {
		_, err := scanner.Scan(ctx, -1.0, FlavourMuon, batch, recs, vis, opts)
		require.Error(t, err)
	})
}
