package hnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticDecayLength(t *testing.T) {
	model := AnalyticModel{}

	t.Run("calibration point", func(t *testing.T) {
		// m = 10 GeV, |U|^2 = 5e-7 must reproduce ctau ~ 17 mm
		l, err := model.DecayLength(10, Couplings{Umu2: 5e-7})
		require.NoError(t, err)
		assert.InEpsilon(t, 0.017, l, 0.05)
	})

	t.Run("inverse coupling scaling", func(t *testing.T) {
		base, err := model.DecayLength(1.0, Couplings{Umu2: 1e-8})
		require.NoError(t, err)
		for _, k := range []Real{2, 10, 1e3} {
			scaled, err := model.DecayLength(1.0, Couplings{Umu2: 1e-8 * k})
			require.NoError(t, err)
			assert.InEpsilon(t, base/k, scaled, 5e-4, "k=%g", k)
		}
	})

	t.Run("fifth power mass scaling", func(t *testing.T) {
		l1, err := model.DecayLength(1.0, Couplings{Ue2: 1e-8})
		require.NoError(t, err)
		l2, err := model.DecayLength(2.0, Couplings{Ue2: 1e-8})
		require.NoError(t, err)
		assert.InEpsilon(t, 32.0, l1/l2, 1e-9)
	})

	t.Run("flavour split is irrelevant for the lifetime", func(t *testing.T) {
		a, err := model.DecayLength(1.5, Couplings{Ue2: 4e-8})
		require.NoError(t, err)
		b, err := model.DecayLength(1.5, Couplings{Ue2: 1e-8, Umu2: 2e-8, Utau2: 1e-8})
		require.NoError(t, err)
		assert.InDelta(t, a, b, a*1e-12)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		_, err := model.DecayLength(0, Couplings{Ue2: 1e-8})
		require.Error(t, err)
		_, err = model.DecayLength(1, Couplings{})
		require.Error(t, err)
	})
}

func TestAnalyticProductionProbabilities(t *testing.T) {
	model := AnalyticModel{}

	t.Run("light HNL gets W and B modes", func(t *testing.T) {
		brs, err := model.ProductionProbabilities(1.0, Couplings{Umu2: 1e-6})
		require.NoError(t, err)
		assert.Greater(t, brs[24], 0.0)
		assert.Greater(t, brs[511], 0.0)
		assert.Equal(t, brs[511], brs[521])
		assert.Equal(t, brs[511], brs[531])
		assert.Equal(t, brs[511], brs[5122])
	})

	t.Run("B modes close above the B mass", func(t *testing.T) {
		brs, err := model.ProductionProbabilities(6.0, Couplings{Umu2: 1e-6})
		require.NoError(t, err)
		assert.Greater(t, brs[24], 0.0)
		_, hasB := brs[511]
		assert.False(t, hasB)
	})

	t.Run("linear coupling scaling", func(t *testing.T) {
		base, err := model.ProductionProbabilities(1.0, Couplings{Utau2: 1e-8})
		require.NoError(t, err)
		scaled, err := model.ProductionProbabilities(1.0, Couplings{Utau2: 7e-8})
		require.NoError(t, err)
		for pid, br := range base {
			assert.InEpsilon(t, br*7, scaled[pid], 5e-4, "pdg %d", pid)
		}
	})

	t.Run("tau coupling suppressed in B modes", func(t *testing.T) {
		mu, err := model.ProductionProbabilities(1.0, Couplings{Umu2: 1e-6})
		require.NoError(t, err)
		tau, err := model.ProductionProbabilities(1.0, Couplings{Utau2: 1e-6})
		require.NoError(t, err)
		assert.InEpsilon(t, 0.105/0.025, mu[511]/tau[511], 1e-9)
	})
}

func TestWPhaseSpace(t *testing.T) {
	// massless limit is unity
	assert.InDelta(t, 1.0, wPhaseSpace(0, 0), 1e-12)
	// closes at threshold
	assert.Zero(t, wPhaseSpace(massW, 0))
	assert.Zero(t, wPhaseSpace(massW-1, massTau+1))
	// monotone decreasing in the HNL mass
	assert.Greater(t, wPhaseSpace(1, massMu), wPhaseSpace(40, massMu))
}

func TestBPhaseSpace(t *testing.T) {
	assert.InDelta(t, 1.0, bPhaseSpace(0), 1e-12)
	assert.Zero(t, bPhaseSpace(massB))
	assert.Zero(t, bPhaseSpace(6))
	x := Real(2.0/massB) * (2.0 / massB)
	assert.InDelta(t, (1-x)*(1-x)*(1+0.5*x), bPhaseSpace(2.0), 1e-12)
}

func TestPhysicsInputsRescaled(t *testing.T) {
	in := PhysicsInputs{Ctau0M: 100, BRs: map[int]Real{24: 1e-8, 511: 2e-9}}
	out := in.Rescaled(1e-6, 1e-4)

	assert.InDelta(t, 1.0, out.Ctau0M, 1e-12)
	assert.InDelta(t, 1e-6, out.BRs[24], 1e-18)
	assert.InDelta(t, 2e-7, out.BRs[511], 1e-18)

	// rescaling to the reference point is the identity
	same := in.Rescaled(1e-6, 1e-6)
	assert.Equal(t, in.Ctau0M, same.Ctau0M)
	assert.Equal(t, in.BRs, same.BRs)

	// the product ctau * BR is scale invariant
	assert.InDelta(t, in.Ctau0M*in.BRs[24], out.Ctau0M*out.BRs[24], 1e-18)
}

func TestRescaledMatchesFreshEvaluation(t *testing.T) {
	model := AnalyticModel{}
	const mass, ref = 2.0, 1e-6

	refLen, err := model.DecayLength(mass, BenchmarkCouplings(FlavourMuon, ref))
	require.NoError(t, err)
	refBRs, err := model.ProductionProbabilities(mass, BenchmarkCouplings(FlavourMuon, ref))
	require.NoError(t, err)
	refIn := PhysicsInputs{Ctau0M: refLen, BRs: refBRs}

	for _, eps2 := range []Real{1e-9, 1e-7, 1e-5, 1e-3} {
		fast := refIn.Rescaled(ref, eps2)

		slowLen, err := model.DecayLength(mass, BenchmarkCouplings(FlavourMuon, eps2))
		require.NoError(t, err)
		slowBRs, err := model.ProductionProbabilities(mass, BenchmarkCouplings(FlavourMuon, eps2))
		require.NoError(t, err)

		assert.InEpsilon(t, slowLen, fast.Ctau0M, 5e-4, "eps2=%g", eps2)
		require.Len(t, fast.BRs, len(slowBRs))
		for pid, br := range slowBRs {
			assert.InEpsilon(t, br, fast.BRs[pid], 5e-4, "eps2=%g pdg %d", eps2, pid)
		}
	}
}
