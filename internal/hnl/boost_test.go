package hnl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotationFromZ(t *testing.T) {
	t.Run("maps z onto the target", func(t *testing.T) {
		targets := []Vec3{
			{1, 0, 0},
			{0, 1, 0},
			{1, 1, 1},
			{-0.3, 0.4, -0.9},
		}
		for _, tgt := range targets {
			r := rotationFromZ(tgt)
			got := rotate(r, Vec3{0, 0, 1})
			want := tgt.Norm()
			assert.InDelta(t, want.X, got.X, 1e-12)
			assert.InDelta(t, want.Y, got.Y, 1e-12)
			assert.InDelta(t, want.Z, got.Z, 1e-12)
		}
	})

	t.Run("preserves lengths", func(t *testing.T) {
		r := rotationFromZ(Vec3{0.2, -0.7, 0.4})
		v := Vec3{1.5, -2.5, 0.5}
		assert.InDelta(t, v.Len(), rotate(r, v).Len(), 1e-12)
	})

	t.Run("parallel and anti-parallel targets", func(t *testing.T) {
		r := rotationFromZ(Vec3{0, 0, 1})
		got := rotate(r, Vec3{0.1, 0.2, 0.3})
		assert.Equal(t, Vec3{0.1, 0.2, 0.3}, got)

		r = rotationFromZ(Vec3{0, 0, -1})
		got = rotate(r, Vec3{0, 0, 1})
		assert.InDelta(t, -1.0, got.Z, 1e-12)
		assert.InDelta(t, 1.0, got.Len(), 1e-12)
	})
}

func TestLabChargedDirections(t *testing.T) {
	// muon and charged pion back to back along z in the rest frame
	tpl := Template{
		{E: 0.91, Px: 0, Py: 0, Pz: 0.9, Mass: 0.105, PID: 13},
		{E: 0.92, Px: 0, Py: 0, Pz: -0.9, Mass: 0.139, PID: -211},
	}

	t.Run("identity boost keeps rest directions", func(t *testing.T) {
		dirs := LabChargedDirections(tpl, 0, Vec3{0, 0, 1}, 0)
		require.Len(t, dirs, 2)
		assert.InDelta(t, 1.0, dirs[0].Z, 1e-12)
		assert.InDelta(t, -1.0, dirs[1].Z, 1e-12)
	})

	t.Run("neutral products are dropped", func(t *testing.T) {
		withNeutrino := append(Template{}, tpl...)
		withNeutrino = append(withNeutrino, Product{E: 0.5, Pz: 0.5, PID: 16})
		dirs := LabChargedDirections(withNeutrino, 0, Vec3{0, 0, 1}, 0)
		assert.Len(t, dirs, 2)
	})

	t.Run("momentum threshold drops soft tracks", func(t *testing.T) {
		soft := Template{
			{E: 0.91, Pz: 0.9, Mass: 0.105, PID: 13},
			{E: 0.14, Px: 0.01, Mass: 0.139, PID: 211},
		}
		dirs := LabChargedDirections(soft, 0, Vec3{0, 0, 1}, 0.6)
		assert.Len(t, dirs, 1)
	})

	t.Run("boost collimates along the flight direction", func(t *testing.T) {
		flight := Vec3{1, 0, 0}
		rest := LabChargedDirections(tpl, 0, flight, 0)
		boosted := LabChargedDirections(tpl, 20, flight, 0)
		require.Len(t, rest, 2)
		require.Len(t, boosted, 2)
		for i := range boosted {
			assert.Greater(t, boosted[i].Dot(flight), rest[i].Dot(flight)-1e-12)
			assert.Greater(t, boosted[i].Dot(flight), 0.9)
		}
	})

	t.Run("rotation carries the template onto a tilted axis", func(t *testing.T) {
		flight := Vec3{1, 1, 0}.Norm()
		dirs := LabChargedDirections(tpl, 0, flight, 0)
		require.Len(t, dirs, 2)
		assert.InDelta(t, 1.0, dirs[0].Dot(flight), 1e-12)
		assert.InDelta(t, -1.0, dirs[1].Dot(flight), 1e-12)
	})

	t.Run("directions are unit length", func(t *testing.T) {
		dirs := LabChargedDirections(tpl, 5, Vec3{1, 2, 3}, 0)
		for _, d := range dirs {
			assert.InDelta(t, 1.0, d.Len(), 1e-12)
		}
	})
}

func TestIsCharged(t *testing.T) {
	for _, pdg := range []int{13, -13, 211, -211, 321, 2212, 11} {
		assert.True(t, IsCharged(pdg), "pdg %d", pdg)
	}
	for _, pdg := range []int{22, 111, 2112, 16, 12, 130, 310} {
		assert.False(t, IsCharged(pdg), "pdg %d", pdg)
	}
}

func TestBetaFromBetaGamma(t *testing.T) {
	// beta = betagamma / sqrt(1 + betagamma^2); spot-check through the
	// collimation of a transverse product
	tpl := Template{
		{E: math.Sqrt(0.9*0.9 + 0.105*0.105), Px: 0.9, Mass: 0.105, PID: 13},
		{E: math.Sqrt(0.9*0.9 + 0.139*0.139), Px: -0.9, Mass: 0.139, PID: -211},
	}
	dirs := LabChargedDirections(tpl, 1000, Vec3{0, 0, 1}, 0)
	require.Len(t, dirs, 2)
	// ultra-relativistic parent folds transverse products forward
	assert.Greater(t, dirs[0].Z, 0.99)
	assert.Greater(t, dirs[1].Z, 0.99)
}
