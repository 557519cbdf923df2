package hnl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightTubeConfig is a tube along +x from x=2 to x=10 at the origin
// height, radius 1. The end caps are planar discs at x=2 and x=10, so
// rays along the axis have closed-form entry/exit distances.
func straightTubeConfig() DetectorConfig {
	return DetectorConfig{
		Centreline:     [][2]Real{{2, 0}, {6, 0}, {10, 0}},
		UnitScale:      1,
		Height:         0,
		Radius:         1,
		EnvelopeMargin: 1,
		Segments:       32,
	}
}

func TestBuildDetectorMesh(t *testing.T) {
	t.Run("default geometry", func(t *testing.T) {
		mesh, err := BuildDetectorMesh(DefaultDetectorConfig())
		require.NoError(t, err)
		require.NotEmpty(t, mesh.Verts)
		require.NotEmpty(t, mesh.Faces)

		assert.Greater(t, mesh.SignedVolume(), 0.0)

		min, max := mesh.Bounds()
		assert.Less(t, min.X, max.X)
		assert.Less(t, min.Y, max.Y)
		// tube axis sits at z = 22 m with radius 1.4*1.1
		assert.InDelta(t, 22.0-1.54, min.Z, 1e-6)
		assert.InDelta(t, 22.0+1.54, max.Z, 1e-6)
	})

	t.Run("vertex and face counts", func(t *testing.T) {
		cfg := straightTubeConfig()
		mesh, err := BuildDetectorMesh(cfg)
		require.NoError(t, err)
		n := len(cfg.Centreline)
		assert.Equal(t, n*cfg.Segments+2, len(mesh.Verts))
		assert.Equal(t, 2*(n-1)*cfg.Segments+2*cfg.Segments, len(mesh.Faces))
	})

	t.Run("tube volume close to analytic", func(t *testing.T) {
		mesh, err := BuildDetectorMesh(straightTubeConfig())
		require.NoError(t, err)
		// pi r^2 L for the cylinder; the 32-gon cross-section is
		// slightly smaller than the circle.
		analytic := math.Pi * 1 * 1 * 8
		v := mesh.SignedVolume()
		assert.Greater(t, v, 0.97*analytic)
		assert.Less(t, v, analytic)
	})

	t.Run("winding inversion preserved positive volume", func(t *testing.T) {
		mesh, err := BuildDetectorMesh(straightTubeConfig())
		require.NoError(t, err)
		mesh.invert()
		assert.Less(t, mesh.SignedVolume(), 0.0)
		mesh.invert()
		assert.Greater(t, mesh.SignedVolume(), 0.0)
	})

	t.Run("config validation", func(t *testing.T) {
		cfg := straightTubeConfig()
		cfg.Radius = 0
		_, err := BuildDetectorMesh(cfg)
		require.Error(t, err)

		cfg = straightTubeConfig()
		cfg.Centreline = cfg.Centreline[:1]
		_, err = BuildDetectorMesh(cfg)
		require.Error(t, err)

		cfg = straightTubeConfig()
		cfg.Segments = 2
		_, err = BuildDetectorMesh(cfg)
		require.Error(t, err)
	})
}

func TestDetectorConfigTag(t *testing.T) {
	a := DefaultDetectorConfig()
	b := DefaultDetectorConfig()
	assert.Equal(t, a.Tag(), b.Tag())

	b.Radius = 1.5
	assert.NotEqual(t, a.Tag(), b.Tag())

	c := DefaultDetectorConfig()
	c.Segments = 16
	assert.NotEqual(t, a.Tag(), c.Tag())
}

func TestDetectorPathShift(t *testing.T) {
	cfg := DefaultDetectorConfig()
	pts := cfg.path()
	require.Len(t, pts, len(galleryCentreline))

	// first survey point lands near x=-12 m, y=+13.6 m at z=22 m
	assert.InDelta(t, (-86.57954338701529-11908.8279764855)/1000, pts[0].X, 1e-9)
	assert.InDelta(t, (0.1882163986665546+13591.106147774964)/1000, pts[0].Y, 1e-9)
	assert.InDelta(t, 22.0, pts[0].Z, 1e-12)
}
