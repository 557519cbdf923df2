package hnl

import (
	"math"
	"runtime"
	"sync"
)

// ProbeResult summarizes an isotropic angular sweep of the detector.
type ProbeResult struct {
	// HitFraction is the solid-angle fraction subtended by the solid.
	HitFraction Real
	// MeanDecayFraction is the solid-angle-weighted mean in-detector
	// decay probability over directions that hit, for the probed decay
	// length.
	MeanDecayFraction Real
	// TotalDecayFraction is the same probability averaged over the
	// full sphere (non-hitting directions contribute zero).
	TotalDecayFraction Real
	Rays               int
	Hits               int
}

// SolidAngleProbe sweeps an azimuth/elevation grid from the origin and
// accumulates solid-angle-weighted decay probabilities for a fixed
// decay length. A diagnostic, not part of the scan path.
func SolidAngleProbe(m *Mesh, origin Vec3, decayLengthM Real, azSamples, elSamples int) ProbeResult {
	if azSamples < 1 {
		azSamples = 180
	}
	if elSamples < 2 {
		elSamples = 90
	}

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if workers > elSamples {
		workers = elSamples
	}

	type partial struct {
		weighted, solid Real
		hits            int
	}
	parts := make([]partial, workers)
	per, rem := elSamples/workers, elSamples%workers

	var wg sync.WaitGroup
	start := 0
	for w := 0; w < workers; w++ {
		n := per
		if w < rem {
			n++
		}
		if n == 0 {
			continue
		}
		wg.Add(1)
		go func(wid, lo, hi int) {
			defer wg.Done()
			var p partial
			scratch := make([]Real, 0, 16)
			for i := lo; i < hi; i++ {
				elevation := -math.Pi/2 + math.Pi*Real(i)/Real(elSamples-1)
				sinE, cosE := math.Sincos(elevation)
				element := cosE * (2 * math.Pi / Real(azSamples)) * (math.Pi / Real(elSamples))
				for j := 0; j < azSamples; j++ {
					azimuth := 2 * math.Pi * Real(j) / Real(azSamples)
					sinA, cosA := math.Sincos(azimuth)
					dir := Vec3{cosE * cosA, cosE * sinA, sinE}

					var rec Acceptance
					rec, scratch = m.Crossings(origin, dir, scratch)
					if !rec.Hit {
						continue
					}
					p.hits++
					prob := decayProbability(rec.Entry, rec.Path, decayLengthM)
					p.weighted += prob * element
					p.solid += element
				}
			}
			parts[wid] = p
		}(w, start, start+n)
		start += n
	}
	wg.Wait()

	var weighted, solid Real
	hits := 0
	for _, p := range parts {
		weighted += p.weighted
		solid += p.solid
		hits += p.hits
	}

	res := ProbeResult{
		Rays: azSamples * elSamples,
		Hits: hits,
	}
	res.HitFraction = solid / (4 * math.Pi)
	if solid > 0 {
		res.MeanDecayFraction = weighted / solid
	}
	res.TotalDecayFraction = weighted / (4 * math.Pi)
	return res
}
