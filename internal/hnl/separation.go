package hnl

import (
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"
)

// SeparationPolicy selects how pairwise distances between projected
// charged products are turned into a pass/fail decision.
type SeparationPolicy string

const (
	// AllPairsMin requires every pair to be at least MinSeparation
	// apart (and, when bounded, every pair within MaxSeparation).
	AllPairsMin SeparationPolicy = "all-pairs-min"
	// AnyPairWindow requires at least one pair inside the window.
	AnyPairWindow SeparationPolicy = "any-pair-window"
)

// ParseSeparationPolicy normalizes and validates a policy name.
func ParseSeparationPolicy(s string) (SeparationPolicy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch SeparationPolicy(norm) {
	case AllPairsMin, AnyPairWindow:
		return SeparationPolicy(norm), nil
	}
	return "", fmt.Errorf("unsupported separation policy %q (use %q or %q)", s, AllPairsMin, AnyPairWindow)
}

// DecaySelection bundles the decay-visibility cuts.
type DecaySelection struct {
	MinSeparation Real // metres, between projected charged products
	MaxSeparation Real // metres; <= 0 means unbounded
	PMin          Real // GeV, charged-product momentum threshold
	Policy        SeparationPolicy
	Seed          int64
}

// DefaultDecaySelection mirrors the nominal analysis cuts.
func DefaultDecaySelection(minSeparation Real) DecaySelection {
	return DecaySelection{
		MinSeparation: minSeparation,
		PMin:          0.6,
		Policy:        AllPairsMin,
		Seed:          12345,
	}
}

// separationPass applies the policy to projected charged-product
// points. Fewer than two points can never pass.
func separationPass(points []Vec3, sel DecaySelection) bool {
	if len(points) < 2 {
		return false
	}
	minPair, maxPair := Real(1e300), Real(0)
	anyInWindow := false
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			d := points[i].Sub(points[j]).Len()
			if d < minPair {
				minPair = d
			}
			if d > maxPair {
				maxPair = d
			}
			if d >= sel.MinSeparation && (sel.MaxSeparation <= 0 || d <= sel.MaxSeparation) {
				anyInWindow = true
			}
		}
	}
	if sel.Policy == AnyPairWindow {
		return anyInWindow
	}
	if minPair < sel.MinSeparation {
		return false
	}
	if sel.MaxSeparation > 0 && maxPair > sel.MaxSeparation {
		return false
	}
	return true
}

// FirstCrossing returns the nearest forward mesh crossing point along
// dir from origin.
func (m *Mesh) FirstCrossing(origin, dir Vec3) (Vec3, bool) {
	dir = dir.Norm()
	if !dir.IsFinite() || dir.Dot(dir) <= 0 {
		return Vec3{}, false
	}
	rr := computeRayRecips(dir)
	ts := m.collectCrossings(origin, dir, rr, nil)
	if len(ts) == 0 {
		return Vec3{}, false
	}
	best := ts[0]
	for _, t := range ts[1:] {
		if t < best {
			best = t
		}
	}
	return origin.Add(dir.Mul(best)), true
}

// DecayModel decides, per accepted trajectory, whether the decay
// products would be distinguishable as a detectable event. The decay
// point is approximated at the midpoint of the in-detector path.
type DecayModel struct {
	Mesh      *Mesh
	Templates *TemplateSet
	Sel       DecaySelection
	Log       *zap.Logger
}

// Visibility returns one flag per trajectory; rows without a geometric
// hit are false. Each hit row draws one rest-frame template, boosts its
// charged products into the lab and projects them from the midpoint
// decay position onto the detector surface.
func (d *DecayModel) Visibility(batch *Batch, recs []Acceptance) []bool {
	out := make([]bool, len(batch.Trajectories))
	rng := rand.New(rand.NewSource(d.Sel.Seed))

	nVisible := 0
	for i, t := range batch.Trajectories {
		rec := recs[i]
		if !rec.Hit || rec.Path <= 0 || !isFinite(rec.Entry) || !isFinite(rec.Path) {
			continue
		}
		dir := t.Direction()
		if !dir.IsFinite() {
			continue
		}

		tpl := d.Templates.Pick(rng)
		labDirs := LabChargedDirections(tpl, t.BetaGamma, dir, d.Sel.PMin)
		if len(labDirs) < 2 {
			continue
		}

		decayPos := dir.Mul(rec.Entry + 0.5*rec.Path)
		points := make([]Vec3, 0, len(labDirs))
		for _, ld := range labDirs {
			if p, ok := d.Mesh.FirstCrossing(decayPos, ld); ok {
				points = append(points, p)
			}
		}
		if separationPass(points, d.Sel) {
			out[i] = true
			nVisible++
		}
	}
	if d.Log != nil {
		d.Log.Debug("decay visibility computed",
			zap.Int("trajectories", len(batch.Trajectories)),
			zap.Int("visible", nVisible),
			zap.String("template", d.Templates.Path))
	}
	return out
}
