package hnl

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// decayLengthFloorM is the numerical floor for the boosted decay
// length. Clamping is surfaced through a counter and a warning, since
// repeated clamping points at bad beta_gamma or ctau0 inputs.
const decayLengthFloorM = 1e-9

// ExclusionThreshold is the zero-background 95% CL Poisson limit on the
// expected signal count.
const ExclusionThreshold = 2.996

// PhysicsInputs is one physics-adapter evaluation: the proper decay
// length and per-parent production branching ratios at a given
// (mass, coupling) point.
type PhysicsInputs struct {
	Ctau0M Real
	BRs    map[int]Real
}

// Rescaled applies the analytic coupling scaling law: decay length goes
// as 1/eps2, production branching ratios as eps2. This is what lets
// the scanner evaluate the adapter once per mass.
func (p PhysicsInputs) Rescaled(eps2Ref, eps2 Real) PhysicsInputs {
	ratio := eps2 / eps2Ref
	brs := make(map[int]Real, len(p.BRs))
	for pid, br := range p.BRs {
		brs[pid] = br * ratio
	}
	return PhysicsInputs{Ctau0M: p.Ctau0M / ratio, BRs: brs}
}

// YieldParams fixes the run-level normalization of the expected count.
type YieldParams struct {
	LumiFb Real
	// Dirac doubles the total for scenarios where particle and
	// antiparticle decay channels are counted separately.
	Dirac          bool
	RecoEfficiency Real
}

// DefaultYieldParams is the HL-LHC baseline.
func DefaultYieldParams() YieldParams {
	return YieldParams{LumiFb: 3000, RecoEfficiency: 1}
}

// YieldKernel folds geometric acceptance, decay probability and decay
// visibility into an expected event count per (mass, coupling) point.
type YieldKernel struct {
	Log *zap.Logger

	// ClampCount accumulates the number of decay-length floor clamps
	// across invocations.
	ClampCount int64
}

func (k *YieldKernel) logger() *zap.Logger {
	if k.Log != nil {
		return k.Log
	}
	return zap.NewNop()
}

// decayProbability is the chance of decaying strictly between entry and
// exit for a boosted decay length lambda.
func decayProbability(entry, path, lambda Real) Real {
	return math.Exp(-entry/lambda) * -math.Expm1(-path/lambda)
}

// ExpectedEvents computes the total expected signal count. Trajectories
// are grouped by parent species; each group contributes
// L * sigma(parent) * BR(parent->N) * eff with eff the weighted mean of
// (decay probability x visibility) over the group. HNLs produced
// through an intermediate tau are attributed to the tau's own parent
// meson via sigma(meson) * BR(meson->tau) * BR(tau->N). Parents with no
// modelled branching ratio or cross-section contribute zero with a
// warning, never an abort.
func (k *YieldKernel) ExpectedEvents(batch *Batch, recs []Acceptance, visible []bool, in PhysicsInputs, params YieldParams) (Real, error) {
	trajs := batch.Trajectories
	if len(trajs) == 0 {
		return 0, nil
	}
	if len(recs) != len(trajs) || len(visible) != len(trajs) {
		return 0, fmt.Errorf("expected events: record count mismatch (%d trajectories, %d acceptances, %d visibility flags)",
			len(trajs), len(recs), len(visible))
	}

	// Per-trajectory decay probability times visibility.
	probs := make([]Real, len(trajs))
	clamped := 0
	for i, t := range trajs {
		rec := recs[i]
		if !rec.Hit || rec.Path <= 0 || !visible[i] {
			continue
		}
		lambda := t.BetaGamma * in.Ctau0M
		if lambda <= decayLengthFloorM {
			clamped++
			lambda = decayLengthFloorM
		}
		probs[i] = decayProbability(rec.Entry, rec.Path, lambda)
	}
	if clamped > 0 {
		k.ClampCount += int64(clamped)
		k.logger().Warn("decay length clamped to floor",
			zap.Int("trajectories", clamped),
			zap.Float64("floor_m", decayLengthFloorM),
			zap.Float64("ctau0_m", in.Ctau0M))
	}

	// Bad tau-chain rows are an input-data defect, not a physics zero.
	for i, t := range trajs {
		if t.ParentPDG == 15 && t.TauParentPDG == 0 {
			return 0, fmt.Errorf("trajectory %d (event %d): parent is a tau but the grandparent meson id is missing", i, t.Event)
		}
	}

	direct := make(map[int]*yieldGroup)
	tauChain := make(map[int]*yieldGroup)
	for i, t := range trajs {
		var (
			key  int
			grps map[int]*yieldGroup
		)
		if t.ParentPDG == 15 {
			key, grps = t.TauParentPDG, tauChain
		} else {
			key, grps = t.ParentPDG, direct
		}
		g := grps[key]
		if g == nil {
			g = &yieldGroup{}
			grps[key] = g
		}
		g.wSum += t.Weight
		g.wpSum += t.Weight * probs[i]
	}

	total := Real(0)
	var missingBR, missingSigma []int

	for _, pid := range sortedKeys(direct) {
		g := direct[pid]
		if g.wSum <= 0 {
			continue
		}
		br := in.BRs[pid]
		if br <= 0 {
			missingBR = append(missingBR, pid)
			continue
		}
		sigmaPb, ok := ParentSigmaPb(pid)
		if !ok || sigmaPb <= 0 {
			missingSigma = append(missingSigma, pid)
			continue
		}
		eff := g.wpSum / g.wSum
		total += params.LumiFb * (sigmaPb * 1e3) * br * eff
	}

	if len(tauChain) > 0 {
		brTauToN := in.BRs[15]
		if brTauToN <= 0 {
			missingBR = append(missingBR, 15)
		} else {
			for _, pid := range sortedKeys(tauChain) {
				g := tauChain[pid]
				if g.wSum <= 0 {
					continue
				}
				brToTau := ParentTauBR(pid)
				if brToTau <= 0 {
					missingBR = append(missingBR, pid)
					continue
				}
				sigmaPb, ok := ParentSigmaPb(pid)
				if !ok || sigmaPb <= 0 {
					missingSigma = append(missingSigma, pid)
					continue
				}
				eff := g.wpSum / g.wSum
				total += params.LumiFb * (sigmaPb * 1e3) * brToTau * brTauToN * eff
			}
		}
	}

	if len(missingBR) > 0 {
		k.logger().Warn("parents without modelled branching ratio contribute zero",
			zap.Ints("parent_pdgs", missingBR))
	}
	if len(missingSigma) > 0 {
		k.logger().Warn("parents without registered cross-section contribute zero",
			zap.Ints("parent_pdgs", missingSigma))
	}

	if params.Dirac {
		total *= 2
	}
	if params.RecoEfficiency > 0 {
		total *= params.RecoEfficiency
	}
	return total, nil
}

type yieldGroup struct {
	wSum, wpSum Real
}

func sortedKeys(m map[int]*yieldGroup) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
