package hnl

import (
	"fmt"
	"math"
)

// PhysicsModel supplies, for a mass and coupling vector, the proper
// decay length and the per-parent production branching ratios. Both
// scale analytically with the squared coupling (decay length inversely,
// branching ratios directly), which the scanner's fast path exploits.
type PhysicsModel interface {
	// DecayLength returns the proper decay length c*tau0 in metres.
	DecayLength(mass Real, u Couplings) (Real, error)
	// ProductionProbabilities returns BR(parent -> N + X) keyed by
	// absolute parent PDG code. Parents absent from the map carry no
	// modelled production.
	ProductionProbabilities(mass Real, u Couplings) (map[int]Real, error)
}

// Physical constants, natural units unless noted.
const (
	gFermi       = 1.1663787e-5 // GeV^-2
	hbarGeVs     = 6.582119569e-25
	speedOfLight = 299792458.0 // m/s

	massW   = 80.379 // GeV
	massB   = 5.279  // GeV, representative B meson
	massE   = 0.000511
	massMu  = 0.10566
	massTau = 1.77686
)

// widthCalibration absorbs phase space and open decay channels in the
// total width Gamma = C * |U|^2 * G_F^2 * m^5, calibrated against the
// CMS 2024 point m=10 GeV, |U|^2=5e-7, ctau=17 mm.
const widthCalibration = 1.7e-3

// AnalyticModel is the closed-form physics adapter. It models HNL
// production from W decays and inclusive semileptonic B decays; other
// parents carry no production and are skipped (with a warning) by the
// yield kernel.
type AnalyticModel struct{}

func (AnalyticModel) DecayLength(mass Real, u Couplings) (Real, error) {
	if mass <= 0 {
		return 0, fmt.Errorf("decay length: mass must be positive, got %g", mass)
	}
	eps2 := u.Total()
	if eps2 <= 0 {
		return 0, fmt.Errorf("decay length: total squared coupling must be positive, got %g", eps2)
	}
	gamma := widthCalibration * eps2 * gFermi * gFermi * math.Pow(mass, 5) // GeV
	tau := hbarGeVs / gamma
	return speedOfLight * tau, nil
}

// wPhaseSpace is the two-body phase-space suppression of W -> l N:
// (1 - xN^2)^2 - xl^2 (1 + xN^2), zero beyond threshold.
func wPhaseSpace(massN, massL Real) Real {
	if massN+massL >= massW {
		return 0
	}
	xN := massN / massW
	xL := massL / massW
	f := (1-xN*xN)*(1-xN*xN) - xL*xL*(1+xN*xN)
	if f < 0 {
		return 0
	}
	return f
}

// bPhaseSpace is the effective three-body suppression used for
// inclusive B -> X l N: (1 - x)^2 (1 + x/2) with x = mN^2 / mB^2.
func bPhaseSpace(massN Real) Real {
	if massN >= massB {
		return 0
	}
	x := (massN / massB) * (massN / massB)
	return (1 - x) * (1 - x) * (1 + 0.5*x)
}

func (AnalyticModel) ProductionProbabilities(mass Real, u Couplings) (map[int]Real, error) {
	if mass <= 0 {
		return nil, fmt.Errorf("production probabilities: mass must be positive, got %g", mass)
	}
	// BR(W -> l nu) ~ 1/9 per flavour; inclusive semileptonic
	// BR(B -> X l nu) ~ 0.105 for light leptons, 0.025 for tau.
	const brWLightNu = 1.0 / 9.0
	brW := brWLightNu * (u.Ue2*wPhaseSpace(mass, massE) +
		u.Umu2*wPhaseSpace(mass, massMu) +
		u.Utau2*wPhaseSpace(mass, massTau))
	brB := (0.105*(u.Ue2+u.Umu2) + 0.025*u.Utau2) * bPhaseSpace(mass)

	brs := make(map[int]Real, 5)
	if brW > 0 {
		brs[24] = brW
	}
	if brB > 0 {
		brs[511] = brB
		brs[521] = brB
		brs[531] = brB
		brs[5122] = brB
	}
	return brs, nil
}
