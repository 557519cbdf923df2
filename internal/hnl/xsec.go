package hnl

// LHC production cross-sections at 14 TeV (PBC standard), in pb.
const (
	SigmaCCbarPb = 24.0e9
	SigmaBBbarPb = 500.0e6
	SigmaKaonPb  = 5.0e10
	SigmaKLPb    = SigmaKaonPb * 0.5
	SigmaWPb     = 2.0e8
	SigmaZPb     = 6.0e7
)

// Heavy-quark fragmentation fractions.
const (
	fragCD0     = 0.59
	fragCDplus  = 0.24
	fragCDs     = 0.10
	fragCLambda = 0.06

	fragBB0     = 0.40
	fragBBplus  = 0.40
	fragBBs     = 0.10
	fragBLambda = 0.10
)

// ParentSigmaPb returns the inclusive production cross-section for a
// parent species, in pb. Quark-pair rates carry a factor 2 for the
// particle+antiparticle sum. Unknown parents return 0 and ok=false so
// the caller can surface a warning instead of silently counting signal.
func ParentSigmaPb(parentPDG int) (Real, bool) {
	pid := parentPDG
	if pid < 0 {
		pid = -pid
	}
	switch pid {
	case 321:
		return SigmaKaonPb, true
	case 130:
		return SigmaKLPb, true
	case 421:
		return SigmaCCbarPb * fragCD0 * 2, true
	case 411:
		return SigmaCCbarPb * fragCDplus * 2, true
	case 431:
		return SigmaCCbarPb * fragCDs * 2, true
	case 4122:
		return SigmaCCbarPb * fragCLambda * 2, true
	case 511:
		return SigmaBBbarPb * fragBB0 * 2, true
	case 521:
		return SigmaBBbarPb * fragBBplus * 2, true
	case 531:
		return SigmaBBbarPb * fragBBs * 2, true
	case 541:
		return SigmaBBbarPb * 0.001 * 2, true
	case 5122:
		return SigmaBBbarPb * fragBLambda * 2, true
	case 5232:
		return SigmaBBbarPb * 0.03 * 2, true
	case 5332:
		return SigmaBBbarPb * 0.01 * 2, true
	case 15:
		// taus come dominantly from Ds decays
		return (SigmaCCbarPb * fragCDs * 2) * 0.055, true
	case 24:
		return SigmaWPb, true
	case 23:
		return SigmaZPb, true
	}
	return 0, false
}

// ParentTauBR returns the branching ratio of a parent into a tau, used
// to attribute tau-chain HNL production back to the meson that made the
// tau. Parents with no tau mode return 0.
func ParentTauBR(parentPDG int) Real {
	pid := parentPDG
	if pid < 0 {
		pid = -pid
	}
	switch pid {
	case 431:
		return 0.053
	case 511, 521, 531:
		return 0.023
	}
	return 0
}
