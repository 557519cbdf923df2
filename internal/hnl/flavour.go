package hnl

import "fmt"

// Flavour is the lepton-coupling category of a scan benchmark.
type Flavour string

const (
	FlavourElectron Flavour = "electron"
	FlavourMuon     Flavour = "muon"
	FlavourTau      Flavour = "tau"
)

// ParseBenchmark maps the three pure single-flavour benchmark codes
// ("100", "010", "001") to their flavour.
func ParseBenchmark(code string) (Flavour, error) {
	switch code {
	case "100":
		return FlavourElectron, nil
	case "010":
		return FlavourMuon, nil
	case "001":
		return FlavourTau, nil
	}
	return "", fmt.Errorf("unknown flavour benchmark %q (want 100, 010 or 001)", code)
}

// Couplings carries the squared mixing per flavour.
type Couplings struct {
	Ue2, Umu2, Utau2 Real
}

// BenchmarkCouplings places eps2 entirely in the benchmark's flavour.
func BenchmarkCouplings(f Flavour, eps2 Real) Couplings {
	switch f {
	case FlavourElectron:
		return Couplings{Ue2: eps2}
	case FlavourMuon:
		return Couplings{Umu2: eps2}
	default:
		return Couplings{Utau2: eps2}
	}
}

// Total returns the summed squared mixing.
func (c Couplings) Total() Real { return c.Ue2 + c.Umu2 + c.Utau2 }
