package hnl

// pdgCharge maps |PDG code| to electric charge magnitude in units of e
// for the species that appear in decay templates. Anything absent is
// treated as neutral, so unknown species conservatively never count
// toward the separation criterion.
var pdgCharge = map[int]Real{
	11:   1, // e
	13:   1, // mu
	15:   1, // tau
	24:   1, // W
	211:  1, // pi+-
	213:  1, // rho+-
	321:  1, // K+-
	323:  1, // K*+-
	411:  1, // D+-
	413:  1, // D*+-
	431:  1, // Ds+-
	521:  1, // B+-
	541:  1, // Bc+-
	2212: 1, // p
	3112: 1, // Sigma-
	3222: 1, // Sigma+
	3312: 1, // Xi-
	3334: 1, // Omega-
	4122: 1, // Lambda_c+
}

// IsCharged reports whether a PDG species leaves a reconstructable
// track. Lookup failures default to neutral.
func IsCharged(pid int) bool {
	if pid < 0 {
		pid = -pid
	}
	return pdgCharge[pid] != 0
}
