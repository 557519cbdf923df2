package hnl

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"
)

// rotationFromZ builds the rotation taking the z axis onto target
// (Rodrigues form). The anti-parallel case flips x and y.
func rotationFromZ(target Vec3) [3][3]Real {
	t := target.Norm()
	dot := t.Z
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	const eps = 1e-12
	if dot >= 1-eps {
		return [3][3]Real{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
	if dot <= -1+eps {
		return [3][3]Real{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}}
	}
	axis := Vec3{0, 0, 1}.Cross(t).Norm()
	sinA := math.Sqrt(1 - dot*dot)
	cosA := dot
	k := [3][3]Real{
		{0, -axis.Z, axis.Y},
		{axis.Z, 0, -axis.X},
		{-axis.Y, axis.X, 0},
	}
	var r [3][3]Real
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			kk := Real(0)
			for l := 0; l < 3; l++ {
				kk += k[i][l] * k[l][j]
			}
			id := Real(0)
			if i == j {
				id = 1
			}
			r[i][j] = id + sinA*k[i][j] + (1-cosA)*kk
		}
	}
	return r
}

func rotate(m [3][3]Real, v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// LabChargedDirections rotates a rest-frame template from the z axis
// onto the flight direction, boosts it into the lab with beta derived
// from betaGamma, and returns unit directions of the charged products
// above the momentum threshold. Neutral and sub-threshold products are
// dropped: they cannot be separately detected.
func LabChargedDirections(tpl Template, betaGamma Real, dir Vec3, pMin Real) []Vec3 {
	dir = dir.Norm()
	rot := rotationFromZ(dir)
	beta := Real(0)
	if betaGamma > 0 {
		beta = betaGamma / math.Sqrt(1+betaGamma*betaGamma)
	}
	boost := r3.Scale(beta, r3.Vec{X: dir.X, Y: dir.Y, Z: dir.Z})

	var out []Vec3
	for _, prod := range tpl {
		if !IsCharged(prod.PID) {
			continue
		}
		p := rotate(rot, Vec3{prod.Px, prod.Py, prod.Pz})
		lab := Vec3{p.X, p.Y, p.Z}
		if beta > 0 {
			p4 := fmom.NewPxPyPzE(p.X, p.Y, p.Z, prod.E)
			b := fmom.Boost(&p4, boost)
			lab = Vec3{b.Px(), b.Py(), b.Pz()}
		}
		if !lab.IsFinite() {
			continue
		}
		if lab.Len() < pMin {
			continue
		}
		out = append(out, lab.Norm())
	}
	return out
}
