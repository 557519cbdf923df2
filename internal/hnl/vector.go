package hnl

import "math"

type Real = float64

// Vec3 represents a direction or a position in 3D space.
type Vec3 struct {
	X, Y, Z Real
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (v Vec3) Mul(s Real) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product between two 3D vectors.
func (a Vec3) Dot(b Vec3) Real {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Len returns the Euclidean length of the vector.
func (v Vec3) Len() Real { return math.Sqrt(v.Dot(v)) }

// Norm returns a unit-length version of the vector.
func (v Vec3) Norm() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(x Real) bool { return !math.IsInf(x, 0) && !math.IsNaN(x) }

// EtaPhiDirection converts pseudorapidity and azimuth to a unit direction.
// The beam axis is z; theta = 2*atan(exp(-eta)).
func EtaPhiDirection(eta, phi Real) Vec3 {
	theta := 2 * math.Atan(math.Exp(-eta))
	st, ct := math.Sincos(theta)
	sp, cp := math.Sincos(phi)
	return Vec3{st * cp, st * sp, ct}
}
