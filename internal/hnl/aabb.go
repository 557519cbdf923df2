package hnl

type rayRecips struct {
	invX, invY, invZ Real
	parX, parY, parZ bool // parallel flags (|D| < eps)
}

func computeRayRecips(d Vec3) rayRecips {
	const eps = 1e-18
	rr := rayRecips{}
	if x := d.X; x > eps || x < -eps {
		rr.invX = 1 / x
	} else {
		rr.parX = true
	}
	if y := d.Y; y > eps || y < -eps {
		rr.invY = 1 / y
	} else {
		rr.parY = true
	}
	if z := d.Z; z > eps || z < -eps {
		rr.invZ = 1 / z
	} else {
		rr.parZ = true
	}
	return rr
}

func rayAABB(O Vec3, minP, maxP Vec3, rr rayRecips) (bool, Real) {
	tmin, tmax := -1e300, 1e300

	// X
	if !rr.parX {
		t1 := (minP.X - O.X) * rr.invX
		t2 := (maxP.X - O.X) * rr.invX
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
	} else if O.X < minP.X || O.X > maxP.X {
		return false, 0
	}

	// Y
	if !rr.parY {
		t1 := (minP.Y - O.Y) * rr.invY
		t2 := (maxP.Y - O.Y) * rr.invY
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
	} else if O.Y < minP.Y || O.Y > maxP.Y {
		return false, 0
	}

	// Z
	if !rr.parZ {
		t1 := (minP.Z - O.Z) * rr.invZ
		t2 := (maxP.Z - O.Z) * rr.invZ
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
	} else if O.Z < minP.Z || O.Z > maxP.Z {
		return false, 0
	}

	if tmax < 0 || tmin > tmax {
		return false, 0
	}
	return true, tmin
}

func aabbUnion(aMin, aMax, bMin, bMax Vec3) (Vec3, Vec3) {
	return Vec3{
			rmin(aMin.X, bMin.X),
			rmin(aMin.Y, bMin.Y),
			rmin(aMin.Z, bMin.Z),
		}, Vec3{
			rmax(aMax.X, bMax.X),
			rmax(aMax.Y, bMax.Y),
			rmax(aMax.Z, bMax.Z),
		}
}

func rmin(a, b Real) Real {
	if a < b {
		return a
	}
	return b
}

func rmax(a, b Real) Real {
	if a > b {
		return a
	}
	return b
}
