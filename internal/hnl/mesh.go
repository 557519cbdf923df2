package hnl

import (
	"fmt"
	"math"
)

// Tri indexes three vertices of a mesh, wound counter-clockwise when
// seen from outside.
type Tri [3]int

// Mesh is a closed, outward-oriented triangulated solid. Immutable after
// BuildDetectorMesh returns; safe to share across goroutines.
type Mesh struct {
	Verts []Vec3
	Faces []Tri

	bvh  *bvhNode
	minP Vec3
	maxP Vec3
}

// Bounds returns the axis-aligned bounding box of the solid.
func (m *Mesh) Bounds() (min, max Vec3) { return m.minP, m.maxP }

// BuildDetectorMesh lofts a circular cross-section along the configured
// centreline, caps both ends, guarantees outward orientation (positive
// signed volume) and builds the triangle BVH.
func BuildDetectorMesh(cfg DetectorConfig) (*Mesh, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	path := cfg.path()
	radius := cfg.Radius * cfg.EnvelopeMargin
	verts, faces := loftTube(path, radius, cfg.Segments)

	m := &Mesh{Verts: verts, Faces: faces}
	if m.SignedVolume() < 0 {
		m.invert()
	}
	if v := m.SignedVolume(); v <= 0 {
		return nil, fmt.Errorf("detector mesh: non-positive volume %g after winding fix", v)
	}
	m.computeBounds()
	m.bvh = buildTriBVH(m)
	return m, nil
}

// loftTube builds rings of vertices around each path point in its local
// frame (tangent from neighbouring points) and stitches consecutive
// rings with two triangles per quad, then caps both ends with fans.
func loftTube(path []Vec3, radius Real, segments int) ([]Vec3, []Tri) {
	n := len(path)
	verts := make([]Vec3, 0, n*segments+2)
	faces := make([]Tri, 0, 2*(n-1)*segments+2*segments)

	for i := 0; i < n; i++ {
		var tangent Vec3
		switch {
		case i == 0:
			tangent = path[1].Sub(path[0])
		case i == n-1:
			tangent = path[i].Sub(path[i-1])
		default:
			tangent = path[i+1].Sub(path[i-1])
		}
		tangent = tangent.Norm()

		up := Vec3{0, 0, 1}
		if math.Abs(tangent.Z) >= 0.9 {
			up = Vec3{1, 0, 0}
		}
		right := tangent.Cross(up).Norm()
		up = right.Cross(tangent).Norm()

		for j := 0; j < segments; j++ {
			angle := 2 * math.Pi * Real(j) / Real(segments)
			s, c := math.Sincos(angle)
			offset := right.Mul(radius * c).Add(up.Mul(radius * s))
			verts = append(verts, path[i].Add(offset))
		}

		if i > 0 {
			for j := 0; j < segments; j++ {
				v1 := (i-1)*segments + j
				v2 := (i-1)*segments + (j+1)%segments
				v3 := i*segments + (j+1)%segments
				v4 := i*segments + j
				faces = append(faces, Tri{v1, v4, v3}, Tri{v1, v3, v2})
			}
		}
	}

	// end caps: one fan per end around the path endpoint
	centerStart := len(verts)
	verts = append(verts, path[0])
	for j := 0; j < segments; j++ {
		faces = append(faces, Tri{centerStart, j, (j + 1) % segments})
	}
	centerEnd := len(verts)
	verts = append(verts, path[n-1])
	last := (n - 1) * segments
	for j := 0; j < segments; j++ {
		faces = append(faces, Tri{centerEnd, last + (j+1)%segments, last + j})
	}
	return verts, faces
}

// SignedVolume sums the signed tetrahedron volumes of all faces against
// the origin; positive for a closed outward-oriented solid.
func (m *Mesh) SignedVolume() Real {
	var total Real
	for _, f := range m.Faces {
		a, b, c := m.Verts[f[0]], m.Verts[f[1]], m.Verts[f[2]]
		total += a.Dot(b.Cross(c)) / 6
	}
	return total
}

func (m *Mesh) invert() {
	for i, f := range m.Faces {
		m.Faces[i] = Tri{f[0], f[2], f[1]}
	}
}

func (m *Mesh) computeBounds() {
	min := m.Verts[0]
	max := m.Verts[0]
	for _, v := range m.Verts[1:] {
		if v.X < min.X {
			min.X = v.X
		}
		if v.Y < min.Y {
			min.Y = v.Y
		}
		if v.Z < min.Z {
			min.Z = v.Z
		}
		if v.X > max.X {
			max.X = v.X
		}
		if v.Y > max.Y {
			max.Y = v.Y
		}
		if v.Z > max.Z {
			max.Z = v.Z
		}
	}
	m.minP, m.maxP = min, max
}
