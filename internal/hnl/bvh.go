package hnl

import "sort"

const bvhMaxLeafSize = 8

type triRef struct {
	min, max Vec3
	idx      int // face index into Mesh.Faces
}

type bvhNode struct {
	min, max Vec3
	left     *bvhNode
	right    *bvhNode
	leafTris []triRef // non-nil => leaf
}

func buildTriBVH(m *Mesh) *bvhNode {
	refs := make([]triRef, 0, len(m.Faces))
	for i, f := range m.Faces {
		a, b, c := m.Verts[f[0]], m.Verts[f[1]], m.Verts[f[2]]
		lo := Vec3{rmin(a.X, rmin(b.X, c.X)), rmin(a.Y, rmin(b.Y, c.Y)), rmin(a.Z, rmin(b.Z, c.Z))}
		hi := Vec3{rmax(a.X, rmax(b.X, c.X)), rmax(a.Y, rmax(b.Y, c.Y)), rmax(a.Z, rmax(b.Z, c.Z))}
		refs = append(refs, triRef{min: lo, max: hi, idx: i})
	}
	if len(refs) == 0 {
		return nil
	}
	return buildTriBVHRec(refs, 0)
}

func buildTriBVHRec(refs []triRef, depth int) *bvhNode {
	n := len(refs)
	if n == 0 {
		return nil
	}
	if n <= bvhMaxLeafSize {
		minP, maxP := refs[0].min, refs[0].max
		for i := 1; i < n; i++ {
			minP, maxP = aabbUnion(minP, maxP, refs[i].min, refs[i].max)
		}
		return &bvhNode{min: minP, max: maxP, leafTris: refs}
	}

	// Union bounds and centroid spreads
	minP, maxP := refs[0].min, refs[0].max
	cmin := [3]Real{centroid(refs[0].min.X, refs[0].max.X), centroid(refs[0].min.Y, refs[0].max.Y), centroid(refs[0].min.Z, refs[0].max.Z)}
	cmax := cmin
	for i := 1; i < n; i++ {
		minP, maxP = aabbUnion(minP, maxP, refs[i].min, refs[i].max)
		cx := centroid(refs[i].min.X, refs[i].max.X)
		cy := centroid(refs[i].min.Y, refs[i].max.Y)
		cz := centroid(refs[i].min.Z, refs[i].max.Z)
		if cx < cmin[0] {
			cmin[0] = cx
		}
		if cx > cmax[0] {
			cmax[0] = cx
		}
		if cy < cmin[1] {
			cmin[1] = cy
		}
		if cy > cmax[1] {
			cmax[1] = cy
		}
		if cz < cmin[2] {
			cmin[2] = cz
		}
		if cz > cmax[2] {
			cmax[2] = cz
		}
	}
	spread := [3]Real{cmax[0] - cmin[0], cmax[1] - cmin[1], cmax[2] - cmin[2]}
	axis := 0
	if spread[1] > spread[axis] {
		axis = 1
	}
	if spread[2] > spread[axis] {
		axis = 2
	}

	// If all centroids coincide (degenerate), fall back to longest box extent axis.
	if spread[axis] <= 1e-18 {
		ext := [3]Real{maxP.X - minP.X, maxP.Y - minP.Y, maxP.Z - minP.Z}
		axis = 0
		if ext[1] > ext[axis] {
			axis = 1
		}
		if ext[2] > ext[axis] {
			axis = 2
		}
	}

	// Sort by chosen centroid axis, split at median
	sort.Slice(refs, func(i, j int) bool {
		ci := triCentroidAxis(refs[i], axis)
		cj := triCentroidAxis(refs[j], axis)
		if ci == cj {
			return refs[i].idx < refs[j].idx
		}
		return ci < cj
	})
	mid := n / 2
	left := buildTriBVHRec(refs[:mid], depth+1)
	right := buildTriBVHRec(refs[mid:], depth+1)

	return &bvhNode{min: minP, max: maxP, left: left, right: right}
}

func centroid(a, b Real) Real { return (a + b) * 0.5 }

func triCentroidAxis(r triRef, axis int) Real {
	switch axis {
	case 0:
		return centroid(r.min.X, r.max.X)
	case 1:
		return centroid(r.min.Y, r.max.Y)
	default:
		return centroid(r.min.Z, r.max.Z)
	}
}

// All-crossings traversal: appends every forward triangle crossing to out.
// No near-to-far pruning since every crossing along the ray is needed.
func (m *Mesh) collectCrossings(O, D Vec3, rr rayRecips, out []Real) []Real {
	if m.bvh == nil {
		return out
	}
	stack := make([]*bvhNode, 0, 64)
	stack = append(stack, m.bvh)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if ok, _ := rayAABB(O, n.min, n.max, rr); !ok {
			continue
		}
		if n.leafTris != nil {
			for i := range n.leafTris {
				f := m.Faces[n.leafTris[i].idx]
				if t, hit := rayTriangle(O, D, m.Verts[f[0]], m.Verts[f[1]], m.Verts[f[2]]); hit {
					out = append(out, t)
				}
			}
			continue
		}
		if n.left != nil {
			stack = append(stack, n.left)
		}
		if n.right != nil {
			stack = append(stack, n.right)
		}
	}
	return out
}
