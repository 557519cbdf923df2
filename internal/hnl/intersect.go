package hnl

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
)

// Acceptance is the geometric result for one ray cast from the origin:
// whether it crosses the detector solid, the distance to the first
// crossing and the total in-solid path length (in metres).
type Acceptance struct {
	Hit   bool
	Entry Real
	Path  Real
}

const triEps = 1e-12

// rayTriangle is the Moller-Trumbore test. Returns the ray parameter t
// for a forward crossing (t > triEps), culling neither face side so
// entries and exits are both reported.
func rayTriangle(O, D, a, b, c Vec3) (Real, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := D.Cross(e2)
	det := e1.Dot(p)
	if det > -triEps && det < triEps {
		return 0, false
	}
	inv := 1 / det
	s := O.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := D.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= triEps {
		return 0, false
	}
	return t, true
}

// Crossings casts a single ray and reduces its sorted surface crossings
// to an Acceptance. Consecutive crossings are paired as entry/exit; the
// solid is not convex along every direction, so the path length is the
// sum over all pairs. A lone trailing crossing (grazing contact) is
// dropped.
func (m *Mesh) Crossings(O, D Vec3, scratch []Real) (Acceptance, []Real) {
	if !D.IsFinite() || D.Dot(D) <= 0 {
		return Acceptance{}, scratch
	}
	rr := computeRayRecips(D)
	ts := m.collectCrossings(O, D, rr, scratch[:0])
	if len(ts) < 2 {
		return Acceptance{}, ts
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	entry := ts[0]
	path := Real(0)
	for i := 0; i+1 < len(ts); i += 2 {
		path += ts[i+1] - ts[i]
	}
	if path <= 0 {
		return Acceptance{}, ts
	}
	return Acceptance{Hit: true, Entry: entry, Path: path}, ts
}

const intersectChunk = 4096

// IntersectRays casts a batch of rays from a common origin. Directions
// with zero or non-finite magnitude are reported as misses, never an
// error. Work is chunked across all CPUs; a chunk that panics inside
// the traversal is bisected and retried so one degenerate ray cannot
// sink the whole batch.
func (m *Mesh) IntersectRays(origin Vec3, dirs []Vec3) []Acceptance {
	out := make([]Acceptance, len(dirs))
	if len(dirs) == 0 {
		return out
	}

	nChunks := (len(dirs) + intersectChunk - 1) / intersectChunk
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if workers > nChunks {
		workers = nChunks
	}

	var next int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			scratch := make([]Real, 0, 64)
			for {
				ci := atomic.AddInt64(&next, 1) - 1
				if ci >= int64(nChunks) {
					return
				}
				lo := int(ci) * intersectChunk
				hi := lo + intersectChunk
				if hi > len(dirs) {
					hi = len(dirs)
				}
				scratch = m.intersectRange(origin, dirs, out, lo, hi, scratch)
			}
		}()
	}
	wg.Wait()
	return out
}

// intersectRange fills out[lo:hi], bisecting on panic until single rays
// remain; a single ray that still panics is recorded as a miss.
func (m *Mesh) intersectRange(origin Vec3, dirs []Vec3, out []Acceptance, lo, hi int, scratch []Real) []Real {
	if lo >= hi {
		return scratch
	}
	ok := func() (done bool) {
		defer func() {
			if recover() != nil {
				done = false
			}
		}()
		for i := lo; i < hi; i++ {
			out[i], scratch = m.Crossings(origin, dirs[i], scratch)
		}
		return true
	}()
	if ok {
		return scratch
	}
	if hi-lo == 1 {
		out[lo] = Acceptance{}
		return scratch
	}
	mid := (lo + hi) / 2
	scratch = m.intersectRange(origin, dirs, out, lo, mid, scratch)
	return m.intersectRange(origin, dirs, out, mid, hi, scratch)
}
