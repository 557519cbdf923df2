package hnl

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Trajectory is one simulated HNL instance from the upstream event
// generator. Weight is a relative MC weight, never an absolute
// cross-section; absolute normalization enters through the
// cross-section registry.
type Trajectory struct {
	Event     int
	ParentPDG int // absolute PDG code of the production parent
	Eta       Real
	Phi       Real
	Momentum  Real // |p| in GeV
	Mass      Real // GeV
	Weight    Real
	BetaGamma Real // p/m

	// TauParentPDG is the grandparent meson for HNLs produced through
	// an intermediate tau (ParentPDG == 15); zero otherwise.
	TauParentPDG int
}

// Direction returns the unit lab-frame flight direction.
func (t Trajectory) Direction() Vec3 { return EtaPhiDirection(t.Eta, t.Phi) }

// Batch is an immutable set of trajectories loaded from one generator
// file, with a content tag for cache keying.
type Batch struct {
	Trajectories []Trajectory
	SourcePath   string
	tag          string
}

// Tag is a content hash of the batch source, stable across runs.
func (b *Batch) Tag() string { return b.tag }

// LoadBatch reads a generator CSV. Both the old column names
// (parent_id, momentum) and the new ones (parent_pdg, p) are accepted;
// a missing weight column defaults every row to weight 1.
func LoadBatch(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trajectory file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	r := csv.NewReader(io.TeeReader(f, h))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	pick := func(names ...string) (int, bool) {
		for _, n := range names {
			if i, ok := col[n]; ok {
				return i, true
			}
		}
		return 0, false
	}

	eventCol, ok := pick("event")
	if !ok {
		return nil, fmt.Errorf("%s: missing required column %q", path, "event")
	}
	parentCol, ok := pick("parent_id", "parent_pdg")
	if !ok {
		return nil, fmt.Errorf("%s: missing required column %q", path, "parent_id")
	}
	etaCol, ok := pick("eta")
	if !ok {
		return nil, fmt.Errorf("%s: missing required column %q", path, "eta")
	}
	phiCol, ok := pick("phi")
	if !ok {
		return nil, fmt.Errorf("%s: missing required column %q", path, "phi")
	}
	momCol, ok := pick("momentum", "p")
	if !ok {
		return nil, fmt.Errorf("%s: missing required column %q", path, "momentum")
	}
	massCol, ok := pick("mass")
	if !ok {
		return nil, fmt.Errorf("%s: missing required column %q", path, "mass")
	}
	weightCol, hasWeight := pick("weight")
	tauParentCol, hasTauParent := pick("tau_parent_id", "tau_parent_pdg")

	var trajs []Trajectory
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line+1, err)
		}
		line++

		field := func(i int) (Real, error) {
			if i >= len(rec) {
				return 0, fmt.Errorf("%s line %d: short record", path, line)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return 0, fmt.Errorf("%s line %d: %w", path, line, err)
			}
			return v, nil
		}

		ev, err := field(eventCol)
		if err != nil {
			return nil, err
		}
		pdg, err := field(parentCol)
		if err != nil {
			return nil, err
		}
		eta, err := field(etaCol)
		if err != nil {
			return nil, err
		}
		phi, err := field(phiCol)
		if err != nil {
			return nil, err
		}
		mom, err := field(momCol)
		if err != nil {
			return nil, err
		}
		mass, err := field(massCol)
		if err != nil {
			return nil, err
		}
		w := Real(1)
		if hasWeight {
			if w, err = field(weightCol); err != nil {
				return nil, err
			}
		}

		t := Trajectory{
			Event:     int(ev),
			ParentPDG: int(math.Abs(pdg)),
			Eta:       eta,
			Phi:       phi,
			Momentum:  mom,
			Mass:      mass,
			Weight:    w,
		}
		if mass > 0 {
			t.BetaGamma = mom / mass
		}
		if hasTauParent {
			tp, err := field(tauParentCol)
			if err == nil && isFinite(tp) {
				t.TauParentPDG = int(math.Abs(tp))
			}
		}
		trajs = append(trajs, t)
	}

	return &Batch{
		Trajectories: trajs,
		SourcePath:   path,
		tag:          hex.EncodeToString(h.Sum(nil))[:16],
	}, nil
}

// Directions returns one direction per trajectory. Rows with non-finite
// eta/phi yield a zero vector, which the geometry engine records as a
// miss rather than an error.
func (b *Batch) Directions() []Vec3 {
	dirs := make([]Vec3, len(b.Trajectories))
	for i, t := range b.Trajectories {
		if !isFinite(t.Eta) || !isFinite(t.Phi) {
			continue
		}
		dirs[i] = EtaPhiDirection(t.Eta, t.Phi)
	}
	return dirs
}
