package hnl

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// massPoint is one (mass, flavour) unit of work: every trajectory file
// the generator produced for it, across production regimes.
type massPoint struct {
	MassGeV Real
	MassStr string
	Flavour Flavour
	Files   []string
}

// trajectory files are named HNL_<mass>GeV_<flavour>_<regime>[_fromTau].csv
// with the mass encoded as e.g. 1p50.
var trajFileRe = regexp.MustCompile(
	`^HNL_([0-9]+p[0-9]{1,2})GeV_(electron|muon|tau)_` +
		`(?:kaon|charm|beauty|Bc|ew|all|combined)` +
		`(?:_(?:direct|fromTau))?\.csv$`)

// minTrajFileBytes filters out effectively empty generator outputs.
const minTrajFileBytes = 1000

// DiscoverMassPoints scans dir for trajectory files of one flavour and
// groups them by mass.
func DiscoverMassPoints(dir string, flavour Flavour) ([]massPoint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}
	byMass := make(map[string]*massPoint)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := trajFileRe.FindStringSubmatch(e.Name())
		if m == nil || m[2] != string(flavour) {
			continue
		}
		if info, err := e.Info(); err == nil && info.Size() < minTrajFileBytes {
			continue
		}
		massStr := m[1]
		mp := byMass[massStr]
		if mp == nil {
			mass, err := strconv.ParseFloat(strings.ReplaceAll(massStr, "p", "."), 64)
			if err != nil {
				continue
			}
			mp = &massPoint{MassGeV: mass, MassStr: massStr, Flavour: flavour}
			byMass[massStr] = mp
		}
		mp.Files = append(mp.Files, filepath.Join(dir, e.Name()))
	}

	points := make([]massPoint, 0, len(byMass))
	for _, mp := range byMass {
		sort.Strings(mp.Files)
		points = append(points, *mp)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].MassGeV < points[j].MassGeV })
	return points, nil
}

// Runner drives full exclusion scans over every discovered mass point
// and benchmark. Mass points are independent: each loads its own
// trajectories and shares only the immutable mesh and template library.
type Runner struct {
	DataDir  string
	Library  *Library
	Cache    *AcceptanceCache
	Model    PhysicsModel
	Geometry DetectorConfig
	Settings RunSettings
	Log      *zap.Logger
}

func (r *Runner) logger() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.NewNop()
}

// Run scans all benchmarks and mass points, bounded by
// Settings.Workers. A failed mass point is logged and skipped; the
// remaining points still complete. Results come back sorted by flavour,
// then mass.
func (r *Runner) Run(ctx context.Context) ([]ScanResult, error) {
	mesh, err := BuildDetectorMesh(r.Geometry)
	if err != nil {
		return nil, err
	}
	geomTag := r.Geometry.Tag()

	type job struct {
		point massPoint
	}
	var jobs []job
	for _, f := range r.Settings.Flavours {
		points, err := DiscoverMassPoints(r.DataDir, f)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			r.logger().Warn("no trajectory files found",
				zap.String("dir", r.DataDir), zap.String("flavour", string(f)))
		}
		for _, p := range points {
			jobs = append(jobs, job{point: p})
		}
	}

	var (
		mu      sync.Mutex
		results []ScanResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Settings.Workers)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			res, err := r.scanMassPoint(ctx, mesh, geomTag, j.point)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				r.logger().Error("mass point failed, skipping",
					zap.Float64("mass_gev", j.point.MassGeV),
					zap.String("flavour", string(j.point.Flavour)),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Flavour != results[j].Flavour {
			return results[i].Flavour < results[j].Flavour
		}
		return results[i].MassGeV < results[j].MassGeV
	})
	return results, nil
}

func (r *Runner) scanMassPoint(ctx context.Context, mesh *Mesh, geomTag string, p massPoint) (ScanResult, error) {
	merged := &Batch{}
	var recs []Acceptance
	for _, path := range p.Files {
		batch, err := LoadBatch(path)
		if err != nil {
			return ScanResult{}, err
		}
		batchRecs, err := r.Cache.AcceptedRecords(batch, mesh, geomTag, Vec3{})
		if err != nil {
			return ScanResult{}, err
		}
		merged.Trajectories = append(merged.Trajectories, batch.Trajectories...)
		recs = append(recs, batchRecs...)
	}
	if len(merged.Trajectories) == 0 {
		return ScanResult{}, fmt.Errorf("mass %.2f GeV: no trajectories loaded", p.MassGeV)
	}
	nHits := 0
	for _, rec := range recs {
		if rec.Hit {
			nHits++
		}
	}
	r.logger().Info("mass point loaded",
		zap.Float64("mass_gev", p.MassGeV),
		zap.String("flavour", string(p.Flavour)),
		zap.Int("trajectories", len(merged.Trajectories)),
		zap.Int("hits", nHits))
	if nHits == 0 {
		return ScanResult{}, fmt.Errorf("mass %.2f GeV: no trajectory hits the detector", p.MassGeV)
	}

	templates, err := r.Library.Select(p.Flavour, p.MassGeV)
	if err != nil {
		return ScanResult{}, err
	}
	model := &DecayModel{Mesh: mesh, Templates: templates, Sel: r.Settings.Selection, Log: r.Log}
	visible := model.Visibility(merged, recs)

	scanner := &Scanner{
		Model:  r.Model,
		Kernel: &YieldKernel{Log: r.Log},
		Params: r.Settings.Yield,
		Log:    r.Log,
	}
	return scanner.Scan(ctx, p.MassGeV, p.Flavour, merged, recs, visible, r.Settings.Scan)
}

// WriteResults emits one CSV row per scan result, atomically. Undefined
// boundaries are written as empty fields, not zeros.
func WriteResults(path string, results []ScanResult) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create results temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"mass_GeV", "flavour", "eps2_min", "eps2_max", "peak_events"}); err != nil {
		tmp.Close()
		return err
	}
	for _, res := range results {
		lo, hi := "", ""
		if res.Valid {
			lo = strconv.FormatFloat(res.Eps2Min, 'e', 6, 64)
			hi = strconv.FormatFloat(res.Eps2Max, 'e', 6, 64)
		}
		row := []string{
			strconv.FormatFloat(res.MassGeV, 'g', -1, 64),
			string(res.Flavour),
			lo,
			hi,
			strconv.FormatFloat(res.PeakEvents, 'g', 8, 64),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
